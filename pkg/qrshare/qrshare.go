package qrshare

// Share QR codes for garden trails using github.com/skip2/go-qrcode
// (ECC=H so the center badge never breaks scanning).
// - Garden-green modules on a warm paper background, incl. quiet zone.
// - Central box holds a leaf mark; all drawing is in-memory, no extra deps.

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	qrcode "github.com/skip2/go-qrcode"
)

type Options struct {
	// Output size (px)
	TargetPx int

	// Colors
	Fg    color.RGBA // QR modules
	Bg    color.RGBA // background incl. quiet zone
	Badge color.RGBA // leaf mark in the center box

	// Central box as a fraction of the image edge, clamped to 0.20..0.36
	BadgeBoxFrac float64
}

// EncodePNG renders a scannable share code for the given link.
func EncodePNG(w io.Writer, link string, opt Options) error {
	if opt.TargetPx <= 0 {
		opt.TargetPx = 1024
	}
	if opt.BadgeBoxFrac <= 0 {
		opt.BadgeBoxFrac = 0.28
	}
	if opt.BadgeBoxFrac < 0.20 {
		opt.BadgeBoxFrac = 0.20
	}
	if opt.BadgeBoxFrac > 0.36 {
		opt.BadgeBoxFrac = 0.36
	}
	if (opt.Fg == color.RGBA{}) {
		opt.Fg = color.RGBA{0x1B, 0x4D, 0x2E, 0xFF}
	}
	if (opt.Bg == color.RGBA{}) {
		opt.Bg = color.RGBA{0xF4, 0xEF, 0xE2, 0xFF}
	}
	if (opt.Badge == color.RGBA{}) {
		opt.Badge = opt.Fg
	}

	qr, err := qrcode.New(link, qrcode.Highest)
	if err != nil {
		return err
	}
	qr.ForegroundColor = opt.Fg
	qr.BackgroundColor = opt.Bg
	qr.DisableBorder = false

	src := qr.Image(opt.TargetPx)
	b := src.Bounds()
	W, H := b.Dx(), b.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, W, H))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{opt.Bg}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)

	box := int(opt.BadgeBoxFrac * float64(minInt(W, H)))
	if box%2 == 1 {
		box--
	}
	cx, cy := W/2, H/2
	fillRect(dst, cx-box/2, cy-box/2, box, box, opt.Bg)
	drawLeaf(dst, cx, cy, box, opt.Badge)

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, dst)
}

// drawLeaf paints a stylized leaf: two mirrored circle arcs meeting at
// the tips, with a thin stem through the middle.
func drawLeaf(dst *image.RGBA, cx, cy, box int, col color.RGBA) {
	half := box / 2
	r := int(0.92 * float64(half))
	if r <= 2 {
		return
	}
	// The leaf body is the intersection of two circles whose centers
	// are offset horizontally from the leaf axis.
	off := int(0.55 * float64(r))
	r2 := r * r
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dxl := x - (cx - off)
			dxr := x - (cx + off)
			dy := y - cy
			if dxl*dxl+dy*dy <= r2 && dxr*dxr+dy*dy <= r2 {
				dst.Set(x, y, col)
			}
		}
	}
	// Stem: carve a thin background line down the axis so the leaf
	// reads as two halves.
	stem := maxInt(1, box/40)
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - stem/2; x <= cx+stem/2; x++ {
			inLeaf := func(px int) bool {
				dxl := px - (cx - off)
				dxr := px - (cx + off)
				dy := y - cy
				return dxl*dxl+dy*dy <= r2 && dxr*dxr+dy*dy <= r2
			}
			if inLeaf(x) {
				dst.Set(x, y, color.RGBA{0xF4, 0xEF, 0xE2, 0xFF})
			}
		}
	}
}

func fillRect(img *image.RGBA, x, y, w, h int, col color.RGBA) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			img.Set(xx, yy, col)
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
