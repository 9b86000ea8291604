// Package logger implements a per-fetch-stage in-memory log buffer.
//
// Detail lines are buffered while a remote fetch stage runs. On
// failure the buffer is replayed followed by the final error, so the
// log shows the whole story of the stage that degraded. On success the
// buffer is dropped and a single summary line is written.
//
// Thread safety comes from a dedicated logger goroutine fed through a
// command channel; there are no mutexes.
package logger

import (
	"bytes"
	"log"
	"strings"
)

type action int

const (
	actBegin action = iota
	actAppend
	actSuccess
	actFlushErr
)

type cmd struct {
	act     action
	stage   string // fetch stage tag, e.g. "plants#3" for cycle 3
	message string // for Append
	summary string // for Success
	err     error  // for FlushErr
}

var ch = make(chan cmd, 128) // headroom for bursts of parallel stages

// Begin starts buffering for a fetch stage.
func Begin(stage string) { ch <- cmd{act: actBegin, stage: stage} }

// Append adds a detail line to the stage buffer.
func Append(stage, msg string) {
	ch <- cmd{act: actAppend, stage: stage, message: msg}
}

// Success drops the buffer and writes one short summary line.
func Success(stage, summary string) {
	ch <- cmd{act: actSuccess, stage: stage, summary: summary}
}

// FlushError replays the buffered lines and then the final error.
func FlushError(stage string, err error) {
	ch <- cmd{act: actFlushErr, stage: stage, err: err}
}

func init() { go runloop() }

func runloop() {
	buffers := make(map[string]*bytes.Buffer)

	for c := range ch {
		switch c.act {
		case actBegin:
			buffers[c.stage] = &bytes.Buffer{}

		case actAppend:
			if b := buffers[c.stage]; b != nil {
				_, _ = b.WriteString(c.message + "\n")
			} else {
				log.Print(c.message) // no buffer, write straight through
			}

		case actSuccess:
			log.Printf("[%-15s][fetch] ✔ %s", c.stage, c.summary)
			delete(buffers, c.stage)

		case actFlushErr:
			if b := buffers[c.stage]; b != nil {
				lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
				for _, ln := range lines {
					if ln != "" {
						log.Print(ln)
					}
				}
				delete(buffers, c.stage)
			}
			log.Printf("[%-15s][DEGRADED] %v", c.stage, c.err)
		}
	}
}
