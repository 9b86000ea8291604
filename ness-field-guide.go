package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"ness-field-guide/pkg/api"
	"ness-field-guide/pkg/database"
	"ness-field-guide/pkg/eventbus"
	"ness-field-guide/pkg/favourites"
	"ness-field-guide/pkg/nessdata"
	"ness-field-guide/pkg/pipeline"
)

var domain = flag.String("domain", "", "Use 80 and 443 ports. Automatic HTTPS cert via Let's Encrypt.")
var dbType = flag.String("db-type", "sqlite", "Type of the database driver: genji, sqlite, duckdb, or pgx (postgresql)")
var dbPath = flag.String("db-path", "", "Path to the database file (defaults to the current folder, applicable for genji, sqlite drivers.)")
var dbHost = flag.String("db-host", "127.0.0.1", "Database host (applicable for pgx driver)")
var dbPort = flag.Int("db-port", 5432, "Database port (applicable for pgx driver)")
var dbUser = flag.String("db-user", "postgres", "Database user (applicable for pgx driver)")
var dbPass = flag.String("db-pass", "", "Database password (applicable for pgx driver)")
var dbName = flag.String("db-name", "NessFieldGuide", "Database name (applicable for pgx driver)")
var pgSSLMode = flag.String("pg-ssl-mode", "prefer", "PostgreSQL SSL mode: disable, allow, prefer, require, verify-ca, or verify-full")
var port = flag.Int("port", 8765, "Port for running the server")
var version = flag.Bool("version", false, "Show the application version")
var baseURL = flag.String("base-url", "", "Record endpoint; empty uses the garden's production server")
var imagesURL = flag.String("images-url", "", "Full-size image base; empty uses the garden's production server")
var thumbsURL = flag.String("thumbs-url", "", "Thumbnail image base; empty uses the garden's production server")
var shareBase = flag.String("share-base", "", "Public base URL embedded in trail share codes (defaults to the request host)")
var followDelay = flag.Duration("follow-delay", pipeline.DefaultFollowDelay, "Pause between the first position fix and follow mode")
var refreshEvery = flag.Duration("refresh-every", 0, "Re-run the full fetch cycle on this interval (0 disables)")
var imageCacheTTL = flag.Duration("image-cache-ttl", time.Hour, "How long proxied plant photos stay cached in memory")
var assetCooldown = flag.Duration("asset-cooldown", 200*time.Millisecond, "Per-client pause between image proxy downloads")

var CompileVersion = "dev"

// withServerHeader wraps any http.Handler, adding a
// "Server: ness-field-guide/<CompileVersion>" header.
//
// A HEAD request to "/" gets an immediate 200 OK with no body so load
// balancers can probe liveness cheaply.
func withServerHeader(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "ness-field-guide/"+CompileVersion)

		if r.Method == http.MethodHead && r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// serveWithDomain runs:
//   - :80  — ACME HTTP-01 challenge + 301 redirect to https://<domain>/…
//   - :443 — HTTPS with automatic Let's Encrypt certificates.
//
// If autocert cannot issue a cert for a host/SNI, the server still
// presents the previously obtained fallback cert instead of failing
// the handshake. All errors are only logged.
func serveWithDomain(domain string, handler http.Handler) {
	certMgr := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache("certs"),
		HostPolicy: func(ctx context.Context, host string) error {
			// Allow the bare domain and www.<domain>.
			if host == domain || host == "www."+domain {
				return nil
			}
			// An IP address is not blocked, we just do not request a cert.
			if net.ParseIP(host) != nil {
				return nil
			}
			return errors.New("acme/autocert: host not configured")
		},
	}

	go func() {
		mux80 := http.NewServeMux()
		mux80.Handle("/.well-known/acme-challenge/", certMgr.HTTPHandler(nil))
		mux80.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			target := "https://" + domain + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})

		log.Printf("HTTP  server (ACME+redirect) ➜ :80")
		if err := (&http.Server{
			Addr:              ":80",
			Handler:           mux80,
			ReadHeaderTimeout: 10 * time.Second,
		}).ListenAndServe(); err != nil {
			log.Printf("HTTP  server error: %v", err)
		}
	}()

	// Daily certificate renewal check.
	go func() {
		t := time.NewTicker(24 * time.Hour)
		defer t.Stop()
		for range t.C {
			if _, err := certMgr.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err != nil {
				log.Printf("autocert renewal check: %v", err)
			}
		}
	}()

	tlsCfg := certMgr.TLSConfig()
	tlsCfg.MinVersion = tls.VersionTLS10
	tlsCfg.NextProtos = append([]string{"http/1.0"}, tlsCfg.NextProtos...)

	// Fallback cert for IP / odd SNI values.
	var defaultCert *tls.Certificate
	go func() {
		for defaultCert == nil {
			if c, err := certMgr.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err == nil {
				defaultCert = c
			}
			time.Sleep(time.Minute)
		}
	}()
	tlsCfg.GetCertificate = func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
		c, err := certMgr.GetCertificate(chi)
		if err == nil {
			return c, nil
		}
		if defaultCert != nil {
			return defaultCert, nil
		}
		return nil, err
	}

	log.Printf("HTTPS server for %s ➜ :443 (TLS ≥1.0, ALPN h2/http1.1/1.0)", domain)
	if err := (&http.Server{
		Addr:              ":443",
		Handler:           handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}).ListenAndServeTLS("", ""); err != nil {
		log.Printf("HTTPS server error: %v", err)
	}
}

// =====================
// MAIN
// =====================
func main() {
	flag.Parse()

	if *version {
		fmt.Printf("ness-field-guide version %s\n", CompileVersion)
		return
	}

	if *domain != "" && runtime.GOOS != "windows" && os.Geteuid() != 0 {
		log.Println("⚠  Binding to :80 / :443 requires super-user rights; run with sudo or as root.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database for persisted favourites.
	dbCfg := database.Config{
		DBType:    *dbType,
		DBPath:    *dbPath,
		DBHost:    *dbHost,
		DBPort:    *dbPort,
		DBUser:    *dbUser,
		DBPass:    *dbPass,
		DBName:    *dbName,
		PGSSLMode: *pgSSLMode,
		Port:      *port,
	}
	db, err := database.NewDatabase(dbCfg)
	if err != nil {
		log.Fatalf("DB init: %v", err)
	}
	if err = db.InitSchema(); err != nil {
		log.Fatalf("DB schema: %v", err)
	}
	favStore := favourites.NewStore(ctx, db, log.Printf)

	// 2. Remote data client and the fetch pipeline.
	client := nessdata.NewClient(*baseURL, *imagesURL, *thumbsURL)
	bus := eventbus.NewBus(64)
	pipe := pipeline.NewService(client, bus, *followDelay, log.Printf)
	pipe.Start(ctx)
	pipe.Refresh()

	if *refreshEvery > 0 {
		go func() {
			t := time.NewTicker(*refreshEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					pipe.Refresh()
				}
			}
		}()
	}

	// 3. Routes.
	handler := api.NewHandler(pipe, favStore, bus, log.Printf)
	handler.Assets = client
	handler.Images = api.NewAssetCache(*imageCacheTTL)
	handler.Limiter = api.NewRateLimiter(*assetCooldown)
	handler.ShareBase = *shareBase

	mux := http.NewServeMux()
	handler.Register(mux)
	rootHandler := withServerHeader(mux)

	// 4. HTTP/HTTPS servers.
	if *domain != "" {
		go serveWithDomain(*domain, rootHandler)
	} else {
		addr := fmt.Sprintf(":%d", *port)
		go func() {
			log.Printf("HTTP server ➜ http://localhost%s", addr)
			if err := http.ListenAndServe(addr, rootHandler); err != nil {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	// 5. Keep the main goroutine alive.
	select {}
}
