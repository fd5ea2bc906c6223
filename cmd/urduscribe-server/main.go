package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/media"
	"github.com/guiyumin/urduscribe/internal/core/version"
	"github.com/guiyumin/urduscribe/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 0, "HTTP listen port (default: 8080)")
	backendName := flag.String("backend", "", "transcription backend: local or remote")
	model := flag.String("model", "", "local whisper model tier")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("urduscribe-server %s\n", version.Version)
		return
	}

	// Load configuration
	cfg := config.LoadOrDefault()

	// Resolve port (flag > config > default)
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if *backendName != "" {
		cfg.Backend = *backendName
	}
	if *model != "" {
		cfg.LocalASR.Model = *model
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	backend, err := transcriber.New(cfg)
	if err != nil {
		log.Fatalf("Backend error: %v", err)
	}

	// Create and start server
	srv := server.NewServer(cfg, backend, media.NewNormalizer(cfg.Media))

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}
