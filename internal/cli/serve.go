package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/media"
	"github.com/guiyumin/urduscribe/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the transcription web server",
	Long: `Start an HTTP server with an upload page and a session API.

Examples:
  urduscribe serve              # Start server on port 8080
  urduscribe serve -p 9000      # Start server on port 9000

API Endpoints:
  GET    /api/health                    # Health check
  GET    /api/config                    # Non-secret settings
  POST   /api/sessions                  # Upload a file (multipart "file")
  POST   /api/sessions/:id/transcribe   # Transcribe, streamed as SSE
  GET    /api/sessions/:id/ws           # Transcribe over WebSocket
  GET    /api/sessions/:id/transcript   # Download urdu_transcript.txt
  DELETE /api/sessions/:id              # Abandon a session`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// flag > config > default
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, err := transcriber.New(cfg)
	if err != nil {
		return err
	}
	srv := server.NewServer(cfg, backend, media.NewNormalizer(cfg.Media))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
