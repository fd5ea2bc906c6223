package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/guiyumin/urduscribe/internal/core/ai/session"
	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/media"
	"github.com/spf13/cobra"
)

var (
	watchOutDir string
	watchFormat string
	watchSettle time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Transcribe media files as they appear in a directory",
	Long: `Watch a directory and transcribe every new audio or video file.

A file is picked up once it has not changed for the settle time, so
recordings still being written are not read half-finished. Each
transcript is written next to the file (or into --out-dir) with the
same base name.

Examples:
  urduscribe watch ~/Recordings
  urduscribe watch ./inbox --out-dir ./transcripts --format srt`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&transcribeBackend, "backend", "", "transcription backend: local or remote")
	watchCmd.Flags().StringVar(&transcribeTier, "model", "", "local whisper model tier")
	watchCmd.Flags().StringVar(&watchOutDir, "out-dir", "", "directory for transcripts (default: next to each file)")
	watchCmd.Flags().StringVar(&watchFormat, "format", "txt", "transcript format: txt, srt, vtt or md")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "quiet time before a file is considered complete")
	watchCmd.RegisterFlagCompletionFunc("format", fixedCompletion("txt", "srt", "vtt", "md"))
	watchCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	}

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	switch watchFormat {
	case "txt", "srt", "vtt", "md":
	default:
		return fmt.Errorf("unknown format %q (want txt, srt, vtt or md)", watchFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	warnNoConfig()
	if err := applyTranscribeFlags(cfg); err != nil {
		return err
	}

	backend, err := transcriber.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s (backend: %s, press ctrl+c to stop)\n", dir, backend.Name())

	settle := watchSettle
	if settle < 200*time.Millisecond {
		settle = 200 * time.Millisecond
	}
	q := newSettleQueue(settle)
	ticker := time.NewTicker(settle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && media.IsSupported(filepath.Ext(event.Name)) {
				q.touch(event.Name, time.Now())
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)

		case now := <-ticker.C:
			for _, path := range q.due(now) {
				transcribeWatched(ctx, cfg, backend, path, out)
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// transcribeWatched runs one file through a session. Failures are reported
// and the watch continues.
func transcribeWatched(ctx context.Context, cfg *config.Config, backend transcriber.Backend, path string, out io.Writer) {
	fmt.Fprintf(out, "\n%s %s\n", color.New(color.Bold).Sprint("▶"), filepath.Base(path))

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(out, color.RedString("✗ %v", err))
		return
	}

	printer := &plainPrinter{w: out}
	sess := session.New(sessionDeps(cfg, backend, printer.observe))
	target := watchTarget(path, watchOutDir, watchFormat)
	if _, err := runSession(ctx, sess, session.Upload{Data: data, Filename: filepath.Base(path)}, target); err != nil {
		log.Printf("%s: %v", path, err)
		return
	}
	fmt.Fprintf(out, "%s %s\n", color.GreenString("saved"), target)
}

// watchTarget names the transcript of path.
func watchTarget(path, outDir, format string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "." + format
	if outDir != "" {
		return filepath.Join(outDir, base)
	}
	return filepath.Join(filepath.Dir(path), base)
}

// settleQueue releases a path once no event has touched it for settle.
// A path touched again after its release is queued again.
type settleQueue struct {
	settle  time.Duration
	pending map[string]time.Time
}

func newSettleQueue(settle time.Duration) *settleQueue {
	return &settleQueue{
		settle:  settle,
		pending: make(map[string]time.Time),
	}
}

func (q *settleQueue) touch(path string, at time.Time) {
	q.pending[path] = at
}

// due returns settled paths in name order and forgets them.
func (q *settleQueue) due(now time.Time) []string {
	var ready []string
	for path, last := range q.pending {
		if now.Sub(last) >= q.settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	for _, path := range ready {
		delete(q.pending, path)
	}
	return ready
}
