package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/guiyumin/urduscribe/internal/core/ai/output"
	"github.com/guiyumin/urduscribe/internal/core/ai/session"
	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/i18n"
	"github.com/guiyumin/urduscribe/internal/core/media"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	transcribeBackend string
	transcribeTier    string
	transcribeOutput  string
	transcribePlain   bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe an audio or video file to Urdu text",
	Long: `Transcribe an audio or video file to Urdu text.

Accepted formats: mp3, wav, m4a, mp4, mov, webm, ogg.
The transcript is written to urdu_transcript.txt unless -o is given;
an .srt, .vtt or .md output path writes timestamped subtitles or markdown.

With the local backend the transcript appears segment by segment while
the model runs. The remote backend returns the whole transcript at once
and needs an API key in the configured environment variable.

Examples:
  urduscribe transcribe interview.m4a
  urduscribe transcribe lecture.mp4 --model medium -o lecture.txt
  urduscribe transcribe voice.ogg --backend remote
  urduscribe transcribe talk.webm -o talk.srt
  urduscribe transcribe clip.wav --plain > log.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeBackend, "backend", "", "transcription backend: local or remote")
	transcribeCmd.Flags().StringVar(&transcribeTier, "model", "", "local whisper model tier (tiny, base, small, medium, large-v3)")
	transcribeCmd.Flags().StringVarP(&transcribeOutput, "output", "o", session.ArtifactFilename, "transcript output path (.txt, .srt, .vtt, .md)")
	transcribeCmd.Flags().BoolVar(&transcribePlain, "plain", false, "print plain progress lines instead of the interactive view")
	transcribeCmd.RegisterFlagCompletionFunc("backend", fixedCompletion(config.BackendLocal, config.BackendRemote))
	transcribeCmd.RegisterFlagCompletionFunc("model", completeModelTier)

	rootCmd.AddCommand(transcribeCmd)
}

// applyTranscribeFlags lays --backend and --model over the loaded config.
func applyTranscribeFlags(cfg *config.Config) error {
	if transcribeBackend != "" {
		cfg.Backend = transcribeBackend
	}
	if transcribeTier != "" {
		if transcriber.GetModel(transcribeTier) == nil {
			return fmt.Errorf("unknown model: %s", transcribeTier)
		}
		cfg.LocalASR.Model = transcribeTier
	}
	return cfg.Validate()
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	warnNoConfig()
	if err := applyTranscribeFlags(cfg); err != nil {
		return err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	backend, err := transcriber.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	upload := session.Upload{Data: data, Filename: filepath.Base(filePath)}
	t := i18n.T(cfg.Language)

	if transcribePlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		printer := &plainPrinter{w: cmd.OutOrStdout()}
		sess := session.New(sessionDeps(cfg, backend, printer.observe))
		if _, err := runSession(ctx, sess, upload, transcribeOutput); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t.CLI.Saved, transcribeOutput)
		return nil
	}

	state := newTranscribeState()
	sess := session.New(sessionDeps(cfg, backend, state.apply))
	header := tuiHeader{
		filename: upload.Filename,
		backend:  backend.Name(),
		model:    modelLabel(cfg),
		output:   transcribeOutput,
	}
	_, err = runTranscribeTUI(ctx, sess, state, upload, header, t)
	return err
}

func sessionDeps(cfg *config.Config, backend transcriber.Backend, observer session.Observer) session.Deps {
	return session.Deps{
		Normalizer: media.NewNormalizer(cfg.Media),
		Backend:    backend,
		Language:   cfg.TranscriptLanguage,
		UILanguage: cfg.Language,
		TempDir:    cfg.Media.TempDir,
		LiveDelay:  cfg.Session.LiveDelay,
		Observer:   observer,
	}
}

func modelLabel(cfg *config.Config) string {
	if cfg.Backend == config.BackendRemote {
		if cfg.Remote.Model != "" {
			return cfg.Remote.Model
		}
		return cfg.Remote.Provider
	}
	opts, err := transcriber.Resolve(cfg.LocalASR)
	if err != nil {
		return cfg.LocalASR.Model
	}
	return fmt.Sprintf("%s (%s, %s)", opts.Model, opts.Device, opts.Precision)
}

// runSession uploads the file, transcribes it and writes the transcript to
// outputPath. A .srt, .vtt or .md extension selects a timestamped format.
func runSession(ctx context.Context, sess *session.Session, upload session.Upload, outputPath string) (*transcriber.Result, error) {
	if err := sess.Upload(upload); err != nil {
		return nil, err
	}

	result, err := sess.Transcribe(ctx)
	if err != nil {
		return nil, err
	}

	art, err := sess.Artifact()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	data := art.Data
	if f := output.FormatForPath(outputPath); f != output.Text {
		data = output.Render(f, upload.Filename, result)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write transcript: %w", err)
	}
	return result, nil
}

// plainPrinter writes one line per event, printing only the new text of
// each partial transcript.
type plainPrinter struct {
	w       io.Writer
	printed string
}

func (p *plainPrinter) observe(e session.Event) {
	switch e.Type {
	case session.EventStatus:
		fmt.Fprintln(p.w, color.CyanString("» %s", e.Message))
	case session.EventPartial:
		delta := strings.TrimSpace(strings.TrimPrefix(e.Text, p.printed))
		if delta != "" {
			fmt.Fprintln(p.w, delta)
		}
		p.printed = e.Text
	case session.EventFinal:
		fmt.Fprintln(p.w, color.GreenString("✓ %s", e.Message))
	case session.EventError:
		fmt.Fprintln(p.w, color.RedString("✗ %s", e.Message))
	}
}
