//go:build !cgo

package transcriber

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/guiyumin/urduscribe/internal/core/media"
)

// cliEngine runs the whisper.cpp CLI binary, used when CGO is disabled.
// Segments are read from stdout as whisper-cli prints them.
type cliEngine struct {
	binary string
	opts   LocalOptions
	mu     sync.Mutex
}

func newLocalEngine(opts LocalOptions) (localEngine, error) {
	binary, err := exec.LookPath(opts.WhisperCLI)
	if err != nil {
		return nil, fmt.Errorf("whisper-cli not found (%s): %w", opts.WhisperCLI, err)
	}
	return &cliEngine{binary: binary, opts: opts}, nil
}

func (e *cliEngine) run(ctx context.Context, samples []float32, language string, emit func(Segment) error) (engineResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tmpDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return engineResult{}, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	wavData, err := media.EncodeWAV(&media.Audio{Samples: samples, SampleRate: media.SampleRate})
	if err != nil {
		return engineResult{}, err
	}
	wavPath := filepath.Join(tmpDir, "input.wav")
	if err := os.WriteFile(wavPath, wavData, 0644); err != nil {
		return engineResult{}, fmt.Errorf("failed to write audio: %w", err)
	}

	outputBase := filepath.Join(tmpDir, "output")
	args := []string{
		"-m", e.opts.ModelPath,
		"-f", wavPath,
		"-l", language,
		"-t", fmt.Sprintf("%d", e.opts.Threads),
		"-bs", fmt.Sprintf("%d", e.opts.BeamSize),
		"-ojf",
		"-of", outputBase,
	}
	if e.opts.Device != "cuda" {
		args = append(args, "-ng")
	}

	cmd := exec.CommandContext(ctx, e.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return engineResult{}, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return engineResult{}, fmt.Errorf("failed to start whisper: %w", err)
	}

	var emitErr error
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		seg, ok := parseSegmentLine(scanner.Text())
		if !ok || emitErr != nil {
			continue
		}
		emitErr = emit(seg)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return engineResult{}, ctx.Err()
		}
		log.Printf("whisper-cli: %s", lastLine(stderr.String()))
		return engineResult{}, fmt.Errorf("whisper failed: %w", err)
	}
	if emitErr != nil {
		return engineResult{}, emitErr
	}

	detected, probs, err := readCLIOutput(outputBase + ".json")
	if err != nil {
		// the transcript itself was delivered; only confidence is lost
		log.Printf("whisper-cli: %v", err)
		return engineResult{Language: resultLanguage("", language)}, nil
	}
	return engineResult{Language: resultLanguage(detected, language), TokenProbs: probs}, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
