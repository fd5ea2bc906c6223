package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"codeberg.org/gruf/go-ffmpreg/ffmpreg"
	"codeberg.org/gruf/go-ffmpreg/wasm"
	"github.com/tetratelabs/wazero"
)

// ffmpegArgs builds the conversion to 16kHz mono 16-bit PCM.
func ffmpegArgs(inputPath, outputPath string) []string {
	return []string{
		"-nostdin",
		"-i", inputPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	}
}

// EmbeddedFFmpeg runs the ffmpeg WebAssembly build shipped with go-ffmpreg.
type EmbeddedFFmpeg struct{}

// Name returns the converter name.
func (EmbeddedFFmpeg) Name() string { return "embedded ffmpeg" }

// ToWAV converts inputPath to a 16kHz mono WAV at outputPath.
func (EmbeddedFFmpeg) ToWAV(ctx context.Context, inputPath, outputPath string) error {
	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return err
	}
	absOutput, err := filepath.Abs(outputPath)
	if err != nil {
		return err
	}

	inputDir := filepath.Dir(absInput)
	outputDir := filepath.Dir(absOutput)

	var stderr bytes.Buffer
	args := wasm.Args{
		Stderr: &stderr,
		Stdout: io.Discard,
		Args:   ffmpegArgs(absInput, absOutput),
		Config: func(cfg wazero.ModuleConfig) wazero.ModuleConfig {
			fsCfg := wazero.NewFSConfig().WithDirMount(inputDir, inputDir)
			if outputDir != inputDir {
				fsCfg = fsCfg.WithDirMount(outputDir, outputDir)
			}
			return cfg.WithFSConfig(fsCfg)
		},
	}

	rc, err := ffmpreg.Ffmpeg(ctx, args)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	if rc != 0 {
		return fmt.Errorf("ffmpeg exited with code %d: %s", rc, lastLines(stderr.String(), 3))
	}
	return nil
}

// SystemFFmpeg runs an ffmpeg binary from the host.
type SystemFFmpeg struct {
	Path string
}

// Name returns the converter name.
func (s SystemFFmpeg) Name() string { return "ffmpeg" }

// ToWAV converts inputPath to a 16kHz mono WAV at outputPath.
func (s SystemFFmpeg) ToWAV(ctx context.Context, inputPath, outputPath string) error {
	bin := s.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, ffmpegArgs(inputPath, outputPath)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w\n%s", err, lastLines(string(output), 3))
	}
	return nil
}

// lastLines keeps the tail of ffmpeg's chatty stderr.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
