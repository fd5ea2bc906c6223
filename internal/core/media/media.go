// Package media turns uploaded audio/video files into the mono 16kHz waveform
// speech models expect.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/config"
)

// SampleRate is the fixed rate of every normalized waveform.
const SampleRate = 16000

// SupportedExtensions lists the upload containers accepted for transcription.
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".mp4", ".mov", ".webm", ".ogg"}

var (
	// ErrUnsupportedFormat is returned for extensions outside SupportedExtensions.
	ErrUnsupportedFormat = errors.New("unsupported media format")

	errNoConverter = errors.New("no ffmpeg converter configured")
)

// DecodeError reports that media bytes could not be turned into audio.
type DecodeError struct {
	Ext string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s media: %v", strings.TrimPrefix(e.Ext, "."), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Audio is a normalized waveform: mono float32 PCM at SampleRate.
type Audio struct {
	Samples    []float32
	SampleRate int
	Duration   time.Duration
}

// Release drops the samples. A released Audio must not be handed to a backend.
func (a *Audio) Release() {
	if a != nil {
		a.Samples = nil
	}
}

// Valid reports whether the waveform can still be used.
func (a *Audio) Valid() bool {
	return a != nil && len(a.Samples) > 0 && a.SampleRate == SampleRate
}

// NormalizeExt lower-cases an extension and ensures a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IsSupported reports whether ext (with or without dot) is an accepted container.
func IsSupported(ext string) bool {
	ext = NormalizeExt(ext)
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Converter turns an arbitrary media file into a 16kHz mono s16le WAV file.
type Converter interface {
	ToWAV(ctx context.Context, inputPath, outputPath string) error
	Name() string
}

// Normalizer decodes uploads into normalized Audio.
type Normalizer struct {
	// TempDir is the parent for scratch files; empty means os.TempDir().
	TempDir string

	// Converter handles containers without a pure-Go decoder.
	Converter Converter
}

// NewNormalizer creates a Normalizer from config.
// A configured ffmpeg path selects the system binary, otherwise the
// embedded WebAssembly build is used.
func NewNormalizer(cfg config.MediaConfig) *Normalizer {
	var conv Converter = EmbeddedFFmpeg{}
	if cfg.FFmpegPath != "" {
		conv = SystemFFmpeg{Path: cfg.FFmpegPath}
	}
	return &Normalizer{
		TempDir:   cfg.TempDir,
		Converter: conv,
	}
}

// WithTempDir returns a copy of n that writes scratch files under dir.
func (n *Normalizer) WithTempDir(dir string) *Normalizer {
	c := *n
	c.TempDir = dir
	return &c
}

// Normalize decodes data into mono 16kHz audio.
// The extension only selects a decoder; if that decoder rejects the bytes
// the converter gets a chance to probe the container itself.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, ext string) (*Audio, error) {
	ext = NormalizeExt(ext)
	if !IsSupported(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if len(data) == 0 {
		return nil, &DecodeError{Ext: ext, Err: errors.New("empty input")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		samples []float32
		rate    int
		err     error
	)
	switch ext {
	case ".wav":
		samples, rate, err = decodeWAV(bytes.NewReader(data))
	case ".mp3":
		samples, rate, err = decodeMP3(bytes.NewReader(data))
	default:
		err = errNoConverter
	}

	if err != nil {
		pureErr := err
		samples, rate, err = n.convert(ctx, data, ext)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, errNoConverter) && !errors.Is(pureErr, errNoConverter) {
				err = pureErr
			}
			return nil, &DecodeError{Ext: ext, Err: err}
		}
	}

	samples = Resample(samples, rate, SampleRate)
	if len(samples) == 0 {
		return nil, &DecodeError{Ext: ext, Err: errors.New("no audio samples")}
	}

	return &Audio{
		Samples:    samples,
		SampleRate: SampleRate,
		Duration:   samplesDuration(len(samples), SampleRate),
	}, nil
}

// convert writes data to a scoped temp dir, runs the converter and reads
// the resulting WAV back. The temp dir is removed on every path.
func (n *Normalizer) convert(ctx context.Context, data []byte, ext string) ([]float32, int, error) {
	if n.Converter == nil {
		return nil, 0, errNoConverter
	}

	tmpDir, err := os.MkdirTemp(n.TempDir, "normalize-*")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input"+ext)
	outputPath := filepath.Join(tmpDir, "output.wav")

	if err := os.WriteFile(inputPath, data, 0600); err != nil {
		return nil, 0, fmt.Errorf("failed to write temp input: %w", err)
	}

	if err := n.Converter.ToWAV(ctx, inputPath, outputPath); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", n.Converter.Name(), err)
	}

	f, err := os.Open(outputPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open converted audio: %w", err)
	}
	defer f.Close()

	return decodeWAV(f)
}

// Resample converts samples from srcRate to dstRate using linear interpolation.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}

// downmix averages interleaved frames of n channels into one channel.
func downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

func samplesDuration(n, rate int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(rate)
}
