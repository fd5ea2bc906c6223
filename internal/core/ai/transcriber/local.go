package transcriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/guiyumin/urduscribe/internal/core/config"
)

// localEngine runs a speech model over normalized samples, calling emit for
// each segment as soon as it is decoded.
type localEngine interface {
	run(ctx context.Context, samples []float32, language string, emit func(Segment) error) (engineResult, error)
}

// LocalOptions is the resolved configuration of the local backend.
type LocalOptions struct {
	Model     string // size tier, e.g. "small"
	Device    string // "cuda" or "cpu"
	Precision string // "float16" or "int8"
	ModelPath string
	Threads   int
	BeamSize  int

	// WhisperCLI is the whisper.cpp binary used by non-cgo builds.
	WhisperCLI string
}

// Resolve picks model file, device and precision for the local backend.
// Precision follows the device unless configured: float16 weights on cuda,
// int8-quantized weights on cpu.
func Resolve(cfg config.LocalASRConfig) (LocalOptions, error) {
	tier := cfg.Model
	if tier == "" {
		tier = DefaultModel
	}
	if GetModel(tier) == nil {
		return LocalOptions{}, fmt.Errorf("unknown model: %s", tier)
	}

	device := cfg.Device
	if device == "" {
		device = detectDevice()
	}

	precision := cfg.Precision
	if precision == "" {
		precision = PrecisionInt8
		if device == "cuda" {
			precision = PrecisionFloat16
		}
	}

	modelsDir := cfg.ModelsDir
	if modelsDir == "" {
		var err error
		modelsDir, err = DefaultModelsDir()
		if err != nil {
			return LocalOptions{}, fmt.Errorf("failed to get models directory: %w", err)
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
		if threads > 8 {
			threads = 8
		}
	}

	beam := cfg.BeamSize
	if beam <= 0 {
		beam = 5
	}

	cli := cfg.WhisperCLI
	if cli == "" {
		cli = "whisper-cli"
	}

	return LocalOptions{
		Model:      tier,
		Device:     device,
		Precision:  precision,
		ModelPath:  filepath.Join(modelsDir, ModelFileName(tier, precision)),
		Threads:    threads,
		BeamSize:   beam,
		WhisperCLI: cli,
	}, nil
}

// detectDevice returns "cuda" if an NVIDIA GPU is usable, otherwise "cpu".
func detectDevice() string {
	// Docker CUDA images set NVIDIA_VISIBLE_DEVICES
	if nv := os.Getenv("NVIDIA_VISIBLE_DEVICES"); nv == "void" || nv == "none" {
		return "cpu"
	}
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return "cpu"
	}
	if err := exec.Command("nvidia-smi").Run(); err != nil {
		return "cpu"
	}
	return "cuda"
}

// resultLanguage picks the language to report: what the model detected,
// else the requested one. "auto" is a request, never a result.
func resultLanguage(detected, requested string) string {
	if detected != "" && detected != "auto" {
		return detected
	}
	if requested == "auto" {
		return ""
	}
	return requested
}

// memo caches values per key for the life of the process.
// Loading runs under the lock, so each key is loaded at most once even when
// callers race; failed loads are not cached.
type memo[T any] struct {
	mu    sync.Mutex
	items map[string]T
}

func newMemo[T any]() *memo[T] {
	return &memo[T]{items: make(map[string]T)}
}

func (m *memo[T]) get(key string, load func() (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.items[key]; ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	m.items[key] = v
	return v, nil
}

// engines holds every loaded local model. Models are never unloaded.
var engines = newMemo[localEngine]()

// Local implements Backend with a locally resident whisper.cpp model.
// Segments are streamed while the model is still decoding.
type Local struct {
	opts   LocalOptions
	engine localEngine
}

// NewLocal resolves the configuration and returns a backend sharing the
// process-wide model for that configuration, loading it on first use.
func NewLocal(cfg config.LocalASRConfig) (*Local, error) {
	opts, err := Resolve(cfg)
	if err != nil {
		return nil, &TranscriptionError{Backend: "whisper-local", Err: err}
	}

	engine, err := engines.get(opts.cacheKey(), func() (localEngine, error) {
		if _, err := os.Stat(opts.ModelPath); err != nil {
			return nil, fmt.Errorf("model file not found: %s (run: urduscribe models download %s --precision %s)",
				opts.ModelPath, opts.Model, opts.Precision)
		}
		return newLocalEngine(opts)
	})
	if err != nil {
		return nil, &TranscriptionError{Backend: "whisper-local", Err: err}
	}

	return &Local{opts: opts, engine: engine}, nil
}

func (o LocalOptions) cacheKey() string {
	return o.ModelPath + "|" + o.Device
}

// Name returns the provider name.
func (l *Local) Name() string {
	return "whisper-local"
}

// Streaming reports true: segments are delivered as they are decoded.
func (l *Local) Streaming() bool {
	return true
}

// Options returns the resolved model configuration.
func (l *Local) Options() LocalOptions {
	return l.opts
}

// Transcribe starts decoding and returns a stream of segments.
func (l *Local) Transcribe(ctx context.Context, req Request) (Stream, error) {
	if !req.Audio.Valid() {
		return nil, &TranscriptionError{Backend: l.Name(), Err: errors.New("audio is empty or released")}
	}

	language := req.Language
	if language == "" {
		language = "auto"
	}
	samples := req.Audio.Samples

	return startStream(ctx, l.Name(), req.Audio.Duration, func(ctx context.Context, emit func(Segment) error) (engineResult, error) {
		return l.engine.run(ctx, samples, language, emit)
	}), nil
}
