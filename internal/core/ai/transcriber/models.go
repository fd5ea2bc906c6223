package transcriber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/guiyumin/urduscribe/internal/core/config"
)

// Weight precisions. int8 selects the quantized ggml file.
const (
	PrecisionFloat16 = "float16"
	PrecisionInt8    = "int8"
)

// DefaultModel is the size tier used when none is configured.
const DefaultModel = "small"

// modelBaseURL hosts the ggml conversions of the whisper checkpoints.
var modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// ASRModel is one whisper size tier.
type ASRModel struct {
	Name        string // tier, e.g. "small"
	Float16File string
	Int8File    string
	Size        string // human-readable float16 size
	Description string
}

// ASRModels lists the whisper tiers, smallest first.
var ASRModels = []ASRModel{
	{Name: "tiny", Float16File: "ggml-tiny.bin", Int8File: "ggml-tiny-q8_0.bin", Size: "78MB", Description: "Fastest, basic quality"},
	{Name: "base", Float16File: "ggml-base.bin", Int8File: "ggml-base-q8_0.bin", Size: "148MB", Description: "Good for quick drafts"},
	{Name: "small", Float16File: "ggml-small.bin", Int8File: "ggml-small-q8_0.bin", Size: "488MB", Description: "Balanced for most uses"},
	{Name: "medium", Float16File: "ggml-medium.bin", Int8File: "ggml-medium-q8_0.bin", Size: "1.5GB", Description: "Higher accuracy"},
	// no q8_0 build is published for large-v3
	{Name: "large-v3", Float16File: "ggml-large-v3.bin", Int8File: "ggml-large-v3-q5_0.bin", Size: "3.1GB", Description: "Highest accuracy, slowest"},
}

// GetModel returns a tier by name.
func GetModel(name string) *ASRModel {
	for _, m := range ASRModels {
		if m.Name == name {
			return &m
		}
	}
	return nil
}

// ModelFileName returns the ggml file for a tier and precision.
// Unknown tiers map to ggml-<tier>.bin.
func ModelFileName(tier, precision string) string {
	m := GetModel(tier)
	if m == nil {
		return "ggml-" + tier + ".bin"
	}
	if precision == PrecisionInt8 {
		return m.Int8File
	}
	return m.Float16File
}

// ModelURL returns the download URL for a tier and precision.
func ModelURL(tier, precision string) string {
	return modelBaseURL + ModelFileName(tier, precision)
}

// DefaultModelsDir returns the default models directory.
// In Docker, models are stored in /home/urduscribe/models to avoid bind mount conflicts.
// On host systems, models are stored in ~/.config/urduscribe/models.
func DefaultModelsDir() (string, error) {
	if config.IsRunningInDocker() {
		return "/home/" + config.AppDirName + "/models", nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", config.AppDirName, "models"), nil
}

// ModelManager handles model downloads and caching.
type ModelManager struct {
	modelsDir string
	client    *http.Client
}

// NewModelManager creates a new model manager.
func NewModelManager(modelsDir string) *ModelManager {
	return &ModelManager{modelsDir: modelsDir, client: http.DefaultClient}
}

// Dir returns the models directory.
func (m *ModelManager) Dir() string {
	return m.modelsDir
}

// ModelPath returns the path of a tier's file.
func (m *ModelManager) ModelPath(tier, precision string) string {
	return filepath.Join(m.modelsDir, ModelFileName(tier, precision))
}

// IsDownloaded checks if a tier's file is present.
func (m *ModelManager) IsDownloaded(tier, precision string) bool {
	info, err := os.Stat(m.ModelPath(tier, precision))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// ProgressFunc receives download progress. total is -1 when unknown.
type ProgressFunc func(downloaded, total int64)

// Download fetches a tier into the models directory.
// The file is written under a .part name and renamed when complete, so an
// interrupted download never looks like a usable model.
func (m *ModelManager) Download(ctx context.Context, tier, precision string, progress ProgressFunc) (string, error) {
	if GetModel(tier) == nil {
		return "", fmt.Errorf("unknown model: %s", tier)
	}
	if err := os.MkdirAll(m.modelsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create models directory: %w", err)
	}

	target := m.ModelPath(tier, precision)
	partial := target + ".part"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ModelURL(tier, precision), nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download model: HTTP %d", resp.StatusCode)
	}

	file, err := os.Create(partial)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	w := &progressWriter{total: resp.ContentLength, fn: progress}
	_, err = io.Copy(io.MultiWriter(file, w), resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(partial, target); err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("failed to finalize model: %w", err)
	}
	return target, nil
}

// Remove deletes a tier's file.
func (m *ModelManager) Remove(tier, precision string) error {
	if err := os.Remove(m.ModelPath(tier, precision)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("model not downloaded: %s", tier)
		}
		return err
	}
	return nil
}

type progressWriter struct {
	current int64
	total   int64
	fn      ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.current += int64(len(p))
	if w.fn != nil {
		w.fn(w.current, w.total)
	}
	return len(p), nil
}

// FormatBytes formats bytes to human readable string
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
