package transcriber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestModelFileName(t *testing.T) {
	tests := []struct {
		tier, precision, want string
	}{
		{"tiny", PrecisionFloat16, "ggml-tiny.bin"},
		{"small", PrecisionInt8, "ggml-small-q8_0.bin"},
		{"large-v3", PrecisionInt8, "ggml-large-v3-q5_0.bin"},
		{"large-v3", PrecisionFloat16, "ggml-large-v3.bin"},
		{"custom", PrecisionInt8, "ggml-custom.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.tier+"/"+tt.precision, func(t *testing.T) {
			if got := ModelFileName(tt.tier, tt.precision); got != tt.want {
				t.Errorf("ModelFileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func withModelServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	orig := modelBaseURL
	modelBaseURL = srv.URL + "/"
	t.Cleanup(func() { modelBaseURL = orig })
}

func TestModelManagerDownload(t *testing.T) {
	payload := []byte("ggml model weights")
	withModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ggml-tiny-q8_0.bin" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	})

	dir := t.TempDir()
	m := NewModelManager(dir)
	if m.IsDownloaded("tiny", PrecisionInt8) {
		t.Fatal("model reported downloaded before download")
	}

	var last int64
	path, err := m.Download(context.Background(), "tiny", PrecisionInt8, func(downloaded, total int64) {
		last = downloaded
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if path != filepath.Join(dir, "ggml-tiny-q8_0.bin") {
		t.Errorf("path = %q", path)
	}
	if last != int64(len(payload)) {
		t.Errorf("progress ended at %d, want %d", last, len(payload))
	}
	if !m.IsDownloaded("tiny", PrecisionInt8) {
		t.Error("model not reported downloaded")
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}

	if err := m.Remove("tiny", PrecisionInt8); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if m.IsDownloaded("tiny", PrecisionInt8) {
		t.Error("model still present after Remove()")
	}
	if err := m.Remove("tiny", PrecisionInt8); err == nil {
		t.Error("removing a missing model should fail")
	}
}

func TestModelManagerDownloadHTTPError(t *testing.T) {
	withModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	dir := t.TempDir()
	m := NewModelManager(dir)
	if _, err := m.Download(context.Background(), "base", PrecisionFloat16, nil); err == nil {
		t.Fatal("Download() should fail on HTTP 404")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("models dir not empty after failed download: %v", entries)
	}
}

func TestModelManagerUnknownTier(t *testing.T) {
	m := NewModelManager(t.TempDir())
	if _, err := m.Download(context.Background(), "huge", PrecisionInt8, nil); err == nil {
		t.Error("Download() should reject unknown tiers")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{488 * 1024 * 1024, "488.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
