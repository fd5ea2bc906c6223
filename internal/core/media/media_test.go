package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/braheezy/shine-mp3/pkg/mp3"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// makeWAV builds a 16-bit PCM WAV with the given layout.
func makeWAV(t *testing.T, rate, channels, frames int, sample func(frame, ch int) float64) []byte {
	t.Helper()

	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Data:           make([]int, frames*channels),
		Format:         &audio.Format{SampleRate: rate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Data[i*channels+ch] = int(sample(i, ch) * 32767)
		}
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	data, err := io.ReadAll(ws.Reader())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// makeFloatWAV builds a mono 32-bit IEEE float WAV.
func makeFloatWAV(rate int, samples []float32) []byte {
	var b bytes.Buffer
	dataSize := uint32(4 * len(samples))
	le := binary.LittleEndian

	b.WriteString("RIFF")
	binary.Write(&b, le, 36+dataSize)
	b.WriteString("WAVEfmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, uint16(3)) // IEEE float
	binary.Write(&b, le, uint16(1))
	binary.Write(&b, le, uint32(rate))
	binary.Write(&b, le, uint32(rate*4))
	binary.Write(&b, le, uint16(4))
	binary.Write(&b, le, uint16(32))
	b.WriteString("data")
	binary.Write(&b, le, dataSize)
	for _, s := range samples {
		binary.Write(&b, le, math.Float32bits(s))
	}
	return b.Bytes()
}

func sine(rate int) func(frame, ch int) float64 {
	return func(frame, ch int) float64 {
		return 0.5 * math.Sin(2*math.Pi*440*float64(frame)/float64(rate))
	}
}

// fakeConverter writes a fixed WAV to the output path.
type fakeConverter struct {
	wav       []byte
	err       error
	inputPath string
}

func (f *fakeConverter) Name() string { return "fake" }

func (f *fakeConverter) ToWAV(ctx context.Context, inputPath, outputPath string) error {
	f.inputPath = inputPath
	if _, err := os.Stat(inputPath); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, f.wav, 0600)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("temp dir not cleaned up: %v", names)
	}
}

func TestNormalizeWAVAlwaysMono16k(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		channels int
	}{
		{"mono 16k", 16000, 1},
		{"mono 8k", 8000, 1},
		{"stereo 44.1k", 44100, 2},
		{"stereo 48k", 48000, 2},
		{"six channels 22.05k", 22050, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := tt.rate // one second
			data := makeWAV(t, tt.rate, tt.channels, frames, sine(tt.rate))

			n := &Normalizer{TempDir: t.TempDir()}
			got, err := n.Normalize(context.Background(), data, "wav")
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got.SampleRate != SampleRate {
				t.Errorf("SampleRate = %d; want %d", got.SampleRate, SampleRate)
			}
			if diff := len(got.Samples) - SampleRate; diff < -2 || diff > 2 {
				t.Errorf("len(Samples) = %d; want ~%d", len(got.Samples), SampleRate)
			}
			if got.Duration < 999*time.Millisecond || got.Duration > time.Second {
				t.Errorf("Duration = %v; want ~1s", got.Duration)
			}
			if !got.Valid() {
				t.Error("Valid() = false for fresh audio")
			}
		})
	}
}

func TestNormalizeFloatWAV(t *testing.T) {
	samples := make([]float32, SampleRate/2)
	for i := range samples {
		samples[i] = 0.01
		if i%2 == 1 {
			samples[i] = -0.25
		}
	}

	n := &Normalizer{TempDir: t.TempDir()}
	got, err := n.Normalize(context.Background(), makeFloatWAV(SampleRate, samples), "wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got.Samples) != len(samples) {
		t.Fatalf("len(Samples) = %d; want %d", len(got.Samples), len(samples))
	}
	for i, want := range samples {
		if math.Abs(float64(got.Samples[i]-want)) > 1e-6 {
			t.Fatalf("Samples[%d] = %v; want %v", i, got.Samples[i], want)
		}
	}
}

func TestNormalizeDownmixesChannels(t *testing.T) {
	// Left and right cancel out.
	data := makeWAV(t, 16000, 2, 1600, func(frame, ch int) float64 {
		if ch == 0 {
			return 0.5
		}
		return -0.5
	})

	n := &Normalizer{}
	got, err := n.Normalize(context.Background(), data, ".WAV")
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range got.Samples {
		if math.Abs(float64(s)) > 1e-3 {
			t.Fatalf("sample %d = %f; want ~0", i, s)
		}
	}
}

func TestNormalizeMP3(t *testing.T) {
	const rate = 44100
	frames := 1152 * 40

	enc := mp3.NewEncoder(rate, 2)
	pcm := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/rate))
		pcm[i*2] = v
		pcm[i*2+1] = v
	}
	var buf bytes.Buffer
	if err := enc.Write(&buf, pcm); err != nil {
		t.Fatalf("encode mp3: %v", err)
	}

	n := &Normalizer{}
	got, err := n.Normalize(context.Background(), buf.Bytes(), "mp3")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.SampleRate != SampleRate {
		t.Errorf("SampleRate = %d", got.SampleRate)
	}
	want := time.Duration(frames) * time.Second / rate
	if got.Duration < want*8/10 || got.Duration > want*13/10 {
		t.Errorf("Duration = %v; want about %v", got.Duration, want)
	}
}

func TestNormalizeUnsupportedExtension(t *testing.T) {
	n := &Normalizer{}
	for _, ext := range []string{".flac", "txt", "", ".exe"} {
		_, err := n.Normalize(context.Background(), []byte("data"), ext)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Normalize(%q) err = %v; want ErrUnsupportedFormat", ext, err)
		}
	}
}

func TestNormalizeCorruptWAVIsDecodeError(t *testing.T) {
	n := &Normalizer{}
	_, err := n.Normalize(context.Background(), []byte("definitely not riff"), ".wav")

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("err = %v; want *DecodeError", err)
	}
	if decErr.Ext != ".wav" {
		t.Errorf("Ext = %q", decErr.Ext)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := &Normalizer{}
	_, err := n.Normalize(context.Background(), nil, ".mp3")

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("err = %v; want *DecodeError", err)
	}
}

func TestNormalizeConverterCleansUp(t *testing.T) {
	tmp := t.TempDir()
	conv := &fakeConverter{wav: makeWAV(t, 48000, 2, 48000, sine(48000))}
	n := &Normalizer{TempDir: tmp, Converter: conv}

	got, err := n.Normalize(context.Background(), []byte("fake m4a bytes"), ".m4a")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.SampleRate != SampleRate {
		t.Errorf("SampleRate = %d", got.SampleRate)
	}
	if filepath.Ext(conv.inputPath) != ".m4a" {
		t.Errorf("converter input = %q; want .m4a temp file", conv.inputPath)
	}
	assertEmptyDir(t, tmp)
}

func TestNormalizeConverterFailureCleansUp(t *testing.T) {
	tmp := t.TempDir()
	conv := &fakeConverter{err: errors.New("moov atom not found")}
	n := &Normalizer{TempDir: tmp, Converter: conv}

	_, err := n.Normalize(context.Background(), []byte("broken"), ".mp4")

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("err = %v; want *DecodeError", err)
	}
	assertEmptyDir(t, tmp)
}

func TestNormalizeCancelledCleansUp(t *testing.T) {
	tmp := t.TempDir()
	conv := &fakeConverter{wav: makeWAV(t, 16000, 1, 16000, sine(16000))}
	n := &Normalizer{TempDir: tmp, Converter: conv}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Normalize(ctx, []byte("webm"), ".webm")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	assertEmptyDir(t, tmp)
}

func TestNormalizeNoConverterForContainer(t *testing.T) {
	n := &Normalizer{}
	_, err := n.Normalize(context.Background(), []byte("ogg bytes"), ".ogg")
	if !errors.Is(err, errNoConverter) {
		t.Fatalf("err = %v; want errNoConverter", err)
	}
}

func TestResample(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = 0.25
	}
	out := Resample(in, 48000, 16000)
	if len(out) != 16000 {
		t.Fatalf("len = %d; want 16000", len(out))
	}
	for i, s := range out {
		if s != 0.25 {
			t.Fatalf("out[%d] = %f; want 0.25", i, s)
		}
	}

	same := Resample(in, 16000, 16000)
	if &same[0] != &in[0] {
		t.Error("Resample at equal rates should return the input")
	}
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	a := &Audio{
		Samples:    make([]float32, 8000),
		SampleRate: SampleRate,
		Duration:   500 * time.Millisecond,
	}
	for i := range a.Samples {
		a.Samples[i] = 0.5
	}

	data, err := EncodeWAV(a)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	samples, rate, err := decodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if rate != SampleRate || len(samples) != len(a.Samples) {
		t.Fatalf("got rate=%d len=%d", rate, len(samples))
	}
	if math.Abs(float64(samples[100])-0.5) > 1e-3 {
		t.Errorf("sample = %f; want ~0.5", samples[100])
	}

	a.Release()
	if _, err := EncodeWAV(a); err == nil {
		t.Error("EncodeWAV on released audio should fail")
	}
}

func TestIsSupported(t *testing.T) {
	for _, ext := range []string{"mp3", ".WAV", "m4a", ".mp4", "mov", "webm", ".ogg"} {
		if !IsSupported(ext) {
			t.Errorf("IsSupported(%q) = false", ext)
		}
	}
	for _, ext := range []string{"flac", ".aac", "", "mkv"} {
		if IsSupported(ext) {
			t.Errorf("IsSupported(%q) = true", ext)
		}
	}
}
