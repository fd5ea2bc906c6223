package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
)

func testResult() *transcriber.Result {
	return &transcriber.Result{
		Segments: []transcriber.Segment{
			{Start: 0, End: 2500 * time.Millisecond, Text: " پہلا جملہ "},
			{Start: 2500 * time.Millisecond, End: 2500 * time.Millisecond, Text: "  "},
			{Start: 61 * time.Second, End: 3723456 * time.Millisecond, Text: "دوسرا"},
		},
		Backend:       "whisper-local",
		Language:      "ur",
		Duration:      62 * time.Second,
		Confidence:    0.834,
		HasConfidence: true,
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"urdu_transcript.txt": Text,
		"notes.MD":            Markdown,
		"subs.srt":            SRT,
		"captions.vtt":        VTT,
		"noext":               Text,
	}
	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestRender(t *testing.T) {
	res := testResult()

	tests := []struct {
		format Format
		want   []string
	}{
		{Text, []string{"پہلا جملہ دوسرا"}},
		{SRT, []string{"1\n00:00:00,000 --> 00:00:02,500\nپہلا جملہ\n", "2\n00:01:01,000 --> 01:02:03,456\nدوسرا\n"}},
		{VTT, []string{"WEBVTT\n\n", "00:00:00.000 --> 00:00:02.500"}},
		{Markdown, []string{"# Transcript: clip.m4a", "**Duration:** 1m 2s", "**Confidence:** 83%", "[00:00] پہلا جملہ", "[01:01] دوسرا"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got := string(Render(tt.format, "/tmp/clip.m4a", res))
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("missing %q in:\n%s", want, got)
				}
			}
		})
	}

	if got := string(Render(Text, "clip.m4a", res)); got != "پہلا جملہ دوسرا" {
		t.Errorf("text = %q", got)
	}
}

func TestWriteTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	if err := WriteTranscript(path, "clip.m4a", testResult()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "1\n00:00:00,000") {
		t.Errorf("file = %q", data)
	}
}
