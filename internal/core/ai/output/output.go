// Package output writes transcripts to files in several formats.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
)

// Format is a transcript file format.
type Format string

const (
	Text     Format = "txt"
	Markdown Format = "md"
	SRT      Format = "srt"
	VTT      Format = "vtt"
)

// FormatForPath picks the format from the file extension, defaulting to Text.
func FormatForPath(path string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "md", "markdown":
		return Markdown
	case "srt":
		return SRT
	case "vtt":
		return VTT
	default:
		return Text
	}
}

// Render formats a result. source names the transcribed file in headers.
func Render(f Format, source string, result *transcriber.Result) []byte {
	switch f {
	case Markdown:
		return renderMarkdown(source, result, time.Now())
	case SRT:
		return renderCues(result, "", ",")
	case VTT:
		return renderCues(result, "WEBVTT\n\n", ".")
	default:
		return []byte(result.Text())
	}
}

// WriteTranscript writes a result to outputPath in the format its extension names.
func WriteTranscript(outputPath, source string, result *transcriber.Result) error {
	return os.WriteFile(outputPath, Render(FormatForPath(outputPath), source, result), 0644)
}

func renderMarkdown(source string, result *transcriber.Result, now time.Time) []byte {
	var b strings.Builder

	// Header
	b.WriteString(fmt.Sprintf("# Transcript: %s\n\n", filepath.Base(source)))

	// Metadata
	if result.Duration > 0 {
		b.WriteString(fmt.Sprintf("**Duration:** %s\n", formatDuration(result.Duration)))
	}
	if result.Language != "" {
		b.WriteString(fmt.Sprintf("**Language:** %s\n", result.Language))
	}
	b.WriteString(fmt.Sprintf("**Backend:** %s\n", result.Backend))
	if result.HasConfidence {
		b.WriteString(fmt.Sprintf("**Confidence:** %d%%\n", int(result.Confidence*100+0.5)))
	}
	b.WriteString(fmt.Sprintf("**Transcribed:** %s\n", now.Format("2006-01-02 15:04:05")))
	b.WriteString("\n---\n\n")

	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			b.WriteString(fmt.Sprintf("[%s] %s\n\n", formatTimestamp(seg.Start), text))
		}
	}

	return []byte(b.String())
}

// renderCues writes numbered subtitle cues; sep is the millisecond separator.
func renderCues(result *transcriber.Result, header, sep string) []byte {
	var b strings.Builder
	b.WriteString(header)

	n := 0
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		n++
		end := seg.End
		if end <= seg.Start {
			end = seg.Start + time.Second
		}
		b.WriteString(fmt.Sprintf("%d\n%s --> %s\n%s\n\n", n, cueTime(seg.Start, sep), cueTime(end, sep), text))
	}
	return []byte(b.String())
}

func cueTime(d time.Duration, sep string) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", ms/3600000, ms/60000%60, ms/1000%60, sep, ms%1000)
}

// formatTimestamp formats a duration as HH:MM:SS.
func formatTimestamp(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
