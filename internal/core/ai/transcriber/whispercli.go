package transcriber

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// parseSegmentLine parses one line of whisper-cli stdout, e.g.
//
//	[00:00:01.240 --> 00:00:03.900]   text
func parseSegmentLine(line string) (Segment, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return Segment{}, false
	}
	closeIdx := strings.Index(line, "]")
	if closeIdx < 0 {
		return Segment{}, false
	}

	parts := strings.Split(line[1:closeIdx], "-->")
	if len(parts) != 2 {
		return Segment{}, false
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return Segment{}, false
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return Segment{}, false
	}

	return Segment{
		Start: start,
		End:   end,
		Text:  strings.TrimSpace(line[closeIdx+1:]),
	}, true
}

// parseTimestamp parses HH:MM:SS.mmm (or HH:MM:SS,mmm).
func parseTimestamp(s string) (time.Duration, error) {
	s = strings.Replace(s, ",", ".", 1)
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("invalid timestamp: %q", s)
	}
	h, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", s, err)
	}
	m, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	sec, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", s, err)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second)), nil
}

// cliOutput is the subset of whisper-cli's full JSON output (-ojf) we read.
type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text   string `json:"text"`
		Tokens []struct {
			Text string  `json:"text"`
			P    float64 `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

// readCLIOutput loads the JSON written by whisper-cli and returns the
// detected language and the probabilities of all text tokens.
func readCLIOutput(path string) (string, []float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	var out cliOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return "", nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}

	var probs []float64
	for _, seg := range out.Transcription {
		for _, tok := range seg.Tokens {
			if strings.HasPrefix(tok.Text, "[_") {
				continue
			}
			probs = append(probs, tok.P)
		}
	}
	return out.Result.Language, probs, nil
}
