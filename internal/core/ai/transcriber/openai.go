package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/guiyumin/urduscribe/internal/core/config"
	openai "github.com/sashabaranov/go-openai"
	"gonum.org/v1/gonum/stat"
)

// openAIAudio uses the OpenAI transcriptions endpoint.
type openAIAudio struct {
	client *openai.Client
	model  string
}

func newOpenAI(cfg config.RemoteConfig, apiKey string) *openAIAudio {
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &openAIAudio{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (o *openAIAudio) name() string {
	return ProviderOpenAI
}

func (o *openAIAudio) accepts(ext string) bool {
	switch ext {
	case ".mp3", ".mp4", ".m4a", ".wav", ".webm", ".ogg":
		return true
	}
	return false
}

func (o *openAIAudio) transcribe(ctx context.Context, audio []byte, filename, language string) (providerResult, error) {
	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Prompt:   Instruction,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return providerResult{}, fmt.Errorf("transcription API error: %w", err)
	}

	out := providerResult{Text: resp.Text, Language: resp.Language}

	// avg_logprob is a per-segment mean log probability
	if len(resp.Segments) > 0 {
		probs := make([]float64, len(resp.Segments))
		for i, seg := range resp.Segments {
			probs[i] = math.Exp(seg.AvgLogprob)
		}
		out.Confidence = clamp01(stat.Mean(probs, nil))
		out.HasConfidence = true
	}
	return out, nil
}
