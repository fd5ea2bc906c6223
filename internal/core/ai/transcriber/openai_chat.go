package transcriber

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIChat sends audio as an input_audio part of a chat completion,
// with the instruction as the text part.
type openAIChat struct {
	client openai.Client
	model  openai.ChatModel
}

func newOpenAIChat(cfg config.RemoteConfig, apiKey string) *openAIChat {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := openai.ChatModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.ChatModelGPT4oAudioPreview
	}

	return &openAIChat{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *openAIChat) name() string {
	return ProviderOpenAIChat
}

func (o *openAIChat) accepts(ext string) bool {
	return ext == ".wav" || ext == ".mp3"
}

func (o *openAIChat) transcribe(ctx context.Context, audio []byte, filename, language string) (providerResult, error) {
	format := "wav"
	if strings.HasSuffix(strings.ToLower(filename), ".mp3") {
		format = "mp3"
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:      o.model,
		Modalities: []string{"text"},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(Instruction),
				openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
					Data:   base64.StdEncoding.EncodeToString(audio),
					Format: format,
				}),
			}),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return providerResult{}, fmt.Errorf("chat completion API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return providerResult{}, fmt.Errorf("no response from API")
	}

	return providerResult{
		Text:     resp.Choices[0].Message.Content,
		Language: language,
	}, nil
}
