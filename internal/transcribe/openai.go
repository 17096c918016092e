package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrTooLarge is returned for files over the API upload limit.
var ErrTooLarge = errors.New("recording too large to transcribe")

// maxUploadBytes is the audio endpoint's request limit.
const maxUploadBytes = 25 << 20

// OpenAI transcribes finished recordings with the audio transcription API.
type OpenAI struct {
	client *openai.Client
	model  string
	sleep  func(time.Duration)
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model)
}

func NewOpenAIWithConfig(config openai.ClientConfig, model string) *OpenAI {
	if strings.TrimSpace(model) == "" {
		model = openai.Whisper1
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		sleep:  time.Sleep,
	}
}

// Transcribe uploads path and returns the recognised text.
func (t *OpenAI) Transcribe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat recording: %w", err)
	}
	if info.Size() > maxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}

	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := 0; attempt < len(backoff); attempt++ {
		resp, err := t.client.CreateTranscription(ctx, req)
		if err == nil {
			return strings.TrimSpace(resp.Text), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		if attempt < len(backoff)-1 {
			t.sleep(backoff[attempt])
		}
	}

	return "", fmt.Errorf("openai transcription failed after retries: %w", lastErr)
}
