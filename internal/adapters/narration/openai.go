package narration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

const (
	openAIMaxChars = 4096
	openAIMinSpeed = 0.25
	openAIMaxSpeed = 4.0
)

// openAIVoices maps the voice names users pick onto OpenAI voices.
var openAIVoices = map[string]openai.SpeechVoice{
	"alloy":   openai.VoiceAlloy,
	"echo":    openai.VoiceEcho,
	"fable":   openai.VoiceFable,
	"onyx":    openai.VoiceOnyx,
	"nova":    openai.VoiceNova,
	"shimmer": openai.VoiceShimmer,
	"aria":    openai.VoiceNova,
	"sarah":   openai.VoiceShimmer,
	"laura":   openai.VoiceFable,
	"roger":   openai.VoiceOnyx,
	"george":  openai.VoiceEcho,
	"charlie": openai.VoiceAlloy,
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional; for compatible self-hosted servers
	Model      string
	HTTPClient *http.Client
}

// OpenAIProvider implements ports.NarrationProvider using the OpenAI speech endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}
	model := openai.TTSModel1
	if cfg.Model != "" {
		model = openai.SpeechModel(cfg.Model)
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(config), model: model}, nil
}

// Synthesize converts one chunk of text to MP3.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req ports.SpeechRequest) ([]byte, error) {
	start := time.Now()
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          p.model,
		Input:          req.Text,
		Voice:          OpenAIVoice(req.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          req.Speed,
	})
	if err != nil {
		return nil, p.wrapError(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	log.Printf("[DEBUG] openai: %d chars -> %d bytes in %v", len(req.Text), len(audio), time.Since(start))
	return audio, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ports.ProviderError{Provider: p.Name(), Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &ports.ProviderError{Provider: p.Name(), Status: reqErr.HTTPStatusCode, Message: strings.TrimSpace(string(reqErr.Body))}
	}
	return fmt.Errorf("calling OpenAI: %w", err)
}

// Limits returns the OpenAI request bounds.
func (p *OpenAIProvider) Limits() ports.ProviderLimits {
	return ports.ProviderLimits{
		MaxChars: openAIMaxChars,
		MinSpeed: openAIMinSpeed,
		MaxSpeed: openAIMaxSpeed,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return "openai" }

// OpenAIVoice resolves a voice name. Unknown names map to alloy.
func OpenAIVoice(name string) openai.SpeechVoice {
	if v, ok := openAIVoices[strings.ToLower(strings.TrimSpace(name))]; ok {
		return v
	}
	return openai.VoiceAlloy
}
