// Package narration provides text-to-speech provider adapters.
// Clean Architecture: Adapter implementing ports.NarrationProvider.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

const (
	elevenLabsMaxChars = 10000
	elevenLabsMinSpeed = 0.7
	elevenLabsMaxSpeed = 1.2

	// maxErrorBody bounds how much of a failed response is kept for the error message.
	maxErrorBody = 2048
)

// elevenLabsVoices maps the voice names users pick to ElevenLabs voice ids.
var elevenLabsVoices = map[string]string{
	"aria":    "9BWtsMINqrJLrRacOk9x",
	"roger":   "CwhRBWXzGAHq8TQ4Fs17",
	"sarah":   "EXAVITQu4vr4xnSDxMaL",
	"laura":   "FGY2WhTYpPnrIDTdsKH5",
	"charlie": "IKne3meq5aSn9XLyUdCD",
	"george":  "JBFqnCBsd6RMkjVDRZzb",
}

// ElevenLabsProvider implements ports.NarrationProvider using the ElevenLabs API.
type ElevenLabsProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewElevenLabsProvider creates a new ElevenLabs provider.
func NewElevenLabsProvider(baseURL, apiKey, model string) *ElevenLabsProvider {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	if model == "" {
		model = "eleven_multilingual_v2"
	}
	return &ElevenLabsProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		// Per-request deadlines come from the caller's context.
		client: &http.Client{},
	}
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// Synthesize converts one chunk of text to MP3.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, req ports.SpeechRequest) ([]byte, error) {
	body, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: p.model,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
			Speed:           req.Speed,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", p.baseURL, ElevenLabsVoiceID(req.Voice))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling ElevenLabs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ports.ProviderError{
			Provider: p.Name(),
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(msg)),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	log.Printf("[DEBUG] elevenlabs: %d chars -> %d bytes in %v", len(req.Text), len(audio), time.Since(start))
	return audio, nil
}

// Limits returns the ElevenLabs request bounds.
func (p *ElevenLabsProvider) Limits() ports.ProviderLimits {
	return ports.ProviderLimits{
		MaxChars: elevenLabsMaxChars,
		MinSpeed: elevenLabsMinSpeed,
		MaxSpeed: elevenLabsMaxSpeed,
	}
}

// Name returns the provider name.
func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

// ElevenLabsVoiceID resolves a voice name. Unknown names, including "default", map to Aria.
func ElevenLabsVoiceID(name string) string {
	if id, ok := elevenLabsVoices[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return elevenLabsVoices["aria"]
}
