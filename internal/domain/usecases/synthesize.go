package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

const defaultProviderTimeout = 90 * time.Second

// SynthesisUseCase turns arbitrarily long text into one playable audio asset
// despite the provider's per-request character ceiling.
type SynthesisUseCase struct {
	provider ports.NarrationProvider
	timeout  time.Duration
}

// NewSynthesisUseCase creates a SynthesisUseCase. timeout bounds each provider call.
func NewSynthesisUseCase(provider ports.NarrationProvider, timeout time.Duration) *SynthesisUseCase {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &SynthesisUseCase{provider: provider, timeout: timeout}
}

// ClampSpeed bounds speed to [min, max]. A non-positive speed means normal speed.
func ClampSpeed(speed, min, max float64) float64 {
	if speed <= 0 {
		speed = 1.0
	}
	if min > 0 && speed < min {
		return min
	}
	if max > 0 && speed > max {
		return max
	}
	return speed
}

// EffectiveSpeed returns the speed that will actually be sent to the provider.
func (uc *SynthesisUseCase) EffectiveSpeed(speed float64) float64 {
	lim := uc.provider.Limits()
	return ClampSpeed(speed, lim.MinSpeed, lim.MaxSpeed)
}

// Synthesize requests audio for text and returns the concatenated asset.
//
// Chunks are requested sequentially and in order. Encoded MP3 is a sequence of
// self-contained frames, so independently encoded segments concatenate into a
// valid stream without re-encoding. Any failed chunk fails the whole call.
func (uc *SynthesisUseCase) Synthesize(ctx context.Context, text, voice string, speed float64) (*entities.NarrationResult, error) {
	lim := uc.provider.Limits()
	chunks := SplitText(text, lim.MaxChars)
	if len(chunks) == 0 {
		return nil, ErrEmptyContent
	}
	speed = ClampSpeed(speed, lim.MinSpeed, lim.MaxSpeed)

	log.Printf("[INFO] synthesizing %d chunk(s) via %s (voice=%s speed=%.2f)", len(chunks), uc.provider.Name(), voice, speed)
	start := time.Now()

	var combined bytes.Buffer
	for i, part := range chunks {
		chunk := entities.AudioChunk{Index: i, Text: part}
		audio, err := uc.request(ctx, chunk, voice, speed)
		if err != nil {
			return nil, uc.wrapError(ctx, err, i, len(chunks))
		}
		combined.Write(audio)
	}

	log.Printf("[OK] synthesized %d bytes in %v", combined.Len(), time.Since(start))
	return &entities.NarrationResult{
		Audio:  combined.Bytes(),
		Format: "mp3",
		Voice:  voice,
		Speed:  speed,
	}, nil
}

func (uc *SynthesisUseCase) request(ctx context.Context, chunk entities.AudioChunk, voice string, speed float64) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	audio, err := uc.provider.Synthesize(reqCtx, ports.SpeechRequest{
		Text:  chunk.Text,
		Voice: voice,
		Speed: speed,
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("provider returned no audio for chunk %d", chunk.Index)
	}
	return audio, nil
}

func (uc *SynthesisUseCase) wrapError(ctx context.Context, err error, chunk, chunks int) error {
	serr := &SynthesisError{
		Stage:   "request",
		Chunk:   chunk,
		Chunks:  chunks,
		Message: err.Error(),
		Err:     err,
	}
	var perr *ports.ProviderError
	if errors.As(err, &perr) {
		serr.Status = perr.Status
		serr.Message = perr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		serr.Stage = "timeout"
	}
	log.Printf("[WARN] %v", serr)
	return serr
}
