package usecases

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// mockProvider implements ports.NarrationProvider for testing
type mockProvider struct {
	mu       sync.Mutex
	limits   ports.ProviderLimits
	requests []ports.SpeechRequest
	active   int
	overlap  bool
	failOn   int // 1-based call number that fails, 0 never
	failErr  error
	delay    time.Duration
}

func newMockProvider(maxChars int) *mockProvider {
	return &mockProvider{limits: ports.ProviderLimits{MaxChars: maxChars, MinSpeed: 0.7, MaxSpeed: 1.2}}
}

func (m *mockProvider) Synthesize(ctx context.Context, req ports.SpeechRequest) ([]byte, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	call := len(m.requests)
	m.active++
	if m.active > 1 {
		m.overlap = true
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.failOn == call {
		if m.failErr != nil {
			return nil, m.failErr
		}
		return nil, &ports.ProviderError{Provider: "mock", Status: 429, Message: "rate limited"}
	}
	return []byte("[" + req.Text + "]"), nil
}

func (m *mockProvider) Limits() ports.ProviderLimits { return m.limits }

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) calls() []ports.SpeechRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.SpeechRequest(nil), m.requests...)
}

func TestClampSpeed(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.5, 1.2},
		{0.5, 0.7},
		{1.0, 1.0},
		{0, 1.0},
		{-2, 1.0},
	}
	for _, c := range cases {
		if got := ClampSpeed(c.in, 0.7, 1.2); got != c.want {
			t.Errorf("ClampSpeed(%v): expected %v, got %v", c.in, c.want, got)
		}
	}
}

func TestSynthesisUseCase_SingleRequestForShortText(t *testing.T) {
	provider := newMockProvider(100)
	uc := NewSynthesisUseCase(provider, time.Second)

	result, err := uc.Synthesize(context.Background(), "Hello world.", "aria", 1.0)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if len(provider.calls()) != 1 {
		t.Errorf("expected 1 provider call, got %d", len(provider.calls()))
	}
	if string(result.Audio) != "[Hello world.]" {
		t.Errorf("unexpected audio: %s", result.Audio)
	}
	if result.Format != "mp3" || result.Voice != "aria" {
		t.Errorf("unexpected result metadata: %+v", result)
	}
}

func TestSynthesisUseCase_ChunksSequentiallyInOrder(t *testing.T) {
	provider := newMockProvider(20)
	provider.delay = 5 * time.Millisecond
	uc := NewSynthesisUseCase(provider, time.Second)

	text := "First sentence here. Second one follows. Third comes last."
	want := SplitText(text, 20)

	result, err := uc.Synthesize(context.Background(), text, "aria", 1.0)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}

	calls := provider.calls()
	if len(calls) != len(want) {
		t.Fatalf("expected %d provider calls, got %d", len(want), len(calls))
	}
	if provider.overlap {
		t.Error("provider calls must not overlap")
	}

	var expected bytes.Buffer
	for i, c := range calls {
		if c.Text != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], c.Text)
		}
		expected.WriteString("[" + want[i] + "]")
	}
	if !bytes.Equal(result.Audio, expected.Bytes()) {
		t.Errorf("audio not concatenated in order: %s", result.Audio)
	}
}

func TestSynthesisUseCase_AnyChunkFailureFailsWhole(t *testing.T) {
	provider := newMockProvider(20)
	provider.failOn = 2
	uc := NewSynthesisUseCase(provider, time.Second)

	result, err := uc.Synthesize(context.Background(), "First sentence here. Second one follows. Third comes last.", "aria", 1.0)
	if err == nil {
		t.Fatal("expected failure")
	}
	if result != nil {
		t.Error("no partial asset should be returned")
	}
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Errorf("expected ErrSynthesisFailed, got %v", err)
	}

	var serr *SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SynthesisError, got %T", err)
	}
	if serr.Status != 429 || serr.Chunk != 1 || serr.Message != "rate limited" {
		t.Errorf("unexpected error detail: %+v", serr)
	}
	if len(provider.calls()) != 2 {
		t.Errorf("synthesis should stop at the failed chunk, got %d calls", len(provider.calls()))
	}
}

func TestSynthesisUseCase_ClampsSpeedBeforeSending(t *testing.T) {
	provider := newMockProvider(100)
	uc := NewSynthesisUseCase(provider, time.Second)

	result, err := uc.Synthesize(context.Background(), "Fast please.", "aria", 1.5)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if provider.calls()[0].Speed != 1.2 {
		t.Errorf("expected clamped speed 1.2 sent, got %v", provider.calls()[0].Speed)
	}
	if result.Speed != 1.2 {
		t.Errorf("result should carry clamped speed, got %v", result.Speed)
	}
	if uc.EffectiveSpeed(1.5) != 1.2 {
		t.Error("EffectiveSpeed should clamp")
	}
}

func TestSynthesisUseCase_EmptyText(t *testing.T) {
	provider := newMockProvider(100)
	uc := NewSynthesisUseCase(provider, time.Second)

	_, err := uc.Synthesize(context.Background(), "   ", "aria", 1.0)
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
	if len(provider.calls()) != 0 {
		t.Error("no provider call expected for empty text")
	}
}

func TestSynthesisUseCase_TimeoutIsSynthesisFailure(t *testing.T) {
	provider := newMockProvider(100)
	provider.delay = 200 * time.Millisecond
	uc := NewSynthesisUseCase(provider, 10*time.Millisecond)

	_, err := uc.Synthesize(context.Background(), "Slow provider.", "aria", 1.0)
	var serr *SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SynthesisError, got %v", err)
	}
	if serr.Stage != "timeout" {
		t.Errorf("expected timeout stage, got %s", serr.Stage)
	}
	if !strings.Contains(serr.Error(), "timeout") {
		t.Errorf("error should mention timeout: %v", serr)
	}
}
