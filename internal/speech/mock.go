package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// mockProvider emits one deterministic placeholder phrase per file. Useful
// for exercising the full pipeline without a speech backend.
type mockProvider struct {
	log *slog.Logger
}

func NewMockProvider(log *slog.Logger) Provider {
	return &mockProvider{log: log}
}

func (p *mockProvider) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	return &mockSession{cfg: cfg}, nil
}

type mockSession struct {
	cfg SessionConfig

	mu      sync.Mutex
	handler Handler
}

func (s *mockSession) OnResult(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *mockSession) Recognize(ctx context.Context, audioIn io.Reader) error {
	n, err := io.Copy(io.Discard, audioIn)
	if err != nil {
		return fmt.Errorf("%w: read audio: %v", ErrStream, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(Result{Phrases: []Phrase{{
			Text:       fmt.Sprintf("[mock transcript length=%d]", n),
			Confidence: 1,
		}}})
	}
	return nil
}

func (s *mockSession) Close() error {
	return nil
}
