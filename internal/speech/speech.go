// Package speech abstracts the remote speech-recognition collaborator.
// A Provider opens one Session per audio submission; the Session delivers
// recognized phrases through a handler registered before streaming starts.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

// Recognition failure classes. Implementations wrap provider-specific
// failures into one of these so callers can branch without knowing the
// backend.
var (
	ErrAuthentication = errors.New("speech: authentication failed")
	ErrConnection     = errors.New("speech: connection failed")
	ErrService        = errors.New("speech: service error")
	ErrStream         = errors.New("speech: stream error")
)

// Phrase is one ranked hypothesis for a recognized segment.
type Phrase struct {
	Text       string
	Confidence float64
}

// Result is one recognition event. Phrases are ordered best-first and may
// be empty when the service recognized nothing for a segment.
type Result struct {
	Phrases []Phrase
}

// Best returns the top-ranked phrase, if any.
func (r Result) Best() (Phrase, bool) {
	if len(r.Phrases) == 0 {
		return Phrase{}, false
	}
	return r.Phrases[0], true
}

// Handler receives recognition events on the session's delivery goroutine.
// It must not block beyond appending the result.
type Handler func(Result)

// SessionConfig carries the per-session recognition parameters.
type SessionConfig struct {
	Locale     string
	Mode       string // dictation or interactive
	SampleRate int
	Channels   int
	ChunkBytes int
}

// Session is a stateful connection scoped to one audio submission. OnResult
// must be called before Recognize so early events are not lost. Recognize
// blocks until the service signals end-of-recognition for the submitted
// audio, fails, or ctx is cancelled. Sessions are not reused.
type Session interface {
	OnResult(Handler)
	Recognize(ctx context.Context, audio io.Reader) error
	Close() error
}

// Provider opens recognition sessions against one backend.
type Provider interface {
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg config.SpeechConfig, log *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "azure":
		return NewAzureProvider(cfg, log)
	case "exec":
		return NewExecProvider(cfg, log)
	case "mock":
		return NewMockProvider(log), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
}
