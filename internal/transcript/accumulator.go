// Package transcript holds the run-scoped transcript buffer and its final
// serialization.
package transcript

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Accumulator collects recognized phrases across the whole run, one line per
// phrase. It is owned by the batch runner and never reset between files, so
// transcripts from all files concatenate into one buffer. Appends may arrive
// from a session's delivery goroutine, hence the lock.
type Accumulator struct {
	mu  sync.Mutex
	buf strings.Builder
	n   int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// AddPhrase appends one phrase followed by a newline.
func (a *Accumulator) AddPhrase(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.WriteString(text)
	a.buf.WriteByte('\n')
	a.n++
}

// Phrases reports how many phrases have been appended.
func (a *Accumulator) Phrases() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

func (a *Accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// WriteFile writes the accumulated transcript to path, replacing any
// previous content. An empty run still produces the (empty) file.
func (a *Accumulator) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(a.String()), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
