package protocol

import "time"

// PhraseEvent is published for every recognized phrase.
type PhraseEvent struct {
	RunID      string    `json:"run_id"`
	File       string    `json:"file"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// FileEvent is published when one file finishes processing.
type FileEvent struct {
	RunID     string    `json:"run_id"`
	File      string    `json:"file"`
	Status    string    `json:"status"` // ok or failed
	Phrases   int       `json:"phrases"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunEvent is published once, after the transcript has been written.
type RunEvent struct {
	RunID     string    `json:"run_id"`
	Files     int       `json:"files"`
	Failed    int       `json:"failed"`
	Phrases   int       `json:"phrases"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectPhrase       = "transcribe.phrase"
	SubjectFile         = "transcribe.file"
	SubjectRunCompleted = "transcribe.run.completed"
)
