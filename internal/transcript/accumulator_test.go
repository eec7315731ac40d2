package transcript

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddPhraseAppendsLines(t *testing.T) {
	acc := NewAccumulator()
	acc.AddPhrase("hello world")
	acc.AddPhrase("goodbye")

	if got := acc.String(); got != "hello world\ngoodbye\n" {
		t.Fatalf("unexpected buffer: %q", got)
	}
	if acc.Phrases() != 2 {
		t.Fatalf("expected 2 phrases, got %d", acc.Phrases())
	}
}

func TestWriteFileEmptyBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	acc := NewAccumulator()
	if err := acc.WriteFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty file, got %q", data)
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	if err := os.WriteFile(path, []byte("stale content from a previous run\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	acc := NewAccumulator()
	acc.AddPhrase("fresh")
	if err := acc.WriteFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "fresh\n" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}
