package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.StoreConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.AppendFile(context.Background(), FileRecord{RunID: "r", Path: "a.wav", Status: "ok"}); err != nil {
		t.Fatalf("append should be a no-op: %v", err)
	}
	records, err := s.ListRunFiles(context.Background(), "r", 10)
	if err != nil {
		t.Fatalf("list should be a no-op: %v", err)
	}
	if records != nil {
		t.Fatalf("expected no records, got %v", records)
	}
}

func TestAppendAndListFiles(t *testing.T) {
	cfg := config.StoreConfig{
		Path:          filepath.Join(t.TempDir(), "runs.db"),
		RetentionMode: "persistent",
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	runID := "run-123"
	if err := s.BeginRun(context.Background(), runID, "/audio", "/out/transcript.txt"); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if err := s.AppendFile(context.Background(), FileRecord{
		RunID:      runID,
		Path:       "/audio/a.wav",
		Status:     "ok",
		Phrases:    2,
		Transcript: "hello world\ngoodbye",
		DurationMS: 1500,
	}); err != nil {
		t.Fatalf("append file: %v", err)
	}
	if err := s.AppendFile(context.Background(), FileRecord{
		RunID:  runID,
		Path:   "/audio/b.wav",
		Status: "failed",
		Error:  "connection reset",
	}); err != nil {
		t.Fatalf("append file: %v", err)
	}

	records, err := s.ListRunFiles(context.Background(), runID, 10)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Path != "/audio/a.wav" || records[0].Phrases != 2 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Status != "failed" || records[1].Error != "connection reset" {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}

func TestBeginRunIsIdempotent(t *testing.T) {
	cfg := config.StoreConfig{
		Path:          filepath.Join(t.TempDir(), "runs.db"),
		RetentionMode: "persistent",
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.BeginRun(context.Background(), "run-1", "/a", "/out.txt"); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if err := s.BeginRun(context.Background(), "run-1", "/b", "/out.txt"); err != nil {
		t.Fatalf("begin run again: %v", err)
	}
}
