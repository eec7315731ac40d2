// Package batch drives the transcription run: it enumerates the input
// directory, streams each file through one recognition session at a time,
// accumulates recognized phrases, and writes the combined transcript.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-transcribe/internal/audio"
	"github.com/loqalabs/loqa-transcribe/internal/config"
	"github.com/loqalabs/loqa-transcribe/internal/protocol"
	"github.com/loqalabs/loqa-transcribe/internal/speech"
	"github.com/loqalabs/loqa-transcribe/internal/store"
	"github.com/loqalabs/loqa-transcribe/internal/transcript"
)

// ErrInputDir marks a missing or unlistable input directory.
var ErrInputDir = errors.New("input directory not listable")

// EventSink receives progress events. Implementations must be cheap; the
// runner calls them from its own goroutine, never from a session's delivery
// goroutine.
type EventSink interface {
	PhraseRecognized(protocol.PhraseEvent)
	FileCompleted(protocol.FileEvent)
	RunCompleted(protocol.RunEvent)
}

// Summary reports what a run did.
type Summary struct {
	RunID   string
	Files   int
	Failed  int
	Phrases int
	Output  string
}

// Runner processes one input directory sequentially, one session per file.
type Runner struct {
	cfg      config.Config
	provider speech.Provider
	store    *store.Store
	sink     EventSink
	log      *slog.Logger
	tracer   trace.Tracer

	filesCounter   metric.Int64Counter
	phrasesCounter metric.Int64Counter
}

// New builds a Runner. store and sink may be nil.
func New(cfg config.Config, provider speech.Provider, st *store.Store, sink EventSink, log *slog.Logger) *Runner {
	r := &Runner{
		cfg:      cfg,
		provider: provider,
		store:    st,
		sink:     sink,
		log:      log,
		tracer:   otel.Tracer("loqa-transcribe/batch"),
	}
	meter := otel.Meter("loqa-transcribe/batch")
	var err error
	r.filesCounter, err = meter.Int64Counter("transcribe.files.processed",
		metric.WithDescription("Audio files processed, by status"))
	if err != nil {
		log.Warn("failed to create files counter", slog.String("error", err.Error()))
	}
	r.phrasesCounter, err = meter.Int64Counter("transcribe.phrases.recognized",
		metric.WithDescription("Phrases appended to the transcript"))
	if err != nil {
		log.Warn("failed to create phrases counter", slog.String("error", err.Error()))
	}
	return r
}

// Run transcribes every file in the input directory and writes the combined
// transcript to the output path. The transcript is written even when the run
// aborts on a file error, so everything recognized up to the failure is
// preserved. The baseline policy (run.on_error=abort) surfaces the first
// per-file error and stops; continue collects failures and keeps going.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "transcribe.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("input.dir", r.cfg.Input.Dir),
	))
	defer span.End()

	sum := Summary{RunID: runID, Output: r.cfg.Output.Path}

	files, err := r.discover()
	if err != nil {
		return sum, err
	}
	r.log.Info("starting transcription run",
		slog.String("run_id", runID),
		slog.String("dir", r.cfg.Input.Dir),
		slog.Int("files", len(files)))

	if r.store != nil {
		if err := r.store.BeginRun(ctx, runID, r.cfg.Input.Dir, r.cfg.Output.Path); err != nil {
			r.log.Warn("failed to record run start", slog.String("error", err.Error()))
		}
	}

	acc := transcript.NewAccumulator()
	var failures []error

	for _, path := range files {
		phrases, perr := r.processFile(ctx, runID, path, acc)
		sum.Files++
		sum.Phrases += phrases
		if perr != nil {
			sum.Failed++
			failures = append(failures, fmt.Errorf("%s: %w", filepath.Base(path), perr))
			if r.cfg.Run.OnError == "abort" {
				r.finalize(runID, acc, &sum)
				return sum, failures[0]
			}
		}
	}

	if err := r.finalize(runID, acc, &sum); err != nil {
		return sum, err
	}
	return sum, errors.Join(failures...)
}

// discover lists the input directory non-recursively, skipping
// subdirectories and, when configured, files with unexpected extensions.
// Directory order is filesystem-defined; sort_by_name (the default) makes
// the transcript ordering reproducible.
func (r *Runner) discover() ([]string, error) {
	dir, err := os.Open(r.cfg.Input.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputDir, err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !r.wantExtension(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(r.cfg.Input.Dir, entry.Name()))
	}
	if r.cfg.Input.SortByName {
		sort.Strings(files)
	}
	return files, nil
}

func (r *Runner) wantExtension(name string) bool {
	if len(r.cfg.Input.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range r.cfg.Input.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// processFile runs one recognition session for one file. The result handler
// is registered before any audio is streamed so early events are not lost;
// it only appends to the accumulator. Bus publishing happens afterwards, on
// the runner's goroutine.
func (r *Runner) processFile(ctx context.Context, runID, path string, acc *transcript.Accumulator) (int, error) {
	ctx, span := r.tracer.Start(ctx, "transcribe.file", trace.WithAttributes(
		attribute.String("file", path),
	))
	defer span.End()

	log := r.log.With(slog.String("run_id", runID), slog.String("file", path))

	var durationMS int64
	if info, err := audio.Probe(path); err == nil {
		durationMS = info.Duration.Milliseconds()
		log.Info("streaming audio file",
			slog.Int("sample_rate", info.SampleRate),
			slog.Int("channels", info.Channels),
			slog.Duration("duration", info.Duration))
	} else {
		log.Info("streaming audio file", slog.String("probe", err.Error()))
	}

	session, err := r.provider.NewSession(ctx, speech.SessionConfig{
		Locale:     r.cfg.Speech.Locale,
		Mode:       r.cfg.Speech.Mode,
		SampleRate: r.cfg.Speech.SampleRate,
		Channels:   r.cfg.Speech.Channels,
		ChunkBytes: r.cfg.Speech.ChunkBytes,
	})
	if err != nil {
		r.recordFile(runID, path, 0, nil, durationMS, err)
		return 0, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("failed to close session", slog.String("error", cerr.Error()))
		}
	}()

	var mu sync.Mutex
	var received []speech.Phrase
	session.OnResult(func(res speech.Result) {
		best, ok := res.Best()
		if !ok {
			return
		}
		acc.AddPhrase(best.Text)
		mu.Lock()
		received = append(received, best)
		mu.Unlock()
	})

	file, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("open audio file: %w", err)
		r.recordFile(runID, path, 0, nil, durationMS, err)
		return 0, err
	}
	defer file.Close()

	start := time.Now()
	err = session.Recognize(ctx, file)
	elapsed := time.Since(start)

	mu.Lock()
	phrases := append([]speech.Phrase(nil), received...)
	mu.Unlock()

	if err != nil {
		span.RecordError(err)
		log.Error("recognition failed",
			slog.Int("phrases", len(phrases)),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
	} else {
		log.Info("file transcribed",
			slog.Int("phrases", len(phrases)),
			slog.Duration("elapsed", elapsed))
	}

	if r.phrasesCounter != nil {
		r.phrasesCounter.Add(ctx, int64(len(phrases)))
	}
	r.recordFile(runID, path, len(phrases), phrases, durationMS, err)
	return len(phrases), err
}

// recordFile persists and publishes the outcome of one file.
func (r *Runner) recordFile(runID, path string, count int, phrases []speech.Phrase, durationMS int64, ferr error) {
	status := "ok"
	errText := ""
	if ferr != nil {
		status = "failed"
		errText = ferr.Error()
	}

	ctx := context.Background()
	if r.filesCounter != nil {
		r.filesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}

	now := time.Now().UTC()
	if r.sink != nil {
		for _, p := range phrases {
			r.sink.PhraseRecognized(protocol.PhraseEvent{
				RunID:      runID,
				File:       path,
				Text:       p.Text,
				Confidence: p.Confidence,
				Timestamp:  now,
			})
		}
		r.sink.FileCompleted(protocol.FileEvent{
			RunID:     runID,
			File:      path,
			Status:    status,
			Phrases:   count,
			Error:     errText,
			Timestamp: now,
		})
	}
	if r.store != nil {
		var lines []string
		for _, p := range phrases {
			lines = append(lines, p.Text)
		}
		if err := r.store.AppendFile(ctx, store.FileRecord{
			RunID:      runID,
			Path:       path,
			Status:     status,
			Phrases:    count,
			Transcript: strings.Join(lines, "\n"),
			DurationMS: durationMS,
			Error:      errText,
		}); err != nil {
			r.log.Warn("failed to record file outcome", slog.String("error", err.Error()))
		}
	}
}

// finalize writes the accumulated transcript and announces the run.
func (r *Runner) finalize(runID string, acc *transcript.Accumulator, sum *Summary) error {
	if err := acc.WriteFile(r.cfg.Output.Path); err != nil {
		return err
	}
	r.log.Info("transcript written",
		slog.String("run_id", runID),
		slog.String("path", r.cfg.Output.Path),
		slog.Int("phrases", acc.Phrases()))
	if r.sink != nil {
		r.sink.RunCompleted(protocol.RunEvent{
			RunID:     runID,
			Files:     sum.Files,
			Failed:    sum.Failed,
			Phrases:   sum.Phrases,
			Output:    r.cfg.Output.Path,
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}
