package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

// execProvider shells out to an external recognizer command once per file.
// The command receives --audio <path> and --language <locale> and prints one
// JSON object per line on stdout for every recognized segment:
//
//	{"text": "hello world", "confidence": 0.93}
//
// Lines are delivered to the handler in order, one result event each.
type execProvider struct {
	cmd []string
	log *slog.Logger
}

type execLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func NewExecProvider(cfg config.SpeechConfig, log *slog.Logger) (Provider, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &execProvider{cmd: args, log: log}, nil
}

func (p *execProvider) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	return &execSession{cmd: p.cmd, cfg: cfg, log: p.log}, nil
}

type execSession struct {
	cmd []string
	cfg SessionConfig
	log *slog.Logger

	mu      sync.Mutex
	handler Handler
}

func (s *execSession) OnResult(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *execSession) Recognize(ctx context.Context, audioIn io.Reader) error {
	file, err := os.CreateTemp("", "transcribe_audio_*")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", ErrStream, err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if _, err := io.Copy(file, audioIn); err != nil {
		return fmt.Errorf("%w: spool audio: %v", ErrStream, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: spool audio: %v", ErrStream, err)
	}

	args := append([]string{}, s.cmd[1:]...)
	args = append(args, "--audio", file.Name())
	if s.cfg.Locale != "" {
		args = append(args, "--language", s.cfg.Locale)
	}

	command := exec.CommandContext(ctx, s.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: speech command failed: %v: %s", ErrService, err, stderr.String())
	}

	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()

	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var seg execLine
		if err := json.Unmarshal([]byte(line), &seg); err != nil {
			return fmt.Errorf("%w: decode speech command output: %v", ErrService, err)
		}
		result := Result{}
		if seg.Text != "" {
			result.Phrases = []Phrase{{Text: seg.Text, Confidence: seg.Confidence}}
		}
		if h != nil {
			h(result)
		}
	}
	return scanner.Err()
}

func (s *execSession) Close() error {
	return nil
}
