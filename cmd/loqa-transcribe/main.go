package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/loqalabs/loqa-transcribe/internal/config"
	"github.com/loqalabs/loqa-transcribe/internal/runtime"
)

var version = "0.1.0-dev"

const signupURL = "https://azure.microsoft.com/free/cognitive-services/"

func usage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input-dir> <subscription-key>\n\n", name)
	fmt.Fprintf(os.Stderr, "Streams every audio file in <input-dir> to the speech service and writes\nthe combined transcript to a single text file.\n\n")
	fmt.Fprintf(os.Stderr, "  <input-dir>         directory containing audio files (16 kHz mono PCM WAV)\n")
	fmt.Fprintf(os.Stderr, "  <subscription-key>  speech service subscription key\n\n")
	fmt.Fprintf(os.Stderr, "Sign up for a subscription key at %s\n\n", signupURL)
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	var (
		configPath  string
		outputPath  string
		showVersion bool
	)

	flag.Usage = usage
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&outputPath, "output", "", "Transcript output path (default: transcript.txt in your home directory)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	cfg.Input.Dir = flag.Arg(0)
	cfg.Speech.SubscriptionKey = flag.Arg(1)
	if outputPath != "" {
		cfg.Output.Path = outputPath
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Telemetry.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := runtime.New(cfg, logger)
	sum, err := rt.Run(ctx)
	if err != nil {
		logger.Error("transcription run failed",
			slog.String("run_id", sum.RunID),
			slog.Int("files", sum.Files),
			slog.Int("failed", sum.Failed),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("transcription run complete",
		slog.String("run_id", sum.RunID),
		slog.Int("files", sum.Files),
		slog.Int("phrases", sum.Phrases),
		slog.String("output", sum.Output))
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
