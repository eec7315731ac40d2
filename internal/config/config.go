package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type InputConfig struct {
	Dir        string   `yaml:"dir"`
	SortByName bool     `yaml:"sort_by_name"`
	Extensions []string `yaml:"extensions"`
}

type SpeechConfig struct {
	Provider        string `yaml:"provider"` // azure, exec, mock
	SubscriptionKey string `yaml:"subscription_key"`
	Region          string `yaml:"region"`
	Locale          string `yaml:"locale"`
	Mode            string `yaml:"mode"` // dictation, interactive
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	ChunkBytes      int    `yaml:"chunk_bytes"`
	Command         string `yaml:"command"`
}

type OutputConfig struct {
	Path string `yaml:"path"`
}

type RunConfig struct {
	OnError string `yaml:"on_error"` // abort, continue
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"` // ephemeral, persistent
}

type Config struct {
	Input     InputConfig     `yaml:"input"`
	Speech    SpeechConfig    `yaml:"speech"`
	Output    OutputConfig    `yaml:"output"`
	Run       RunConfig       `yaml:"run"`
	Bus       BusConfig       `yaml:"bus"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

func Default() Config {
	return Config{
		Input: InputConfig{
			SortByName: true,
		},
		Speech: SpeechConfig{
			Provider:   "azure",
			Locale:     "en-us",
			Mode:       "dictation",
			SampleRate: 16000,
			Channels:   1,
			ChunkBytes: 3200,
		},
		Run: RunConfig{
			OnError: "abort",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       false,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/transcribe-runs.db",
			RetentionMode: "ephemeral",
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
			// empty bind disables the metrics listener
			PrometheusBind: "",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if cfg.Output.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve default output path: %w", err)
		}
		cfg.Output.Path = filepath.Join(home, "transcript.txt")
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Input.Dir, "TRANSCRIBE_INPUT_DIR")
	overrideBool(&cfg.Input.SortByName, "TRANSCRIBE_INPUT_SORT_BY_NAME")
	overrideStringSlice(&cfg.Input.Extensions, "TRANSCRIBE_INPUT_EXTENSIONS")
	overrideString(&cfg.Speech.Provider, "TRANSCRIBE_SPEECH_PROVIDER")
	overrideString(&cfg.Speech.SubscriptionKey, "TRANSCRIBE_SPEECH_SUBSCRIPTION_KEY")
	overrideString(&cfg.Speech.Region, "TRANSCRIBE_SPEECH_REGION")
	overrideString(&cfg.Speech.Locale, "TRANSCRIBE_SPEECH_LOCALE")
	overrideString(&cfg.Speech.Mode, "TRANSCRIBE_SPEECH_MODE")
	overrideInt(&cfg.Speech.SampleRate, "TRANSCRIBE_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.Channels, "TRANSCRIBE_SPEECH_CHANNELS")
	overrideInt(&cfg.Speech.ChunkBytes, "TRANSCRIBE_SPEECH_CHUNK_BYTES")
	overrideString(&cfg.Speech.Command, "TRANSCRIBE_SPEECH_COMMAND")
	overrideString(&cfg.Output.Path, "TRANSCRIBE_OUTPUT_PATH")
	overrideString(&cfg.Run.OnError, "TRANSCRIBE_RUN_ON_ERROR")
	overrideBool(&cfg.Bus.Enabled, "TRANSCRIBE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "TRANSCRIBE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "TRANSCRIBE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "TRANSCRIBE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "TRANSCRIBE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "TRANSCRIBE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "TRANSCRIBE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "TRANSCRIBE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "TRANSCRIBE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "TRANSCRIBE_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "TRANSCRIBE_STORE_RETENTION_MODE")
	overrideString(&cfg.Telemetry.LogLevel, "TRANSCRIBE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "TRANSCRIBE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "TRANSCRIBE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "TRANSCRIBE_TELEMETRY_PROMETHEUS_BIND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Speech.Provider {
	case "azure", "exec", "mock":
	default:
		return errors.New("speech.provider must be one of azure|exec|mock")
	}
	if cfg.Speech.Provider == "exec" && cfg.Speech.Command == "" {
		return errors.New("speech.command must be set when provider=exec")
	}
	if cfg.Speech.Locale == "" {
		return errors.New("speech.locale must not be empty")
	}
	switch cfg.Speech.Mode {
	case "dictation", "interactive":
	default:
		return errors.New("speech.mode must be one of dictation|interactive")
	}
	if cfg.Speech.SampleRate <= 0 {
		return errors.New("speech.sample_rate must be positive")
	}
	if cfg.Speech.Channels <= 0 {
		return errors.New("speech.channels must be positive")
	}
	if cfg.Speech.ChunkBytes <= 0 {
		return errors.New("speech.chunk_bytes must be positive")
	}
	if cfg.Output.Path == "" {
		return errors.New("output.path must not be empty")
	}
	switch cfg.Run.OnError {
	case "abort", "continue":
	default:
		return errors.New("run.on_error must be one of abort|continue")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return errors.New("store.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.Store.RetentionMode == "persistent" && cfg.Store.Path == "" {
		return errors.New("store.path must not be empty when retention is persistent")
	}
	return nil
}
