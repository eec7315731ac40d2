package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

// azureProvider opens sessions against the Azure Cognitive Services speech
// SDK. Token acquisition and refresh from the subscription key are handled
// inside the SDK.
type azureProvider struct {
	key    string
	region string
	log    *slog.Logger
}

func NewAzureProvider(cfg config.SpeechConfig, log *slog.Logger) (Provider, error) {
	if cfg.SubscriptionKey == "" || cfg.Region == "" {
		return nil, fmt.Errorf("%w: azure provider requires subscription_key and region", ErrAuthentication)
	}
	return &azureProvider{key: cfg.SubscriptionKey, region: cfg.Region, log: log}, nil
}

func (p *azureProvider) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	speechConfig, err := speech.NewSpeechConfigFromSubscription(p.key, p.region)
	if err != nil {
		return nil, fmt.Errorf("%w: create speech config: %v", ErrAuthentication, err)
	}
	if err := speechConfig.SetSpeechRecognitionLanguage(cfg.Locale); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("%w: set recognition language: %v", ErrService, err)
	}
	// Dictation selects the long-form endpoint; interactive leaves the
	// default short-phrase endpoint in place.
	if cfg.Mode == "dictation" {
		if err := speechConfig.EnableDictation(); err != nil {
			speechConfig.Close()
			return nil, fmt.Errorf("%w: enable dictation: %v", ErrService, err)
		}
	}

	format, err := audio.GetWaveFormatPCM(uint32(cfg.SampleRate), 16, uint8(cfg.Channels))
	if err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("%w: create audio format: %v", ErrStream, err)
	}
	pushStream, err := audio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("%w: create push stream: %v", ErrStream, err)
	}
	audioConfig, err := audio.NewAudioConfigFromStreamInput(pushStream)
	if err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("%w: create audio config: %v", ErrStream, err)
	}
	recognizer, err := speech.NewSpeechRecognizerFromConfig(speechConfig, audioConfig)
	if err != nil {
		audioConfig.Close()
		speechConfig.Close()
		return nil, fmt.Errorf("%w: create recognizer: %v", ErrConnection, err)
	}

	s := &azureSession{
		cfg:          cfg,
		log:          p.log,
		speechConfig: speechConfig,
		audioConfig:  audioConfig,
		pushStream:   pushStream,
		recognizer:   recognizer,
		done:         make(chan error, 1),
	}
	s.register()
	return s, nil
}

type azureSession struct {
	cfg          SessionConfig
	log          *slog.Logger
	speechConfig *speech.SpeechConfig
	audioConfig  *audio.AudioConfig
	pushStream   *audio.PushAudioInputStream
	recognizer   *speech.SpeechRecognizer
	done         chan error

	mu      sync.Mutex
	handler Handler
}

func (s *azureSession) OnResult(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// register wires the SDK callbacks. The Recognized callback runs on the
// SDK's delivery goroutine; the SDK guarantees in-order, non-overlapping
// delivery for one session.
func (s *azureSession) register() {
	s.recognizer.SessionStarted(func(e speech.SessionEventArgs) {
		s.log.Debug("azure session started")
	})
	s.recognizer.SessionStopped(func(e speech.SessionEventArgs) {
		s.finish(nil)
	})
	s.recognizer.Recognized(func(e speech.SpeechRecognitionEventArgs) {
		result := Result{}
		if e.Result.Reason == common.RecognizedSpeech && e.Result.Text != "" {
			result.Phrases = []Phrase{{Text: e.Result.Text}}
		}
		s.mu.Lock()
		h := s.handler
		s.mu.Unlock()
		if h != nil {
			h(result)
		}
	})
	s.recognizer.Canceled(func(e speech.SpeechRecognitionCanceledEventArgs) {
		if e.Reason == common.EndOfStream {
			s.finish(nil)
			return
		}
		s.finish(mapCancellation(e.ErrorCode, e.ErrorDetails))
	})
}

func (s *azureSession) finish(err error) {
	select {
	case s.done <- err:
	default:
	}
}

func (s *azureSession) Recognize(ctx context.Context, audioIn io.Reader) error {
	if err := <-s.recognizer.StartContinuousRecognitionAsync(); err != nil {
		return fmt.Errorf("%w: start recognition: %v", ErrService, err)
	}

	if err := s.pump(ctx, audioIn); err != nil {
		<-s.recognizer.StopContinuousRecognitionAsync()
		return err
	}

	select {
	case err := <-s.done:
		<-s.recognizer.StopContinuousRecognitionAsync()
		return err
	case <-ctx.Done():
		<-s.recognizer.StopContinuousRecognitionAsync()
		return ctx.Err()
	}
}

// pump streams the audio bytes into the push stream and closes it on EOF so
// the service can signal end-of-recognition.
func (s *azureSession) pump(ctx context.Context, audioIn io.Reader) error {
	buf := make([]byte, s.cfg.ChunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := audioIn.Read(buf)
		if n > 0 {
			if werr := s.pushStream.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%w: write audio chunk: %v", ErrStream, werr)
			}
		}
		if err == io.EOF {
			s.pushStream.Close()
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read audio: %v", ErrStream, err)
		}
	}
}

func (s *azureSession) Close() error {
	s.recognizer.Close()
	s.audioConfig.Close()
	s.speechConfig.Close()
	return nil
}

func mapCancellation(code common.CancellationErrorCode, details string) error {
	switch code {
	case common.AuthenticationFailure:
		return fmt.Errorf("%w: %s", ErrAuthentication, details)
	case common.ConnectionFailure, common.ServiceTimeout:
		return fmt.Errorf("%w: %s", ErrConnection, details)
	case common.ServiceError, common.ServiceUnavailable, common.TooManyRequests,
		common.BadRequest, common.Forbidden:
		return fmt.Errorf("%w: %s", ErrService, details)
	default:
		return fmt.Errorf("%w: %s", ErrStream, details)
	}
}
