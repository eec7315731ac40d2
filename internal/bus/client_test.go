package bus

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/loqa-transcribe/internal/config"
	"github.com/loqalabs/loqa-transcribe/internal/natsserver"
	"github.com/loqalabs/loqa-transcribe/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishPhraseEvent(t *testing.T) {
	log := newLogger()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, log)
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	client, err := Connect(config.BusConfig{
		Servers:        []string{srv.ClientURL()},
		ConnectTimeout: 2000,
	}, log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)

	if !client.Healthy() {
		t.Fatal("expected healthy connection")
	}

	sub, err := client.Conn().SubscribeSync(protocol.SubjectPhrase)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	client.PhraseRecognized(protocol.PhraseEvent{
		RunID:     "run-1",
		File:      "a.wav",
		Text:      "hello world",
		Timestamp: time.Now().UTC(),
	})

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var evt protocol.PhraseEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Text != "hello world" || evt.File != "a.wav" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestConnectRequiresServers(t *testing.T) {
	if _, err := Connect(config.BusConfig{}, newLogger()); err == nil {
		t.Fatal("expected error without servers")
	}
}
