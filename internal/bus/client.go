// Package bus publishes transcription progress events over NATS for
// downstream consumers. Publishing is best-effort: a failed publish is
// logged, never fatal to the run.
package bus

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-transcribe/internal/config"
	"github.com/loqalabs/loqa-transcribe/internal/protocol"
)

// Client wraps a NATS connection with typed publish helpers.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("loqa-transcribe"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}
	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))
	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	_ = c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// PhraseRecognized publishes one recognized phrase.
func (c *Client) PhraseRecognized(evt protocol.PhraseEvent) {
	c.publish(protocol.SubjectPhrase, evt)
}

// FileCompleted publishes the outcome of one processed file.
func (c *Client) FileCompleted(evt protocol.FileEvent) {
	c.publish(protocol.SubjectFile, evt)
}

// RunCompleted publishes the end-of-run summary.
func (c *Client) RunCompleted(evt protocol.RunEvent) {
	c.publish(protocol.SubjectRunCompleted, evt)
}

func (c *Client) publish(subject string, v any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("failed to marshal bus event", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.log.Warn("failed to publish bus event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
