// Package notify announces finished runs on a NATS subject so other services
// (chat bots, dashboards) can react to published documentation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Event is the JSON payload published after each run.
type Event struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	Outcome    string    `json:"outcome"`
	Repository string    `json:"repository,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Commit     string    `json:"commit,omitempty"`
	FailedStep string    `json:"failed_step,omitempty"`
	ExitCode   int       `json:"exit_code"`
	Figures    int       `json:"figures"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier delivers run events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Close() error
}

// NoopNotifier discards events.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Event) error { return nil }
func (NoopNotifier) Close() error                        { return nil }

type publishFunc func(ctx context.Context, subject string, data []byte) error

// NATSNotifier publishes events to a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	publish publishFunc
}

// New returns a NATS notifier when a URL is configured, otherwise a NoopNotifier.
func New(cfg config.NotifyConfig) (Notifier, error) {
	if cfg.NATSURL == "" {
		return NoopNotifier{}, nil
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("docpublish"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n := &NATSNotifier{conn: conn, subject: cfg.Subject}
	if cfg.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		n.publish = func(ctx context.Context, subject string, data []byte) error {
			_, err := js.Publish(ctx, subject, data)
			return err
		}
	} else {
		n.publish = func(_ context.Context, subject string, data []byte) error {
			if err := conn.Publish(subject, data); err != nil {
				return err
			}
			return conn.Flush()
		}
	}

	slog.Info("NATS notifier initialized", slog.String("url", cfg.NATSURL), slog.String("subject", cfg.Subject), slog.Bool("jetstream", cfg.JetStream))
	return n, nil
}

// Notify publishes event as JSON.
func (n *NATSNotifier) Notify(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := n.publish(ctx, n.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	slog.Debug("Published run event", logfields.RunID(event.RunID), logfields.Outcome(event.Outcome), slog.String("subject", n.subject))
	return nil
}

// Close closes the NATS connection.
func (n *NATSNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}

// Send delivers event and logs failures; notifications never fail a run.
func Send(ctx context.Context, n Notifier, event Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event); err != nil {
		slog.Warn("Run notification failed", logfields.RunID(event.RunID), logfields.Error(err))
	}
}
