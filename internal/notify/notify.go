// Package notify announces training records that lapsed into the warning state.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultSubject is used when the configuration names none.
const DefaultSubject = "labcheck.training.lapsed"

// Conf configures the NATS notifier. An empty URL disables notifications.
type Conf struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// Notifier delivers lapse notices.
type Notifier interface {
	Notify(ctx context.Context, notices []schema.LapseNotice) error
}

// Nop discards every notice.
type Nop struct{}

func (Nop) Notify(context.Context, []schema.LapseNotice) error { return nil }

type publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSNotifier publishes one JSON message per notice.
type NATSNotifier struct {
	conn    publisher
	subject string
}

// NewNATSNotifier connects to the NATS server at conf.URL.
func NewNATSNotifier(conf Conf) (*NATSNotifier, error) {
	nc, err := nats.Connect(
		conf.URL,
		nats.Name("labcheckd"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", conf.URL, err)
	}
	log.Info().Str("url", conf.URL).Str("subject", subjectOrDefault(conf.Subject)).Msg("lapse notices go to NATS")
	return newNATSNotifier(nc, conf.Subject), nil
}

func newNATSNotifier(conn publisher, subject string) *NATSNotifier {
	return &NATSNotifier{conn: conn, subject: subjectOrDefault(subject)}
}

func subjectOrDefault(s string) string {
	if s == "" {
		return DefaultSubject
	}
	return s
}

// Notify publishes every notice and flushes. Publishing continues past a failed notice;
// the returned error joins all failures.
func (n *NATSNotifier) Notify(ctx context.Context, notices []schema.LapseNotice) error {
	if len(notices) == 0 {
		return nil
	}
	var errs []error
	for _, nt := range notices {
		if nt.ID == "" {
			nt.ID = uuid.New().String()
		}
		data, err := json.Marshal(nt)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal notice for %s: %w", nt.Subject, err))
			continue
		}
		if err := n.conn.Publish(n.subject, data); err != nil {
			errs = append(errs, fmt.Errorf("publish notice for %s: %w", nt.Subject, err))
		}
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	return errors.Join(errs...)
}

// Close closes the NATS connection.
func (n *NATSNotifier) Close() {
	n.conn.Close()
}

// Open returns a NATS notifier when conf.URL is set and Nop otherwise.
func Open(conf Conf) (Notifier, func(), error) {
	if conf.URL == "" {
		return Nop{}, func() {}, nil
	}
	nn, err := NewNATSNotifier(conf)
	if err != nil {
		return nil, nil, err
	}
	return nn, nn.Close, nil
}
