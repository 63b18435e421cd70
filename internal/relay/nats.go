package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"storeops/internal/config"
)

const defaultSubjectPrefix = "storeops"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each envelope on <prefix>.<event type>.
type NATSSink struct {
	Conn   Publisher
	Prefix string

	close func()
}

func DialNATS(cfg config.NATSConfig) (*NATSSink, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("storeops relay"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSink{Conn: conn, Prefix: cfg.SubjectPrefix, close: conn.Close}, nil
}

func (s *NATSSink) Name() string { return "nats " + s.prefix() }

func (s *NATSSink) prefix() string {
	if p := strings.Trim(strings.TrimSpace(s.Prefix), "."); p != "" {
		return p
	}
	return defaultSubjectPrefix
}

func (s *NATSSink) Subject(evtType string) string {
	return s.prefix() + "." + evtType
}

func (s *NATSSink) Deliver(_ context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Conn.Publish(s.Subject(env.Type), data)
}

func (s *NATSSink) Close() {
	if s.close != nil {
		s.close()
	}
}
