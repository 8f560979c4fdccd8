package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
)

// DefaultNATSSubject is the subject a NATSSource listens on when none is configured.
const DefaultNATSSubject = "timetracker.lifecycle"

// NATSSource receives lifecycle states from a NATS subject. Messages are either
// a bare state name or JSON: {"state": "hidden"}.
type NATSSource struct {
	url     string
	subject string
	timeout time.Duration

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

// NewNATSSource creates a NATSSource; the connection is made on Start.
func NewNATSSource(url, subject string) (*NATSSource, error) {
	if url == "" {
		return nil, errors.ConfigError("nats lifecycle source requires a URL").Build()
	}
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSSource{url: url, subject: subject, timeout: 5 * time.Second}, nil
}

func (ns *NATSSource) Name() string { return string(KindNATS) }

// Initial returns fallback; NATS has no retained state.
func (ns *NATSSource) Initial(fallback State) State { return fallback }

// Start connects and subscribes.
func (ns *NATSSource) Start(_ context.Context, d *Dispatcher) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.conn != nil {
		return errors.LifecycleError("nats source already started").Build()
	}

	conn, err := nats.Connect(ns.url,
		nats.Name("timetracker"),
		nats.Timeout(ns.timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return errors.LifecycleError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", ns.url).
			Build()
	}

	sub, err := conn.Subscribe(ns.subject, ns.handler(d))
	if err != nil {
		conn.Close()
		return errors.LifecycleError("failed to subscribe to lifecycle subject").
			WithCause(err).
			WithContext("subject", ns.subject).
			Build()
	}

	ns.conn = conn
	ns.sub = sub
	slog.Info("Listening for lifecycle messages",
		slog.String("url", ns.url),
		slog.String("subject", ns.subject))
	return nil
}

// Stop unsubscribes and closes the connection.
func (ns *NATSSource) Stop() error {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.conn == nil {
		return nil
	}
	var err error
	if ns.sub != nil {
		err = ns.sub.Unsubscribe()
	}
	ns.conn.Close()
	ns.conn, ns.sub = nil, nil
	if err != nil {
		return errors.LifecycleError("failed to unsubscribe from lifecycle subject").WithCause(err).Build()
	}
	return nil
}

// handler turns subscribed messages into dispatches; malformed ones are dropped.
func (ns *NATSSource) handler(d *Dispatcher) nats.MsgHandler {
	return func(msg *nats.Msg) {
		state, err := parseMessage(msg.Data)
		if err != nil {
			slog.Warn("Ignoring lifecycle message", slog.String("subject", msg.Subject), logfields.Error(err))
			return
		}
		d.Dispatch(ns.Name(), state)
	}
}

func parseMessage(data []byte) (State, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return "", errors.ValidationError("malformed lifecycle message").WithCause(err).Build()
		}
		trimmed = payload.State
	}
	return ParseState(trimmed)
}
