// Package relay forwards event log entries to outside sinks. Each sink keeps
// its own cursor into the log, starting at the newest event when the relay
// starts, so only events recorded while it runs are delivered.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"storeops/internal/config"
	"storeops/internal/domain"
)

const (
	defaultInterval = 2 * time.Second
	defaultBatch    = 100
)

// Source is the subset of the repository the relay reads from.
type Source interface {
	EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error)
	LatestEventID(ctx context.Context) (int64, error)
}

type Sink interface {
	Name() string
	Deliver(ctx context.Context, env Envelope) error
}

// Envelope is the wire form of an event for every sink.
type Envelope struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func newEnvelope(evt domain.Event) Envelope {
	env := Envelope{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    json.RawMessage("{}"),
	}
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			env.Payload = json.RawMessage(evt.Payload)
		} else {
			env.PayloadRaw = evt.Payload
		}
	}
	return env
}

type target struct {
	sink   Sink
	filter eventFilter
}

type Relay struct {
	Source   Source
	Interval time.Duration
	Batch    int
	Logger   *log.Logger

	targets []target
	closers []func()
	mu      sync.Mutex
	cursors map[int]int64
}

// New builds a relay with the webhook and NATS sinks configured in cfg. A
// NATS sink is added only when a URL is set.
func New(src Source, cfg config.RelayConfig, logger *log.Logger) (*Relay, error) {
	r := &Relay{Source: src, Logger: logger}
	for _, hook := range cfg.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		r.Add(NewWebhookSink(hook), hook.Events)
	}
	if strings.TrimSpace(cfg.NATS.URL) != "" {
		sink, err := DialNATS(cfg.NATS)
		if err != nil {
			return nil, err
		}
		r.Add(sink, cfg.NATS.Events)
		r.closers = append(r.closers, sink.Close)
	}
	return r, nil
}

// Add registers a sink receiving the named event types, or every type when
// events is empty.
func (r *Relay) Add(sink Sink, events []string) {
	r.targets = append(r.targets, target{sink: sink, filter: newEventFilter(events)})
}

func (r *Relay) Len() int { return len(r.targets) }

func (r *Relay) Close() {
	for _, c := range r.closers {
		c()
	}
	r.closers = nil
}

func (r *Relay) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// Run dispatches on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	if len(r.targets) == 0 {
		return
	}
	interval := r.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce forwards one batch to every sink. A failed delivery stops
// that sink's batch; the event is retried on the next call.
func (r *Relay) DispatchOnce(ctx context.Context) {
	for i, t := range r.targets {
		r.dispatch(ctx, i, t)
	}
}

func (r *Relay) dispatch(ctx context.Context, idx int, t target) {
	batch := r.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	cursor, err := r.cursorFor(ctx, idx)
	if err != nil {
		r.logger().Printf("relay: init cursor failed: %v", err)
		return
	}
	evts, err := r.Source.EventsAfter(ctx, batch, cursor)
	if err != nil {
		r.logger().Printf("relay: fetch events failed: %v", err)
		return
	}
	for _, evt := range evts {
		if t.filter.match(evt.Type) {
			if err := t.sink.Deliver(ctx, newEnvelope(evt)); err != nil {
				r.logger().Printf("relay: deliver event %d to %s failed: %v", evt.ID, t.sink.Name(), err)
				return
			}
		}
		r.setCursor(idx, evt.ID)
	}
}

func (r *Relay) cursorFor(ctx context.Context, idx int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursors == nil {
		r.cursors = make(map[int]int64)
	}
	if cur, ok := r.cursors[idx]; ok {
		return cur, nil
	}
	cur, err := r.Source.LatestEventID(ctx)
	if err != nil {
		return 0, err
	}
	r.cursors[idx] = cur
	return cur, nil
}

// Start pins every sink's cursor at the newest event.
func (r *Relay) Start(ctx context.Context) error {
	for i := range r.targets {
		if _, err := r.cursorFor(ctx, i); err != nil {
			return fmt.Errorf("relay: init cursor for %s: %w", r.targets[i].sink.Name(), err)
		}
	}
	return nil
}

func (r *Relay) setCursor(idx int, value int64) {
	r.mu.Lock()
	r.cursors[idx] = value
	r.mu.Unlock()
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
