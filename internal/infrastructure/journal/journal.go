// Package journal records support chat lifecycle events to NATS JetStream so
// reporting and audit consumers can replay them.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"agrolink/pkg/logger"
)

// SubjectPrefix is the root of every journal subject.
const SubjectPrefix = "support"

// Entry is one journaled lifecycle event.
type Entry struct {
	Kind       string      `json:"kind"`
	ChatID     string      `json:"chatId,omitempty"`
	ActorID    string      `json:"actorId,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	RecordedAt time.Time   `json:"recordedAt"`
}

// Subject returns the subject an entry is published on.
func Subject(kind, chatID string) string {
	if chatID == "" {
		chatID = "none"
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, kind, chatID)
}

const (
	queueSize      = 1024
	publishTimeout = 2 * time.Second
	closeTimeout   = 5 * time.Second
)

type publishFunc func(ctx context.Context, subject string, data []byte) error

type pending struct {
	subject string
	kind    string
	chatID  string
	data    []byte
}

// NATSJournal publishes entries to a JetStream stream from a background
// worker. Record only enqueues.
type NATSJournal struct {
	conn    *nats.Conn
	publish publishFunc
	queue   chan pending
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newNATSJournal(publish publishFunc, size int) *NATSJournal {
	j := &NATSJournal{
		publish: publish,
		queue:   make(chan pending, size),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// Connect dials NATS and makes sure the stream exists.
func Connect(ctx context.Context, url, stream string) (*NATSJournal, error) {
	nc, err := nats.Connect(url,
		nats.Name("agrolink-realtime"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if err := ensureStream(ctx, js, stream); err != nil {
		nc.Close()
		return nil, err
	}

	j := newNATSJournal(func(ctx context.Context, subject string, data []byte) error {
		_, err := js.Publish(ctx, subject, data)
		return err
	}, queueSize)
	j.conn = nc
	return j, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, stream string) error {
	if _, err := js.Stream(ctx, stream); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Support chat lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", stream, err)
	}
	return nil
}

func (j *NATSJournal) run() {
	defer close(j.done)
	for p := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := j.publish(ctx, p.subject, p.data); err != nil {
			logger.Warn("Journal: failed to publish %s entry for chat %s: %v", p.kind, p.chatID, err)
		}
		cancel()
	}
}

// Record queues an entry and returns at once. Failures are logged and
// swallowed; when the queue is full the entry is dropped.
func (j *NATSJournal) Record(_ context.Context, kind, chatID, actorID string, payload interface{}) {
	data, err := json.Marshal(Entry{
		Kind:       kind,
		ChatID:     chatID,
		ActorID:    actorID,
		Payload:    payload,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("Journal: failed to encode %s entry for chat %s: %v", kind, chatID, err)
		return
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- pending{subject: Subject(kind, chatID), kind: kind, chatID: chatID, data: data}:
	default:
		logger.Warn("Journal: queue full, dropping %s entry for chat %s", kind, chatID)
	}
}

// Close flushes queued entries for a bounded time, then drains the connection.
func (j *NATSJournal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	select {
	case <-j.done:
	case <-time.After(closeTimeout):
		logger.Warn("Journal: gave up flushing entries on close")
	}
	if j.conn != nil {
		j.conn.Drain()
	}
}

// Noop discards entries. Used when NATS is not configured.
type Noop struct{}

func (Noop) Record(context.Context, string, string, string, interface{}) {}
