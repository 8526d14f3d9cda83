package journal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "support.created.c1", Subject("created", "c1"))
	assert.Equal(t, "support.agent_online.none", Subject("agent_online", ""))
}

type stalledBroker struct {
	release chan struct{}

	mu       sync.Mutex
	subjects []string
	entries  []Entry
}

func newStalledBroker() *stalledBroker {
	return &stalledBroker{release: make(chan struct{})}
}

func (b *stalledBroker) publish(_ context.Context, subject string, data []byte) error {
	<-b.release
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	b.entries = append(b.entries, entry)
	return nil
}

func (b *stalledBroker) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.subjects...)
}

func TestRecord_ReturnsWhileBrokerStalls(t *testing.T) {
	broker := newStalledBroker()
	j := newNATSJournal(broker.publish, 8)
	ctx := context.Background()

	start := time.Now()
	j.Record(ctx, "created", "c1", "u1", map[string]string{"category": "general"})
	j.Record(ctx, "assigned", "c1", "a1", nil)
	j.Record(ctx, "closed", "c1", "a1", nil)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, broker.published())

	close(broker.release)
	j.Close()

	assert.Equal(t, []string{"support.created.c1", "support.assigned.c1", "support.closed.c1"}, broker.published())
	require.Len(t, broker.entries, 3)
	assert.Equal(t, "u1", broker.entries[0].ActorID)
	assert.Equal(t, "created", broker.entries[0].Kind)
}

func TestRecord_DropsWhenQueueFull(t *testing.T) {
	broker := newStalledBroker()
	j := newNATSJournal(broker.publish, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		j.Record(ctx, "message", "c1", "u1", nil)
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(broker.release)
	j.Close()

	n := len(broker.published())
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 2, "one in flight plus one queued")
}

func TestRecord_AfterCloseIsIgnored(t *testing.T) {
	broker := newStalledBroker()
	close(broker.release)
	j := newNATSJournal(broker.publish, 4)

	j.Close()
	j.Close()
	j.Record(context.Background(), "closed", "c1", "a1", nil)

	assert.Empty(t, broker.published())
}
