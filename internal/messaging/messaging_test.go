package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/announcer/internal/logging"
)

func TestNewSubjects(t *testing.T) {
	s := NewSubjects("events")
	assert.Equal(t, "events.extractions.saved", s.ExtractionsSaved)
	assert.Equal(t, "events.extractions.failed", s.ExtractionsFailed)
	assert.Equal(t, "events.conversations.message", s.ConversationMessage)
	assert.Equal(t, "events.conversations.cancel", s.ConversationCancel)

	assert.Equal(t, "announcer.extractions.saved", NewSubjects("").ExtractionsSaved)
}

func TestShardOf(t *testing.T) {
	assert.Equal(t, 0, ShardOf("chat-1", 1))
	assert.Equal(t, 0, ShardOf("chat-1", 0))

	seen := map[int]bool{}
	for i := range 200 {
		id := fmt.Sprintf("chat-%d", i)
		shard := ShardOf(id, 4)
		require.GreaterOrEqual(t, shard, 0)
		require.Less(t, shard, 4)
		assert.Equal(t, shard, ShardOf(id, 4), "shard must be stable for %s", id)
		assert.True(t, Shard{Index: shard, Count: 4}.Owns(id))
		seen[shard] = true
	}
	assert.Len(t, seen, 4)
	assert.True(t, SingleShard.Owns("anything"))
}

func TestSubjects_MessageSubject(t *testing.T) {
	s := NewSubjects("announcer")
	assert.Equal(t, "announcer.conversations.message.3", s.MessageSubject(3))
	assert.Equal(t, "announcer.conversations.message.0", s.MessageSubjectFor("chat-1", 1))

	id := "chat-42"
	assert.Equal(t, s.MessageSubject(ShardOf(id, 8)), s.MessageSubjectFor(id, 8))
}

func TestSubjects_ResultSubject(t *testing.T) {
	s := NewSubjects("announcer")
	assert.Equal(t, s.ExtractionsSaved, s.ResultSubject(StatusSaved))
	assert.Equal(t, s.ExtractionsFailed, s.ResultSubject(StatusFailed))
}

func TestMemoryPublisher(t *testing.T) {
	p := &MemoryPublisher{}
	ctx := context.Background()

	result := ExtractionResult{
		ConversationID: "chat-1",
		Status:         StatusSaved,
		EventID:        7,
		Text:           "Saved (id 7):",
		Timestamp:      time.Date(2025, 8, 11, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishJSON(ctx, "announcer.extractions.saved", result))
	require.NoError(t, p.Publish(ctx, "raw", []byte("x")))

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "announcer.extractions.saved", msgs[0].Subject)

	var got ExtractionResult
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, result, got)

	assert.Error(t, p.PublishJSON(ctx, "bad", make(chan int)))
	require.NoError(t, p.Close())
}

func TestPublishersHonourCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, NoopPublisher{}.Publish(ctx, "s", nil), context.Canceled)
	assert.ErrorIs(t, NoopPublisher{}.PublishJSON(ctx, "s", nil), context.Canceled)
	assert.ErrorIs(t, (&MemoryPublisher{}).Publish(ctx, "s", nil), context.Canceled)

	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), "s", nil))
}

func TestNewNATSClient_Unreachable(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	_, err := NewNATSClient(cfg, logging.Discard())
	assert.ErrorContains(t, err, "failed to connect to NATS")
}

func TestDefaultNATSConfig(t *testing.T) {
	cfg := DefaultNATSConfig()
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, "announcer", cfg.Name)
	assert.Equal(t, -1, cfg.MaxReconnects)
}
