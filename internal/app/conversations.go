package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/telhawk-systems/announcer/internal/debounce"
	"github.com/telhawk-systems/announcer/internal/logging"
	"github.com/telhawk-systems/announcer/internal/messaging"
)

// Conversations is the part of the debouncer fed by the transport.
type Conversations interface {
	Add(conversationID, text string) debounce.State
	Cancel(conversationID string) bool
}

// SubscribeConversations routes chat messages of the conversations owned by
// shard and every cancel request into conversations. Messages arrive only on
// the shard's own subject; cancel requests are broadcast and ignored by
// instances that do not hold the conversation.
func SubscribeConversations(sub messaging.Subscriber, subjects messaging.Subjects, shard messaging.Shard, conversations Conversations, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Default()
	}
	if shard.Count < 1 || shard.Index < 0 || shard.Index >= shard.Count {
		return fmt.Errorf("invalid conversation shard %d of %d", shard.Index, shard.Count)
	}

	onMessage := func(ctx context.Context, msg *messaging.Message) error {
		cm, err := decodeConversation(msg)
		if err != nil {
			return err
		}
		if !shard.Owns(cm.ConversationID) {
			return fmt.Errorf("conversation %q belongs to shard %d, not %d",
				cm.ConversationID, messaging.ShardOf(cm.ConversationID, shard.Count), shard.Index)
		}
		state := conversations.Add(cm.ConversationID, cm.Text)
		logger.DebugContext(ctx, "conversation message buffered",
			logging.Conversation(cm.ConversationID),
			"state", state.String(),
		)
		return nil
	}
	onCancel := func(ctx context.Context, msg *messaging.Message) error {
		cm, err := decodeConversation(msg)
		if err != nil {
			return err
		}
		if conversations.Cancel(cm.ConversationID) {
			logger.InfoContext(ctx, "conversation cancelled", logging.Conversation(cm.ConversationID))
		}
		return nil
	}

	if err := sub.Subscribe(subjects.MessageSubject(shard.Index), onMessage); err != nil {
		return err
	}
	return sub.Subscribe(subjects.ConversationCancel, onCancel)
}

func decodeConversation(msg *messaging.Message) (*messaging.ConversationMessage, error) {
	var cm messaging.ConversationMessage
	if err := json.Unmarshal(msg.Data, &cm); err != nil {
		return nil, fmt.Errorf("invalid conversation message on %s: %w", msg.Subject, err)
	}
	cm.ConversationID = strings.TrimSpace(cm.ConversationID)
	if cm.ConversationID == "" {
		return nil, errors.New("conversation message without conversation_id")
	}
	return &cm, nil
}
