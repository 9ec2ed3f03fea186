package messaging

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Subject suffixes, appended to the configured prefix.
// Follow the pattern: {prefix}.{resource}.{action}
const (
	SuffixExtractionsSaved    = "extractions.saved"     // Conversation flushed and event stored
	SuffixExtractionsFailed   = "extractions.failed"    // Conversation flushed but extraction or storage failed
	SuffixConversationMessage = "conversations.message" // Chat message to buffer, followed by .{shard}
	SuffixConversationCancel  = "conversations.cancel"  // Drop a buffered conversation, seen by every instance
)

// Subjects holds the fully qualified subjects for one deployment.
type Subjects struct {
	ExtractionsSaved    string
	ExtractionsFailed   string
	ConversationMessage string
	ConversationCancel  string
}

// NewSubjects qualifies every subject with prefix.
func NewSubjects(prefix string) Subjects {
	if prefix == "" {
		prefix = "announcer"
	}
	return Subjects{
		ExtractionsSaved:    prefix + "." + SuffixExtractionsSaved,
		ExtractionsFailed:   prefix + "." + SuffixExtractionsFailed,
		ConversationMessage: prefix + "." + SuffixConversationMessage,
		ConversationCancel:  prefix + "." + SuffixConversationCancel,
	}
}

// ResultSubject returns the subject a result with status is published on.
func (s Subjects) ResultSubject(status string) string {
	if status == StatusSaved {
		return s.ExtractionsSaved
	}
	return s.ExtractionsFailed
}

// Shard identifies the slice of conversations one announcer instance owns.
// Every conversation maps to exactly one shard, and each shard must be run by
// exactly one instance, so all messages of a conversation reach the same
// debouncer.
type Shard struct {
	Index int
	Count int
}

// SingleShard owns every conversation.
var SingleShard = Shard{Index: 0, Count: 1}

// ShardOf returns the shard index owning conversationID among count shards.
func ShardOf(conversationID string, count int) int {
	if count <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(conversationID) % uint64(count))
}

// Owns reports whether conversationID belongs to this shard.
func (s Shard) Owns(conversationID string) bool {
	return ShardOf(conversationID, s.Count) == s.Index
}

// MessageSubject returns the message subject of shard index.
func (s Subjects) MessageSubject(index int) string {
	return s.ConversationMessage + "." + strconv.Itoa(index)
}

// MessageSubjectFor returns the subject the transport publishes a message of
// conversationID on.
func (s Subjects) MessageSubjectFor(conversationID string, count int) string {
	return s.MessageSubject(ShardOf(conversationID, count))
}
