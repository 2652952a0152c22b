// Package export decodes exported conversation trees and flattens them into
// searchable text. The tree walk in this package is the single traversal shared
// by indexing and by anything that renders conversations message by message.
package export

import (
	"encoding/json"
	"time"
)

// RootID is the mapping key of the synthetic root node of every conversation.
const RootID = "root"

// Conversation is one entry of the exported conversations array. The mapping
// is kept raw so that each conversation can be parsed independently by the
// extraction workers.
type Conversation struct {
	ID         string          `json:"id"`
	Title      *string         `json:"title"`
	InsertedAt *string         `json:"inserted_at"`
	UpdatedAt  *string         `json:"updated_at"`
	Mapping    json.RawMessage `json:"mapping"`
}

// Mapping is a conversation tree keyed by node id.
type Mapping map[string]MappingNode

// MappingNode is a node of the conversation tree.
type MappingNode struct {
	ID       string   `json:"id"`
	Message  *Message `json:"message"`
	Children []string `json:"children"`
}

// Message holds the fragments of a single message.
type Message struct {
	Fragments []Fragment `json:"fragments"`
}

// Fragment is one typed piece of message content (text, code, thinking...).
type Fragment struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ParseTime parses an export timestamp. Exports carry RFC 3339 timestamps,
// optionally with fractional seconds.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
