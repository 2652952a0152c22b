package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
)

// Load opens an export file and decodes it with Decode.
func Load(path string) ([]Conversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode streams a JSON array of conversations. An element that is valid JSON
// but does not have the conversation shape is skipped with a warning; the
// stream itself being unreadable fails the whole decode.
func Decode(r io.Reader) ([]Conversation, error) {
	logger := slog.Default().With("component", "export-decoder")
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading export: %w: %v", apperrors.ErrMalformedInput, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("export must be a JSON array: %w", apperrors.ErrMalformedInput)
	}

	conversations := make([]Conversation, 0, 128)
	for idx := 0; dec.More(); idx++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("reading conversation %d: %w: %v", idx, apperrors.ErrMalformedInput, err)
		}
		var conv Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			logger.Warn("skipping malformed conversation", "index", idx, "error", err)
			continue
		}
		if conv.ID == "" {
			logger.Warn("skipping conversation without id", "index", idx)
			continue
		}
		conversations = append(conversations, conv)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("closing export array: %w: %v", apperrors.ErrMalformedInput, err)
	}
	return conversations, nil
}

// ParseMapping decodes a conversation's raw mapping. An absent mapping is an
// empty tree.
func ParseMapping(raw json.RawMessage) (Mapping, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Mapping{}, nil
	}
	var m Mapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedInput, err)
	}
	return m, nil
}
