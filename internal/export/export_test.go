package export

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
)

func textNode(content string, children ...string) MappingNode {
	return MappingNode{
		Message:  &Message{Fragments: []Fragment{{Type: "text", Content: content}}},
		Children: children,
	}
}

func TestExtractOrderAndMissingIDs(t *testing.T) {
	m := Mapping{
		RootID: {Children: []string{"a", "ghost", "c"}},
		"a":    textNode("first", "b"),
		"b": {
			Message: &Message{Fragments: []Fragment{
				{Type: "thinking", Content: "second"},
				{Type: "text", Content: "third"},
			}},
		},
		"c": textNode("fourth"),
	}

	content, err := Extract(m)
	require.NoError(t, err)
	assert.Equal(t, "first second third fourth", content)
}

func TestExtractNodeWithoutMessage(t *testing.T) {
	m := Mapping{
		RootID: {Children: []string{"sys"}},
		"sys":  {Children: []string{"u"}},
		"u":    textNode("hello"),
	}
	content, err := Extract(m)
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
}

func TestExtractNoRoot(t *testing.T) {
	content, err := Extract(Mapping{"x": textNode("orphan")})
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestWalkDetectsCycle(t *testing.T) {
	m := Mapping{
		RootID: {Children: []string{"a"}},
		"a":    textNode("one", "b"),
		"b":    textNode("two", "a"),
	}
	_, err := Extract(m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCycleDetected))
}

func TestWalkAllowsSharedChild(t *testing.T) {
	m := Mapping{
		RootID:   {Children: []string{"a", "b"}},
		"a":      textNode("left", "shared"),
		"b":      textNode("right", "shared"),
		"shared": textNode("leaf"),
	}
	content, err := Extract(m)
	require.NoError(t, err)
	assert.Equal(t, "left leaf right leaf", content)
}

func TestDecodeSkipsMalformed(t *testing.T) {
	input := `[
		{"id": "1", "title": "ok", "mapping": {"root": {"children": []}}},
		{"id": 42, "title": "bad id type"},
		{"title": "no id"},
		{"id": "2", "inserted_at": "2024-01-02T00:00:00Z", "mapping": null}
	]`
	convs, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "1", convs[0].ID)
	assert.Equal(t, "2", convs[1].ID)
	require.NotNil(t, convs[1].InsertedAt)
	assert.Nil(t, convs[1].Title)
}

func TestDecodeRejectsNonArray(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"id": "1"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping([]byte(`{"root": {"children": ["m"]}, "m": {"message": {"fragments": [{"type": "text", "content": "hi"}]}}}`))
	require.NoError(t, err)
	content, err := Extract(m)
	require.NoError(t, err)
	assert.Equal(t, "hi", content)

	_, err = ParseMapping([]byte(`{"m": {"message": {"fragments": [{"content": 7}]}}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))

	m, err = ParseMapping(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestParseTimeFractional(t *testing.T) {
	ts, err := ParseTime("2025-01-27T12:34:56.789000+08:00")
	require.NoError(t, err)
	assert.Equal(t, 2025, ts.Year())
}
