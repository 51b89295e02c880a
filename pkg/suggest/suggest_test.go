package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Alice Johnson", "alice johnson"},
		{"  ALICE   Johnson  ", "alice johnson"},
		{"O’Brien", "o'brien"},
		{"Anne-Marie", "anne marie"},
		{"Dr. Smith, Jr.", "dr smith jr"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestSuggestFindsMention(t *testing.T) {
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "Works with Bob at the library."},
		{ID: "bob", Name: "Bob"},
	}

	suggestions := Suggest(people, nil)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, "alice", s.FromContactID, "the note's owner is the from side")
	assert.Equal(t, "bob", s.ToContactID)
	require.Len(t, s.Mentions, 1)
	assert.Equal(t, "Bob", s.Mentions[0].Text, "mention text carries the source casing")
	assert.Equal(t, "bob", s.Mentions[0].ContactID)
}

func TestSuggestMentionOffsets(t *testing.T) {
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "Ask Bob about it."},
		{ID: "bob", Name: "Bob"},
	}

	suggestions := Suggest(people, nil)
	require.Len(t, suggestions, 1)
	require.Len(t, suggestions[0].Mentions, 1)

	m := suggestions[0].Mentions[0]
	assert.Equal(t, 4, m.Start)
	assert.Equal(t, 7, m.End)
	assert.Equal(t, people[0].Notes[m.Start:m.End], m.Text, "offsets index the source notes byte-for-byte")
	assert.Equal(t, "Bob", m.Text)
}

func TestSuggestWholeWordsOnly(t *testing.T) {
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "Bobby came by yesterday."},
		{ID: "bob", Name: "Bob"},
	}

	suggestions := Suggest(people, nil)
	assert.Empty(t, suggestions, "a name inside a longer word is not a mention")
}

func TestSuggestCaseInsensitive(t *testing.T) {
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "talked to BOB on monday"},
		{ID: "bob", Name: "Bob"},
	}

	suggestions := Suggest(people, nil)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "bob", suggestions[0].ToContactID)
}

func TestSuggestSkipsConnectedPairs(t *testing.T) {
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "Bob and Carol were both there."},
		{ID: "bob", Name: "Bob"},
		{ID: "carol", Name: "Carol"},
	}

	connected := func(aID, bID string) bool {
		return (aID == "alice" && bID == "bob") || (aID == "bob" && bID == "alice")
	}

	suggestions := Suggest(people, connected)
	require.Len(t, suggestions, 1, "the already-connected pair should be skipped")
	assert.Equal(t, "carol", suggestions[0].ToContactID)
}

func TestSuggestOnePerPair(t *testing.T) {
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "Bob again. Bob is everywhere."},
		{ID: "bob", Name: "Bob", Notes: "Alice mentioned something."},
	}

	suggestions := Suggest(people, nil)
	require.Len(t, suggestions, 1, "mutual mentions collapse to one suggestion per pair")
	assert.Len(t, suggestions[0].Mentions, 3, "every mention is kept as evidence")
}

func TestSuggestIgnoresSelfMention(t *testing.T) {
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "Alice is my own name."},
	}

	suggestions := Suggest(people, nil)
	assert.Empty(t, suggestions)
}

func TestSuggestSharedName(t *testing.T) {
	people := []Person{
		{ID: "writer", Name: "Dana", Notes: ""},
		{ID: "dana-1", Name: "Sam", Notes: "Dana helped me move."},
	}

	suggestions := Suggest(people, nil)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "dana-1", suggestions[0].FromContactID)
	assert.Equal(t, "writer", suggestions[0].ToContactID)
}

func TestSuggestStopwordNameExcluded(t *testing.T) {
	people := []Person{
		{ID: "the", Name: "The", Notes: ""},
		{ID: "alice", Name: "Alice", Notes: "the library is open"},
	}

	suggestions := Suggest(people, nil)
	assert.Empty(t, suggestions, "all-stopword names would match everything, so they are excluded")
}

func TestSuggestEmptyInput(t *testing.T) {
	assert.Nil(t, Suggest(nil, nil))
	assert.Nil(t, Suggest([]Person{{ID: "a", Name: "Alice"}}, nil))

	// Patterns exist but nothing in any note matches them.
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "nothing relevant here"},
		{ID: "bob", Name: "Bob", Notes: "quiet week"},
	}
	assert.Nil(t, Suggest(people, nil))
}

func TestSuggestMultiWordName(t *testing.T) {
	people := []Person{
		{ID: "alice", Name: "Alice", Notes: "Met Mary Jane Watson downtown."},
		{ID: "mj", Name: "Mary Jane Watson"},
	}

	suggestions := Suggest(people, nil)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "mj", suggestions[0].ToContactID)
	assert.Equal(t, "Mary Jane Watson", suggestions[0].Mentions[0].Text)
}
