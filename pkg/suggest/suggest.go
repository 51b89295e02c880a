// Package suggest proposes connections by scanning contact notes for
// mentions of other contacts' names. A single Aho-Corasick automaton
// built from all names scans every note in one pass.
package suggest

import (
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Person is the scanner's view of a contact.
type Person struct {
	ID    string
	Name  string
	Notes string
}

// Mention is one occurrence of a contact's name inside another contact's
// notes. Offsets are byte positions into the source notes.
type Mention struct {
	ContactID string `json:"contactId"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Text      string `json:"text"`
}

// Suggestion proposes a connection between two not-yet-connected
// contacts, with the mentions that back it up.
type Suggestion struct {
	FromContactID string    `json:"fromContactId"`
	ToContactID   string    `json:"toContactId"`
	Mentions      []Mention `json:"mentions"`
}

var english = stopwords.MustGet("en")

// Normalize cleans and lowercases a name for matching.
func Normalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	for _, ch := range s {
		c := unicode.ToLower(ch)

		// Curly apostrophe -> straight
		if c == '’' {
			out.WriteRune('\'')
			continue
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'' {
			out.WriteRune(c)
		} else {
			out.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(out.String()), " ")
}

// isStopName reports whether every token of a normalized name is an
// English stopword. Such names (a contact nicknamed "The", say) would
// match nearly any note, so they are left out of the dictionary.
func isStopName(key string) bool {
	toks := strings.Fields(key)
	if len(toks) == 0 {
		return true
	}
	for _, tok := range toks {
		if !english.Contains(tok) {
			return false
		}
	}
	return true
}

// Suggest scans every person's notes for mentions of other people and
// returns one suggestion per undirected pair that connected does not
// already report. Pairs keep the direction of the first mention found.
func Suggest(people []Person, connected func(aID, bID string) bool) []Suggestion {
	patterns, patternToIDs := buildPatterns(people)
	if len(patterns) == 0 {
		return nil
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	ac := builder.Build(patterns)

	byPair := make(map[[2]string]*Suggestion)
	var order [][2]string

	for _, p := range people {
		if p.Notes == "" {
			continue
		}

		// The automaton is ASCII-case-insensitive, so the source notes
		// are scanned as-is and offsets index them directly.
		for _, m := range ac.FindAll(p.Notes) {
			for _, id := range patternToIDs[m.Pattern()] {
				if id == p.ID {
					continue
				}
				if connected != nil && connected(p.ID, id) {
					continue
				}

				key := pairKey(p.ID, id)
				sug, ok := byPair[key]
				if !ok {
					sug = &Suggestion{FromContactID: p.ID, ToContactID: id}
					byPair[key] = sug
					order = append(order, key)
				}
				sug.Mentions = append(sug.Mentions, Mention{
					ContactID: id,
					Start:     m.Start(),
					End:       m.End(),
					Text:      p.Notes[m.Start():m.End()],
				})
			}
		}
	}

	if len(order) == 0 {
		return nil
	}
	out := make([]Suggestion, 0, len(order))
	for _, k := range order {
		out = append(out, *byPair[k])
	}
	return out
}

// buildPatterns collects one normalized pattern per distinct name.
// Multiple people may share a pattern.
func buildPatterns(people []Person) ([]string, [][]string) {
	var patterns []string
	var patternToIDs [][]string
	index := make(map[string]int)

	for _, p := range people {
		key := Normalize(p.Name)
		if key == "" || isStopName(key) {
			continue
		}

		if idx, exists := index[key]; exists {
			patternToIDs[idx] = append(patternToIDs[idx], p.ID)
		} else {
			index[key] = len(patterns)
			patterns = append(patterns, key)
			patternToIDs = append(patternToIDs, []string{p.ID})
		}
	}

	return patterns, patternToIDs
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}
