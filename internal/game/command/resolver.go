package command

import "strings"

// Canonical verb names, as dispatched by the room state.
const (
	VerbLook  = "look"
	VerbNorth = "north"
	VerbEast  = "east"
	VerbSouth = "south"
	VerbWest  = "west"
	VerbUp    = "up"
	VerbDown  = "down"
	VerbTalk  = "talk"
	VerbSay   = "say"
	VerbEmote = "emote"
	VerbQuit  = "quit"
)

// Entry binds one vocabulary word to the verb it invokes. Aliases are
// separate entries sharing a verb, so a bare "n" is a literal match and
// never ambiguous with the longer word it prefixes.
type Entry struct {
	Word string
	Verb string
}

// Vocabulary returns the complete player-facing vocabulary, aliases
// included.
func Vocabulary() []Entry {
	return []Entry{
		{VerbLook, VerbLook}, {"l", VerbLook},
		{VerbNorth, VerbNorth}, {"n", VerbNorth},
		{VerbSouth, VerbSouth}, {"s", VerbSouth},
		{VerbEast, VerbEast}, {"e", VerbEast},
		{VerbWest, VerbWest}, {"w", VerbWest},
		{VerbUp, VerbUp}, {"u", VerbUp},
		{VerbDown, VerbDown}, {"d", VerbDown},
		{VerbTalk, VerbTalk}, {"t", VerbTalk},
		{VerbSay, VerbSay},
		{VerbEmote, VerbEmote},
		{VerbQuit, VerbQuit},
	}
}

// Resolver resolves a possibly-abbreviated first token to a verb by prefix
// search over the vocabulary.
type Resolver struct {
	trie  *Trie
	verbs map[string]string
}

// NewResolver builds a Resolver over the given vocabulary entries.
//
// Precondition: entries must be non-empty with unique words.
func NewResolver(entries []Entry) *Resolver {
	t := NewTrie()
	verbs := make(map[string]string, len(entries))
	for _, e := range entries {
		t.Insert(e.Word, e.Word)
		verbs[e.Word] = e.Verb
	}
	return &Resolver{trie: t, verbs: verbs}
}

// DefaultResolver builds a Resolver over the built-in vocabulary.
func DefaultResolver() *Resolver {
	return NewResolver(Vocabulary())
}

// Resolve looks up the lower-cased word by prefix. If exactly one
// vocabulary word matches, or the literal word itself is in the
// vocabulary, its verb is returned with ok=true. Otherwise ok is false and
// the matching words are returned as suggestions (empty when nothing
// matched).
func (r *Resolver) Resolve(word string) (verb string, suggestions []string, ok bool) {
	word = strings.ToLower(word)
	candidates := r.trie.Search(word)

	if len(candidates) == 1 {
		return r.verbs[candidates[0]], nil, true
	}
	for _, c := range candidates {
		if c == word {
			return r.verbs[word], nil, true
		}
	}
	return "", candidates, false
}
