package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTrie_Search_PrefixMatches(t *testing.T) {
	trie := NewTrie()
	trie.Insert("north", "north")
	trie.Insert("n", "north")
	trie.Insert("say", "say")

	assert.Equal(t, []string{"north", "north"}, trie.Search("n"))
	assert.Equal(t, []string{"north"}, trie.Search("no"))
	assert.Equal(t, []string{"say"}, trie.Search("s"))
	assert.Empty(t, trie.Search("x"))
}

func TestTrie_Search_OwnEntryBeforeChildren(t *testing.T) {
	trie := NewTrie()
	trie.Insert("looker", "looker")
	trie.Insert("look", "look")

	// The node's own value comes before any descendants.
	assert.Equal(t, []string{"look", "looker"}, trie.Search("look"))
}

func TestTrie_Search_ChildrenInInsertionOrder(t *testing.T) {
	trie := NewTrie()
	trie.Insert("tb", "second")
	trie.Insert("ta", "first")

	assert.Equal(t, []string{"second", "first"}, trie.Search("t"))
}

func TestTrie_Search_EmptyPrefixReturnsAll(t *testing.T) {
	trie := NewTrie()
	trie.Insert("a", "1")
	trie.Insert("b", "2")

	assert.ElementsMatch(t, []string{"1", "2"}, trie.Search(""))
}

func TestTrie_InsertOverwrites(t *testing.T) {
	trie := NewTrie()
	trie.Insert("go", "old")
	trie.Insert("go", "new")

	assert.Equal(t, []string{"new"}, trie.Search("go"))
}

// TestTrie_Property verifies that every inserted key is findable through
// each of its prefixes.
func TestTrie_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		keys := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[a-z]{1,8}`), 1, 8,
			func(s string) string { return s },
		).Draw(rt, "keys")

		trie := NewTrie()
		for _, k := range keys {
			trie.Insert(k, k)
		}

		for _, k := range keys {
			for i := 1; i <= len(k); i++ {
				assert.Contains(rt, trie.Search(k[:i]), k)
			}
		}
	})
}

func TestResolver_ExactWord(t *testing.T) {
	r := DefaultResolver()

	verb, _, ok := r.Resolve("north")
	assert.True(t, ok)
	assert.Equal(t, VerbNorth, verb)
}

func TestResolver_Alias(t *testing.T) {
	r := DefaultResolver()

	verb, _, ok := r.Resolve("n")
	assert.True(t, ok)
	assert.Equal(t, VerbNorth, verb)

	verb, _, ok = r.Resolve("l")
	assert.True(t, ok)
	assert.Equal(t, VerbLook, verb)
}

func TestResolver_UniquePrefix(t *testing.T) {
	r := DefaultResolver()

	verb, _, ok := r.Resolve("qu")
	assert.True(t, ok)
	assert.Equal(t, VerbQuit, verb)
}

func TestResolver_AmbiguousPrefix(t *testing.T) {
	r := NewResolver([]Entry{{"sell", "sell"}, {"say", "say"}, {"s", "s"}})

	// "s" itself is a vocabulary word, so the literal wins over ambiguity.
	verb, _, ok := r.Resolve("s")
	assert.True(t, ok)
	assert.Equal(t, "s", verb)

	// "se" prefixes only "sell".
	verb, _, ok = r.Resolve("se")
	assert.True(t, ok)
	assert.Equal(t, "sell", verb)
}

func TestResolver_Unknown(t *testing.T) {
	r := DefaultResolver()

	_, suggestions, ok := r.Resolve("dance")
	assert.False(t, ok)
	assert.Empty(t, suggestions)
}

func TestResolver_AmbiguousSuggestions(t *testing.T) {
	r := NewResolver([]Entry{{"talk", "talk"}, {"take", "take"}})

	_, suggestions, ok := r.Resolve("ta")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"talk", "take"}, suggestions)
}
