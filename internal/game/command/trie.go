// Package command provides the prefix-trie command resolver and the
// quoted-token command line parser.
package command

// Trie is a prefix tree over the command vocabulary. It is built once at
// startup and read-only afterwards, so lookups need no synchronization.
type Trie struct {
	root *node
}

// node is one character position in the trie. children are kept in
// insertion order per branch; there is no ordering across sibling branches.
type node struct {
	children map[byte]*node
	order    []byte
	value    string
	complete bool
}

func newNode() *node {
	return &node{children: make(map[byte]*node)}
}

// NewTrie creates an empty Trie.
func NewTrie() *Trie {
	return &Trie{root: newNode()}
}

// Insert indexes key character by character from the root, creating nodes as
// needed. The terminal node for the full key is marked complete and stores
// value. Re-inserting a key overwrites its value.
func (t *Trie) Insert(key, value string) {
	n := t.root
	for i := 0; i < len(key); i++ {
		ch := key[i]
		child, ok := n.children[ch]
		if !ok {
			child = newNode()
			n.children[ch] = child
			n.order = append(n.order, ch)
		}
		n = child
	}
	n.complete = true
	n.value = value
}

// Search walks from the root consuming prefix one character at a time and
// returns every complete entry in the subtree reached. A character with no
// matching child yields an empty result. The empty prefix returns every
// entry in the trie.
func (t *Trie) Search(prefix string) []string {
	n := t.root
	for i := 0; i < len(prefix); i++ {
		child, ok := n.children[prefix[i]]
		if !ok {
			return nil
		}
		n = child
	}

	var results []string
	n.collect(&results)
	return results
}

// collect appends the complete entries of the subtree rooted at n, the
// node's own entry first, then each child branch in insertion order.
func (n *node) collect(results *[]string) {
	if n.complete {
		*results = append(*results, n.value)
	}
	for _, ch := range n.order {
		n.children[ch].collect(results)
	}
}
