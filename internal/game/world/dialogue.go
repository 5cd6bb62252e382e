package world

// DialogueResponse is one numbered choice in a dialogue node. An empty Next
// ends the conversation when the response is chosen.
type DialogueResponse struct {
	Text string `json:"text" yaml:"text"`
	Next string `json:"next,omitempty" yaml:"next,omitempty"`
}

// DialogueNode is one step of an NPC conversation: the NPC's line and the
// responses the player may pick from. A node with no responses ends the
// conversation as soon as it is shown.
type DialogueNode struct {
	Text      string             `json:"text" yaml:"text"`
	Responses []DialogueResponse `json:"responses,omitempty" yaml:"responses,omitempty"`
}

// DialogueTree is a keyed graph of conversation nodes. Cycles are allowed;
// a response may point back to an earlier node.
type DialogueTree struct {
	// First is the id of the node a new conversation starts at.
	First string `json:"first" yaml:"first"`
	// Nodes maps node ids to nodes.
	Nodes map[string]DialogueNode `json:"nodes" yaml:"nodes"`
}

// Node returns the node with the given id, or (zero, false).
func (t *DialogueTree) Node(id string) (DialogueNode, bool) {
	if t == nil {
		return DialogueNode{}, false
	}
	node, ok := t.Nodes[id]
	return node, ok
}
