// Package content loads authored world data from YAML files and validates
// its referential integrity before it reaches the database. Dangling exits,
// unknown NPC or object keys, and broken dialogue links are authoring
// errors and are rejected at load time.
package content

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/etherwake/mud/internal/game/world"
	"github.com/etherwake/mud/internal/storage/postgres"
)

// RoomDef is one authored room.
type RoomDef struct {
	Key         string            `yaml:"key"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Exits       map[string]string `yaml:"exits"`
	NPCs        []string          `yaml:"npcs"`
	Objects     []string          `yaml:"objects"`
}

// NPCDef is one authored NPC kind.
type NPCDef struct {
	Key         string              `yaml:"key"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Dialogue    *world.DialogueTree `yaml:"dialogue"`
	Goodbye     string              `yaml:"goodbye"`
	Script      string              `yaml:"script"`
}

// ObjectDef is one authored static object.
type ObjectDef struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Script      string `yaml:"script"`
}

// WorldFile is a complete authored world document.
type WorldFile struct {
	Rooms   []RoomDef   `yaml:"rooms"`
	NPCs    []NPCDef    `yaml:"npcs"`
	Objects []ObjectDef `yaml:"objects"`
}

// LoadFile parses and validates a world YAML file.
//
// Postcondition: Returns a WorldFile whose references all resolve, or an
// error describing every integrity violation found.
func LoadFile(path string) (*WorldFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file: %w", err)
	}

	var wf WorldFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing world file %q: %w", path, err)
	}

	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("validating world file %q: %w", path, err)
	}
	return &wf, nil
}

// Validate checks the document's internal consistency: unique non-empty
// keys, recognised exit directions, and resolvable room, NPC, object, and
// dialogue references. All violations are reported at once.
func (w *WorldFile) Validate() error {
	var problems []string

	rooms := make(map[string]bool, len(w.Rooms))
	for _, r := range w.Rooms {
		if r.Key == "" {
			problems = append(problems, "room with empty key")
			continue
		}
		if rooms[r.Key] {
			problems = append(problems, fmt.Sprintf("duplicate room key %q", r.Key))
		}
		rooms[r.Key] = true
	}

	npcs := make(map[string]bool, len(w.NPCs))
	for _, n := range w.NPCs {
		if n.Key == "" {
			problems = append(problems, "npc with empty key")
			continue
		}
		if npcs[n.Key] {
			problems = append(problems, fmt.Sprintf("duplicate npc key %q", n.Key))
		}
		npcs[n.Key] = true

		problems = append(problems, validateDialogue(n)...)
	}

	objects := make(map[string]bool, len(w.Objects))
	for _, o := range w.Objects {
		if o.Key == "" {
			problems = append(problems, "object with empty key")
			continue
		}
		if objects[o.Key] {
			problems = append(problems, fmt.Sprintf("duplicate object key %q", o.Key))
		}
		objects[o.Key] = true
	}

	for _, r := range w.Rooms {
		for dir, target := range r.Exits {
			if !world.IsDirection(dir) {
				problems = append(problems, fmt.Sprintf("room %q: invalid exit direction %q", r.Key, dir))
			}
			if !rooms[target] {
				problems = append(problems, fmt.Sprintf("room %q: exit %s leads to unknown room %q", r.Key, dir, target))
			}
		}
		for _, key := range r.NPCs {
			if !npcs[key] {
				problems = append(problems, fmt.Sprintf("room %q: unknown npc %q", r.Key, key))
			}
		}
		for _, key := range r.Objects {
			if !objects[key] {
				problems = append(problems, fmt.Sprintf("room %q: unknown object %q", r.Key, key))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("world integrity: %s", strings.Join(problems, "; "))
	}
	return nil
}

// validateDialogue checks that an NPC's dialogue tree links resolve: the
// first node exists and every response's follow-up names a known node.
func validateDialogue(n NPCDef) []string {
	if n.Dialogue == nil {
		return nil
	}

	var problems []string
	if _, ok := n.Dialogue.Node(n.Dialogue.First); !ok {
		problems = append(problems, fmt.Sprintf("npc %q: dialogue first node %q not found", n.Key, n.Dialogue.First))
	}
	for id, node := range n.Dialogue.Nodes {
		for i, resp := range node.Responses {
			if resp.Next == "" {
				continue
			}
			if _, ok := n.Dialogue.Node(resp.Next); !ok {
				problems = append(problems, fmt.Sprintf(
					"npc %q: dialogue node %q response %d links to unknown node %q",
					n.Key, id, i+1, resp.Next))
			}
		}
	}
	return problems
}

// RoomRecord converts the authored room into its storage form.
func (r RoomDef) RoomRecord() *world.RoomRecord {
	exits := make(map[world.Direction]string, len(r.Exits))
	for dir, target := range r.Exits {
		exits[world.Direction(dir)] = target
	}
	return &world.RoomRecord{
		Key:         r.Key,
		Name:        r.Name,
		Description: r.Description,
		Exits:       exits,
		NPCKeys:     r.NPCs,
		ObjectKeys:  r.Objects,
	}
}

// NPCRecord converts the authored NPC into its storage form.
func (n NPCDef) NPCRecord() *postgres.NPCRecord {
	return &postgres.NPCRecord{
		Key:         n.Key,
		Name:        n.Name,
		Description: n.Description,
		Dialogue:    n.Dialogue,
		GoodbyeMsg:  n.Goodbye,
		Script:      n.Script,
	}
}

// ObjectRecord converts the authored object into its storage form.
func (o ObjectDef) ObjectRecord() *postgres.ObjectRecord {
	return &postgres.ObjectRecord{
		Key:         o.Key,
		Name:        o.Name,
		Description: o.Description,
		Script:      o.Script,
	}
}
