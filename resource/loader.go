package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IndexFile lists the NPC scripts of an asset directory.
const IndexFile = "npcs.json"

// ---- Asset Data Structures ----

// NPCEntry is one record of npcs.json.
type NPCEntry struct {
	NPC    string `json:"npc"`     // stable id, lowercase
	Name   string `json:"name"`    // display name, fed to $N
	File   string `json:"file"`    // script path relative to the data dir
	MainPC int    `json:"main_pc"` // entry pc of the top-level conversation block
	Build  string `json:"build"`   // opcode build; empty means the configured default
}

// Script is a loaded NPC script. Bytes is owned by the loader and must not
// be modified.
type Script struct {
	NPCEntry
	Bytes []byte
}

// ResourceLoader holds every script listed in the index of DataPath.
type ResourceLoader struct {
	DataPath string
	Scripts  map[string]*Script
}

// NewLoader creates a ResourceLoader for the given asset directory.
func NewLoader(dataPath string) *ResourceLoader {
	return &ResourceLoader{
		DataPath: dataPath,
		Scripts:  make(map[string]*Script),
	}
}

// Load reads the index and every script file it references. A broken entry
// is skipped and reported in the returned error; the others stay loaded.
func (rl *ResourceLoader) Load() error {
	var entries []*NPCEntry
	if err := loadJSONArray(rl.path(IndexFile), &entries); err != nil {
		return err
	}

	var errs []error
	for i, e := range entries {
		if e == nil {
			continue
		}
		if err := rl.loadScript(e); err != nil {
			errs = append(errs, fmt.Errorf("resource: entry %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (rl *ResourceLoader) loadScript(e *NPCEntry) error {
	e.NPC = strings.ToLower(strings.TrimSpace(e.NPC))
	if e.NPC == "" {
		return errors.New("missing npc id")
	}
	if e.File == "" {
		return fmt.Errorf("npc %q: missing file", e.NPC)
	}
	if _, dup := rl.Scripts[e.NPC]; dup {
		return fmt.Errorf("npc %q: duplicate entry", e.NPC)
	}
	data, err := os.ReadFile(rl.path(e.File))
	if err != nil {
		return fmt.Errorf("npc %q: read %s: %w", e.NPC, e.File, err)
	}
	if e.MainPC < 0 || e.MainPC > len(data) {
		return fmt.Errorf("npc %q: main_pc %d outside script of %d bytes", e.NPC, e.MainPC, len(data))
	}
	rl.Scripts[e.NPC] = &Script{NPCEntry: *e, Bytes: data}
	return nil
}

// Script returns the loaded script of npc (case-insensitive).
func (rl *ResourceLoader) Script(npc string) (*Script, bool) {
	s, ok := rl.Scripts[strings.ToLower(strings.TrimSpace(npc))]
	return s, ok
}

// NPCs returns the loaded NPC ids in sorted order.
func (rl *ResourceLoader) NPCs() []string {
	ids := make([]string, 0, len(rl.Scripts))
	for id := range rl.Scripts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (rl *ResourceLoader) path(file string) string {
	return filepath.Join(rl.DataPath, file)
}

func loadJSONArray[T any](path string, out *[]*T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return nil
}
