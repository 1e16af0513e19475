// Package session implements the per-session manager (spec.md §4.3, C4):
// attach/detach lifecycle, user-data accessor, AI-provider binding
// resolution, and the one workflow.Engine instance each session owns.
// Grounded in original_source/workflow_chat.py's ChatWorkflowManager and
// original_source/user_data.py's UserData.
package session

import (
	"time"

	"github.com/solace-ai/agentserver/pkg/jsontree"
)

// Profile is the per-session user-data accessor named in spec.md §4.3:
// "construct a user-data accessor that exposes get_config(dotted_path) and
// get_memory(dotted_path) with lazy traversal and null on missing." It
// replaces original_source's DataProxy/UserDataWrapper indirection classes
// with direct jsontree.Tree lookups — Go's text/template already walks
// nested maps natively, so there is no need for a proxy object to
// accumulate dotted paths on the config's behalf (see DESIGN.md).
type Profile struct {
	config *jsontree.Tree // template agent_config deep-merged under per-agent agent_config
	memory *jsontree.Tree // agent's memory_data, unmerged — memory is never templated

	configDirty bool
	memoryDirty bool
}

// NewProfile deep-merges templateConfig under agentConfig (per-agent wins,
// spec.md §4.3) and runs the derived-fields hook once at attach time.
func NewProfile(agentConfig, templateConfig, memoryData *jsontree.Tree) *Profile {
	merged := jsontree.MergeTrees(templateConfig, agentConfig)
	if memoryData == nil {
		memoryData = jsontree.New(map[string]interface{}{})
	}
	p := &Profile{config: merged, memory: memoryData}
	p.deriveFields()
	return p
}

// GetConfig resolves a dotted path against the merged config tree,
// returning def on any missing or non-traversable segment.
func (p *Profile) GetConfig(dottedPath string, def interface{}) interface{} {
	if v := p.config.Lookup(dottedPath); v != nil {
		return v
	}
	return def
}

// GetMemory resolves a dotted path against the agent's memory_data tree.
func (p *Profile) GetMemory(dottedPath string, def interface{}) interface{} {
	if v := p.memory.Lookup(dottedPath); v != nil {
		return v
	}
	return def
}

// SetConfig writes a per-session config override, marking the profile dirty
// for the detach-time flush.
func (p *Profile) SetConfig(dottedPath string, value interface{}) {
	p.config.Set(dottedPath, value)
	p.configDirty = true
}

// SetMemory writes a long-term-memory value directly (outside the
// chat-record compression pipeline's own writeback), marking the profile
// dirty for the detach-time flush.
func (p *Profile) SetMemory(dottedPath string, value interface{}) {
	p.memory.Set(dottedPath, value)
	p.memoryDirty = true
}

// ApplyCompressedMemory installs the chat-record subsystem's updated
// chat.long_term_memory mapping (spec.md §4.2.5 step 5) ahead of a
// detach-time flush.
func (p *Profile) ApplyCompressedMemory(longTermMemory map[string]interface{}) {
	if longTermMemory == nil {
		return
	}
	p.memory.Set("chat.long_term_memory", longTermMemory)
	p.memoryDirty = true
}

// Dirty reports whether config and/or memory have unflushed writes.
func (p *Profile) Dirty() (configDirty, memoryDirty bool) {
	return p.configDirty, p.memoryDirty
}

// MarkClean resets both dirty flags after a successful flush.
func (p *Profile) MarkClean() {
	p.configDirty = false
	p.memoryDirty = false
}

// ConfigTree returns the underlying merged config tree, for the
// detach-time storage flush.
func (p *Profile) ConfigTree() *jsontree.Tree { return p.config }

// MemoryTree returns the underlying memory tree, for the detach-time
// storage flush.
func (p *Profile) MemoryTree() *jsontree.Tree { return p.memory }

// GlobalVarValue is the shape injected under nodes.GlobalKeyUserProfile:
// {"config": <raw config tree>, "memory": <raw memory tree>}, walked
// directly by "{{.user.config...}}"/"{{.user.memory...}}" templates.
func (p *Profile) GlobalVarValue() map[string]interface{} {
	return map[string]interface{}{
		"config": p.config.Raw(),
		"memory": p.memory.Raw(),
	}
}

// derivation computes a config field from another, matching
// user_data.py's calculate_age_from_birth_date — generalized into a table
// keyed by dotted path rather than a single hardcoded field, since spec.md
// §3 gives birth-date age only as an illustrative example ("e.g.").
type derivation struct {
	sourcePath string
	targetPath string
	fn         func(source interface{}) (interface{}, bool)
}

var derivations = []derivation{
	{
		sourcePath: "profile.child.birth_date",
		targetPath: "profile.child.age",
		fn:         deriveAgeFromBirthDate,
	},
}

// deriveFields runs every registered derivation against the merged config,
// writing results back into the config tree (not marked dirty — derived
// fields are recomputed every attach, never persisted themselves).
func (p *Profile) deriveFields() {
	for _, d := range derivations {
		source := p.config.Lookup(d.sourcePath)
		if source == nil {
			continue
		}
		if value, ok := d.fn(source); ok {
			p.config.Set(d.targetPath, value)
		}
	}
}

// deriveAgeFromBirthDate mirrors user_data.py's
// calculate_age_from_birth_date: a "YYYY-MM-DD" string, floored at zero,
// with no special handling for malformed input beyond "not derivable."
func deriveAgeFromBirthDate(source interface{}) (interface{}, bool) {
	s, ok := source.(string)
	if !ok {
		return nil, false
	}
	birth, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, false
	}
	today := time.Now()
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age, true
}
