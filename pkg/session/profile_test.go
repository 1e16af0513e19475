package session

import (
	"testing"

	"github.com/solace-ai/agentserver/pkg/jsontree"
)

func TestNewProfileMergesTemplateUnderAgentConfig(t *testing.T) {
	template := jsontree.New(map[string]interface{}{
		"profile": map[string]interface{}{
			"character": map[string]interface{}{"system_prompt": "default prompt"},
		},
	})
	agent := jsontree.New(map[string]interface{}{
		"profile": map[string]interface{}{
			"character": map[string]interface{}{"system_prompt": "custom prompt"},
		},
	})

	p := NewProfile(agent, template, nil)

	got := p.GetConfig("profile.character.system_prompt", "")
	if got != "custom prompt" {
		t.Fatalf("GetConfig = %v, want per-agent override to win", got)
	}
}

func TestNewProfileFallsBackToTemplateWhenAgentOmitsKey(t *testing.T) {
	template := jsontree.New(map[string]interface{}{
		"profile": map[string]interface{}{"voice": "alloy"},
	})
	agent := jsontree.New(map[string]interface{}{})

	p := NewProfile(agent, template, nil)

	if got := p.GetConfig("profile.voice", ""); got != "alloy" {
		t.Fatalf("GetConfig = %v, want template default to survive merge", got)
	}
}

func TestGetConfigReturnsDefaultOnMissingPath(t *testing.T) {
	p := NewProfile(jsontree.New(map[string]interface{}{}), nil, nil)

	if got := p.GetConfig("nowhere.at.all", "fallback"); got != "fallback" {
		t.Fatalf("GetConfig = %v, want fallback default", got)
	}
}

func TestGetMemoryReadsAgentMemoryData(t *testing.T) {
	memory := jsontree.New(map[string]interface{}{
		"chat": map[string]interface{}{
			"long_term_memory": map[string]interface{}{"likes": []interface{}{"astronomy"}},
		},
	})
	p := NewProfile(jsontree.New(map[string]interface{}{}), nil, memory)

	got := p.GetMemory("chat.long_term_memory", nil)
	if got == nil {
		t.Fatalf("GetMemory = nil, want the seeded long_term_memory map")
	}
}

func TestSetConfigMarksProfileDirty(t *testing.T) {
	p := NewProfile(jsontree.New(map[string]interface{}{}), nil, nil)

	configDirty, memoryDirty := p.Dirty()
	if configDirty || memoryDirty {
		t.Fatalf("a freshly-attached profile must start clean")
	}

	p.SetConfig("profile.nickname", "Nova")
	configDirty, memoryDirty = p.Dirty()
	if !configDirty || memoryDirty {
		t.Fatalf("SetConfig should mark config dirty only, got config=%v memory=%v", configDirty, memoryDirty)
	}
}

func TestApplyCompressedMemoryMarksMemoryDirty(t *testing.T) {
	p := NewProfile(jsontree.New(map[string]interface{}{}), nil, nil)

	p.ApplyCompressedMemory(map[string]interface{}{"facts": []interface{}{"likes tea"}})

	_, memoryDirty := p.Dirty()
	if !memoryDirty {
		t.Fatalf("ApplyCompressedMemory must mark memory dirty for the detach-time flush")
	}
	got := p.GetMemory("chat.long_term_memory", nil)
	if got == nil {
		t.Fatalf("GetMemory after ApplyCompressedMemory = nil, want the written mapping")
	}
}

func TestDeriveAgeFromBirthDateComputesWholeYears(t *testing.T) {
	agent := jsontree.New(map[string]interface{}{
		"profile": map[string]interface{}{
			"child": map[string]interface{}{"birth_date": "2000-01-01"},
		},
	})

	p := NewProfile(agent, nil, nil)

	age, ok := p.GetConfig("profile.child.age", nil).(int)
	if !ok {
		t.Fatalf("profile.child.age was not derived onto the config tree")
	}
	if age < 24 {
		t.Fatalf("derived age = %d, want at least 24 for a 2000-01-01 birth date", age)
	}
}

func TestDeriveAgeFromBirthDateSkipsMalformedInput(t *testing.T) {
	agent := jsontree.New(map[string]interface{}{
		"profile": map[string]interface{}{
			"child": map[string]interface{}{"birth_date": "not-a-date"},
		},
	})

	p := NewProfile(agent, nil, nil)

	if got := p.GetConfig("profile.child.age", "absent"); got != "absent" {
		t.Fatalf("GetConfig = %v, want malformed birth_date to leave age undetermined", got)
	}
}

func TestGlobalVarValueExposesConfigAndMemory(t *testing.T) {
	agent := jsontree.New(map[string]interface{}{"profile": map[string]interface{}{"voice": "alloy"}})
	memory := jsontree.New(map[string]interface{}{"chat": map[string]interface{}{"long_term_memory": map[string]interface{}{}}})

	p := NewProfile(agent, nil, memory)
	v := p.GlobalVarValue()

	if _, ok := v["config"]; !ok {
		t.Fatalf("GlobalVarValue missing %q key", "config")
	}
	if _, ok := v["memory"]; !ok {
		t.Fatalf("GlobalVarValue missing %q key", "memory")
	}
}
