package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkflowGraphConfig is the declarative node-graph definition loaded from
// YAML: one document per mode (normal / copilot), as named in spec §4.3.
type WorkflowGraphConfig struct {
	Nodes []WorkflowNodeConfig `yaml:"nodes"`
	Edges []WorkflowEdgeConfig `yaml:"edges"`
}

// WorkflowNodeConfig configures a single node instance within the graph.
type WorkflowNodeConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// WorkflowEdgeConfig wires one node's output parameter to another node's
// input parameter.
type WorkflowEdgeConfig struct {
	FromNode  string `yaml:"from_node"`
	FromParam string `yaml:"from_param"`
	ToNode    string `yaml:"to_node"`
	ToParam   string `yaml:"to_param"`
}

// LoadWorkflowGraph reads and parses a workflow graph YAML file from path.
func LoadWorkflowGraph(path string) (*WorkflowGraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow config %s: %w", path, err)
	}

	var cfg WorkflowGraphConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse workflow config %s: %w", path, err)
	}
	return &cfg, nil
}

// WorkflowConfigPath resolves the YAML file for a session mode, rooted at
// workspaceDir/workflows/{normal,copilot}.yaml.
func WorkflowConfigPath(workspaceDir string, copilotMode bool) string {
	if copilotMode {
		return workspaceDir + "/workflows/copilot.yaml"
	}
	return workspaceDir + "/workflows/normal.yaml"
}
