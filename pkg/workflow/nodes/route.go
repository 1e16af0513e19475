package nodes

import (
	"strings"

	"github.com/solace-ai/agentserver/pkg/workflow"
)

// RouteNode selects the destination agent persona/specialist context for
// the current turn (spec.md §4.1: "route (request): selects the destination
// agent persona"). The distilled spec never disallows multi-persona
// routing, it simply doesn't name it in detail, so this is kept minimal: a
// configured list of specialists matched by keyword against the turn's
// text, falling back to a single default route. Supplemented from
// original_source's specialist-routing concept (pkg/specialists in the
// teacher pack), generalized rather than reproduced verbatim.
type RouteNode struct {
	name               string
	defaultSpecialist  string
	specialistKeywords map[string][]string // specialist name -> trigger keywords
}

// NewRouteNode is a workflow.NodeFactory for the "route" type.
func NewRouteNode(name string) workflow.Node {
	return &RouteNode{name: name}
}

func (n *RouteNode) Name() string { return n.name }

func (n *RouteNode) Spec() workflow.NodeSpec {
	return workflow.NodeSpec{
		Inputs: []workflow.ParamSpec{
			{Name: "user_text"},
		},
		Outputs: []workflow.ParamSpec{
			{Name: "user_text"},
		},
		Config: []workflow.ParamSpec{
			{Name: "default_specialist"},
			{Name: "specialists"},
		},
		Mode: workflow.RequestMode,
	}
}

func (n *RouteNode) Init(cfg map[string]interface{}) error {
	n.defaultSpecialist = stringConfig(cfg, "default_specialist", "")
	n.specialistKeywords = map[string][]string{}

	raw, ok := cfg["specialists"].([]interface{})
	if !ok {
		return nil
	}
	for _, entry := range raw {
		spec, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := spec["name"].(string)
		if name == "" {
			continue
		}
		kwRaw, _ := spec["keywords"].([]interface{})
		var keywords []string
		for _, kw := range kwRaw {
			if s, ok := kw.(string); ok {
				keywords = append(keywords, s)
			}
		}
		n.specialistKeywords[name] = keywords
	}
	return nil
}

// Invoke picks a specialist whose keywords match the text, or the configured
// default, and returns the turn unmodified plus a "specialist" field.
// Specialists are scanned in map order, so which one wins when several
// match is not defined.
func (n *RouteNode) Invoke(ctx *workflow.RunContext, input map[string]interface{}) (map[string]interface{}, error) {
	text, _ := input["text"].(string)

	specialist := n.defaultSpecialist
	for name, keywords := range n.specialistKeywords {
		if containsAny(text, keywords) {
			specialist = name
			break
		}
	}

	out := make(map[string]interface{}, len(input)+1)
	for k, v := range input {
		out[k] = v
	}
	out["specialist"] = specialist
	return out, nil
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
