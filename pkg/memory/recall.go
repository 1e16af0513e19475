package memory

import "context"

// Recall adapts a VectorStore into the small, consumer-defined interface
// the agent node expects for its optional "## Related memory" system-prompt
// section (pkg/workflow/nodes.SemanticRecall), so the agent node never needs
// to import chromem-go or VectorStore's richer query surface directly.
type Recall struct {
	store *VectorStore
}

// NewRecall wraps store for use as a workflow node's semantic-recall handle.
func NewRecall(store *VectorStore) *Recall {
	return &Recall{store: store}
}

// Search returns formatted, human-readable memory snippets relevant to
// query, across both the conversation and knowledge collections. This is
// strictly additive to chat.long_term_memory: it never replaces the turn
// history a Record projects, only supplements the system prompt with older
// material that fell outside the token-budgeted window.
func (r *Recall) Search(ctx context.Context, query string, limit int) ([]string, error) {
	results, err := r.store.Search(ctx, query, limit, "all")
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(results))
	for _, res := range results {
		if res.Source == "knowledge" {
			out = append(out, formatProvenance(res)+" "+res.Content)
			continue
		}
		out = append(out, "["+formatDate(res.Timestamp)+"] "+res.Content)
	}
	return out, nil
}
