package layer

import (
	"encoding/json"
	"time"
)

// Canonical layer names. Every deployment is expected to register a
// semantic provider; the remaining layers are optional.
const (
	// Episodic stores time-stamped events: what happened and when.
	Episodic = "episodic"

	// Semantic stores facts and general knowledge.
	Semantic = "semantic"

	// Procedural stores how-to knowledge: procedures, builds, workflows.
	Procedural = "procedural"

	// Prospective stores future intentions: tasks, goals, reminders.
	Prospective = "prospective"

	// Graph stores entity relationships and dependencies.
	Graph = "graph"
)

// Names returns the canonical layer names in their conventional order.
// The returned slice is a copy and may be modified by the caller.
func Names() []string {
	return []string{Episodic, Semantic, Procedural, Prospective, Graph}
}

// QueryContext carries the caller-supplied context for one recall query.
// All fields are optional; the zero value is a valid empty context.
type QueryContext struct {
	// SessionID identifies the agent session issuing the query.
	SessionID string `json:"session_id,omitempty"`

	// Phase is the agent's current working phase, e.g. "debugging",
	// "planning", "implementation". Phase influences depth selection and
	// layer applicability.
	Phase string `json:"phase,omitempty"`

	// Task is a short description of the agent's current task.
	Task string `json:"task,omitempty"`

	// Layers lists explicitly requested layers, overriding nothing but
	// signalling that the caller already knows which stores matter.
	Layers []string `json:"layers,omitempty"`

	// Extra holds additional context fields. Extra never participates in
	// cache key derivation.
	Extra map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy of the context.
func (q QueryContext) Clone() QueryContext {
	out := q
	if q.Layers != nil {
		out.Layers = make([]string, len(q.Layers))
		copy(out.Layers, q.Layers)
	}
	if q.Extra != nil {
		out.Extra = make(map[string]any, len(q.Extra))
		for k, v := range q.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Record is one result returned by a layer provider. Providers return
// records ordered by descending relevance.
type Record struct {
	// ID is the record's identifier within its layer.
	ID string `json:"id"`

	// Content is the recalled text.
	Content string `json:"content"`

	// Score is the layer's relevance estimate for this record, typically
	// in [0, 1] with higher values meaning better matches.
	Score float64 `json:"score"`

	// Metadata provides layer-specific context about the record.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the underlying memory was stored.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// String returns a human-readable representation of the Record.
func (r *Record) String() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// CloneRecords returns a deep copy of a record slice. A nil input yields
// nil; an empty input yields an empty, non-nil slice.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}
	return out
}

// ResultSet is the assembled output of one recall batch: the records each
// queried layer contributed, keyed by layer name. A layer that failed or
// had nothing to say maps to an empty slice, so the key set always reports
// which layers were actually consulted.
type ResultSet map[string][]Record

// Clone returns a deep copy of the result set.
func (rs ResultSet) Clone() ResultSet {
	if rs == nil {
		return nil
	}
	out := make(ResultSet, len(rs))
	for name, records := range rs {
		out[name] = CloneRecords(records)
	}
	return out
}

// Total returns the number of records across all layers.
func (rs ResultSet) Total() int {
	var n int
	for _, records := range rs {
		n += len(records)
	}
	return n
}
