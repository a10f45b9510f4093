package mirror

import (
	"errors"

	"essync/core/document"
	"essync/core/policy"
)

// ErrMalformedRecord is returned for records that cannot be projected.
var ErrMalformedRecord = errors.New("malformed record")

// ClusterResolver names the cluster a record is stored in.
type ClusterResolver interface {
	ClusterNameFor(rid document.RID) string
}

// Projector turns source records into search documents.
type Projector struct {
	policy   *policy.Configuration
	clusters ClusterResolver
}

// NewProjector creates a projector applying cfg.
func NewProjector(cfg *policy.Configuration, clusters ClusterResolver) *Projector {
	return &Projector{policy: cfg, clusters: clusters}
}

// Project builds the search document of rec, or returns nil when the policy skips it.
//
// The document always carries @rid and @class. Reference bags become ordered
// lists of identities and links become their identity, also inside lists and
// maps; every other value is copied as is.
func (p *Projector) Project(rec *document.Record) (map[string]any, error) {
	if rec == nil {
		return nil, ErrMalformedRecord
	}

	rid := rec.Identity()
	decision := p.policy.Decide(rec.ClassName(), p.clusters.ClusterNameFor(rid))
	if decision.Kind == policy.Skip {
		return nil, nil
	}

	doc := make(map[string]any, len(rec.FieldNames())+2)
	doc[document.FieldRID] = rid.String()
	doc[document.FieldClass] = rec.ClassName()

	for _, name := range rec.FieldNames() {
		if !decision.Selects(name) {
			continue
		}
		doc[name] = projectValue(rec.Field(name))
	}
	return doc, nil
}

// projectValue flattens references at any depth: links and persistent
// records become identity strings, bags become identity lists and embedded
// records become plain objects. The result is the same whether the value was
// set in memory or decoded from a stored body.
func projectValue(v any) any {
	switch t := v.(type) {
	case document.RID:
		return t.String()
	case *document.RidBag:
		rids := t.RIDs()
		out := make([]string, len(rids))
		for i, rid := range rids {
			out[i] = rid.String()
		}
		return out
	case *document.Record:
		if t == nil {
			return nil
		}
		if t.Identity().IsPersistent() {
			return t.Identity().String()
		}
		out := make(map[string]any, len(t.FieldNames())+1)
		out[document.FieldClass] = t.ClassName()
		for _, name := range t.FieldNames() {
			out[name] = projectValue(t.Field(name))
		}
		return out
	case []*document.Record:
		out := make([]any, len(t))
		for i, rec := range t {
			out[i] = projectValue(rec)
		}
		return out
	case []document.RID:
		out := make([]string, len(t))
		for i, rid := range t {
			out[i] = rid.String()
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = projectValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = projectValue(item)
		}
		return out
	default:
		return v
	}
}
