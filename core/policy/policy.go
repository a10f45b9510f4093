package policy

// DecisionKind tells the projector whether and how a record is mirrored.
type DecisionKind int

const (
	// Skip means the record is not mirrored.
	Skip DecisionKind = iota
	// SyncAll mirrors every field of the record.
	SyncAll
	// SyncFields mirrors only the named fields.
	SyncFields
)

func (k DecisionKind) String() string {
	switch k {
	case Skip:
		return "skip"
	case SyncAll:
		return "sync_all"
	case SyncFields:
		return "sync_fields"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Configuration.Decide.
type Decision struct {
	Kind   DecisionKind
	fields map[string]struct{}
}

// Selects reports whether the decision mirrors the named field.
func (d Decision) Selects(field string) bool {
	switch d.Kind {
	case SyncAll:
		return true
	case SyncFields:
		_, ok := d.fields[field]
		return ok
	default:
		return false
	}
}

// Fields returns the selected field names for SyncFields, nil otherwise.
func (d Decision) Fields() []string {
	if d.Kind != SyncFields {
		return nil
	}
	out := make([]string, 0, len(d.fields))
	for f := range d.fields {
		out = append(out, f)
	}
	return out
}

// Configuration is the immutable sync policy of one source database.
// It is safe for concurrent use.
type Configuration struct {
	includeClasses  map[string]map[string]struct{}
	includeClusters map[string]map[string]struct{}
	excludeClasses  map[string]struct{}
	excludeClusters map[string]struct{}
}

// NewConfiguration builds a policy. An include entry with no fields selects every field.
func NewConfiguration(includeClasses, includeClusters map[string][]string, excludeClasses, excludeClusters []string) *Configuration {
	return &Configuration{
		includeClasses:  toFieldSets(includeClasses),
		includeClusters: toFieldSets(includeClusters),
		excludeClasses:  toSet(excludeClasses),
		excludeClusters: toSet(excludeClusters),
	}
}

// Decide evaluates the policy for a record of the given class stored in the
// given cluster. The first matching rule wins:
//
//  1. no class: Skip
//  2. class excluded: Skip
//  3. cluster name listed in the excluded classes: Skip
//  4. class included: its fields
//  5. cluster included: its fields
//  6. otherwise: SyncAll
//
// Rule 3 compares the cluster name against the class exclusions, not the
// cluster exclusions; excluded clusters are parsed but never consulted.
func (c *Configuration) Decide(class, cluster string) Decision {
	if class == "" {
		return Decision{Kind: Skip}
	}
	if _, ok := c.excludeClasses[class]; ok {
		return Decision{Kind: Skip}
	}
	if _, ok := c.excludeClasses[cluster]; ok {
		return Decision{Kind: Skip}
	}

	if len(c.includeClasses) > 0 {
		if fields, ok := c.includeClasses[class]; ok {
			return fieldsDecision(fields)
		}
	}
	if len(c.includeClusters) > 0 {
		if fields, ok := c.includeClusters[cluster]; ok {
			return fieldsDecision(fields)
		}
	}
	return Decision{Kind: SyncAll}
}

// ExcludedClusters returns the cluster exclusions as configured.
func (c *Configuration) ExcludedClusters() []string {
	out := make([]string, 0, len(c.excludeClusters))
	for name := range c.excludeClusters {
		out = append(out, name)
	}
	return out
}

func fieldsDecision(fields map[string]struct{}) Decision {
	if len(fields) == 0 {
		return Decision{Kind: SyncAll}
	}
	return Decision{Kind: SyncFields, fields: fields}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func toFieldSets(in map[string][]string) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(in))
	for name, fields := range in {
		out[name] = toSet(fields)
	}
	return out
}
