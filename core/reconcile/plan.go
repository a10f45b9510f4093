package reconcile

import (
	"context"
	"fmt"
)

// ReconcileWithPlan compares spec and plans the actions opts asks for.
// It does not execute them; use ApplyPlan for that.
func ReconcileWithPlan(ctx context.Context, spec *Spec, adapter Adapter, store *Store, opts Options) (*Plan, error) {
	cache, err := store.GetOrBuild(ctx, spec, adapter)
	if err != nil {
		return nil, err
	}

	results := resultsFromCache(cache)
	summary, actions := buildPlanFromResults(results, opts)
	return &Plan{
		Spec:    *spec,
		Results: results,
		Actions: actions,
		Summary: summary,
	}, nil
}

// ApplyPlan executes the actions of plan and invalidates its cache.
// Nothing runs unless opts.Confirmed is set and opts.DryRun is not.
func ApplyPlan(ctx context.Context, adapter Adapter, store *Store, plan *Plan, opts Options) (executed int, err error) {
	if !opts.Confirmed || opts.DryRun {
		return 0, nil
	}

	mutator, ok := adapter.(Mutator)
	if !ok {
		return 0, fmt.Errorf("adapter %s does not implement Mutator interface", adapter.Name())
	}
	defer store.Invalidate(&plan.Spec)

	var reindexKeys, deleteKeys []string
	for _, action := range plan.Actions {
		switch action.Type {
		case ActionReindex:
			reindexKeys = append(reindexKeys, action.Key)
		case ActionDeleteIndex:
			deleteKeys = append(deleteKeys, action.Key)
		}
	}

	if len(deleteKeys) > 0 {
		n, err := mutator.DeleteFromIndex(ctx, &plan.Spec, deleteKeys)
		executed += n
		if err != nil {
			return executed, fmt.Errorf("failed to delete stale documents: %w", err)
		}
	}
	if len(reindexKeys) > 0 {
		n, err := mutator.Reindex(ctx, &plan.Spec, reindexKeys)
		executed += n
		if err != nil {
			return executed, fmt.Errorf("failed to reindex records: %w", err)
		}
	}
	return executed, nil
}

// ReconcileAndApply plans and, when confirmed, applies.
func ReconcileAndApply(ctx context.Context, spec *Spec, adapter Adapter, store *Store, opts Options) (*Plan, int, error) {
	plan, err := ReconcileWithPlan(ctx, spec, adapter, store, opts)
	if err != nil {
		return nil, 0, err
	}
	executed, err := ApplyPlan(ctx, adapter, store, plan, opts)
	return plan, executed, err
}

func buildPlanFromResults(results []Result, opts Options) (PlanSummary, []Action) {
	var summary PlanSummary
	var actions []Action

	summary.TotalItems = len(results)
	for _, result := range results {
		switch result.Status() {
		case StatusInSync:
			summary.InSync++
		case StatusMissingIndex:
			summary.MissingIndex++
			if opts.DoReindex {
				actions = append(actions, Action{Type: ActionReindex, Key: result.ID, Reason: "not indexed"})
				summary.ReindexActions++
			}
		case StatusStaleIndex:
			summary.StaleIndex++
			if opts.DoPurge {
				actions = append(actions, Action{Type: ActionDeleteIndex, Key: result.ID, Reason: staleReason(result)})
				summary.PurgeActions++
			}
		}
	}
	return summary, actions
}

func staleReason(result Result) string {
	if !result.SourcePresent {
		return "missing in source"
	}
	return "excluded by policy"
}
