package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"essync/core/document"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"
)

var (
	selectPattern = regexp.MustCompile(`(?is)^\s*select\s+(count\(\s*\*\s*\)\s+)?from\s+(\S+)(?:\s+where\s+(.+?))?(?:\s+limit\s+(\d+))?\s*;?\s*$`)
	loadPattern   = regexp.MustCompile(`(?i)^\s*load\s+record\s+(#?-?\d+:-?\d+)\s*;?\s*$`)
)

// ExecuteCommand runs a query command and returns its result.
//
// Supported forms:
//
//	SELECT [COUNT(*)] FROM <Class | CLUSTER:name | #c:p> [WHERE <expr>] [LIMIT n]
//	LOAD RECORD #c:p
//
// SELECT returns an Iterator over the matching records, or an int64 for COUNT(*).
// LOAD RECORD returns the *document.Record. WHERE clauses are expr-lang
// expressions evaluated against the record fields plus @rid and @class.
func (d *Database) ExecuteCommand(ctx context.Context, command string) (any, error) {
	if m := loadPattern.FindStringSubmatch(command); m != nil {
		rid, err := document.ParseRID(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		return d.Load(ctx, rid)
	}

	m := selectPattern.FindStringSubmatch(command)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}
	count := m[1] != ""
	target, where, limitText := m[2], strings.TrimSpace(m[3]), m[4]

	var program *vm.Program
	if where != "" {
		p, err := expr.Compile(where, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		program = p
	}

	limit := -1
	if limitText != "" {
		n, err := strconv.Atoi(limitText)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		limit = n
	}

	it, err := d.target(ctx, target)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var matched []*document.Record
	var total int64
	for it.Next() {
		if limit >= 0 && total >= int64(limit) {
			break
		}
		rec, err := it.Record()
		if err != nil {
			d.logger.Warn("Skipping unreadable record in query", zap.Error(err))
			continue
		}
		if program != nil {
			ok, err := expr.Run(program, commandEnv(rec))
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate condition on %s: %w", rec.Identity(), err)
			}
			if b, _ := ok.(bool); !b {
				continue
			}
		}
		total++
		if !count {
			matched = append(matched, rec)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	if count {
		return total, nil
	}
	return NewSliceIterator(matched...), nil
}

func (d *Database) target(ctx context.Context, target string) (Iterator, error) {
	if strings.HasPrefix(target, "#") {
		rid, err := document.ParseRID(target)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		rec, err := d.Load(ctx, rid)
		if err != nil {
			return nil, err
		}
		return NewSliceIterator(rec), nil
	}
	if len(target) > len("cluster:") && strings.EqualFold(target[:len("cluster:")], "cluster:") {
		return d.BrowseCluster(ctx, target[len("cluster:"):])
	}
	return d.BrowseClass(ctx, target)
}

func commandEnv(rec *document.Record) map[string]any {
	env := make(map[string]any, len(rec.FieldNames())+2)
	for name, value := range rec.Fields() {
		env[name] = envValue(value)
	}
	env[document.FieldRID] = rec.Identity().String()
	env[document.FieldClass] = rec.ClassName()
	return env
}

func envValue(v any) any {
	switch t := v.(type) {
	case document.RID:
		return t.String()
	case *document.Record:
		if t.Identity().IsPersistent() {
			return t.Identity().String()
		}
		return commandEnv(t)
	case *document.RidBag:
		out := make([]any, 0, t.Len())
		for _, rid := range t.RIDs() {
			out = append(out, rid.String())
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = envValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = envValue(e)
		}
		return out
	default:
		return v
	}
}
