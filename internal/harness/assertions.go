package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/storysync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch {
			case event.isAction():
				fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.ActionURI, event.Args)
			default:
				fmt.Fprintf(&buf, "  [%d]   -> %s %v\n", event.Seq, event.OutputCase, event.Result)
			}
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains an action matching
// the specified name and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.isAction() && event.ActionURI == assertion.Action {
			if matchArgs(eventFields(event), assertion.Args) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// eventFields merges args and result so notices, which only carry a
// result, can be matched the same way as invocations.
func eventFields(event TraceEvent) map[string]any {
	fields := make(map[string]any, len(event.Args)+len(event.Result))
	for k, v := range event.Result {
		fields[k] = v
	}
	for k, v := range event.Args {
		fields[k] = v
	}
	return fields
}

// assertTraceOrder checks that actions appear in the given order.
// Matching is greedy: each expected action is the first occurrence after
// the previous match, so repeated names are allowed. Actions don't need to
// be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Actions {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.isAction() && event.ActionURI == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("no %s after the previous match", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.isAction() && event.ActionURI == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// tableRows reads a table as field maps.
func tableRows(ctx context.Context, st *store.Store, table string) ([]map[string]any, error) {
	switch table {
	case TablePending:
		entries, err := st.ListPending(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(entries))
		for i, p := range entries {
			rows[i] = map[string]any{
				"local_id":    p.LocalID,
				"seq":         p.Seq,
				"description": p.Description,
				"synced":      p.Synced,
				"has_photo":   p.Photo != nil,
				"lat":         deref(p.Lat),
				"lon":         deref(p.Lon),
			}
		}
		return rows, nil
	case TableStories:
		records, err := st.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(records))
		for i, r := range records {
			rows[i] = map[string]any{
				"id":          r.ID,
				"name":        r.Name,
				"description": r.Description,
				"photo_url":   r.PhotoURL,
				"lat":         deref(r.Lat),
				"lon":         deref(r.Lon),
			}
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// selectRows returns the rows whose fields equal every where value.
func selectRows(rows []map[string]any, where map[string]any) []map[string]any {
	var out []map[string]any
	for _, row := range rows {
		match := true
		for key, want := range where {
			got, ok := row[key]
			if !ok || !stateValuesEqual(want, got) {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out
}

// assertFinalState checks that exactly one row matches Where and that it
// has the expected values (subset semantics).
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := tableRows(ctx, st, assertion.Table)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("read table %s", assertion.Table),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}

	matched := selectRows(rows, assertion.Where)
	whereDesc := formatWhereClause(assertion.Where)
	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(matched)),
		}
	}

	actualRow := matched[0]
	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %s rows", key, assertion.Table),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// assertTableCount checks the number of rows matching Where.
func assertTableCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := tableRows(ctx, st, assertion.Table)
	if err != nil {
		return &AssertionError{
			Type:     AssertTableCount,
			Expected: fmt.Sprintf("read table %s", assertion.Table),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}

	if n := len(selectRows(rows, assertion.Where)); n != assertion.Count {
		return &AssertionError{
			Type:     AssertTableCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected YAML value with an actual value.
// Numbers compare by value whatever their Go type; YAML decodes whole
// numbers as int while the store reports int64 and float64.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if e, ok := toFloat(expected); ok {
		a, ok := toFloat(actual)
		return ok && e == a
	}

	return reflect.DeepEqual(expected, actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual map[string]any, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !stateValuesEqual(expectedVal, actualVal) {
			return false
		}
	}
	return true
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertTableCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			} else {
				err = assertTableCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
