package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/dreamtheater/internal/ir"
)

// AssertionContext provides what assertions need beyond the result.
type AssertionContext struct {
	Ctx context.Context

	// WorldID names the game in save_roundtrip.
	WorldID string

	Scenario *Scenario
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string             // Assertion type for categorization
	Expected string             // Human-readable expected outcome
	Actual   string             // Human-readable actual outcome
	History  []ir.TriggerRecord // Full history for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.History) > 0 {
		fmt.Fprintf(&buf, "\nFull history:\n")
		for _, rec := range e.History {
			action := rec.RuleAction
			if action == "" {
				action = "(no match)"
			}
			fmt.Fprintf(&buf, "  [%d] %s: %s -> %s %s\n",
				rec.Seq, rec.Event, rec.SceneBefore, rec.SceneAfter, action)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure
// messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertFinalScene:
		return assertFinalScene(result, a)
	case AssertCounter:
		return assertCounter(result, a)
	case AssertMessages:
		return assertMessages(result, a)
	case AssertFinished:
		return assertFinished(result, a)
	case AssertBlocked:
		return assertBlocked(result, a)
	case AssertHistoryLength:
		return assertHistoryLength(result, a)
	case AssertTraceContains:
		return assertTraceContains(result.History, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.History, a)
	case AssertTraceCount:
		return assertTraceCount(result.History, a)
	case AssertNoDiagnostics:
		return assertNoDiagnostics(result.History)
	case AssertSaveRoundTrip:
		return assertSaveRoundTrip(result, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertFinalScene(result *Result, a Assertion) error {
	if result.Final.Scene != a.Scene {
		return &AssertionError{
			Type:     AssertFinalScene,
			Expected: fmt.Sprintf("scene %q", a.Scene),
			Actual:   fmt.Sprintf("scene %q", result.Final.Scene),
			History:  result.History,
		}
	}
	return nil
}

func assertCounter(result *Result, a Assertion) error {
	got := result.Final.Counters[a.Name]
	if got != *a.Value {
		return &AssertionError{
			Type:     AssertCounter,
			Expected: fmt.Sprintf("%s = %d", a.Name, *a.Value),
			Actual:   fmt.Sprintf("%s = %d", a.Name, got),
		}
	}
	return nil
}

func assertMessages(result *Result, a Assertion) error {
	msgs := result.Final.Messages
	if a.Messages != nil && !reflect.DeepEqual(normalizeStrings(a.Messages), normalizeStrings(msgs)) {
		return &AssertionError{
			Type:     AssertMessages,
			Expected: fmt.Sprintf("messages %q", a.Messages),
			Actual:   fmt.Sprintf("messages %q", msgs),
		}
	}
	if a.Contains != "" {
		for _, m := range msgs {
			if strings.Contains(m, a.Contains) {
				return nil
			}
		}
		return &AssertionError{
			Type:     AssertMessages,
			Expected: fmt.Sprintf("a message containing %q", a.Contains),
			Actual:   fmt.Sprintf("messages %q", msgs),
		}
	}
	return nil
}

func normalizeStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func assertFinished(result *Result, a Assertion) error {
	if result.Final.Finished != a.Label {
		expected := fmt.Sprintf("finished with %q", a.Label)
		if a.Label == "" {
			expected = "not finished"
		}
		return &AssertionError{
			Type:     AssertFinished,
			Expected: expected,
			Actual:   fmt.Sprintf("finished = %q", result.Final.Finished),
			History:  result.History,
		}
	}
	return nil
}

func assertBlocked(result *Result, a Assertion) error {
	if result.Final.Blocked != *a.Blocked {
		return &AssertionError{
			Type:     AssertBlocked,
			Expected: fmt.Sprintf("blocked = %t", *a.Blocked),
			Actual:   fmt.Sprintf("blocked = %t", result.Final.Blocked),
			History:  result.History,
		}
	}
	return nil
}

func assertHistoryLength(result *Result, a Assertion) error {
	if len(result.History) != *a.Count {
		return &AssertionError{
			Type:     AssertHistoryLength,
			Expected: fmt.Sprintf("%d records", *a.Count),
			Actual:   fmt.Sprintf("%d records", len(result.History)),
		}
	}
	return nil
}

// assertTraceContains checks that some record fired the action, for the
// given event if one is named.
func assertTraceContains(history []ir.TriggerRecord, a Assertion) error {
	for _, rec := range history {
		if rec.RuleAction == a.Action && (a.Event == "" || rec.Event == a.Event) {
			return nil
		}
	}

	expected := fmt.Sprintf("rule %s", a.Action)
	if a.Event != "" {
		expected += fmt.Sprintf(" fired by %s", a.Event)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in history",
		History:  history,
	}
}

// assertTraceOrder checks that the scenes were entered in the listed
// order. Other scenes may be entered in between.
func assertTraceOrder(history []ir.TriggerRecord, a Assertion) error {
	next := 0
	for _, rec := range history {
		if next == len(a.Scenes) {
			break
		}
		if rec.SceneAfter != rec.SceneBefore && rec.SceneAfter == a.Scenes[next] {
			next++
		}
	}
	if next < len(a.Scenes) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("scenes entered in order: %v", a.Scenes),
			Actual:   fmt.Sprintf("scene %q not entered after %v", a.Scenes[next], a.Scenes[:next]),
			History:  history,
		}
	}
	return nil
}

// assertTraceCount checks that the action fired exactly the specified
// number of times.
func assertTraceCount(history []ir.TriggerRecord, a Assertion) error {
	count := 0
	for _, rec := range history {
		if rec.RuleAction == a.Action {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			History:  history,
		}
	}
	return nil
}

func assertNoDiagnostics(history []ir.TriggerRecord) error {
	for _, rec := range history {
		if len(rec.Diagnostics) > 0 {
			return &AssertionError{
				Type:     AssertNoDiagnostics,
				Expected: "no dispatch diagnostics",
				Actual:   fmt.Sprintf("seq %d (%s): %s", rec.Seq, rec.Event, rec.Diagnostics[0]),
				History:  history,
			}
		}
	}
	return nil
}

func assertSaveRoundTrip(result *Result, actx *AssertionContext) error {
	ctx := context.Background()
	worldID := "scenario"
	if actx != nil {
		if actx.Ctx != nil {
			ctx = actx.Ctx
		}
		if actx.WorldID != "" {
			worldID = actx.WorldID
		}
	}

	saved, loaded, err := saveRoundTrip(ctx, worldID, result)
	if err != nil {
		return &AssertionError{
			Type:     AssertSaveRoundTrip,
			Expected: "save and load to succeed",
			Actual:   err.Error(),
		}
	}
	if !reflect.DeepEqual(saved, loaded) {
		return &AssertionError{
			Type:     AssertSaveRoundTrip,
			Expected: fmt.Sprintf("loaded game equal to saved game (%d records)", len(saved.History)),
			Actual:   fmt.Sprintf("loaded %d records at scene %q", len(loaded.History), loaded.State.Scene),
		}
	}
	return nil
}
