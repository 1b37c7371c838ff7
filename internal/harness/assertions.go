package harness

import "fmt"

// evaluateAssertions checks every scenario assertion against the
// captured result, accumulating failures instead of stopping at the
// first one.
func evaluateAssertions(scenario *Scenario, result *Result) {
	for i, a := range scenario.Assertions {
		switch a.Type {
		case AssertTraceContains:
			assertTraceContains(i, &a, result)
		case AssertTraceOrder:
			assertTraceOrder(i, &a, result)
		case AssertTraceCount:
			assertTraceCount(i, &a, result)
		case AssertFinalResults:
			assertFinalResults(i, &a, result)
		}
	}
}

func assertTraceContains(index int, a *Assertion, result *Result) {
	for _, e := range result.Trace {
		if e.Op == a.Op && e.Record == a.Record {
			return
		}
	}
	result.AddError("assertions[%d]: trace_contains: no %s event for %s in %s",
		index, a.Op, a.Record, describeTrace(result.Trace))
}

// assertTraceOrder checks relative order: the expected events must
// appear as a subsequence of the trace.
func assertTraceOrder(index int, a *Assertion, result *Result) {
	next := 0
	for _, e := range result.Trace {
		if next == len(a.Events) {
			break
		}
		want := a.Events[next]
		if e.Op == want.Op && e.Record == want.Record {
			next++
		}
	}
	if next != len(a.Events) {
		want := a.Events[next]
		result.AddError("assertions[%d]: trace_order: missing %s %s (matched %d of %d) in %s",
			index, want.Op, want.Record, next, len(a.Events), describeTrace(result.Trace))
	}
}

func assertTraceCount(index int, a *Assertion, result *Result) {
	count := 0
	for _, e := range result.Trace {
		if e.Op != a.Op {
			continue
		}
		if a.Record != "" && e.Record != a.Record {
			continue
		}
		count++
	}
	if count != a.Count {
		result.AddError("assertions[%d]: trace_count: expected %d %s events, got %d",
			index, a.Count, a.Op, count)
	}
}

func assertFinalResults(index int, a *Assertion, result *Result) {
	if len(result.Final) != len(a.Results) {
		result.AddError("assertions[%d]: final_results: expected %v, got %v",
			index, a.Results, result.Final)
		return
	}
	for i := range a.Results {
		if result.Final[i] != a.Results[i] {
			result.AddError("assertions[%d]: final_results: expected %v, got %v",
				index, a.Results, result.Final)
			return
		}
	}
}

func describeTrace(trace []TraceEvent) string {
	events := make([]string, len(trace))
	for i, e := range trace {
		events[i] = fmt.Sprintf("%s(%s)", e.Op, e.Record)
	}
	return fmt.Sprintf("%v", events)
}
