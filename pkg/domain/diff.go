package domain

import "reflect"

// Diff lists the SharedState fields whose values differ between before and after.
// It is used to report what a node actually changed, as opposed to what it returned.
func Diff(before, after SharedState) []string {
	var changed []string
	check := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			changed = append(changed, name)
		}
	}

	check("question", before.Question, after.Question)
	check("format_hint", before.FormatHint, after.FormatHint)
	check("strategy", before.Strategy, after.Strategy)
	check("context", before.Context, after.Context)
	check("plan", before.Plan, after.Plan)
	check("sql_query", before.SQLQuery, after.SQLQuery)
	check("sql_result", before.SQLResult, after.SQLResult)
	check("final_answer", before.FinalAnswer, after.FinalAnswer)
	check("explanation", before.Explanation, after.Explanation)
	check("citations", before.Citations, after.Citations)
	check("errors", before.Errors, after.Errors)
	check("repair_count", before.RepairCount, after.RepairCount)

	return changed
}
