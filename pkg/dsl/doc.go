/*
Package dsl provides a fluent builder for workflow graphs.

Nodes are declared with a function and either an unconditional edge or a routing
function plus the closed set of targets it may return. Build checks every edge and
target against the declared nodes, so a misnamed node is caught when the graph is
constructed rather than in the middle of a run.

Example usage:

	b := dsl.New()

	b.Add("classify").
		Do(classify).
		Branch(byLabel, "lookup", "answer")

	b.Add("lookup").
		Do(lookup).
		Go("answer")

	b.Add("answer").
		Do(answer).
		Terminal()

	graph, err := b.Entry("classify").Build()
*/
package dsl
