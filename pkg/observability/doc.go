/*
Package observability turns workflow lifecycle events into logs, Prometheus
metrics and OpenTelemetry traces.

Hooks from this package are plain domain.LifecycleHooks and can be combined
with domain.ComposeHooks before being handed to the agent.
*/
package observability
