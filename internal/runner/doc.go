// Package runner adapts an external command to the orchestrator's Executor
// interface. How work is actually performed lives entirely in that command;
// loom only classifies its exit status.
package runner
