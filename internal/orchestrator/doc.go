// Package orchestrator bounds and sequences the workers that drain the
// work-item queue.
//
// Workers coordinate exclusively through the store's atomic conditional
// writes; no in-process lock arbitrates between them, so separate processes
// pointed at the same workspace cooperate the same way goroutines within one
// process do. The orchestrator owns the store handle and the workspace lock
// and releases both through the idempotent Cleanup.
package orchestrator
