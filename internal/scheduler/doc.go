// Package scheduler fires reminders at their due time.
//
// A single worker goroutine owns a min-heap of pending notifications keyed
// by local ID. Each iteration reconciles remote state (gated by the sync
// coordinator), samples the earliest rows from the local store, then drains
// and delivers everything due within the tolerance window before sleeping
// one poll interval. Delivered notifications are deleted locally and, best
// effort, remotely; a failed owner delete is retried once through the
// privileged endpoint when the user is an administrator.
//
// The queue is not persisted. It is rebuilt from the store and the remote
// service on every start.
package scheduler
