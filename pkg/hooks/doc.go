/*
Package hooks is the HE layer: the registry of user-declared Hook side
effects, upstream-ancestor trigger matching against committed events, and a
bounded worker pool that executes internal graph mutations or external HTTP
callbacks per spec.md §4.7.

Grounded on the teacher's pkg/scheduler.Scheduler for the ticker/worker-pool
shape and zerolog field texture, and on original_source/src/hooks/hook_handler.rs
for the channel-driven HookMessage dispatch loop and the static-label
callback protection, translated from a single tokio task into a bounded Go
worker pool draining a buffered channel.
*/
package hooks
