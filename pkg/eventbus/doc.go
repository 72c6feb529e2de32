/*
Package eventbus is the EB layer: it tails the transaction log, turns each
committed event into a typed EventMessage, and delivers it to durable
StreamConsumer cursors with at-least-once semantics (spec.md §4.6).

Grounded on the teacher's pkg/events.Broker: the same non-blocking,
buffered-channel fan-out to live subscribers (Subscribe/Unsubscribe/Publish),
generalized from a single in-memory broadcast — which silently drops a
message when a subscriber's buffer is full — to durable, resumable,
single-in-flight-per-consumer delivery backed by recordstore, since spec.md
§4.6 requires redelivery rather than drop. No message-broker client library
appears anywhere in the example corpus (the original Rust service's NATS
usage has no Go-ecosystem analog in the retrieved pack), so the transport
stays in-process, matching the teacher's own scope.
*/
package eventbus
