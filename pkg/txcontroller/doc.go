/*
Package txcontroller is the TC layer: serializes every write through a
single raft.Raft instance and applies committed entries to GS/UI inside one
RS write transaction per entry. Grounded on the teacher's pkg/manager:
WarrenFSM.Apply/Snapshot/Restore for the FSM shape, and Manager.Bootstrap /
Manager.Apply for the raft wiring and submission pipeline.

WriteRequest replaces the teacher's string-switched Command.Op with a
registered, typed interface. A terminal outcome (success or handler error)
is recorded per event id in the tx_outcome keyspace so a replayed or
re-delivered log entry short-circuits instead of re-running a handler that
already committed or already failed.
*/
package txcontroller
