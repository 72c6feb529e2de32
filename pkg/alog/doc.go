/*
Package alog provides structured logging for Aruna using zerolog.

The package wraps zerolog to give every component (recordstore, graph,
universe, txlog, txcontroller, authz, eventbus, hooks, requestlayer) a
component-tagged child logger with a configurable level and JSON or console
output.

	┌──────────────── LOGGING SYSTEM ────────────────┐
	│  Global Logger (zerolog.Logger, Init(cfg))      │
	│        │                                        │
	│        ├─ WithComponent("txcontroller")         │
	│        ├─ WithTxID(eventID)                     │
	│        ├─ WithNodeIdx(idx)                      │
	│        ├─ WithEventID(eventID)                  │
	│        └─ WithHookID(hookID)                    │
	└──────────────────────────────────────────────────┘

Library code never calls fmt.Println or the standard log package; every
message goes through a component logger so operators can filter by
component and correlate by transaction/event id.
*/
package alog
