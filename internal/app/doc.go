/*
Package app wires every other internal package into one process, the
"app state container" spec.md §5 describes. State owns the two *sql.DB
handles, the writer queue, the settings resolver, the lock/unlock KEK
holder, and the event broker, grounded on the teacher's
_examples/cuemby-warren/pkg/manager.Manager: one struct built once by a
single constructor, holding every long-lived collaborator as a field,
handed by reference to whatever needs it rather than reached for through
a package-level global.

State itself runs nothing. cmd/tca/main.go calls New to build it, then
Start to launch the background loops (scheduler, event broker, metrics
collector) in spec.md §4.4's order, and Shutdown on signal to tear them
back down (metrics collector and NATS mirror first, then ops.Shutdown's
ordered teardown, then the event broker).
*/
package app
