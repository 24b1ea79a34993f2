// Package port allocates host ports for display sessions.
//
// Allocation is probe-then-release: a candidate is bound and immediately
// closed, and the container runtime binds it later. Ports already held by
// registered sessions are passed in as taken and never probed, so a session
// whose container is stopped keeps its port.
package port
