// Package health reports whether a desktop session is usable.
//
// Session health is represented by Status:
//
//	StatusHealthy   - Container running, display port accepting connections
//	StatusUnhealthy - Container running but display port unreachable
//	StatusStopped   - Container exists but is not running
//	StatusMissing   - No container for the session
//
//	result := health.Check(ctx, rt, "desklab-c1", 6000, clock)
//	// result.ContainerRunning, .DisplayReachable, .Uptime, .Status
package health
