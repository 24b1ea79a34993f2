package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/firefly-engineering/desklab/internal/runtime"
)

// Status represents the health status of a session
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusStopped   Status = "stopped"
	StatusMissing   Status = "missing"

	// DisplayDialTimeout bounds the display port probe.
	DisplayDialTimeout = 2 * time.Second
)

// CheckResult contains the results of health checks
type CheckResult struct {
	ContainerRunning bool
	DisplayReachable bool
	Image            string
	Uptime           string
	Status           Status
}

// CheckDisplay reports whether the session's published display port accepts
// TCP connections on the loopback address.
func CheckDisplay(ctx context.Context, port int) bool {
	d := net.Dialer{Timeout: DisplayDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// FormatUptime renders the time since startedAt. Unparseable values are
// returned as given, and an empty value is "unknown".
func FormatUptime(startedAt string, clock clockwork.Clock) string {
	if startedAt == "" || startedAt == "n/a" {
		return "unknown"
	}

	// Try common timestamp formats
	var t time.Time
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999 -0700 MST",
	}

	for _, format := range formats {
		if parsed, err := time.Parse(format, startedAt); err == nil {
			t = parsed
			break
		}
	}

	if t.IsZero() {
		return startedAt
	}

	return formatDuration(clock.Since(t))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// Check inspects the session container and, when it runs, probes its
// display port.
func Check(ctx context.Context, rt runtime.Runtime, containerName string, port int, clock clockwork.Clock) *CheckResult {
	result := &CheckResult{Status: StatusMissing, Uptime: "unknown"}

	info, err := rt.InspectContainer(ctx, containerName)
	if err != nil {
		return result
	}

	result.Image = info.Image
	result.ContainerRunning = info.Running
	if !info.Running {
		result.Status = StatusStopped
		return result
	}

	result.Uptime = FormatUptime(info.StartedAt, clock)
	result.DisplayReachable = CheckDisplay(ctx, port)
	if result.DisplayReachable {
		result.Status = StatusHealthy
	} else {
		result.Status = StatusUnhealthy
	}
	return result
}
