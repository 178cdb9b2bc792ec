package kernel

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/coal/gatetrap/internal/rules"
)

// BuildMessage renders an escalation notification: who got handled, why,
// at which escalation stage, plus a host snapshot for the operator.
func BuildMessage(n *rules.Notification, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "IP: %s\n", n.IP)
	if n.Hostname != "" {
		fmt.Fprintf(&b, "Hostname: %s\n", n.Hostname)
	}
	fmt.Fprintf(&b, "Reason: %s\n", n.Reason.Text())
	fmt.Fprintf(&b, "Handle: %s\n", n.Handle)
	fmt.Fprintf(&b, "System load: %s\n", loadAverage())
	fmt.Fprintf(&b, "Memory usage: %s\n", memoryUsage())
	fmt.Fprintf(&b, "Time: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Timezone: %s", now.Format("MST"))

	return b.String()
}

// loadAverage reads the 1/5/15 minute load from procfs, best effort.
func loadAverage() string {
	raw, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return "n/a"
	}
	fields := strings.Fields(string(raw))
	if len(fields) < 3 {
		return "n/a"
	}
	return strings.Join(fields[:3], " ")
}

func memoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("%.1f MB", float64(m.Alloc)/(1024*1024))
}
