package featureflags

import (
	"os"
	"strings"
)

// Known flags
const (
	// DemoTraffic drives synthetic clicks/signups against existing links
	// in non-production environments
	DemoTraffic = "DEMO_TRAFFIC"
	// Reconcile controls the counter reconciliation worker (on by default
	// via config; this flag force-disables it)
	ReconcileDisabled = "RECONCILE_DISABLED"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
