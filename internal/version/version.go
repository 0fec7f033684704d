// Package version holds build metadata for the churnwatcher binary.
package version

// Stamped via -ldflags at release time, e.g.
// -X churn-risk-alerts/internal/version.Version=1.2.0
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
