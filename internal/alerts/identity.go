package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// IDFunc builds an alert id from the metric, severity and derivation time
type IDFunc func(metric snapshot.Metric, severity Severity, now time.Time) string

// Identity strategy names
const (
	IdentityTimestamp = "timestamp"
	IdentityCondition = "condition"
)

// TimestampID yields "<metric>-<severity>-<unix millis>". The same ongoing
// condition gets a fresh id on every derivation pass at a new instant.
func TimestampID(metric snapshot.Metric, severity Severity, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", metric, severity, now.UnixMilli())
}

// ConditionID yields "<metric>-<severity>", so an ongoing condition keeps
// one alert whose LastSeen advances on every pass.
func ConditionID(metric snapshot.Metric, severity Severity, _ time.Time) string {
	return fmt.Sprintf("%s-%s", metric, severity)
}

// IdentityFor returns the IDFunc for a strategy name
func IdentityFor(strategy string) (IDFunc, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", IdentityTimestamp:
		return TimestampID, nil
	case IdentityCondition:
		return ConditionID, nil
	default:
		return nil, fmt.Errorf("unknown alert identity strategy %q", strategy)
	}
}
