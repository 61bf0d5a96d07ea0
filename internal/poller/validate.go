// internal/poller/validate.go
package poller

import (
	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/registers"
)

// Validate enforces the sign and range invariants on a reading set.
// Nil entries pass through. Negative values clamp to zero (all measured
// quantities are physically non-negative); values outside their range
// are replaced with nil. Both cases log a warning. Idempotent.
func Validate(rs ReadingSet, ranges map[string]registers.Range, log logrus.FieldLogger) ReadingSet {
	out := make(ReadingSet, len(rs))

	for name, v := range rs {
		if v == nil {
			out[name] = nil
			continue
		}
		value := *v

		if value < 0 {
			log.Warnf("negative value for %s: %v, clamping to 0", name, value)
			zero := 0.0
			out[name] = &zero
			continue
		}

		r, ok := ranges[name]
		if !ok {
			r = registers.DefaultRange()
		}
		if value < r.Min || value > r.Max {
			log.Warnf("value for %s out of range: %v (range %v-%v)", name, value, r.Min, r.Max)
			out[name] = nil
			continue
		}

		out[name] = &value
	}

	return out
}
