// internal/poller/status.go
package poller

// StatusOK is the label for an unremarkable record.
const StatusOK = "OK"

// DefaultAggregates are the quantities whose joint zero reading, while
// the link is healthy, means the metered supply is absent.
var DefaultAggregates = []string{"Watts Total", "Current Total", "VA Total", "VAR Total"}

// LabelPolicy derives the status label for one meter's record.
type LabelPolicy func(m Meter, rs ReadingSet, comm CommStatus) string

// SupplyAbsentPolicy labels a record with the meter's own supply-absent
// wording when every aggregate quantity is present and exactly zero and
// communication succeeded. Everything else is StatusOK.
func SupplyAbsentPolicy(aggregates []string) LabelPolicy {
	if len(aggregates) == 0 {
		aggregates = DefaultAggregates
	}

	return func(m Meter, rs ReadingSet, comm CommStatus) string {
		if comm != CommOK {
			return StatusOK
		}
		for _, name := range aggregates {
			v, ok := rs[name]
			if !ok || v == nil || *v != 0 {
				return StatusOK
			}
		}
		if m.PowerFailLabel != "" {
			return m.PowerFailLabel
		}
		return "POWER_FAIL"
	}
}
