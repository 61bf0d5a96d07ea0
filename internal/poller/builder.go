// internal/poller/builder.go
package poller

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/config"
	"github.com/sseevri/substation-monitor/internal/registers"
	"github.com/sseevri/substation-monitor/internal/transport"
)

// Build opens the serial session and constructs the poll engine from
// configuration. The returned closer releases the serial handle.
func Build(cfg *config.Config, log logrus.FieldLogger) (*Poller, func() error, error) {
	m := cfg.Monitor

	sess, err := transport.Open(transport.Config{
		Port:           m.Serial.Port,
		BaudRate:       m.Serial.BaudRate,
		DataBits:       m.Serial.DataBits,
		Parity:         m.Serial.Parity,
		StopBits:       m.Serial.StopBits,
		Timeout:        time.Duration(m.Serial.TimeoutMs) * time.Millisecond,
		OpenRetries:    m.Serial.OpenRetries,
		OpenRetryDelay: time.Duration(m.Serial.OpenRetryDelayMs) * time.Millisecond,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	descs, ranges := Registers(cfg)

	meters := make([]Meter, 0, len(m.Meters))
	for _, mt := range m.Meters {
		meters = append(meters, Meter{
			ID:             mt.ID,
			Name:           mt.Name,
			PowerFailLabel: mt.PowerFailLabel,
		})
	}

	p, err := New(Config{
		Meters:          meters,
		Interval:        time.Duration(m.Poll.IntervalMs) * time.Millisecond,
		MaxRetries:      m.Poll.MaxRetries,
		InterFrameDelay: time.Duration(m.Poll.InterFrameDelayMs) * time.Millisecond,
		Aggregates:      m.Poll.Aggregates,
	}, sess, descs, ranges, log)
	if err != nil {
		_ = sess.Close()
		return nil, nil, err
	}

	return p, sess.Close, nil
}

// Registers resolves the register map and ranges: configured overrides
// when present, the built-in DMF layout otherwise. Configured ranges are
// merged over the defaults. Assumes the config has passed Validate.
func Registers(cfg *config.Config) ([]registers.Descriptor, map[string]registers.Range) {
	m := cfg.Monitor

	descs := registers.Default()
	if len(m.Registers) > 0 {
		descs = make([]registers.Descriptor, 0, len(m.Registers))
		for _, r := range m.Registers {
			t, err := registers.ParseType(r.Type)
			if err != nil {
				continue // rejected by Validate already
			}
			descs = append(descs, registers.Descriptor{
				Name:        r.Name,
				Type:        t,
				Address:     r.Address,
				WordSwapped: r.WordSwapped,
			})
		}
	}

	ranges := registers.DefaultRanges()
	for name, r := range m.Ranges {
		max := math.Inf(1)
		if r.Max != nil {
			max = *r.Max
		}
		ranges[name] = registers.Range{Min: r.Min, Max: max}
	}

	return descs, ranges
}
