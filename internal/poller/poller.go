// internal/poller/poller.go
package poller

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/registers"
)

// Bus abstracts the serial session the poller drives.
// The poller depends on transactions only, not on port handling.
type Bus interface {
	Reset() error
	Send(frame []byte) error
	Receive(n int) ([]byte, error)
	Reconnect() error
}

// Config is the immutable runtime config of the poll engine.
type Config struct {
	Meters   []Meter
	Interval time.Duration

	// MaxRetries is the attempt ceiling per batch.
	MaxRetries int

	// InterFrameDelay is the fixed wait after a request, allowing the
	// slave its turnaround time on the half-duplex bus.
	InterFrameDelay time.Duration

	// Aggregates are the quantities whose joint zero reading, with a
	// healthy link, means the supply is absent.
	Aggregates []string
}

// Poller runs strictly sequential read transactions over one shared bus.
type Poller struct {
	cfg     Config
	bus     Bus
	descs   []registers.Descriptor
	batches []registers.Batch
	ranges  map[string]registers.Range
	label   LabelPolicy
	log     logrus.FieldLogger
}

// New creates a poll engine over a shared register map.
// Descriptors are sorted by address and planned into batches once.
func New(cfg Config, bus Bus, descs []registers.Descriptor, ranges map[string]registers.Range, log logrus.FieldLogger) (*Poller, error) {
	if len(cfg.Meters) == 0 {
		return nil, errors.New("poller: at least one meter required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.MaxRetries < 1 {
		return nil, errors.New("poller: max retries must be >= 1")
	}
	if len(descs) == 0 {
		return nil, errors.New("poller: register map is empty")
	}

	sorted := registers.SortByAddress(descs)

	return &Poller{
		cfg:     cfg,
		bus:     bus,
		descs:   sorted,
		batches: registers.Plan(sorted),
		ranges:  ranges,
		label:   SupplyAbsentPolicy(cfg.Aggregates),
		log:     log,
	}, nil
}

// PollOnce performs one pass over all configured meters, in sequence,
// and returns one record per meter. A transport failure aborts only the
// affected meter's pass and triggers a bus reconnect.
func (p *Poller) PollOnce() []OutputRecord {
	now := time.Now()
	records := make([]OutputRecord, 0, len(p.cfg.Meters))

	for _, m := range p.cfg.Meters {
		readings, comm, err := p.ReadMeter(m.ID)
		if err != nil {
			p.log.WithError(err).WithField("meter", m.ID).Error("transport failure, reconnecting bus")
			if rerr := p.bus.Reconnect(); rerr != nil {
				p.log.WithError(rerr).Error("reconnect failed, will retry next cycle")
			}
			readings = p.emptyReadings()
			comm = CommFailed
		}

		records = append(records, OutputRecord{
			Date:      now.Format("2006-01-02"),
			Time:      now.Format("15:04:05"),
			At:        now,
			MeterID:   m.ID,
			MeterName: m.Name,
			Readings:  readings,
			Comm:      comm,
			Status:    p.label(m, readings, comm),
		})
	}

	return records
}

func (p *Poller) emptyReadings() ReadingSet {
	rs := make(ReadingSet, len(p.descs))
	for _, d := range p.descs {
		rs[d.Name] = nil
	}
	return rs
}

// RegisterNames returns the register names in address order, for
// collaborators that lay out columns or payload fields.
func (p *Poller) RegisterNames() []string {
	names := make([]string, len(p.descs))
	for i, d := range p.descs {
		names[i] = d.Name
	}
	return names
}

// Interval reports the configured poll interval.
func (p *Poller) Interval() time.Duration { return p.cfg.Interval }
