// internal/poller/meter.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/registers"
	"github.com/sseevri/substation-monitor/internal/rtu"
	"github.com/sseevri/substation-monitor/internal/transport"
)

// ReadMeter runs every planned batch against one slave and assembles its
// validated reading set. A batch that exhausts its retries nulls its own
// members and latches CommStatus FAILED without touching other batches.
// Only a transport error aborts the pass; it is returned for escalation.
func (p *Poller) ReadMeter(id byte) (ReadingSet, CommStatus, error) {
	readings := make(ReadingSet, len(p.descs))
	comm := CommOK

	for _, b := range p.batches {
		values, err := p.readBatch(id, b)
		if err != nil {
			var terr *transport.Error
			if errors.As(err, &terr) {
				return nil, CommFailed, err
			}

			for _, mi := range b.Members {
				readings[p.descs[mi].Name] = nil
			}
			comm = CommFailed
			continue
		}

		for name, v := range values {
			value := v
			readings[name] = &value
		}
	}

	return Validate(readings, p.ranges, p.log), comm, nil
}

// readBatch is the bounded retry loop around one read transaction.
func (p *Poller) readBatch(id byte, b registers.Batch) (map[string]float64, error) {
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		values, err := p.attemptBatch(id, b)
		if err == nil {
			if attempt > 1 {
				p.log.WithFields(logrus.Fields{
					"meter": id, "start": b.Start, "attempt": attempt,
				}).Info("batch recovered after retry")
			}
			return values, nil
		}

		var terr *transport.Error
		if errors.As(err, &terr) {
			return nil, err
		}

		lastErr = err
		p.log.WithFields(logrus.Fields{
			"meter":    id,
			"start":    b.Start,
			"quantity": b.Quantity,
			"attempt":  attempt,
			"retries":  p.cfg.MaxRetries,
		}).WithError(err).Error("batch read failed")
	}

	return nil, lastErr
}

// attemptBatch performs a single request/response transaction:
// reset buffers, send, wait the inter-frame delay, read the exact
// expected length, parse the frame, decode every member register.
func (p *Poller) attemptBatch(id byte, b registers.Batch) (map[string]float64, error) {
	if err := p.bus.Reset(); err != nil {
		return nil, err
	}

	req := rtu.BuildReadRequest(id, b.Start, b.Quantity)
	if err := p.bus.Send(req); err != nil {
		return nil, err
	}

	time.Sleep(p.cfg.InterFrameDelay)

	resp, err := p.bus.Receive(rtu.ExpectedResponseLength(b.Quantity))
	if err != nil {
		return nil, err
	}

	payload, err := rtu.ParseResponse(resp, id, b.Quantity)
	if err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(b.Members))
	for _, mi := range b.Members {
		d := p.descs[mi]
		offset := int(d.Address-b.Start) * 2
		width := int(d.Type.Words()) * 2

		v, err := rtu.Decode(d.Type, payload[offset:offset+width], d.WordSwapped)
		if err != nil {
			return nil, fmt.Errorf("register %q: %w", d.Name, err)
		}
		values[d.Name] = v
	}

	return values, nil
}
