// internal/poller/types.go
package poller

import "time"

// CommStatus classifies one meter's poll: FAILED when any batch
// exhausted its retries.
type CommStatus string

const (
	CommOK     CommStatus = "OK"
	CommFailed CommStatus = "FAILED"
)

// ReadingSet maps register names to decoded values.
// A nil entry means the value could not be obtained or failed validation.
type ReadingSet map[string]*float64

// OutputRecord is the unit handed to the storage and display collaborators.
type OutputRecord struct {
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	At        time.Time  `json:"-"`
	MeterID   byte       `json:"meter_id"`
	MeterName string     `json:"meter_name"`
	Readings  ReadingSet `json:"readings"`
	Comm      CommStatus `json:"comm_status"`
	Status    string     `json:"status"`
}

// Meter identifies one slave on the bus.
type Meter struct {
	ID   byte
	Name string

	// PowerFailLabel is the role-specific status wording emitted when the
	// aggregate quantities read zero while the link is healthy.
	PowerFailLabel string
}
