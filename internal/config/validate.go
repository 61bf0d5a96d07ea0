// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/sseevri/substation-monitor/internal/registers"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	m := cfg.Monitor

	// ------------------------------------------------------------
	// SERIAL LINK
	// ------------------------------------------------------------

	if m.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	switch m.Serial.Parity {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("serial.parity must be one of N, E, O, got %q", m.Serial.Parity)
	}

	// ------------------------------------------------------------
	// METERS
	// ------------------------------------------------------------

	if len(m.Meters) == 0 {
		return fmt.Errorf("at least one meter is required")
	}

	seenIDs := make(map[uint8]string)
	for _, mt := range m.Meters {
		if mt.ID == 0 {
			return fmt.Errorf("meter %q: id 0 is the broadcast address", mt.Name)
		}
		if prev, exists := seenIDs[mt.ID]; exists {
			return fmt.Errorf("meter id %d used by both %q and %q", mt.ID, prev, mt.Name)
		}
		seenIDs[mt.ID] = mt.Name
	}

	// ------------------------------------------------------------
	// REGISTER MAP OVERRIDE
	// ------------------------------------------------------------

	seenAddrs := make(map[uint16]string)
	for _, r := range m.Registers {
		if r.Name == "" {
			return fmt.Errorf("register at address %d: name is required", r.Address)
		}
		if _, err := registers.ParseType(r.Type); err != nil {
			return fmt.Errorf("register %q: %v", r.Name, err)
		}
		if r.Address < 40001 {
			return fmt.Errorf("register %q: address %d below holding register base 40001", r.Name, r.Address)
		}
		if prev, exists := seenAddrs[r.Address]; exists {
			return fmt.Errorf("address %d used by both %q and %q", r.Address, prev, r.Name)
		}
		seenAddrs[r.Address] = r.Name
	}

	// ------------------------------------------------------------
	// VALIDATION RANGES
	// ------------------------------------------------------------

	for name, r := range m.Ranges {
		if r.Max != nil && *r.Max < r.Min {
			return fmt.Errorf("range for %q: max %v below min %v", name, *r.Max, r.Min)
		}
	}

	return nil
}
