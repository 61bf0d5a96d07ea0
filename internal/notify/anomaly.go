// internal/notify/anomaly.go
package notify

import (
	"fmt"

	"github.com/sseevri/substation-monitor/internal/poller"
)

// Thresholds parameterize anomaly detection against the nominal supply.
type Thresholds struct {
	NominalLL float64 // line-to-line volts
	NominalLN float64 // line-to-neutral volts

	UnderVoltagePct   float64
	OverVoltagePct    float64
	SinglePhasingPct  float64 // one phase this fraction below the highest
	SupplyFailedLevel float64 // volts/amps below this count as absent
}

// DefaultThresholds matches a 415/240V three-phase substation feed.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NominalLL:         415.0,
		NominalLN:         240.0,
		UnderVoltagePct:   0.10,
		OverVoltagePct:    0.10,
		SinglePhasingPct:  0.50,
		SupplyFailedLevel: 5.0,
	}
}

var (
	lineToLineNames    = []string{"Vry Phase", "Vyb Phase", "Vbr Phase"}
	lineToNeutralNames = []string{"V R phase", "V Y phase", "V B phase"}
	phaseCurrentNames  = []string{"Current R phase", "Current Y phase", "Current B phase"}
)

// Detect inspects one meter's validated readings and returns
// human-readable anomaly lines, empty when the feed looks healthy.
func Detect(meterName string, rs poller.ReadingSet, t Thresholds) []string {
	var anomalies []string

	anomalies = append(anomalies, voltageAnomalies(meterName, rs, lineToLineNames, t.NominalLL, "Line-Line", t)...)
	anomalies = append(anomalies, voltageAnomalies(meterName, rs, lineToNeutralNames, t.NominalLN, "Line-Neutral", t)...)
	anomalies = append(anomalies, singlePhasing(meterName, rs, t)...)
	anomalies = append(anomalies, supplyFailure(meterName, rs, t)...)

	return anomalies
}

func voltageAnomalies(meterName string, rs poller.ReadingSet, names []string, nominal float64, kind string, t Thresholds) []string {
	var out []string
	for _, name := range names {
		v := rs[name]
		if v == nil {
			continue
		}
		switch {
		case *v < nominal*(1-t.UnderVoltagePct):
			out = append(out, fmt.Sprintf("Under Voltage (%s) for %s: %.2fV", kind, meterName, *v))
		case *v > nominal*(1+t.OverVoltagePct):
			out = append(out, fmt.Sprintf("High Voltage (%s) for %s: %.2fV", kind, meterName, *v))
		}
	}
	return out
}

func singlePhasing(meterName string, rs poller.ReadingSet, t Thresholds) []string {
	var present []float64
	for _, name := range lineToNeutralNames {
		if v := rs[name]; v != nil {
			present = append(present, *v)
		}
	}

	switch {
	case len(present) == 3:
		min, max := present[0], present[0]
		for _, v := range present[1:] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		if max > 0 && min < max*(1-t.SinglePhasingPct) {
			return []string{fmt.Sprintf(
				"Potential Single Phasing for %s: R:%.2fV, Y:%.2fV, B:%.2fV",
				meterName, present[0], present[1], present[2],
			)}
		}
	case len(present) > 0:
		return []string{fmt.Sprintf(
			"Missing Phase(s) detected for %s: only %d phase(s) reporting voltage",
			meterName, len(present),
		)}
	}
	return nil
}

func supplyFailure(meterName string, rs poller.ReadingSet, t Thresholds) []string {
	seen := 0
	nearZero := func(names []string) bool {
		for _, name := range names {
			if v := rs[name]; v != nil {
				seen++
				if *v >= t.SupplyFailedLevel {
					return false
				}
			}
		}
		return true
	}

	if nearZero(lineToLineNames) && nearZero(lineToNeutralNames) && nearZero(phaseCurrentNames) && seen > 0 {
		return []string{fmt.Sprintf(
			"Power Supply Failure detected for %s: all voltages and currents are near zero",
			meterName,
		)}
	}
	return nil
}
