// internal/registers/defaults.go
package registers

// Default returns the register layout of the deployed DMF power meters.
// All meters on the bus share this layout.
func Default() []Descriptor {
	names := []string{
		"Watts Total",
		"Watts R phase",
		"Watts Y phase",
		"Watts B phase",
		"VAR Total",
		"VAR R phase",
		"VAR Y phase",
		"VAR B phase",
		"PF Avg (instant)",
		"PF R phase",
		"PF Y phase",
		"PF B phase",
		"VA Total",
		"VA R phase",
		"VA Y phase",
		"VA B phase",
		"VLL Average",
		"Vry Phase",
		"Vyb Phase",
		"Vbr Phase",
		"VLN Average",
		"V R phase",
		"V Y phase",
		"V B phase",
		"Current Total",
		"Current R phase",
		"Current Y phase",
		"Current B phase",
		"Frequency",
		"Wh Received (Import)",
		"VAh Received (Import)",
		"VARh Ind Received (Import)",
		"VARh Cap Received (Import)",
		"Wh Delivered",
		"VAh Delivered",
		"VARh Ind Delivered",
		"VARh Cap Delivered",
		"PF Average Received",
	}

	descs := make([]Descriptor, len(names))
	for i, name := range names {
		descs[i] = Descriptor{
			Name:    name,
			Type:    Float32,
			Address: 40101 + uint16(2*i),
		}
	}
	return descs
}

// DefaultRanges returns the validation ranges for the default layout.
// Quantities absent here fall back to DefaultRange (0, +inf).
func DefaultRanges() map[string]Range {
	return map[string]Range{
		"Watts Total":      {0, 1000000},
		"Watts R phase":    {0, 1000000},
		"Watts Y phase":    {0, 1000000},
		"Watts B phase":    {0, 1000000},
		"VAR Total":        {0, 1000000},
		"VAR R phase":      {0, 1000000},
		"VAR Y phase":      {0, 1000000},
		"VAR B phase":      {0, 1000000},
		"PF Avg (instant)": {0, 1},
		"PF R phase":       {0, 1},
		"PF Y phase":       {0, 1},
		"PF B phase":       {0, 1},
		"VA Total":         {0, 1000000},
		"VA R phase":       {0, 1000000},
		"VA Y phase":       {0, 1000000},
		"VA B phase":       {0, 1000000},
		"VLL Average":      {0, 500},
		"Vry Phase":        {0, 500},
		"Vyb Phase":        {0, 500},
		"Vbr Phase":        {0, 500},
		"VLN Average":      {0, 300},
		"V R phase":        {0, 300},
		"V Y phase":        {0, 300},
		"V B phase":        {0, 300},
		"Current Total":    {0, 1000},
		"Current R phase":  {0, 1000},
		"Current Y phase":  {0, 1000},
		"Current B phase":  {0, 1000},
		"Frequency":        {0, 60},

		"PF Average Received": {0, 1},
	}
}
