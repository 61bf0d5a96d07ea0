// internal/registers/plan.go
package registers

// MaxBatchRegisters is the protocol ceiling for one read transaction.
const MaxBatchRegisters = 125

// Batch is one contiguous multi-register read request.
// Members index into the descriptor slice the plan was built from.
type Batch struct {
	Start    uint16
	Quantity uint16
	Members  []int
}

// Plan groups descriptors into minimal contiguous read batches.
// Input must be sorted ascending by address with unique addresses;
// the run extends while the next descriptor starts exactly where the
// accumulated quantity ends and the ceiling is not exceeded.
func Plan(descs []Descriptor) []Batch {
	var batches []Batch

	i := 0
	for i < len(descs) {
		b := Batch{
			Start:    descs[i].Address,
			Quantity: descs[i].Type.Words(),
			Members:  []int{i},
		}

		j := i + 1
		for j < len(descs) {
			next := descs[j]
			if next.Address != b.Start+b.Quantity {
				break
			}
			if b.Quantity+next.Type.Words() > MaxBatchRegisters {
				break
			}
			b.Quantity += next.Type.Words()
			b.Members = append(b.Members, j)
			j++
		}

		batches = append(batches, b)
		i = j
	}

	return batches
}
