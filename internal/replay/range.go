package replay

import "fmt"

// Range is an inclusive span of action indices.
type Range struct {
	From int
	To   int
}

func (r Range) Len() int { return r.To - r.From + 1 }

// Batches cuts the actions of a scenario into consecutive spans of at most
// size actions. Events are drained and checkpointed once per span.
func Batches(actions int, size uint64) ([]Range, error) {
	if size == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if actions <= 0 {
		return nil, fmt.Errorf("scenario has no actions")
	}
	step := actions
	if size < uint64(actions) {
		step = int(size)
	}
	out := make([]Range, 0, (actions+step-1)/step)
	for from := 0; from < actions; from += step {
		out = append(out, Range{From: from, To: min(from+step, actions) - 1})
	}
	return out, nil
}
