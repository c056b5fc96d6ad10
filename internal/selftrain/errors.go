package selftrain

import "fmt"

// RunError reports where a training run failed: the iteration (0 means before
// the first fit) and the pool sizes at that moment, so the failure can be
// reproduced with the same seed.
type RunError struct {
	Iteration    int
	TrainingSize int
	HeldOutSize  int
	Err          error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("self-training failed at iteration %d (training=%d, held-out=%d): %v",
		e.Iteration, e.TrainingSize, e.HeldOutSize, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
