package esl

import "fmt"

// Result is the outcome of one command in a batch.
type Result struct {
	Frame *Frame
	Err   error
}

// Batch maps each command of an ExecuteBatch call to its frame or error.
type Batch struct {
	order   []string
	results map[string]Result
}

// NewBatch creates an empty batch with room for size commands.
func NewBatch(size int) *Batch {
	return &Batch{
		order:   make([]string, 0, size),
		results: make(map[string]Result, size),
	}
}

// Add records the result of command. Adding a command twice keeps its
// first position and replaces its result.
func (b *Batch) Add(command string, frame *Frame, err error) {
	if _, seen := b.results[command]; !seen {
		b.order = append(b.order, command)
	}
	b.results[command] = Result{Frame: frame, Err: err}
}

// Get returns the frame or the captured error for command. Commands that
// were never part of the batch yield ErrLookup.
func (b *Batch) Get(command string) (*Frame, error) {
	r, ok := b.results[command]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLookup, command)
	}
	return r.Frame, r.Err
}

// Commands returns the distinct commands in execution order.
func (b *Batch) Commands() []string {
	return append([]string(nil), b.order...)
}

// Len returns the number of distinct commands in the batch.
func (b *Batch) Len() int {
	return len(b.order)
}

// Failed returns the commands whose result is an error.
func (b *Batch) Failed() []string {
	var failed []string
	for _, command := range b.order {
		if b.results[command].Err != nil {
			failed = append(failed, command)
		}
	}
	return failed
}
