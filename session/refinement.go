package session

import (
	"context"
	"strings"
	"sync"

	"github.com/huulkit/huulkit/refine"
)

const msgEmptyInput = "Input text cannot be empty"

// Refiner is the use case behind the helper screen.
type Refiner interface {
	Refine(ctx context.Context, text string, opts refine.Options) (string, error)
}

// RefinementState is a snapshot of the helper screen.
type RefinementState struct {
	Input   string
	Output  string
	Loading bool
	Error   string
	Options refine.Options
}

// Refinement is the helper screen state.
type Refinement struct {
	mu    sync.RWMutex
	state RefinementState
}

// NewRefinement starts with only Shorten selected.
func NewRefinement() *Refinement {
	return &Refinement{state: RefinementState{Options: refine.DefaultOptions()}}
}

func (r *Refinement) State() RefinementState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Refinement) SetInput(text string) {
	r.mu.Lock()
	r.state.Input = text
	r.mu.Unlock()
}

func (r *Refinement) SetOptions(opts refine.Options) {
	r.mu.Lock()
	r.state.Options = opts
	r.mu.Unlock()
}

// UpdateOptions applies fn to the current options.
func (r *Refinement) UpdateOptions(fn func(*refine.Options)) {
	r.mu.Lock()
	fn(&r.state.Options)
	r.mu.Unlock()
}

// Begin clears the previous error and validates the input. It returns the
// text and options to refine, or ok=false when the input is blank.
func (r *Refinement) Begin() (text string, opts refine.Options, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Error = ""
	if strings.TrimSpace(r.state.Input) == "" {
		r.state.Error = msgEmptyInput
		return "", refine.Options{}, false
	}
	r.state.Loading = true
	return r.state.Input, r.state.Options, true
}

// Finish records the outcome of a refinement. A failure keeps the previous
// output.
func (r *Refinement) Finish(result string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.state.Error = errorText(err)
	} else {
		r.state.Output = result
		r.state.Error = ""
	}
	r.state.Loading = false
}

// Run performs a full Begin/Refine/Finish round.
func (r *Refinement) Run(ctx context.Context, refiner Refiner) RefinementState {
	text, opts, ok := r.Begin()
	if ok {
		out, err := refiner.Refine(ctx, text, opts)
		r.Finish(out, err)
	}
	return r.State()
}
