package pipeline

import (
	"errors"
	"fmt"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/linkscore"
)

// State is a validation stage of one candidate
type State int

const (
	StateNew State = iota
	StateFieldChecked
	StateLinkFetched
	StateNoLink
	StateAdjudicated
	StateApproved
	StateRejected
)

var stateNames = map[State]string{
	StateNew:          "new",
	StateFieldChecked: "field_checked",
	StateLinkFetched:  "link_fetched",
	StateNoLink:       "no_link",
	StateAdjudicated:  "adjudicated",
	StateApproved:     "approved",
	StateRejected:     "rejected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

var (
	// ErrTerminal is returned when a decided candidate is asked to move again.
	ErrTerminal = errors.New("candidate already decided")
	// ErrInvalidTransition is returned for a transition the machine does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// allowed transitions; any non-terminal state may reject
var transitions = map[State][]State{
	StateNew:          {StateFieldChecked},
	StateFieldChecked: {StateLinkFetched, StateNoLink, StateApproved},
	StateLinkFetched:  {StateAdjudicated},
	StateNoLink:       {StateAdjudicated},
	StateAdjudicated:  {StateApproved},
}

// Outcome is the record of one candidate's validation.
type Outcome struct {
	Candidate *event.Candidate
	State     State
	History   []State
	Verdict   event.Verdict
	Evidence  *event.LinkEvidence
	Quality   *linkscore.Report
	// Bypassed is set when a trusted venue skipped link checks and the judge.
	Bypassed bool
}

func newOutcome(c *event.Candidate) *Outcome {
	return &Outcome{Candidate: c, State: StateNew, History: []State{StateNew}}
}

// Transition moves the outcome to next, enforcing the state machine.
func (o *Outcome) Transition(next State) error {
	if o.State.Terminal() {
		return fmt.Errorf("%s -> %s: %w", o.State, next, ErrTerminal)
	}
	if next != StateRejected {
		ok := false
		for _, s := range transitions[o.State] {
			if s == next {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%s -> %s: %w", o.State, next, ErrInvalidTransition)
		}
	}
	o.State = next
	o.History = append(o.History, next)
	return nil
}

// Approved reports whether the candidate ended approved.
func (o *Outcome) Approved() bool {
	return o.State == StateApproved
}

// decide records the verdict on the candidate and moves to the matching
// terminal state
func (o *Outcome) decide(v event.Verdict) error {
	next := StateRejected
	if v.Approved {
		next = StateApproved
	}
	if err := o.Transition(next); err != nil {
		return err
	}
	o.Verdict = v
	o.Candidate.Reason = v.Reason
	o.Candidate.Confidence = v.Confidence
	return nil
}
