package pipeline

import "time"

// StepStatus is the lifecycle of one stage.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepWorking   StepStatus = "working"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Status is the lifecycle of a whole run.
type Status string

const (
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Step is the progress of one stage.
type Step struct {
	Role        Role       `json:"role"`
	Title       string     `json:"title"`
	Status      StepStatus `json:"status"`
	Temperature float64    `json:"temperature"`
	// Input is the prompt the stage was given.
	Input  string   `json:"input,omitempty"`
	Output string   `json:"output,omitempty"`
	Logs   []string `json:"logs,omitempty"`
}

// State is a snapshot of a run. Snapshots handed to callbacks are copies
// and never change after delivery.
type State struct {
	ID      string `json:"id"`
	Request string `json:"request"`
	Status  Status `json:"status"`
	Steps   []Step `json:"steps"`
	// Current is the index of the stage in progress, or of the last stage
	// once the run has finished.
	Current int `json:"current"`
	// Result is the instruction buffer: the accumulated layers while the
	// run is executing, the final stage's output once it completes.
	Result     string    `json:"result"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Steps = make([]Step, len(s.Steps))
	for i, step := range s.Steps {
		step.Logs = append([]string(nil), step.Logs...)
		out.Steps[i] = step
	}
	return out
}

// Failed returns the first failed step, if any.
func (s State) Failed() (Step, bool) {
	for _, step := range s.Steps {
		if step.Status == StepFailed {
			return step, true
		}
	}
	return Step{}, false
}
