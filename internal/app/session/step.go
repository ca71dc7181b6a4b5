package session

import "strings"

// StepStatus is the status of one pipeline step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepSuccess    StepStatus = "success"
	StepError      StepStatus = "error"
)

// IsTerminal returns true once the step finished, successfully or not.
func (s StepStatus) IsTerminal() bool {
	return s == StepSuccess || s == StepError
}

// StepDef names a step without any progress attached.
type StepDef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Step is one named phase of a deployment pipeline.
type Step struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Logs   []string   `json:"logs"`
	Status StepStatus `json:"status"`
}

// DefaultSteps is the step template installed on every new submission,
// before the worker reports its own step list.
func DefaultSteps() []StepDef {
	return []StepDef{
		{ID: "auth", Label: "Authenticating"},
		{ID: "clone", Label: "Cloning repository"},
		{ID: "detect", Label: "Detecting project"},
		{ID: "build", Label: "Building"},
		{ID: "deploy", Label: "Deploying"},
		{ID: "verify", Label: "Verifying deployment"},
	}
}

// Markers decide how a log line affects its step's status.
type Markers struct {
	Success []string
	Error   []string
}

// DefaultMarkers returns the markers the worker uses in its log lines.
func DefaultMarkers() Markers {
	return Markers{
		Success: []string{"✅"},
		Error:   []string{"❌"},
	}
}

func (m Markers) classify(msg string) StepStatus {
	for _, marker := range m.Error {
		if marker != "" && strings.Contains(msg, marker) {
			return StepError
		}
	}
	for _, marker := range m.Success {
		if marker != "" && strings.Contains(msg, marker) {
			return StepSuccess
		}
	}
	return StepInProgress
}

// Registry is an insertion-ordered collection of steps keyed by ID.
// Steps only grow: logs are append-only and a step's status never moves
// backwards. Reset is the only way to start over.
type Registry struct {
	steps map[string]*Step
	order []string
}

// NewRegistry creates a registry holding the given template.
func NewRegistry(template []StepDef) *Registry {
	r := &Registry{}
	r.Reset(template)
	return r
}

// Reset replaces the registry content with fresh pending steps.
func (r *Registry) Reset(template []StepDef) {
	r.steps = make(map[string]*Step, len(template))
	r.order = make([]string, 0, len(template))
	for _, def := range template {
		r.Upsert(def.ID, def.Label)
	}
}

// Upsert returns the step with the given ID, creating a pending step at the
// end of the registry if it does not exist yet. An empty label defaults to
// the ID.
func (r *Registry) Upsert(id, label string) (*Step, bool) {
	if step, ok := r.steps[id]; ok {
		return step, false
	}
	if label == "" {
		label = id
	}
	step := &Step{ID: id, Label: label, Logs: []string{}, Status: StepPending}
	r.steps[id] = step
	r.order = append(r.order, id)
	return step, true
}

// AppendLog appends msg to the step's log, creating the step if needed, and
// advances its status according to markers. It returns true if the step was
// synthesized.
func (r *Registry) AppendLog(id, msg string, markers Markers) bool {
	step, created := r.Upsert(id, id)
	step.Logs = append(step.Logs, msg)

	if step.Status.IsTerminal() {
		return created
	}
	switch next := markers.classify(msg); next {
	case StepSuccess, StepError:
		step.Status = next
	default:
		if step.Status == StepPending {
			step.Status = StepInProgress
		}
	}
	return created
}

// Merge reconciles an authoritative step list from the worker with the
// current content. Known steps keep their logs and status and take the new
// label; unknown steps are added as pending. Steps missing from the list
// are dropped only if they have no logs; retained ones keep their relative
// order ahead of the listed steps.
func (r *Registry) Merge(defs []StepDef) {
	listed := make(map[string]bool, len(defs))
	for _, def := range defs {
		listed[def.ID] = true
	}

	order := make([]string, 0, len(r.order)+len(defs))
	for _, id := range r.order {
		if listed[id] {
			continue
		}
		if len(r.steps[id].Logs) > 0 {
			order = append(order, id)
		} else {
			delete(r.steps, id)
		}
	}

	for _, def := range defs {
		if def.ID == "" || containsID(order, def.ID) {
			continue
		}
		step, ok := r.steps[def.ID]
		if !ok {
			label := def.Label
			if label == "" {
				label = def.ID
			}
			step = &Step{ID: def.ID, Label: label, Logs: []string{}, Status: StepPending}
			r.steps[def.ID] = step
		} else if def.Label != "" {
			step.Label = def.Label
		}
		order = append(order, def.ID)
	}
	r.order = order
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Get returns a copy of the step with the given ID.
func (r *Registry) Get(id string) (Step, bool) {
	step, ok := r.steps[id]
	if !ok {
		return Step{}, false
	}
	return copyStep(step), true
}

// Len returns the number of steps.
func (r *Registry) Len() int {
	return len(r.order)
}

// Steps returns copies of all steps in insertion order.
func (r *Registry) Steps() []Step {
	out := make([]Step, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyStep(r.steps[id]))
	}
	return out
}

func copyStep(s *Step) Step {
	c := *s
	c.Logs = append([]string(nil), s.Logs...)
	if c.Logs == nil {
		c.Logs = []string{}
	}
	return c
}
