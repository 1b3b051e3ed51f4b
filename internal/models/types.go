// Package models defines the core data types shared across the analysis
// pipeline: sessions, steps, and the knowledge atoms extracted from them.
package models

import "time"

// SessionStatus represents the lifecycle state of an analysis session.
type SessionStatus string

// Session status constants.
const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAborted   SessionStatus = "aborted"
)

// IsTerminal returns true if the session has stopped producing steps.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAborted
}

// Session is a single analysis run against one repository at one revision.
type Session struct {
	ID        string        `json:"id"`
	RepoRoot  string        `json:"repo_root"`
	Revision  string        `json:"revision"`
	Hints     string        `json:"hints,omitempty"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// StepKind identifies the category of work a step performs.
type StepKind string

// Step kind constants, in the canonical order the Planner materializes them.
const (
	StepKindGlobalHints StepKind = "global_hints"
	StepKindRootFiles   StepKind = "root_files"
	StepKindDocs        StepKind = "docs"
	StepKindDirLevel    StepKind = "dir_level"
	StepKindDirNode     StepKind = "dir_node"
	StepKindDiagrams    StepKind = "diagrams"
	StepKindFinalize    StepKind = "finalize"
)

// StepStatus represents the current state of a step.
type StepStatus string

// Step status constants. Transitions: pending -> running -> (done | failed);
// failed -> pending on explicit retry. No other transitions are valid.
const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusDone    StepStatus = "done"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// IsTerminal returns true if the step will not transition again without
// an explicit retry.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusDone || s == StepStatusFailed || s == StepStatusSkipped
}

// IsPending returns true if the step has not yet started running.
func (s StepStatus) IsPending() bool {
	return s == StepStatusPending
}

// Step is one bounded unit of work within a session, corresponding to one
// model call. Its ID is derived from (session id, kind, key) so the same
// logical step always resolves to the same row across restarts.
type Step struct {
	ID               string     `json:"id"`
	SessionID        string     `json:"session_id"`
	Kind             StepKind   `json:"kind"`
	Key              string     `json:"key"`
	DependsOn        []string   `json:"depends_on,omitempty"`
	Status           StepStatus `json:"status"`
	InputFingerprint string     `json:"input_fingerprint,omitempty"`
	InputData        string     `json:"input_data,omitempty"`
	OutputData       string     `json:"output_data,omitempty"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// IsEligible reports whether every dependency id in done is satisfied.
func (s *Step) IsEligible(done map[string]bool) bool {
	for _, dep := range s.DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}

// AtomCategory is the closed set of knowledge atom categories.
type AtomCategory string

// Atom category constants, in the priority order used by context curation.
const (
	AtomCategoryOverview   AtomCategory = "overview"
	AtomCategoryStructure  AtomCategory = "structure"
	AtomCategoryComponent  AtomCategory = "component"
	AtomCategoryDataflow   AtomCategory = "dataflow"
	AtomCategoryInterface  AtomCategory = "interface"
	AtomCategoryDeployment AtomCategory = "deployment"
	AtomCategoryConvention AtomCategory = "convention"
	AtomCategoryRisk       AtomCategory = "risk"
)

// ValidAtomCategories lists the closed set of categories, used to validate
// model replies.
var ValidAtomCategories = map[AtomCategory]bool{
	AtomCategoryOverview:   true,
	AtomCategoryStructure:  true,
	AtomCategoryComponent:  true,
	AtomCategoryDataflow:   true,
	AtomCategoryInterface:  true,
	AtomCategoryDeployment: true,
	AtomCategoryConvention: true,
	AtomCategoryRisk:       true,
}

// ContextPriority orders categories for rolling-context selection:
// overview, component, structure, interface, dataflow, convention, risk.
var ContextPriority = []AtomCategory{
	AtomCategoryOverview,
	AtomCategoryComponent,
	AtomCategoryStructure,
	AtomCategoryInterface,
	AtomCategoryDataflow,
	AtomCategoryConvention,
	AtomCategoryRisk,
}

// SynthesisOrder orders categories as sections in the rendered knowledge
// file: one section per category, in this fixed order.
var SynthesisOrder = []AtomCategory{
	AtomCategoryOverview,
	AtomCategoryStructure,
	AtomCategoryComponent,
	AtomCategoryDataflow,
	AtomCategoryInterface,
	AtomCategoryDeployment,
	AtomCategoryConvention,
	AtomCategoryRisk,
}

// Atom is a single factual assertion extracted from a step's model reply.
type Atom struct {
	ID           int64        `json:"id"`
	SessionID    string       `json:"session_id"`
	SourceStepID string       `json:"source_step_id"`
	Category     AtomCategory `json:"category"`
	Subcategory  string       `json:"subcategory,omitempty"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	Relevance    float64      `json:"relevance"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
