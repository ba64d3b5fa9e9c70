package models

// CreateDecision resumes an item-creation flow that paused on a
// detected duplicate.
type CreateDecision string

const (
	// DecisionNone первая фаза: только проверка дубликата
	DecisionNone CreateDecision = ""
	// DecisionMerge слить с существующей позицией
	DecisionMerge CreateDecision = "merge"
	// DecisionCreateAnyway создать отдельную позицию
	DecisionCreateAnyway CreateDecision = "create_anyway"
	// DecisionCancel отказаться от создания
	DecisionCancel CreateDecision = "cancel"
)

// CreateOutcome is the terminal (or suspended) state of a create call.
type CreateOutcome string

const (
	OutcomeCreated   CreateOutcome = "created"
	OutcomeMerged    CreateOutcome = "merged"
	OutcomeDuplicate CreateOutcome = "duplicate"
	OutcomeCancelled CreateOutcome = "cancelled"
)

// DuplicateReport describes a name collision inside one inventory.
// Existing carries its stored version so a later merge decision applies
// to exactly the state the user saw.
type DuplicateReport struct {
	Existing Item      `json:"existing"`
	Incoming ItemInput `json:"incoming"`
	CanMerge bool      `json:"can_merge"`
	Reason   string    `json:"reason,omitempty"`
}

// CreateResult is returned by the two-phase creation workflow.
type CreateResult struct {
	Outcome     CreateOutcome    `json:"outcome"`
	Item        *Item            `json:"item,omitempty"`
	Duplicate   *DuplicateReport `json:"duplicate,omitempty"`
	Suggestions []Group          `json:"suggestions,omitempty"`
}
