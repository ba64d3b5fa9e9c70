package models

// BulkGroupOutcome distinguishes the three add-to-group results: the
// user needs to know when the action had no net effect.
type BulkGroupOutcome string

const (
	BulkAllAdded       BulkGroupOutcome = "all_added"
	BulkPartiallyAdded BulkGroupOutcome = "partially_added"
	BulkAllPresent     BulkGroupOutcome = "all_already_present"
)

// BulkGroupResult reports a bulk add-to-group run.
type BulkGroupResult struct {
	Outcome        BulkGroupOutcome `json:"outcome"`
	Added          int              `json:"added"`
	AlreadyPresent int              `json:"already_present"`
}
