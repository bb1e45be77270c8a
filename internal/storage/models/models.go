package models

// Drug is one catalogued substance from the DrugBank export. Free-text
// fields may be empty when the source element omitted them.
type Drug struct {
	ID                string
	Name              string
	Description       string
	Indication        string
	MechanismOfAction string
	Toxicity          string
}

// DrugSummary is the search-result shape: enough to render a pick list
// without pulling the full row.
type DrugSummary struct {
	ID   string
	Name string
}

// DrugInteraction is a directed edge as authored in the source document.
// InteractingDrugName is denormalized because the second drug may not be
// part of the loaded set.
type DrugInteraction struct {
	ID                  int64
	DrugID              string
	InteractingDrugID   string
	InteractingDrugName string
	Description         string
}

// FoodInteraction is one free-text narrative attached to a drug.
type FoodInteraction struct {
	ID          int64
	DrugID      string
	Description string
}

// InteractionView is a fully identified interaction returned by the query
// engine: both drugs resolved, regardless of which direction the edge was
// authored in.
type InteractionView struct {
	DrugID        string
	DrugName      string
	OtherDrugID   string
	OtherDrugName string
	Description   string
}

// StoreStatus reports whether the store has been built and how many drugs
// it holds.
type StoreStatus struct {
	Initialized bool
	Drugs       int
}
