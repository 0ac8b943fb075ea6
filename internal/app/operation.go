package app

// Run statuses recorded when an operation finishes.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusInterrupted = "interrupted"
)

// Operation tracks a CLI operation. It starts in memory; only commands that
// change stored files or assets persist it as a run, which happens the first
// time the command does work.
type Operation struct {
	RunID   string
	Name    string
	Status  string
	Updated int64
	Skipped int64
	Errors  int64

	// ID is the run's database ID, or 0 while the operation is not persisted.
	ID int64
}

// NewOperation creates a new in-memory operation.
func NewOperation(name, runID string) *Operation {
	return &Operation{
		RunID:  runID,
		Name:   name,
		Status: StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = StatusError
}

// Count adds to the operation's counters.
func (op *Operation) Count(updated, skipped, errors int) {
	op.Updated += int64(updated)
	op.Skipped += int64(skipped)
	op.Errors += int64(errors)
}
