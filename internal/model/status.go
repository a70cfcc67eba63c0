package model

// SyncStatus is the state of the sync coordinator.
type SyncStatus int

const (
	// SyncIdle means no pass has run yet.
	SyncIdle SyncStatus = iota
	// SyncRunning means a pass is in flight.
	SyncRunning
	// SyncSuccess means the last pass committed a snapshot.
	SyncSuccess
	// SyncFailure means the last pass failed; local data is unchanged.
	SyncFailure
)

// String returns the human-readable label for the status.
func (s SyncStatus) String() string {
	switch s {
	case SyncRunning:
		return "Running"
	case SyncSuccess:
		return "Success"
	case SyncFailure:
		return "Failure"
	default:
		return "Idle"
	}
}
