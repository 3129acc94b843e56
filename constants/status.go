package constants

// RunStatus is the canonical status for rows in audit_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning RunStatus = "RUNNING" // in progress
	RunStatusOK      RunStatus = "OK"      // completed with at least one claim
	RunStatusEmpty   RunStatus = "EMPTY"   // completed, nothing claimable
	RunStatusFailed  RunStatus = "FAILED"  // terminal failure (upstream or storage)
)
