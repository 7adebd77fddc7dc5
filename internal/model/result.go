package model

// MergeMode describes how an upload was applied.
type MergeMode string

// Merge modes.
const (
	// MergeModeInsert means no prior duplicates existed; everything was inserted.
	MergeModeInsert MergeMode = "insert"
	// MergeModeMerge means duplicates were skipped and only new rows inserted.
	MergeModeMerge MergeMode = "merge"
	// MergeModeReject means the operation aborted before inserting anything.
	MergeModeReject MergeMode = "reject"
)

// MergeResult summarizes the outcome of processing one upload.
// Partial batch failures are reported through Inserted/Errors, never as a
// hard error: callers can always make forward progress on the inserted
// subset.
type MergeResult struct {
	Mode     MergeMode `json:"mode"`
	JobID    string    `json:"job_id,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
	Inserted int       `json:"inserted"`
	Skipped  int       `json:"skipped"`
	Total    int       `json:"total"`
}

// SyncResult summarizes one incremental sync run against the sheet mirror.
type SyncResult struct {
	Errors             []string `json:"errors,omitempty"`
	SyncedFingerprints []string `json:"synced_fingerprints,omitempty"`
	FailedFingerprints []string `json:"failed_fingerprints,omitempty"`
	Updated            int      `json:"transactions_updated"`
	Appended           int      `json:"transactions_appended"`
}

// AutoMatchResult summarizes one auto-match batch run.
type AutoMatchResult struct {
	Examined int `json:"examined"`
	Linked   int `json:"linked"`
	Skipped  int `json:"skipped"`
}
