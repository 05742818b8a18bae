package domain

// Asset is a transient binary payload exchanged for a publicly
// dereferenceable URL by the hosting adapter.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// JobHandle is the opaque identifier for an asynchronous video job on the
// avatar provider. Valid only for the provider that issued it.
type JobHandle string

// JobState enumerates remote video job states. Providers that report a
// distinct "error" state are normalized to JobFailed at the adapter boundary.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether the remote job reached a final state.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is one observation of a remote video job.
type JobStatus struct {
	State    JobState
	VideoURL string
	Reason   string
}
