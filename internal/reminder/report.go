package reminder

// Clinic outcomes within a dispatch run.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ClinicResult is the outcome of one clinic's reminder batch.
type ClinicResult struct {
	ClinicID     string `json:"clinicId"`
	Status       string `json:"status"`
	Appointments int    `json:"appointments"`
	Error        string `json:"error,omitempty"`
}

// Report summarizes a full dispatcher run. Count is the number of clinics for
// which a batch actually ran; clinics outside their window or already marked
// for today are absent from Details.
type Report struct {
	RunID   string         `json:"runId"`
	Message string         `json:"message"`
	Count   int            `json:"count"`
	Details []ClinicResult `json:"details,omitempty"`
}
