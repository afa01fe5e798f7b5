package executor

// Status is the per-file outcome of one stage invocation.
type Status string

const (
	// StatusOK means the worker produced its output artifact.
	StatusOK Status = "OK"

	// StatusPartial means a usable artifact exists but a best-effort step
	// (e.g. compression) did not help; metadata carries the detail.
	StatusPartial Status = "PARTIAL"

	// StatusSkipped means the output artifact already existed and the
	// worker was never invoked.
	StatusSkipped Status = "SKIPPED"

	// StatusFailed means the worker returned an error or panicked; the
	// batch continues without this file.
	StatusFailed Status = "FAILED"
)

// Result is the immutable per-file outcome of a stage worker.
type Result struct {
	File     string            `json:"file"`
	Status   Status            `json:"status"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OK builds a success result.
func OK(file string) Result {
	return Result{File: file, Status: StatusOK}
}

// OKWith builds a success result carrying metadata.
func OKWith(file string, meta map[string]string) Result {
	return Result{File: file, Status: StatusOK, Metadata: meta}
}

// Partial builds a degraded-but-usable result.
func Partial(file, message string) Result {
	return Result{File: file, Status: StatusPartial, Message: message}
}

// Failed builds a failure result from an error.
func Failed(file string, err error) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{File: file, Status: StatusFailed, Message: msg}
}

// Summary aggregates the results of one stage batch.
type Summary struct {
	RunID   string   `json:"run_id"`
	Stage   string   `json:"stage"`
	Results []Result `json:"results"`
}

// Count returns the number of results with the given status.
func (s *Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Completed returns the number of results that left a usable artifact.
func (s *Summary) Completed() int {
	return s.Count(StatusOK) + s.Count(StatusPartial)
}
