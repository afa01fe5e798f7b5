package verify

import "fmt"

// Issue categories. The repair engine dispatches on these, so they are
// part of the issues JSON contract.
const (
	CategoryUnreadable     = "unreadable_artifact"
	CategoryPageCount      = "page_count_mismatch"
	CategoryPageOneMarker  = "missing_page_one_marker"
	CategoryHeaderMissing  = "header_missing"
	CategoryHeaderMismatch = "header_mismatch"
	CategoryCloudMissing   = "cloud_object_missing"
	CategoryLowAccuracy    = "low_accuracy"
	CategoryShortText      = "short_text"
)

// Issue is one problem found in a formatted artifact. Page is zero for
// document-level issues. Percent carries the measured accuracy for
// accuracy issues; it is always serialized because a fully garbled page
// legitimately scores 0.
type Issue struct {
	Category string  `json:"category"`
	Page     int     `json:"page,omitempty"`
	Percent  float64 `json:"percent"`
	Detail   string  `json:"detail"`
}

func (i Issue) String() string {
	switch {
	case i.Page > 0 && i.Percent > 0:
		return fmt.Sprintf("[%s] page %d (%.1f%%): %s", i.Category, i.Page, i.Percent, i.Detail)
	case i.Page > 0:
		return fmt.Sprintf("[%s] page %d: %s", i.Category, i.Page, i.Detail)
	case i.Percent > 0:
		return fmt.Sprintf("[%s] (%.1f%%): %s", i.Category, i.Percent, i.Detail)
	default:
		return fmt.Sprintf("[%s] %s", i.Category, i.Detail)
	}
}

// Status classifies a verified file.
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "WARNING"
	StatusFailed  Status = "FAILED"
)

// statusFor derives a file status from its issues. FAILED is reserved
// for files that could not be analyzed at all and is set where that is
// detected; every analyzable defect degrades the file to a warning so
// the repair engine, not the status, carries the severity.
func statusFor(issues []Issue) Status {
	if len(issues) > 0 {
		return StatusWarning
	}
	return StatusOK
}
