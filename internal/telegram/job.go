package telegram

// JobKind tags the unit of deferred work the job worker executes against
// Instagram.
type JobKind int

const (
	JobResolve JobKind = iota
	JobDownload
	JobInfo
)

func (k JobKind) String() string {
	switch k {
	case JobResolve:
		return "resolve"
	case JobDownload:
		return "download"
	case JobInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Job is one queued request against Instagram. Payload is the raw URL for
// resolve jobs and the post shortcode for download/info jobs. Every Job is
// enqueued with a pending slot already reserved for UserID; the worker
// releases it exactly once when the job reaches a terminal state.
type Job struct {
	Kind            JobKind
	ChatID          int64
	UserID          int64
	Payload         string
	StatusMessageID int
}
