package github

// StatusState is the state of a commit status.
type StatusState string

const (
	StatusPending StatusState = "pending"
	StatusSuccess StatusState = "success"
	StatusFailure StatusState = "failure"
	StatusError   StatusState = "error"
)

// maxDescriptionLen is the longest status description GitHub accepts.
const maxDescriptionLen = 140

// CommitStatus is a status reported on a commit.
type CommitStatus struct {
	State       StatusState
	TargetURL   string
	Description string
	Context     string
}
