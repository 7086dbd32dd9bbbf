package mapper

import "context"

type EventKind string

const (
	EventPing           EventKind = "ping"
	EventIssueOpened    EventKind = "issue_opened"
	EventIssueLabeled   EventKind = "issue_labeled"
	EventCommentCreated EventKind = "comment_created"
	EventUnhandled      EventKind = "unhandled"
)

// Reasons attached to EventUnhandled.
const (
	ReasonUnsupported = "unsupported"
	ReasonIncomplete  = "incomplete"
	ReasonMalformed   = "malformed"
	ReasonSelfComment = "self_comment"
	ReasonOtherLabel  = "other_label"
)

// Event is the semantic form of one webhook delivery. Repo, IssueNumber and
// InstallationID are set for every kind except Ping and Unhandled.
type Event struct {
	Kind           EventKind
	Repo           string
	IssueNumber    int64
	InstallationID int64
	CommentAuthor  string // CommentCreated only
	Label          string // IssueLabeled only
	Reason         string // Unhandled only
}

// EventMapper classifies a raw delivery. It never fails: unknown or broken
// payloads become EventUnhandled.
type EventMapper interface {
	Map(ctx context.Context, eventType string, body []byte) Event
}
