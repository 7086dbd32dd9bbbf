package model

import "time"

// Comment is one entry of an issue's append-only discussion.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// Issue as held by the issue tracker. Comments are fetched separately.
type Issue struct {
	Repo   string
	Number int64
	Title  string
	Body   *string // nil when the issue has no description
	Author string
}

// BodyText returns the description, or "" when absent.
func (i Issue) BodyText() string {
	if i.Body == nil {
		return ""
	}
	return *i.Body
}
