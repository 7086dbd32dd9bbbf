package service

import (
	"github.com/thomaseleff/bunsen/internal/model"
)

// EngagementDetector gates replies: the agent answers at most once per issue
// and only when the latest message summons it.
type EngagementDetector struct {
	resolver *ParticipantResolver
}

func NewEngagementDetector(resolver *ParticipantResolver) *EngagementDetector {
	return &EngagementDetector{resolver: resolver}
}

// HasAgentResponded reports whether any comment was authored by the agent.
func (d *EngagementDetector) HasAgentResponded(sorted []model.Comment) bool {
	for _, c := range sorted {
		if d.resolver.agent.Authored(c.Author) {
			return true
		}
	}
	return false
}

// ShouldRespond looks only at the newest message: the issue body when there
// are no comments, otherwise the last comment in sorted order.
func (d *EngagementDetector) ShouldRespond(issue model.Issue, sorted []model.Comment) bool {
	if len(sorted) == 0 {
		return d.resolver.mentionsAgent(issue.BodyText())
	}
	return d.resolver.mentionsAgent(sorted[len(sorted)-1].Body)
}
