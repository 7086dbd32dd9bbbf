package service

import (
	"slices"

	"github.com/thomaseleff/bunsen/internal/model"
)

// SortComments returns comments oldest first. The sort is stable, so
// comments sharing a timestamp keep their delivery order.
func SortComments(comments []model.Comment) []model.Comment {
	sorted := slices.Clone(comments)
	slices.SortStableFunc(sorted, func(a, b model.Comment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sorted
}

// ParticipantResolver derives who takes part in an issue conversation.
type ParticipantResolver struct {
	agent model.AgentIdentity
	scan  MentionScanner
}

func NewParticipantResolver(agent model.AgentIdentity, scan MentionScanner) *ParticipantResolver {
	if scan == nil {
		scan = ParseMentions
	}
	return &ParticipantResolver{agent: agent, scan: scan}
}

// Resolve computes the ParticipantSet for issue. comments may arrive in any
// order.
func (r *ParticipantResolver) Resolve(issue model.Issue, comments []model.Comment) model.ParticipantSet {
	sorted := SortComments(comments)

	author := issue.Author
	primary := r.primary(author, sorted)

	var commenters []string
	seen := make(map[string]struct{})
	for _, c := range sorted {
		if r.agent.Authored(c.Author) {
			continue
		}
		if _, ok := seen[c.Author]; ok {
			continue
		}
		seen[c.Author] = struct{}{}
		commenters = append(commenters, c.Author)
	}

	var mentioned []string
	seen = make(map[string]struct{})
	collect := func(text string) {
		for _, login := range r.scan(text) {
			if login == r.agent.String() {
				continue
			}
			if _, ok := seen[login]; ok {
				continue
			}
			seen[login] = struct{}{}
			mentioned = append(mentioned, login)
		}
	}
	collect(issue.BodyText())
	for _, c := range sorted {
		collect(c.Body)
	}

	return model.ParticipantSet{
		Primary:    primary,
		Author:     author,
		Commenters: without(commenters, author, primary),
		Mentioned:  without(mentioned, author, primary),
	}
}

// primary is the author of the newest comment that summons the agent, or the
// issue author when none does. Among equal timestamps the later delivery wins.
// The agent's own comments never elect it.
func (r *ParticipantResolver) primary(author string, sorted []model.Comment) string {
	for i := len(sorted) - 1; i >= 0; i-- {
		if r.agent.Authored(sorted[i].Author) {
			continue
		}
		if r.mentionsAgent(sorted[i].Body) {
			return sorted[i].Author
		}
	}
	return author
}

func (r *ParticipantResolver) mentionsAgent(text string) bool {
	return slices.Contains(r.scan(text), r.agent.String())
}

func without(logins []string, drop ...string) []string {
	out := make([]string, 0, len(logins))
	for _, login := range logins {
		if slices.Contains(drop, login) {
			continue
		}
		out = append(out, login)
	}
	return out
}
