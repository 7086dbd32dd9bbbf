package model

// AgentIdentity is the reserved login of the automated participant.
type AgentIdentity string

func (a AgentIdentity) String() string {
	return string(a)
}

// Authored reports whether login belongs to the agent. GitHub App
// installations comment as "<slug>[bot]", so both forms match.
func (a AgentIdentity) Authored(login string) bool {
	if a == "" {
		return false
	}
	return login == string(a) || login == string(a)+"[bot]"
}

// ParticipantSet is derived per delivery and never stored.
// Author and Primary never reappear in Commenters or Mentioned.
type ParticipantSet struct {
	Primary    string
	Author     string
	Commenters []string // first-appearance order
	Mentioned  []string // first-appearance order, issue body first
}

// CC returns the identities to notify besides the primary: commenters
// followed by mentioned identities not already listed.
func (p ParticipantSet) CC() []string {
	seen := make(map[string]struct{}, len(p.Commenters)+len(p.Mentioned))
	cc := make([]string, 0, len(p.Commenters)+len(p.Mentioned))
	for _, group := range [][]string{p.Commenters, p.Mentioned} {
		for _, login := range group {
			if _, ok := seen[login]; ok {
				continue
			}
			seen[login] = struct{}{}
			cc = append(cc, login)
		}
	}
	return cc
}
