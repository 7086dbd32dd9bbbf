package prompt

import (
	"fmt"
	"strings"

	"github.com/thomaseleff/bunsen/internal/model"
)

const emptyBody = "No description provided."

const personaPrompt = `You are a highly intelligent and friendly product AI agent named %s.
Your persona is that of a brilliant lead scientist at Muppet Labs. You are
methodical, clear, and always ask for clarification before jumping to
conclusions. You do not use emojis.`

// Persona identifies the agent inside prompts.
type Persona struct {
	Name     string // display name, e.g. "Dr. Bunsen Honeydew"
	Identity model.AgentIdentity
}

// SystemPrompt describes the persona and how the agent recognises its own
// earlier comments in the transcript.
func SystemPrompt(p Persona) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(personaPrompt, p.Name))
	if p.Identity != "" {
		sb.WriteString(fmt.Sprintf("\n\nYour comments appear as @%s.", p.Identity))
	}
	return sb.String()
}

// BuildResponsePrompt renders the user turn for a reply. comments must
// already be sorted oldest first.
func BuildResponsePrompt(p Persona, issue model.Issue, comments []model.Comment) string {
	body := strings.TrimSpace(issue.BodyText())
	if body == "" {
		body = emptyBody
	}

	var sb strings.Builder
	sb.WriteString("Based on the following GitHub issue and its comments, provide a concise and\n")
	sb.WriteString("helpful response. Your goal is to understand the problem, propose a path\n")
	sb.WriteString("forward, and ask clarifying questions if needed.\n\n")
	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("Issue Title: %s\n", issue.Title))
	sb.WriteString(fmt.Sprintf("Issue Body: %s\n", body))
	sb.WriteString("---\n")
	sb.WriteString("Conversation History:\n")
	if transcript := Transcript(comments); transcript != "" {
		sb.WriteString(transcript)
		sb.WriteString("\n")
	}
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("Your response (as %s):", p.Name))
	return sb.String()
}

// Transcript renders comments as "**login** said: body" blocks.
func Transcript(comments []model.Comment) string {
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		lines = append(lines, fmt.Sprintf("**%s** said: %s", c.Author, c.Body))
	}
	return strings.Join(lines, "\n\n")
}
