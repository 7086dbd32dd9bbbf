package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thomaseleff/bunsen/common/llm"
	"github.com/thomaseleff/bunsen/internal/model"
	"github.com/thomaseleff/bunsen/internal/prompt"
)

var errBlankReply = errors.New("reply is blank")

// ReplyGenerator turns a rendered prompt into the reply text.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, prompt string) (string, error)
}

type llmReplyGenerator struct {
	client    llm.Client
	system    string
	maxTokens int
}

func NewLLMReplyGenerator(client llm.Client, persona prompt.Persona, maxTokens int) ReplyGenerator {
	return &llmReplyGenerator{
		client:    client,
		system:    prompt.SystemPrompt(persona),
		maxTokens: maxTokens,
	}
}

func (g *llmReplyGenerator) GenerateReply(ctx context.Context, userPrompt string) (string, error) {
	resp, err := g.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: g.system},
			{Role: llm.RoleUser, Content: userPrompt},
		},
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating reply with %s: %w", g.client.Model(), err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", errBlankReply
	}
	return reply, nil
}

// ComposeReply addresses reply to the primary participant and copies the rest:
//
//	@primary
//
//	reply
//
//	cc @a, @b
//
// The cc line is left out when nobody else takes part.
func ComposeReply(set model.ParticipantSet, reply string) string {
	var sb strings.Builder
	if set.Primary != "" {
		sb.WriteString("@" + set.Primary + "\n\n")
	}
	sb.WriteString(strings.TrimSpace(reply))

	cc := set.CC()
	if len(cc) > 0 {
		handles := make([]string, len(cc))
		for i, login := range cc {
			handles[i] = "@" + login
		}
		sb.WriteString("\n\ncc " + strings.Join(handles, ", "))
	}
	return sb.String()
}
