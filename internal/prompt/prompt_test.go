package prompt_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/thomaseleff/bunsen/internal/model"
	"github.com/thomaseleff/bunsen/internal/prompt"
)

var _ = Describe("Prompt", func() {
	persona := prompt.Persona{Name: "Dr. Bunsen Honeydew", Identity: "agentbot"}
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	Describe("SystemPrompt", func() {
		It("names the persona and its login", func() {
			sp := prompt.SystemPrompt(persona)
			Expect(sp).To(ContainSubstring("named Dr. Bunsen Honeydew"))
			Expect(sp).To(ContainSubstring("Your comments appear as @agentbot."))
		})

		It("omits the login line without an identity", func() {
			Expect(prompt.SystemPrompt(prompt.Persona{Name: "Beaker"})).NotTo(ContainSubstring("appear as"))
		})
	})

	Describe("Transcript", func() {
		It("renders one block per comment in the given order", func() {
			out := prompt.Transcript([]model.Comment{
				{Author: "alice", Body: "hi", CreatedAt: t0},
				{Author: "bob", Body: "@agentbot please look", CreatedAt: t0.Add(time.Minute)},
			})
			Expect(out).To(Equal("**alice** said: hi\n\n**bob** said: @agentbot please look"))
		})

		It("is empty without comments", func() {
			Expect(prompt.Transcript(nil)).To(BeEmpty())
		})
	})

	Describe("BuildResponsePrompt", func() {
		It("includes the issue, transcript and persona name", func() {
			body := "The flux capacitor hums."
			out := prompt.BuildResponsePrompt(persona,
				model.Issue{Title: "Lab noise", Body: &body},
				[]model.Comment{{Author: "alice", Body: "me too", CreatedAt: t0}},
			)
			Expect(out).To(ContainSubstring("Issue Title: Lab noise\n"))
			Expect(out).To(ContainSubstring("Issue Body: The flux capacitor hums.\n"))
			Expect(out).To(ContainSubstring("**alice** said: me too"))
			Expect(out).To(HaveSuffix("Your response (as Dr. Bunsen Honeydew):"))
		})

		It("substitutes a placeholder for a missing body", func() {
			out := prompt.BuildResponsePrompt(persona, model.Issue{Title: "Empty"}, nil)
			Expect(out).To(ContainSubstring("Issue Body: No description provided.\n"))
		})
	})
})
