package service

import (
	"fmt"

	"github.com/thomaseleff/bunsen/core/config"
	"github.com/thomaseleff/bunsen/internal/lock"
	"github.com/thomaseleff/bunsen/internal/mapper"
	"github.com/thomaseleff/bunsen/internal/model"
	"github.com/thomaseleff/bunsen/internal/prompt"
	"github.com/thomaseleff/bunsen/internal/service/issue_tracker"
)

type ServicesConfig struct {
	Config   config.Config
	Trackers issue_tracker.Provider
	Replies  ReplyGenerator // nil for tools that never reply
	Locker   lock.Locker
}

type Services struct {
	cfg      config.Config
	trackers issue_tracker.Provider
	replies  ReplyGenerator
	locker   lock.Locker
	scanner  MentionScanner
}

func NewServices(cfg ServicesConfig) (*Services, error) {
	scanner, err := ScannerFor(cfg.Config.Mention)
	if err != nil {
		return nil, fmt.Errorf("configuring mention scanner: %w", err)
	}

	locker := cfg.Locker
	if locker == nil {
		locker = lock.NopLocker{}
	}

	return &Services{
		cfg:      cfg.Config,
		trackers: cfg.Trackers,
		replies:  cfg.Replies,
		locker:   locker,
		scanner:  scanner,
	}, nil
}

func (s *Services) Agent() model.AgentIdentity {
	return model.AgentIdentity(s.cfg.Agent.Identity)
}

func (s *Services) Persona() prompt.Persona {
	return prompt.Persona{Name: s.cfg.Agent.Name, Identity: s.Agent()}
}

func (s *Services) WebhookSecret() []byte {
	return []byte(s.cfg.GitHub.WebhookSecret)
}

func (s *Services) Trackers() issue_tracker.Provider {
	return s.trackers
}

func (s *Services) Mapper() mapper.EventMapper {
	return mapper.NewGitHubEventMapper(s.Agent(), s.cfg.GitHub.TriggerLabel)
}

func (s *Services) Resolver() *ParticipantResolver {
	return NewParticipantResolver(s.Agent(), s.scanner)
}

func (s *Services) Engagement() *EngagementDetector {
	return NewEngagementDetector(s.Resolver())
}

func (s *Services) Dispatcher() Dispatcher {
	return NewDispatcher(s.trackers, s.replies, s.locker, DispatcherConfig{
		Agent:            s.Agent(),
		Persona:          s.Persona(),
		Scanner:          s.scanner,
		MainBranch:       s.cfg.GitHub.MainBranch,
		WorkflowFilename: s.cfg.GitHub.WorkflowFilename,
		GitHubTimeout:    s.cfg.GitHub.Timeout,
		LLMTimeout:       s.cfg.LLM.Timeout,
	})
}
