package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/ids"
	"github.com/frahmantamala/securemind/internal/roles"
)

type Service struct {
	facts       FactRepositoryAPI
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewService(facts FactRepositoryAPI, broadcaster *Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		facts:       facts,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (s *Service) Broadcast(ctx context.Context, req Broadcast) (int, error) {
	return s.broadcaster.Broadcast(ctx, req)
}

// PublishFact stores the fact and notifies every user holding one of its roles.
func (s *Service) PublishFact(ctx context.Context, cmd PublishFactCommand) (*PublishFactResponse, error) {
	fact := &Fact{
		ID:        ids.New(),
		Message:   cmd.Message,
		Roles:     cmd.Roles,
		Priority:  cmd.Priority,
		Type:      cmd.Type,
		CreatedBy: cmd.AuthorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.facts.Create(ctx, fact); err != nil {
		return nil, internal.NewInternalError("failed to store fact", err)
	}
	s.logger.InfoContext(ctx, "fact published", "fact_id", fact.ID, "roles", roles.Strings(fact.Roles), "author", cmd.AuthorID)

	count, err := s.broadcaster.Broadcast(ctx, Broadcast{
		Kind:    KindFact,
		RefID:   fact.ID,
		Title:   cmd.Title,
		Message: cmd.Message,
		Target:  Target{Type: TargetRoles, Roles: roles.Strings(fact.Roles)},
	})
	if err != nil {
		return &PublishFactResponse{ID: fact.ID, Count: count}, err
	}
	return &PublishFactResponse{ID: fact.ID, Count: count}, nil
}
