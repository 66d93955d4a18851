package board

import (
	"context"
	"fmt"

	"github.com/radboard/internal/model"
)

// hydrate пересчитывает агрегаты одного сообщения из хранилища:
// теги, комментарии (хронологически) и счётчики реакций. Агрегаты
// всегда не-nil, чтобы JSON отдавал [] и {} вместо null.
func (s *Service) hydrate(ctx context.Context, m *model.Message) error {
	tags, err := s.tags.NamesByMessage(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("hydrate tags %s: %w", m.ID, err)
	}
	if tags == nil {
		tags = []string{}
	}
	m.Tags = tags

	comments, err := s.comments.ListByMessage(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("hydrate comments %s: %w", m.ID, err)
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	m.Comments = comments

	reactions, err := s.reactions.CountsByMessage(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("hydrate reactions %s: %w", m.ID, err)
	}
	if reactions == nil {
		reactions = map[string]int{}
	}
	m.Reactions = reactions
	return nil
}

func (s *Service) hydrateAll(ctx context.Context, messages []model.Message) ([]model.Message, error) {
	for i := range messages {
		if err := s.hydrate(ctx, &messages[i]); err != nil {
			return nil, err
		}
	}
	return messages, nil
}
