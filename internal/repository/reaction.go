package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radboard/internal/logger"
)

type ReactionRepository struct {
	pool *pgxpool.Pool
}

func NewReactionRepository(pool *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{pool: pool}
}

// Upsert ставит реакцию пользователя на сообщение. Повтор той же тройки
// (message, user, reaction) — no-op благодаря DO UPDATE: без ошибки,
// счётчики не двигаются. Несуществующее сообщение даёт ErrNotFound (FK).
func (r *ReactionRepository) Upsert(ctx context.Context, messageID, userID, reaction string) error {
	defer logger.DeferLogDuration("reaction.Upsert", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reactions (message_id, user_id, reaction)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (message_id, user_id, reaction)
		 DO UPDATE SET reaction = EXCLUDED.reaction`,
		messageID, userID, reaction,
	)
	if err != nil {
		return wrapError("reactionRepo.Upsert", err)
	}
	return nil
}

// CountsByMessage возвращает карту reaction → число уникальных пользователей.
func (r *ReactionRepository) CountsByMessage(ctx context.Context, messageID string) (map[string]int, error) {
	defer logger.DeferLogDuration("reaction.CountsByMessage", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT reaction, COUNT(*)
		 FROM reactions
		 WHERE message_id = $1
		 GROUP BY reaction`, messageID,
	)
	if err != nil {
		return nil, wrapError("reactionRepo.CountsByMessage query", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reaction string
		var n int
		if err := rows.Scan(&reaction, &n); err != nil {
			return nil, wrapError("reactionRepo.CountsByMessage scan", err)
		}
		counts[reaction] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("reactionRepo.CountsByMessage rows", err)
	}
	return counts, nil
}
