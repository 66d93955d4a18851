package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/model"
)

// dbtx — общий срез pgxpool.Pool и pgx.Tx, чтобы get-or-create работал
// и отдельно, и внутри транзакции вставки сообщения.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TagRepository struct {
	pool *pgxpool.Pool
}

func NewTagRepository(pool *pgxpool.Pool) *TagRepository {
	return &TagRepository{pool: pool}
}

// getOrCreateTag возвращает id тега по имени, создавая его при первом использовании.
// Конкурентное первое использование не создаёт дублей: conflict-tolerant upsert
// с RETURNING отдаёт id существующей строки, никакого check-then-insert.
func getOrCreateTag(ctx context.Context, db dbtx, name string) (string, error) {
	var id string
	err := db.QueryRow(ctx,
		`INSERT INTO tags (id, name) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		uuid.New().String(), name,
	).Scan(&id)
	if err != nil {
		return "", wrapError("tagRepo.getOrCreate", err)
	}
	return id, nil
}

// GetOrCreate — атомарный get-or-create по нормализованному имени.
func (r *TagRepository) GetOrCreate(ctx context.Context, name string) (string, error) {
	defer logger.DeferLogDuration("tag.GetOrCreate", time.Now())()
	return getOrCreateTag(ctx, r.pool, name)
}

// NamesByMessage возвращает имена тегов сообщения.
func (r *TagRepository) NamesByMessage(ctx context.Context, messageID string) ([]string, error) {
	defer logger.DeferLogDuration("tag.NamesByMessage", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT t.name
		 FROM tags t
		 JOIN message_tags mt ON mt.tag_id = t.id
		 WHERE mt.message_id = $1
		 ORDER BY t.name`, messageID,
	)
	if err != nil {
		return nil, wrapError("tagRepo.NamesByMessage query", err)
	}
	defer rows.Close()

	names := make([]string, 0, 4)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapError("tagRepo.NamesByMessage scan", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("tagRepo.NamesByMessage rows", err)
	}
	return names, nil
}

// Popular возвращает топ-N тегов по числу использований.
// Порядок детерминированный: count DESC, затем name ASC при равенстве.
func (r *TagRepository) Popular(ctx context.Context, limit int) ([]model.TagCount, error) {
	defer logger.DeferLogDuration("tag.Popular", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT t.name, COUNT(*) AS tag_count
		 FROM tags t
		 JOIN message_tags mt ON mt.tag_id = t.id
		 GROUP BY t.id, t.name
		 ORDER BY tag_count DESC, t.name ASC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, wrapError("tagRepo.Popular query", err)
	}
	defer rows.Close()

	counts := make([]model.TagCount, 0, limit)
	for rows.Next() {
		var tc model.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, wrapError("tagRepo.Popular scan", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("tagRepo.Popular rows", err)
	}
	return counts, nil
}
