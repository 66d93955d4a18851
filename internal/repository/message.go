package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/model"
)

const messageJoinCols = `m.id, m.user_id, m.content, m.image_data, m.video_id, m.video_url, m.created_at,
	        u.id, u.username, u.avatar`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.Message) error {
	author := &model.UserPublic{}
	if err := s.Scan(&m.ID, &m.UserID, &m.Content, &m.ImageData, &m.VideoID, &m.VideoURL, &m.CreatedAt,
		&author.ID, &author.Username, &author.Avatar); err != nil {
		return err
	}
	m.Author = author
	return nil
}

// Create вставляет сообщение и связи с тегами в одной транзакции:
// частично применённая запись никогда не видна читателям. Timestamp
// назначает БД (DEFAULT now()). Дубликаты связей message_tags поглощаются.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message, tagNames []string) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapError("msgRepo.Create begin", err)
	}
	// Rollback после Commit — no-op; гарантирует освобождение на всех путях ошибок.
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (id, user_id, content, image_data, video_id, video_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		m.ID, m.UserID, m.Content, m.ImageData, m.VideoID, m.VideoURL,
	).Scan(&m.CreatedAt)
	if err != nil {
		return wrapError("msgRepo.Create insert", err)
	}

	for _, name := range tagNames {
		tagID, err := getOrCreateTag(ctx, tx, name)
		if err != nil {
			return fmt.Errorf("msgRepo.Create tag %q: %w", name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO message_tags (message_id, tag_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			m.ID, tagID,
		); err != nil {
			return wrapError("msgRepo.Create link", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapError("msgRepo.Create commit", err)
	}
	return nil
}

// GetByID возвращает денормализованную строку сообщения (автор inline).
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.Message{}
	err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageJoinCols+`
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.id = $1`, id,
	), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// Feed возвращает ленту сообщений (новые первыми).
func (r *MessageRepository) Feed(ctx context.Context, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.Feed", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageJoinCols+`
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 ORDER BY m.created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, wrapError("msgRepo.Feed query", err)
	}
	return collectMessages(rows, limit, "msgRepo.Feed")
}

// FeedByTag возвращает ленту, отфильтрованную по нормализованному имени тега.
func (r *MessageRepository) FeedByTag(ctx context.Context, tag string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.FeedByTag", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageJoinCols+`
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 JOIN message_tags mt ON mt.message_id = m.id
		 JOIN tags t ON t.id = mt.tag_id
		 WHERE t.name = $1
		 ORDER BY m.created_at DESC
		 LIMIT $2`, tag, limit,
	)
	if err != nil {
		return nil, wrapError("msgRepo.FeedByTag query", err)
	}
	return collectMessages(rows, limit, "msgRepo.FeedByTag")
}

// ByUser возвращает сообщения автора (для профиля), новые первыми.
func (r *MessageRepository) ByUser(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ByUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageJoinCols+`
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.user_id = $1
		 ORDER BY m.created_at DESC
		 LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, wrapError("msgRepo.ByUser query", err)
	}
	return collectMessages(rows, limit, "msgRepo.ByUser")
}

func collectMessages(rows pgx.Rows, capHint int, op string) ([]model.Message, error) {
	defer rows.Close()
	messages := make([]model.Message, 0, capHint)
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return messages, nil
}

// SetVideoURLByJob проставляет video_url сообщениям с данным handle задания,
// только если URL ещё не установлен (идемпотентно: повторный completed-poll
// ничего не меняет). Возвращает id затронутых сообщений.
func (r *MessageRepository) SetVideoURLByJob(ctx context.Context, videoID, videoURL string) ([]string, error) {
	defer logger.DeferLogDuration("msg.SetVideoURLByJob", time.Now())()
	rows, err := r.pool.Query(ctx,
		`UPDATE messages SET video_url = $1
		 WHERE video_id = $2 AND video_url IS NULL
		 RETURNING id`, videoURL, videoID,
	)
	if err != nil {
		return nil, wrapError("msgRepo.SetVideoURLByJob", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("msgRepo.SetVideoURLByJob scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetVideoURL проставляет video_url по id сообщения, если он ещё не установлен.
// Возвращает true при первом успешном патче.
func (r *MessageRepository) SetVideoURL(ctx context.Context, messageID, videoURL string) (bool, error) {
	defer logger.DeferLogDuration("msg.SetVideoURL", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET video_url = $1
		 WHERE id = $2 AND video_url IS NULL`, videoURL, messageID,
	)
	if err != nil {
		return false, wrapError("msgRepo.SetVideoURL", err)
	}
	return tag.RowsAffected() > 0, nil
}
