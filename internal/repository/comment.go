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

const commentJoinCols = `c.id, c.user_id, c.message_id, c.content, c.created_at,
	        u.id, u.username, u.avatar`

type CommentRepository struct {
	pool *pgxpool.Pool
}

func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

func scanComment(s interface{ Scan(dest ...any) error }, c *model.Comment) error {
	author := &model.UserPublic{}
	if err := s.Scan(&c.ID, &c.UserID, &c.MessageID, &c.Content, &c.CreatedAt,
		&author.ID, &author.Username, &author.Avatar); err != nil {
		return err
	}
	c.Author = author
	return nil
}

// Create вставляет комментарий. Несуществующее сообщение даёт ErrNotFound (FK).
func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	defer logger.DeferLogDuration("comment.Create", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO comments (id, user_id, message_id, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		c.ID, c.UserID, c.MessageID, c.Content,
	).Scan(&c.CreatedAt)
	if err != nil {
		return wrapError("commentRepo.Create", err)
	}
	return nil
}

// GetByID возвращает комментарий с автором inline.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	defer logger.DeferLogDuration("comment.GetByID", time.Now())()
	c := &model.Comment{}
	err := scanComment(r.pool.QueryRow(ctx,
		`SELECT `+commentJoinCols+`
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.id = $1`, id,
	), c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("commentRepo.GetByID: %w", err)
	}
	return c, nil
}

// ListByMessage возвращает комментарии сообщения в хронологическом порядке.
func (r *CommentRepository) ListByMessage(ctx context.Context, messageID string) ([]model.Comment, error) {
	defer logger.DeferLogDuration("comment.ListByMessage", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+commentJoinCols+`
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.message_id = $1
		 ORDER BY c.created_at ASC`, messageID,
	)
	if err != nil {
		return nil, wrapError("commentRepo.ListByMessage query", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0, 8)
	for rows.Next() {
		var c model.Comment
		if err := scanComment(rows, &c); err != nil {
			return nil, fmt.Errorf("commentRepo.ListByMessage scan: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commentRepo.ListByMessage rows: %w", err)
	}
	return comments, nil
}
