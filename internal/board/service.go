package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/media"
	"github.com/radboard/internal/model"
	"github.com/radboard/internal/ws"
)

var (
	// ErrValidation — входные данные не прошли проверку (пустой контент и т.п.).
	ErrValidation = errors.New("validation failed")
	// ErrForbidden — операция разрешена только автору.
	ErrForbidden = errors.New("forbidden")
)

const (
	defaultFeedLimit = 100
	maxContentLen    = 10000
	maxReactionLen   = 16
)

// MessageStore — операции над сообщениями.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message, tags []string) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	Feed(ctx context.Context, limit int) ([]model.Message, error)
	FeedByTag(ctx context.Context, tag string, limit int) ([]model.Message, error)
	ByUser(ctx context.Context, userID string, limit int) ([]model.Message, error)
	SetVideoURL(ctx context.Context, messageID, videoURL string) (bool, error)
	SetVideoURLByJob(ctx context.Context, videoID, videoURL string) ([]string, error)
}

// CommentStore — операции над комментариями.
type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	ListByMessage(ctx context.Context, messageID string) ([]model.Comment, error)
}

// TagStore — чтение тегов.
type TagStore interface {
	NamesByMessage(ctx context.Context, messageID string) ([]string, error)
	Popular(ctx context.Context, limit int) ([]model.TagCount, error)
}

// ReactionStore — операции над реакциями.
type ReactionStore interface {
	Upsert(ctx context.Context, messageID, userID, reaction string) error
	CountsByMessage(ctx context.Context, messageID string) (map[string]int, error)
}

// UserStore — чтение пользователей.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// MediaGateway — шлюз генерации медиа.
type MediaGateway interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	SubmitVideo(ctx context.Context, prompt, aspectRatio string) (string, error)
	VideoStatus(ctx context.Context, handle string) (media.Status, error)
}

// Broadcaster рассылает события всем подключённым зрителям.
type Broadcaster interface {
	Broadcast(msg ws.OutgoingMessage)
}

// PushNotifier отправляет пуш-уведомления подписчикам. Если nil — пуши не отправляются.
type PushNotifier interface {
	NotifyAll(ctx context.Context, title, body string, data map[string]string)
}

// Service — координатор мутаций доски: валидация, запись, агрегация
// и рассылка события в одном месте. Событие уходит только после коммита.
type Service struct {
	messages  MessageStore
	comments  CommentStore
	tags      TagStore
	reactions ReactionStore
	users     UserStore
	gateway   MediaGateway
	hub       Broadcaster
	push      PushNotifier
}

func NewService(
	messages MessageStore,
	comments CommentStore,
	tags TagStore,
	reactions ReactionStore,
	users UserStore,
	gateway MediaGateway,
	hub Broadcaster,
	push PushNotifier,
) *Service {
	return &Service{
		messages:  messages,
		comments:  comments,
		tags:      tags,
		reactions: reactions,
		users:     users,
		gateway:   gateway,
		hub:       hub,
		push:      push,
	}
}

// PostMessageInput — входные данные публикации.
type PostMessageInput struct {
	Content   string
	ImageData string
	VideoID   string
	Tags      string
}

// PostMessage публикует сообщение с тегами и рассылает new_message.
// Если приложен handle видео-задания и оно уже завершилось, URL видео
// проставляется сразу; ошибки опроса публикацию не блокируют.
func (s *Service) PostMessage(ctx context.Context, userID string, in PostMessageInput) (*model.Message, error) {
	defer logger.DeferLogDuration("board.PostMessage", time.Now())()
	content := strings.TrimSpace(in.Content)
	if content == "" && in.ImageData == "" && in.VideoID == "" {
		return nil, fmt.Errorf("content, image or video required: %w", ErrValidation)
	}
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("content too long: %w", ErrValidation)
	}

	m := &model.Message{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   content,
		ImageData: in.ImageData,
		VideoID:   in.VideoID,
	}

	if in.VideoID != "" {
		st, err := s.gateway.VideoStatus(ctx, in.VideoID)
		if err != nil {
			logger.Errorf("board: статус видео %s при публикации: %v", in.VideoID, err)
		} else if st.State == model.JobCompleted && st.VideoURL != "" {
			url := st.VideoURL
			m.VideoURL = &url
		}
	}

	tags := ParseTags(in.Tags)
	if err := s.messages.Create(ctx, m, tags); err != nil {
		return nil, fmt.Errorf("board.PostMessage: %w", err)
	}

	// Payload уходит денормализованным: автор (имя, аватар) внутри,
	// зрители не ходят за ним отдельно.
	author, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("board.PostMessage author: %w", err)
	}
	pub := author.ToPublic()
	m.Author = &pub

	if err := s.hydrate(ctx, m); err != nil {
		return nil, fmt.Errorf("board.PostMessage hydrate: %w", err)
	}

	s.hub.Broadcast(ws.OutgoingMessage{Type: ws.EventNewMessage, Payload: m})
	s.notifyNewMessage(m)
	return m, nil
}

// PostComment добавляет комментарий и рассылает new_comment.
func (s *Service) PostComment(ctx context.Context, userID, messageID, content string) (*model.Comment, error) {
	defer logger.DeferLogDuration("board.PostComment", time.Now())()
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("content required: %w", ErrValidation)
	}
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("content too long: %w", ErrValidation)
	}

	c := &model.Comment{
		ID:        uuid.New().String(),
		UserID:    userID,
		MessageID: messageID,
		Content:   content,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("board.PostComment: %w", err)
	}

	author, err := s.users.GetByID(ctx, userID)
	if err != nil {
		logger.Errorf("board: автор комментария %s: %v", userID, err)
	} else {
		pub := author.ToPublic()
		c.Author = &pub
	}

	s.hub.Broadcast(ws.OutgoingMessage{
		Type:    ws.EventNewComment,
		Payload: ws.NewCommentPayload{MessageID: messageID, Comment: c},
	})
	return c, nil
}

// AddReaction ставит реакцию и рассылает reaction_update с полными
// счётчиками сообщения. Повтор реакции идемпотентен, но счётчики всё
// равно пересчитываются и рассылаются — зрители сходятся к актуальному
// состоянию.
func (s *Service) AddReaction(ctx context.Context, userID, messageID, reaction string) (map[string]int, error) {
	defer logger.DeferLogDuration("board.AddReaction", time.Now())()
	reaction = strings.TrimSpace(reaction)
	if reaction == "" || len(reaction) > maxReactionLen {
		return nil, fmt.Errorf("invalid reaction: %w", ErrValidation)
	}

	if err := s.reactions.Upsert(ctx, messageID, userID, reaction); err != nil {
		return nil, fmt.Errorf("board.AddReaction: %w", err)
	}
	counts, err := s.reactions.CountsByMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("board.AddReaction counts: %w", err)
	}

	s.hub.Broadcast(ws.OutgoingMessage{
		Type:    ws.EventReactionUpdate,
		Payload: ws.ReactionUpdatePayload{MessageID: messageID, Reactions: counts},
	})
	return counts, nil
}

// GenerateImage синхронно генерирует изображение по prompt (base64).
func (s *Service) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt required: %w", ErrValidation)
	}
	return s.gateway.GenerateImage(ctx, prompt)
}

// GenerateVideo ставит асинхронное видео-задание, возвращает handle.
func (s *Service) GenerateVideo(ctx context.Context, prompt, aspectRatio string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt required: %w", ErrValidation)
	}
	return s.gateway.SubmitVideo(ctx, prompt, aspectRatio)
}

// CheckVideoStatus опрашивает видео-задание. Первый опрос, увидевший
// completed, проставляет URL всем сообщениям с этим handle и рассылает
// video_ready по каждому; повторные опросы ничего не патчат и не шлют.
func (s *Service) CheckVideoStatus(ctx context.Context, handle string) (media.Status, error) {
	defer logger.DeferLogDuration("board.CheckVideoStatus", time.Now())()
	st, err := s.gateway.VideoStatus(ctx, handle)
	if err != nil {
		return media.Status{}, fmt.Errorf("board.CheckVideoStatus: %w", err)
	}

	if st.State == model.JobCompleted && st.VideoURL != "" {
		patched, err := s.messages.SetVideoURLByJob(ctx, handle, st.VideoURL)
		if err != nil {
			return media.Status{}, fmt.Errorf("board.CheckVideoStatus patch: %w", err)
		}
		for _, id := range patched {
			s.hub.Broadcast(ws.OutgoingMessage{
				Type:    ws.EventVideoReady,
				Payload: ws.VideoReadyPayload{MessageID: id, VideoURL: st.VideoURL},
			})
		}
	}
	return st, nil
}

// UpdateVideoURL вручную проставляет URL видео сообщению. Разрешено
// только автору; первый успешный патч рассылает video_ready.
func (s *Service) UpdateVideoURL(ctx context.Context, userID, messageID, videoURL string) error {
	defer logger.DeferLogDuration("board.UpdateVideoURL", time.Now())()
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return fmt.Errorf("video_url required: %w", ErrValidation)
	}

	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("board.UpdateVideoURL: %w", err)
	}
	if m.UserID != userID {
		return fmt.Errorf("message %s: %w", messageID, ErrForbidden)
	}

	patched, err := s.messages.SetVideoURL(ctx, messageID, videoURL)
	if err != nil {
		return fmt.Errorf("board.UpdateVideoURL: %w", err)
	}
	if patched {
		s.hub.Broadcast(ws.OutgoingMessage{
			Type:    ws.EventVideoReady,
			Payload: ws.VideoReadyPayload{MessageID: messageID, VideoURL: videoURL},
		})
	}
	return nil
}

// Feed возвращает агрегированную ленту (новые первыми).
func (s *Service) Feed(ctx context.Context, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("board.Feed", time.Now())()
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	messages, err := s.messages.Feed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("board.Feed: %w", err)
	}
	return s.hydrateAll(ctx, messages)
}

// TagFeed возвращает агрегированную ленту по тегу.
func (s *Service) TagFeed(ctx context.Context, tag string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("board.TagFeed", time.Now())()
	tag = NormalizeTag(tag)
	if tag == "" {
		return nil, fmt.Errorf("tag required: %w", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	messages, err := s.messages.FeedByTag(ctx, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("board.TagFeed: %w", err)
	}
	return s.hydrateAll(ctx, messages)
}

// PopularTags возвращает топ тегов по числу использований.
func (s *Service) PopularTags(ctx context.Context, limit int) ([]model.TagCount, error) {
	if limit <= 0 {
		limit = 10
	}
	counts, err := s.tags.Popular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("board.PopularTags: %w", err)
	}
	return counts, nil
}

// Profile возвращает публичный профиль и агрегированные сообщения автора.
func (s *Service) Profile(ctx context.Context, username string) (*model.UserPublic, []model.Message, error) {
	defer logger.DeferLogDuration("board.Profile", time.Now())()
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("board.Profile: %w", err)
	}
	messages, err := s.messages.ByUser(ctx, u.ID, defaultFeedLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("board.Profile messages: %w", err)
	}
	messages, err = s.hydrateAll(ctx, messages)
	if err != nil {
		return nil, nil, err
	}
	pub := u.ToPublic()
	return &pub, messages, nil
}

func (s *Service) notifyNewMessage(m *model.Message) {
	if s.push == nil {
		return
	}
	title := "Новое сообщение"
	if m.Author != nil && m.Author.Username != "" {
		title = m.Author.Username
	}
	data := map[string]string{"message_id": m.ID}
	go s.push.NotifyAll(context.Background(), title, truncateBody(m.Content, 120), data)
}

// truncateBody укорачивает текст до max рун. Резать по байтам нельзя:
// срез посреди многобайтовой руны даёт невалидный UTF-8 в payload пуша.
func truncateBody(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
