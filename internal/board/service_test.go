package board

import (
	"context"
	"sort"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/radboard/internal/media"
	"github.com/radboard/internal/model"
	"github.com/radboard/internal/repository"
	"github.com/radboard/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory фейки хранилищ ---

type fakeMessages struct {
	byID  map[string]*model.Message
	tags  map[string][]string
	order []string
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{byID: map[string]*model.Message{}, tags: map[string][]string{}}
}

func (f *fakeMessages) Create(_ context.Context, m *model.Message, tags []string) error {
	cp := *m
	f.byID[m.ID] = &cp
	f.tags[m.ID] = tags
	f.order = append([]string{m.ID}, f.order...)
	return nil
}

func (f *fakeMessages) GetByID(_ context.Context, id string) (*model.Message, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessages) Feed(_ context.Context, limit int) ([]model.Message, error) {
	out := make([]model.Message, 0, limit)
	for _, id := range f.order {
		if len(out) == limit {
			break
		}
		out = append(out, *f.byID[id])
	}
	return out, nil
}

func (f *fakeMessages) FeedByTag(_ context.Context, tag string, limit int) ([]model.Message, error) {
	out := make([]model.Message, 0, limit)
	for _, id := range f.order {
		for _, t := range f.tags[id] {
			if t == tag {
				out = append(out, *f.byID[id])
				break
			}
		}
	}
	return out, nil
}

func (f *fakeMessages) ByUser(_ context.Context, userID string, limit int) ([]model.Message, error) {
	out := make([]model.Message, 0, limit)
	for _, id := range f.order {
		if f.byID[id].UserID == userID {
			out = append(out, *f.byID[id])
		}
	}
	return out, nil
}

func (f *fakeMessages) SetVideoURL(_ context.Context, messageID, videoURL string) (bool, error) {
	m, ok := f.byID[messageID]
	if !ok || m.VideoURL != nil {
		return false, nil
	}
	m.VideoURL = &videoURL
	return true, nil
}

func (f *fakeMessages) SetVideoURLByJob(_ context.Context, videoID, videoURL string) ([]string, error) {
	var ids []string
	for _, id := range f.order {
		m := f.byID[id]
		if m.VideoID == videoID && m.VideoURL == nil {
			m.VideoURL = &videoURL
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeComments struct {
	byMessage map[string][]model.Comment
}

func (f *fakeComments) Create(_ context.Context, c *model.Comment) error {
	f.byMessage[c.MessageID] = append(f.byMessage[c.MessageID], *c)
	return nil
}

func (f *fakeComments) ListByMessage(_ context.Context, messageID string) ([]model.Comment, error) {
	return f.byMessage[messageID], nil
}

type fakeTags struct {
	msgs *fakeMessages
}

func (f *fakeTags) NamesByMessage(_ context.Context, messageID string) ([]string, error) {
	names := append([]string(nil), f.msgs.tags[messageID]...)
	sort.Strings(names)
	return names, nil
}

func (f *fakeTags) Popular(_ context.Context, limit int) ([]model.TagCount, error) {
	counts := map[string]int{}
	for _, tags := range f.msgs.tags {
		for _, t := range tags {
			counts[t]++
		}
	}
	out := make([]model.TagCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, model.TagCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeReactions struct {
	// ключ: messageID + userID + reaction
	set map[[3]string]struct{}
}

func (f *fakeReactions) Upsert(_ context.Context, messageID, userID, reaction string) error {
	f.set[[3]string{messageID, userID, reaction}] = struct{}{}
	return nil
}

func (f *fakeReactions) CountsByMessage(_ context.Context, messageID string) (map[string]int, error) {
	counts := map[string]int{}
	for k := range f.set {
		if k[0] == messageID {
			counts[k[2]]++
		}
	}
	return counts, nil
}

type fakeUsers struct {
	byID map[string]*model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeGateway struct {
	statuses map[string]media.Status
	imageB64 string
	handle   string
}

func (f *fakeGateway) GenerateImage(context.Context, string) (string, error) {
	return f.imageB64, nil
}

func (f *fakeGateway) SubmitVideo(context.Context, string, string) (string, error) {
	return f.handle, nil
}

func (f *fakeGateway) VideoStatus(_ context.Context, handle string) (media.Status, error) {
	st, ok := f.statuses[handle]
	if !ok {
		return media.Status{}, media.ErrNotConfigured
	}
	return st, nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []ws.OutgoingMessage
}

func (f *fakeHub) Broadcast(msg ws.OutgoingMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, msg)
}

func (f *fakeHub) byType(t ws.EventType) []ws.OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ws.OutgoingMessage
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	svc      *Service
	messages *fakeMessages
	hub      *fakeHub
	gateway  *fakeGateway
	users    *fakeUsers
}

func newTestEnv() *testEnv {
	msgs := newFakeMessages()
	users := &fakeUsers{byID: map[string]*model.User{
		"u1": {ID: "u1", Username: "alice", Avatar: "🦊"},
		"u2": {ID: "u2", Username: "bob"},
	}}
	gw := &fakeGateway{statuses: map[string]media.Status{}}
	hub := &fakeHub{}
	svc := NewService(
		msgs,
		&fakeComments{byMessage: map[string][]model.Comment{}},
		&fakeTags{msgs: msgs},
		&fakeReactions{set: map[[3]string]struct{}{}},
		users,
		gw,
		hub,
		nil,
	)
	return &testEnv{svc: svc, messages: msgs, hub: hub, gateway: gw, users: users}
}

func TestPostMessageValidation(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{Content: "   "})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, env.hub.events)

	// сообщение только с изображением допустимо
	m, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{ImageData: "aW1n"})
	require.NoError(t, err)
	assert.Empty(t, m.Content)
}

func TestPostMessageBroadcastsHydrated(t *testing.T) {
	env := newTestEnv()

	m, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{
		Content: "hello board",
		Tags:    "Go, go, News ",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "news"}, m.Tags)
	assert.NotNil(t, m.Comments)
	assert.NotNil(t, m.Reactions)

	events := env.hub.byType(ws.EventNewMessage)
	require.Len(t, events, 1)
	got, ok := events[0].Payload.(*model.Message)
	require.True(t, ok)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "hello board", got.Content)

	// payload денормализован: автор внутри, а не только user_id
	require.NotNil(t, got.Author)
	assert.Equal(t, "alice", got.Author.Username)
	assert.Equal(t, "🦊", got.Author.Avatar)
}

func TestPostMessageAttachesCompletedVideo(t *testing.T) {
	env := newTestEnv()
	env.gateway.statuses["gen-1"] = media.Status{State: model.JobCompleted, VideoURL: "https://cdn/v.mp4"}

	m, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{
		Content: "watch this",
		VideoID: "gen-1",
	})
	require.NoError(t, err)
	require.NotNil(t, m.VideoURL)
	assert.Equal(t, "https://cdn/v.mp4", *m.VideoURL)
}

func TestPostMessagePendingVideoLeavesURLUnset(t *testing.T) {
	env := newTestEnv()
	env.gateway.statuses["gen-2"] = media.Status{State: model.JobProcessing}

	m, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{
		Content: "still dreaming",
		VideoID: "gen-2",
	})
	require.NoError(t, err)
	assert.Nil(t, m.VideoURL)
}

func TestPostCommentBroadcastsWithAuthor(t *testing.T) {
	env := newTestEnv()
	m, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{Content: "root"})
	require.NoError(t, err)

	c, err := env.svc.PostComment(context.Background(), "u2", m.ID, "nice one")
	require.NoError(t, err)
	require.NotNil(t, c.Author)
	assert.Equal(t, "bob", c.Author.Username)

	events := env.hub.byType(ws.EventNewComment)
	require.Len(t, events, 1)
	payload := events[0].Payload.(ws.NewCommentPayload)
	assert.Equal(t, m.ID, payload.MessageID)
	assert.Equal(t, c.ID, payload.Comment.ID)
}

func TestAddReactionRecountsAndBroadcasts(t *testing.T) {
	env := newTestEnv()
	m, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{Content: "react to me"})
	require.NoError(t, err)

	counts, err := env.svc.AddReaction(context.Background(), "u1", m.ID, "like")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"like": 1}, counts)

	counts, err = env.svc.AddReaction(context.Background(), "u2", m.ID, "like")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"like": 2}, counts)

	// повтор той же реакции идемпотентен, но событие всё равно уходит
	counts, err = env.svc.AddReaction(context.Background(), "u2", m.ID, "like")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"like": 2}, counts)
	assert.Len(t, env.hub.byType(ws.EventReactionUpdate), 3)
}

func TestAddReactionValidation(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.AddReaction(context.Background(), "u1", "m1", "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckVideoStatusPatchesOnce(t *testing.T) {
	env := newTestEnv()
	env.gateway.statuses["gen-3"] = media.Status{State: model.JobProcessing}

	m, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{
		Content: "video pending",
		VideoID: "gen-3",
	})
	require.NoError(t, err)
	assert.Nil(t, m.VideoURL)

	env.gateway.statuses["gen-3"] = media.Status{State: model.JobCompleted, VideoURL: "https://cdn/done.mp4"}

	st, err := env.svc.CheckVideoStatus(context.Background(), "gen-3")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, st.State)

	events := env.hub.byType(ws.EventVideoReady)
	require.Len(t, events, 1)
	payload := events[0].Payload.(ws.VideoReadyPayload)
	assert.Equal(t, m.ID, payload.MessageID)
	assert.Equal(t, "https://cdn/done.mp4", payload.VideoURL)

	// повторный completed-poll ничего не патчит и не шлёт
	_, err = env.svc.CheckVideoStatus(context.Background(), "gen-3")
	require.NoError(t, err)
	assert.Len(t, env.hub.byType(ws.EventVideoReady), 1)
}

func TestUpdateVideoURLAuthorOnly(t *testing.T) {
	env := newTestEnv()
	m, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{Content: "mine"})
	require.NoError(t, err)

	err = env.svc.UpdateVideoURL(context.Background(), "u2", m.ID, "https://cdn/x.mp4")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, env.hub.byType(ws.EventVideoReady))

	err = env.svc.UpdateVideoURL(context.Background(), "u1", m.ID, "https://cdn/x.mp4")
	require.NoError(t, err)
	assert.Len(t, env.hub.byType(ws.EventVideoReady), 1)

	// повторный патч идемпотентен
	err = env.svc.UpdateVideoURL(context.Background(), "u1", m.ID, "https://cdn/other.mp4")
	require.NoError(t, err)
	assert.Len(t, env.hub.byType(ws.EventVideoReady), 1)
}

func TestUpdateVideoURLNotFound(t *testing.T) {
	env := newTestEnv()
	err := env.svc.UpdateVideoURL(context.Background(), "u1", "missing", "https://cdn/x.mp4")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTagFeed(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{Content: "a", Tags: "go"})
	require.NoError(t, err)
	_, err = env.svc.PostMessage(context.Background(), "u1", PostMessageInput{Content: "b", Tags: "web"})
	require.NoError(t, err)

	feed, err := env.svc.TagFeed(context.Background(), "  GO ", 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "a", feed[0].Content)

	_, err = env.svc.TagFeed(context.Background(), "  ", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPopularTags(t *testing.T) {
	env := newTestEnv()
	for _, in := range []PostMessageInput{
		{Content: "1", Tags: "go,web"},
		{Content: "2", Tags: "go"},
		{Content: "3", Tags: "art"},
	} {
		_, err := env.svc.PostMessage(context.Background(), "u1", in)
		require.NoError(t, err)
	}

	tags, err := env.svc.PopularTags(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, model.TagCount{Name: "go", Count: 2}, tags[0])
	// art и web по одному использованию: побеждает лексикографически меньший
	assert.Equal(t, model.TagCount{Name: "art", Count: 1}, tags[1])
}

func TestTruncateBodyKeepsValidUTF8(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short untouched", in: "hello", max: 120, want: "hello"},
		{name: "exact length untouched", in: "abcde", max: 5, want: "abcde"},
		{name: "ascii truncated", in: "abcdefghij", max: 8, want: "abcde..."},
		// русский текст: байтовый срез здесь попал бы в середину руны
		{name: "cyrillic truncated", in: "привет доска", max: 9, want: "привет..."},
		{name: "emoji truncated", in: "🎉🎉🎉🎉🎉🎉", max: 5, want: "🎉🎉..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := truncateBody(tc.in, tc.max)
			assert.Equal(t, tc.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.PostMessage(context.Background(), "u1", PostMessageInput{Content: "by alice"})
	require.NoError(t, err)
	_, err = env.svc.PostMessage(context.Background(), "u2", PostMessageInput{Content: "by bob"})
	require.NoError(t, err)

	pub, messages, err := env.svc.Profile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", pub.Username)
	require.Len(t, messages, 1)
	assert.Equal(t, "by alice", messages[0].Content)

	_, _, err = env.svc.Profile(context.Background(), "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
