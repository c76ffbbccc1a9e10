package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lalith-99/echogram/internal/apperr"
	"github.com/lalith-99/echogram/internal/models"
	"github.com/lalith-99/echogram/internal/social"
	"github.com/stretchr/testify/mock"
)

type mockMemberRepo struct {
	mock.Mock
}

func (m *mockMemberRepo) member(args mock.Arguments) (*models.Member, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *mockMemberRepo) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	return m.member(m.Called(ctx, member))
}

func (m *mockMemberRepo) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	return m.member(m.Called(ctx, id))
}

func (m *mockMemberRepo) GetByUsername(ctx context.Context, username string) (*models.Member, error) {
	return m.member(m.Called(ctx, username))
}

func (m *mockMemberRepo) GetBySocialEmail(ctx context.Context, provider models.SocialProvider, email string) (*models.Member, error) {
	return m.member(m.Called(ctx, provider, email))
}

func (m *mockMemberRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *mockMemberRepo) UpdateEmail(ctx context.Context, id int64, email string) error {
	return m.Called(ctx, id, email).Error(0)
}

func (m *mockMemberRepo) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockOTPService struct {
	mock.Mock
}

func (m *mockOTPService) Issue(ctx context.Context, memberID int64, email string) (int, error) {
	args := m.Called(ctx, memberID, email)
	return args.Int(0), args.Error(1)
}

func (m *mockOTPService) Verify(ctx context.Context, memberID int64, code int) (*models.Member, error) {
	args := m.Called(ctx, memberID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

type mockResetter struct {
	mock.Mock
}

func (m *mockResetter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) AuthCodeURL(state string) string {
	return m.Called(state).String(0)
}

func (m *mockProvider) Exchange(ctx context.Context, code string) (*social.Profile, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*social.Profile), args.Error(1)
}

// feedStore is an in-memory stand-in for the post, comment, like, room and
// message stores, with the same constraint behavior as Postgres.
type feedStore struct {
	mu       sync.Mutex
	seq      int64
	members  map[int64]bool
	posts    map[int64]models.Post
	comments map[int64]models.PostComment
	likes    map[[2]int64]models.PostLike
	rooms    map[int64]models.ChatRoom
	messages []models.ChatMessage
}

func newFeedStore(memberIDs ...int64) *feedStore {
	s := &feedStore{
		members:  make(map[int64]bool),
		posts:    make(map[int64]models.Post),
		comments: make(map[int64]models.PostComment),
		likes:    make(map[[2]int64]models.PostLike),
		rooms:    make(map[int64]models.ChatRoom),
	}
	for _, id := range memberIDs {
		s.members[id] = true
	}
	return s
}

func (s *feedStore) next() int64 {
	s.seq++
	return s.seq
}

// posts

type feedPosts struct{ *feedStore }

func (s feedPosts) Create(_ context.Context, userID int64, image, content string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.members[userID] {
		return nil, apperr.New(apperr.KindIntegrityViolation, "user does not exist")
	}
	p := models.Post{ID: s.next(), UserID: userID, Image: image, Content: content, CreatedAt: time.Now()}
	s.posts[p.ID] = p
	return &p, nil
}

func (s feedPosts) GetByID(_ context.Context, id int64) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s feedPosts) List(_ context.Context) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s feedPosts) UpdateContent(_ context.Context, id int64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.posts[id]
	p.Content = content
	s.posts[id] = p
	return nil
}

func (s feedPosts) DeleteOwned(_ context.Context, userID, postID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok || p.UserID != userID {
		return false, nil
	}
	delete(s.posts, postID)
	return true, nil
}

// comments

type feedComments struct{ *feedStore }

func (s feedComments) Create(_ context.Context, c *models.PostComment) (*models.PostComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *c
	out.ID = s.next()
	out.CreatedAt = time.Now()
	s.comments[out.ID] = out
	return &out, nil
}

func (s feedComments) GetByID(_ context.Context, id int64) (*models.PostComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s feedComments) ListByPost(_ context.Context, postID int64) ([]models.PostComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PostComment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s feedComments) Delete(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for cid, c := range s.comments {
		if cid == id || (c.ParentID != nil && *c.ParentID == id) {
			delete(s.comments, cid)
			n++
		}
	}
	return n, nil
}

// likes

type feedLikes struct{ *feedStore }

func (s feedLikes) Create(_ context.Context, userID, postID int64) (*models.PostLike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.members[userID] {
		return nil, apperr.New(apperr.KindIntegrityViolation, "user does not exist")
	}
	key := [2]int64{userID, postID}
	if _, ok := s.likes[key]; ok {
		return nil, apperr.New(apperr.KindConflict, "already liked")
	}
	l := models.PostLike{ID: s.next(), UserID: userID, PostID: postID, CreatedAt: time.Now()}
	s.likes[key] = l
	return &l, nil
}

func (s feedLikes) Get(_ context.Context, userID, postID int64) (*models.PostLike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.likes[[2]int64{userID, postID}]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s feedLikes) Delete(_ context.Context, userID, postID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.likes, [2]int64{userID, postID})
	return nil
}

func (s feedLikes) CountByPost(_ context.Context, postID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.likes {
		if k[1] == postID {
			n++
		}
	}
	return n, nil
}

// chat

type feedRooms struct{ *feedStore }

func (s feedRooms) Create(_ context.Context, name string) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := models.ChatRoom{ID: s.next(), Name: name, CreatedAt: time.Now()}
	s.rooms[r.ID] = r
	return &r, nil
}

func (s feedRooms) GetByID(_ context.Context, id int64) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s feedRooms) List(_ context.Context) ([]models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ChatRoom{}
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type feedMessages struct{ *feedStore }

func (s feedMessages) Save(_ context.Context, roomID, userID int64, content string) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.members[userID] {
		return nil, apperr.New(apperr.KindIntegrityViolation, "user does not exist")
	}
	m := models.ChatMessage{ID: s.next(), RoomID: roomID, UserID: userID, Content: content, CreatedAt: time.Now()}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s feedMessages) ListByRoom(_ context.Context, roomID int64) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ChatMessage{}
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}
