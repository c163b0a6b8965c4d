package chatlib

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Gopher0727/ChatLib/internal/errs"
	"github.com/Gopher0727/ChatLib/internal/models"
	"github.com/Gopher0727/ChatLib/internal/repositories"
)

// In-memory store implementations mirroring the repository contracts,
// including the duplicate-key behavior of the unique indexes.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[primitive.ObjectID]models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return errs.Newf(errs.CodeDuplicateValue, "用户名 '%s' 已被占用", user.Username)
		}
		if u.Email == user.Email {
			return errs.Newf(errs.CodeDuplicateValue, "邮箱 '%s' 已被占用", user.Email)
		}
	}
	now := time.Now()
	user.ID = primitive.NewObjectID()
	if user.Status == "" {
		user.Status = models.UserStatusOffline
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *fakeUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) UpdateStatus(_ context.Context, id primitive.ObjectID, status string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	u.Status = status
	u.UpdatedAt = time.Now()
	if status == models.UserStatusOffline {
		u.LastSeen = u.UpdatedAt
	}
	s.users[id] = u
	return &u, nil
}

func (s *fakeUserStore) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		u.Password = ""
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *fakeUserStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	return true, nil
}

func (s *fakeUserStore) GetPublicByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.UserPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserPublic, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

type fakeChatStore struct {
	mu    sync.Mutex
	chats map[primitive.ObjectID]models.Chat
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{chats: make(map[primitive.ObjectID]models.Chat)}
}

// duplicatePairErr 模拟 pair_key 唯一索引的重复键错误
func duplicatePairErr() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

func (s *fakeChatStore) Insert(_ context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !chat.IsGroup && chat.PairKey != "" {
		for _, c := range s.chats {
			if !c.IsGroup && c.PairKey == chat.PairKey {
				return duplicatePairErr()
			}
		}
	}
	now := time.Now()
	chat.ID = primitive.NewObjectID()
	if chat.Admins == nil {
		chat.Admins = []primitive.ObjectID{}
	}
	chat.LastActivity = now
	chat.CreatedAt = now
	chat.UpdatedAt = now
	s.chats[chat.ID] = *chat
	return nil
}

func (s *fakeChatStore) FindPair(_ context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.PairKey(a, b)
	for _, c := range s.chats {
		if !c.IsGroup && c.PairKey == key {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeChatStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *fakeChatStore) GetByIDForUser(_ context.Context, id, userID primitive.ObjectID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[id]; ok && c.HasParticipant(userID) {
		return &c, nil
	}
	return nil, nil
}

func (s *fakeChatStore) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chat
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (s *fakeChatStore) AddParticipants(_ context.Context, id primitive.ObjectID, participantIDs []primitive.ObjectID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, nil
	}
	for _, pid := range participantIDs {
		if !c.HasParticipant(pid) {
			c.Participants = append(c.Participants, pid)
		}
	}
	c.LastActivity = time.Now()
	c.UpdatedAt = c.LastActivity
	s.chats[id] = c
	return &c, nil
}

func (s *fakeChatStore) PullParticipant(_ context.Context, id, participantID primitive.ObjectID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, nil
	}
	c.Participants = without(c.Participants, participantID)
	c.Admins = without(c.Admins, participantID)
	c.UpdatedAt = time.Now()
	s.chats[id] = c
	return &c, nil
}

func without(ids []primitive.ObjectID, target primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (s *fakeChatStore) TouchActivity(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[id]; ok {
		c.LastActivity = at
		c.UpdatedAt = at
		s.chats[id] = c
	}
	return nil
}

func (s *fakeChatStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[id]; !ok {
		return false, nil
	}
	delete(s.chats, id)
	return true, nil
}

type fakeMessageStore struct {
	mu   sync.Mutex
	msgs []models.Message
	last time.Time
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{}
}

func (s *fakeMessageStore) Insert(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	if msg.Status == "" {
		msg.Status = models.MessageStatusSent
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []primitive.ObjectID{}
	}
	// 严格递增的时间戳, 让排序断言可预测
	now := time.Now()
	if !now.After(s.last) {
		now = s.last.Add(time.Millisecond)
	}
	s.last = now
	msg.CreatedAt = now
	msg.UpdatedAt = now
	s.msgs = append(s.msgs, *msg)
	return nil
}

func (s *fakeMessageStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (s *fakeMessageStore) FindByChat(_ context.Context, chatID primitive.ObjectID, opts repositories.MessageFindOptions) ([]models.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Message
	for _, m := range s.msgs {
		if m.ChatID != chatID {
			continue
		}
		if opts.Before != nil && !m.CreatedAt.Before(*opts.Before) {
			continue
		}
		if opts.After != nil && !m.CreatedAt.After(*opts.After) {
			continue
		}
		matched = append(matched, m)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))

	limit := opts.Limit
	if limit <= 0 {
		limit = repositories.DefaultMessageLimit
	}
	start := opts.Skip
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *fakeMessageStore) MarkRead(_ context.Context, chatID, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.ChatID != chatID || m.Sender == userID || containsID(m.ReadBy, userID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, userID)
		m.Status = models.MessageStatusRead
		modified++
	}
	return modified, nil
}

func (s *fakeMessageStore) UnreadByUser(_ context.Context, userID primitive.ObjectID) ([]models.UnreadChat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChat := make(map[primitive.ObjectID]*models.UnreadChat)
	var order []primitive.ObjectID
	for _, m := range s.msgs {
		if m.Sender == userID || containsID(m.ReadBy, userID) {
			continue
		}
		u, ok := byChat[m.ChatID]
		if !ok {
			u = &models.UnreadChat{ChatID: m.ChatID}
			byChat[m.ChatID] = u
			order = append(order, m.ChatID)
		}
		u.Count++
		if !m.CreatedAt.Before(u.LastMessageAt) {
			u.LastMessage = m.Content
			u.LastMessageAt = m.CreatedAt
		}
	}
	out := make([]models.UnreadChat, 0, len(order))
	for _, id := range order {
		out = append(out, *byChat[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (s *fakeMessageStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.msgs {
		if m.ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func containsID(ids []primitive.ObjectID, target primitive.ObjectID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

type fakeUnreadCache struct {
	mu       sync.Mutex
	status    map[string]string
	unread    map[string][]models.UnreadChat
	hits      int
	sets      int
	evictions int
}

func newFakeUnreadCache() *fakeUnreadCache {
	return &fakeUnreadCache{
		status: make(map[string]string),
		unread: make(map[string][]models.UnreadChat),
	}
}

func (c *fakeUnreadCache) SetStatus(_ context.Context, userID, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[userID] = status
}

func (c *fakeUnreadCache) GetUnread(_ context.Context, userID string) ([]models.UnreadChat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chats, ok := c.unread[userID]
	if ok {
		c.hits++
	}
	return chats, ok
}

func (c *fakeUnreadCache) SetUnread(_ context.Context, userID string, chats []models.UnreadChat, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.unread[userID] = chats
}

func (c *fakeUnreadCache) InvalidateUnread(_ context.Context, userIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		if _, ok := c.unread[id]; ok {
			c.evictions++
			delete(c.unread, id)
		}
	}
}
