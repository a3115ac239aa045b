// Package store holds the authoritative ordered list of conversations and
// their messages. It is an explicit state container handed to its callers
// (never a package-level singleton), serializes all mutations behind one
// lock, and writes through to durable storage on every state transition so a
// restart loses nothing.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"legalchat/internal/model"
)

var ErrConversationNotFound = errors.New("conversation not found")

const defaultTitle = "Nueva consulta"

// heuristicTitleLen caps the synchronous title derived from the first user
// message; a model-generated upgrade may later replace it.
const heuristicTitleLen = 48

// Persister is the write-through durable backend. Every mutation persists
// synchronously before the store returns.
type Persister interface {
	Load() ([]model.Conversation, map[string][]model.Message, error)
	CreateConversation(conv *model.Conversation) error
	SaveConversation(conv *model.Conversation) error
	AppendMessage(conv *model.Conversation, msg *model.Message) error
	UpdateTitleIfGeneration(id, title string, expected int) (bool, error)
	DeleteConversation(id string) error
	RestoreConversation(conv *model.Conversation, messages []model.Message) error
	Clear() error
}

// TypingListener observes the live buffer of a streaming assistant response.
// An empty buffer with done=true means the stream ended.
type TypingListener func(conversationID, buffer string, done bool)

// Snapshot captures a conversation and its messages at deletion time so it
// can be re-inserted by an undo within the user-facing window.
type Snapshot struct {
	Conversation model.Conversation
	Messages     []model.Message
}

type ConversationStore struct {
	mu        sync.Mutex
	persister Persister
	logger    *zap.Logger

	order     []string // conversation ids, most recently updated first
	convs     map[string]*model.Conversation
	messages  map[string][]model.Message
	listeners map[int]TypingListener
	nextSub   int
}

// New hydrates the store from the persister. Any load or deserialization
// failure degrades to an empty store rather than failing startup; the
// persistence layer is a durability aid, not a gate.
func New(persister Persister, logger *zap.Logger) *ConversationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ConversationStore{
		persister: persister,
		logger:    logger,
		convs:     make(map[string]*model.Conversation),
		messages:  make(map[string][]model.Message),
		listeners: make(map[int]TypingListener),
	}

	convs, msgs, err := persister.Load()
	if err != nil {
		logger.Warn("hydrate conversations failed, starting empty", zap.Error(err))
		return s
	}
	for i := range convs {
		c := convs[i]
		s.convs[c.ID] = &c
		s.order = append(s.order, c.ID)
		s.messages[c.ID] = msgs[c.ID]
	}
	s.sortLocked()
	return s
}

// CreateConversation creates an empty conversation. A conversation with zero
// messages is valid.
func (s *ConversationStore) CreateConversation() (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		Title:     defaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.persister.CreateConversation(conv); err != nil {
		return nil, err
	}
	s.convs[conv.ID] = conv
	s.order = append([]string{conv.ID}, s.order...)
	copied := *conv
	return &copied, nil
}

// List returns conversations ordered by most recent update.
func (s *ConversationStore) List() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.convs[id])
	}
	return out
}

// Messages returns the ordered message list of one conversation.
func (s *ConversationStore) Messages(conversationID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	msgs := s.messages[conversationID]
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AppendUserMessage appends and, when this is the first message, derives a
// heuristic title synchronously. The returned generation is what an
// asynchronous title upgrade must present to win.
func (s *ConversationStore) AppendUserMessage(conversationID, content string, attachments []model.Attachment) (*model.Message, bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, false, 0, ErrConversationNotFound
	}

	first := len(s.messages[conversationID]) == 0
	if first {
		conv.Title = heuristicTitle(content)
	}

	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           "user",
		Content:        content,
		Attachments:    attachments,
		CreatedAt:      time.Now(),
	}
	conv.UpdatedAt = msg.CreatedAt

	if err := s.persister.AppendMessage(conv, msg); err != nil {
		return nil, false, 0, err
	}
	s.messages[conversationID] = append(s.messages[conversationID], *msg)
	s.touchLocked(conversationID)

	copied := *msg
	return &copied, first, conv.TitleGeneration, nil
}

// AppendAssistantMessage appends the finalized assistant response. It is
// called on stream completion only, never with partial text.
func (s *ConversationStore) AppendAssistantMessage(conversationID, content string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}

	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        content,
		CreatedAt:      time.Now(),
	}
	conv.UpdatedAt = msg.CreatedAt

	if err := s.persister.AppendMessage(conv, msg); err != nil {
		return nil, err
	}
	s.messages[conversationID] = append(s.messages[conversationID], *msg)
	s.touchLocked(conversationID)

	copied := *msg
	return &copied, nil
}

// Rename writes a user-chosen title and bumps the generation so any in-flight
// model-generated upgrade loses.
func (s *ConversationStore) Rename(conversationID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	conv.Title = title
	conv.TitleGeneration++
	conv.UpdatedAt = time.Now()
	if err := s.persister.SaveConversation(conv); err != nil {
		return err
	}
	s.touchLocked(conversationID)
	return nil
}

// ApplyGeneratedTitle installs an asynchronously generated title if and only
// if no other title write happened since expectedGeneration was observed.
// Stale upgrades are dropped, not errors.
func (s *ConversationStore) ApplyGeneratedTitle(conversationID, title string, expectedGeneration int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return false, ErrConversationNotFound
	}
	if conv.TitleGeneration != expectedGeneration {
		return false, nil
	}
	applied, err := s.persister.UpdateTitleIfGeneration(conversationID, title, expectedGeneration)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	conv.Title = title
	conv.TitleGeneration = expectedGeneration + 1
	return true, nil
}

// Delete removes the conversation immediately and returns a snapshot the
// caller may hand back to Restore as an undo.
func (s *ConversationStore) Delete(conversationID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	// The snapshot must not share backing storage with the live message
	// slice, or appends after a restore would leak into the caller's copy.
	messages := make([]model.Message, len(s.messages[conversationID]))
	copy(messages, s.messages[conversationID])
	snapshot := &Snapshot{Conversation: *conv, Messages: messages}

	if err := s.persister.DeleteConversation(conversationID); err != nil {
		return nil, err
	}
	delete(s.convs, conversationID)
	delete(s.messages, conversationID)
	for i, id := range s.order {
		if id == conversationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return snapshot, nil
}

// Restore re-inserts a previously deleted conversation, sorted back into
// position by its updatedAt. This is recreate-from-a-retained-copy, not a
// transactional rollback.
func (s *ConversationStore) Restore(snapshot *Snapshot) error {
	if snapshot == nil {
		return errors.New("nil snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.convs[snapshot.Conversation.ID]; exists {
		return nil
	}
	conv := snapshot.Conversation
	messages := make([]model.Message, len(snapshot.Messages))
	copy(messages, snapshot.Messages)
	if err := s.persister.RestoreConversation(&conv, messages); err != nil {
		return err
	}
	s.convs[conv.ID] = &conv
	s.messages[conv.ID] = messages
	s.order = append(s.order, conv.ID)
	s.sortLocked()
	return nil
}

// ClearAll removes every conversation.
func (s *ConversationStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persister.Clear(); err != nil {
		return err
	}
	s.convs = make(map[string]*model.Conversation)
	s.messages = make(map[string][]model.Message)
	s.order = nil
	return nil
}

// SubscribeTyping registers a listener for live streaming buffer updates and
// returns its unsubscribe function.
func (s *ConversationStore) SubscribeTyping(listener TypingListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = listener
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// BroadcastTyping publishes the current streaming buffer to subscribers. The
// buffer is ephemeral: it never becomes a Message until finalized through
// AppendAssistantMessage.
func (s *ConversationStore) BroadcastTyping(conversationID, buffer string, done bool) {
	s.mu.Lock()
	listeners := make([]TypingListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(conversationID, buffer, done)
	}
}

func (s *ConversationStore) touchLocked(conversationID string) {
	for i, id := range s.order {
		if id == conversationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			s.order = append([]string{conversationID}, s.order...)
			return
		}
	}
	s.order = append([]string{conversationID}, s.order...)
}

func (s *ConversationStore) sortLocked() {
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.convs[s.order[i]].UpdatedAt.After(s.convs[s.order[j]].UpdatedAt)
	})
}

// heuristicTitle truncates the first user message at a word boundary.
func heuristicTitle(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return defaultTitle
	}
	runes := []rune(content)
	if len(runes) <= heuristicTitleLen {
		return content
	}
	cut := string(runes[:heuristicTitleLen])
	if idx := strings.LastIndex(cut, " "); idx > heuristicTitleLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
