package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"legalchat/internal/ai"
	"legalchat/internal/model"
	"legalchat/internal/pii"
	"legalchat/internal/store"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageEmpty         = errors.New("message content is empty")
	ErrLLMConfig            = errors.New("llm config is invalid")
	ErrNoUndo               = errors.New("no deleted conversation to restore")
)

// undoWindow is how long a deleted conversation's snapshot is retained for
// the undo affordance.
const undoWindow = 30 * time.Second

const defaultSystemPrompt = "Eres un asistente jurídico. Respondes con claridad, citas la normativa " +
	"aplicable cuando procede y recuerdas que tus respuestas no sustituyen el consejo de un abogado."

// TitleJob asks the worker to generate a model title for a conversation.
// Generation is the title generation observed when the job was enqueued;
// the store drops the write if anything else touched the title since.
type TitleJob struct {
	ConversationID string `json:"conversation_id"`
	FirstMessage   string `json:"first_message"`
	Generation     int    `json:"generation"`
}

type TitleJobPublisher interface {
	Publish(ctx context.Context, job TitleJob) error
}

// DraftCache caches conversation history and per-conversation unsent input.
// Best-effort: callers swallow its failures and fall back to the store.
type DraftCache interface {
	GetHistory(ctx context.Context, conversationID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID string, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID string) error
	SetDraft(ctx context.Context, conversationID, draft string) error
	GetDraft(ctx context.Context, conversationID string) (string, error)
	DeleteDraft(ctx context.Context, conversationID string) error
}

type ChatService struct {
	store      *store.ConversationStore
	cache      DraftCache
	publisher  TitleJobPublisher
	llmClient  *ai.Client
	defaultLLM ai.ChatConfig
	maxContext int
	logger     *zap.Logger

	undoMu    sync.Mutex
	undoable  map[string]*store.Snapshot
	undoTimes map[string]time.Time
}

func NewChatService(
	conversations *store.ConversationStore,
	cache DraftCache,
	publisher TitleJobPublisher,
	llmClient *ai.Client,
	defaultLLM ai.ChatConfig,
	maxContext int,
	logger *zap.Logger,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		store:      conversations,
		cache:      cache,
		publisher:  publisher,
		llmClient:  llmClient,
		defaultLLM: defaultLLM,
		maxContext: maxContext,
		logger:     logger,
		undoable:   make(map[string]*store.Snapshot),
		undoTimes:  make(map[string]time.Time),
	}
}

func (s *ChatService) CreateConversation() (*model.Conversation, error) {
	return s.store.CreateConversation()
}

func (s *ChatService) ListConversations() []model.Conversation {
	return s.store.List()
}

func (s *ChatService) GetHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if s.cache != nil {
		if cached, hit, err := s.cache.GetHistory(ctx, conversationID); err == nil && hit {
			return trimMessages(cached, limit), nil
		}
	}
	messages, err := s.store.Messages(conversationID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetHistory(ctx, conversationID, messages); err != nil {
			s.logger.Debug("cache history failed", zap.Error(err))
		}
	}
	return trimMessages(messages, limit), nil
}

func (s *ChatService) RenameConversation(conversationID, title string) error {
	if err := s.store.Rename(conversationID, title); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	s.invalidate(conversationID)
	return nil
}

// DeleteConversation removes the conversation immediately and retains its
// snapshot for the undo window.
func (s *ChatService) DeleteConversation(conversationID string) error {
	snapshot, err := s.store.Delete(conversationID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	s.undoMu.Lock()
	s.undoable[conversationID] = snapshot
	s.undoTimes[conversationID] = time.Now()
	s.undoMu.Unlock()

	s.invalidate(conversationID)
	if s.cache != nil {
		_ = s.cache.DeleteDraft(context.Background(), conversationID)
	}
	return nil
}

// RestoreConversation re-inserts a conversation deleted within the undo
// window.
func (s *ChatService) RestoreConversation(conversationID string) error {
	s.undoMu.Lock()
	snapshot, ok := s.undoable[conversationID]
	deletedAt := s.undoTimes[conversationID]
	if ok {
		delete(s.undoable, conversationID)
		delete(s.undoTimes, conversationID)
	}
	s.undoMu.Unlock()

	if !ok || time.Since(deletedAt) > undoWindow {
		return ErrNoUndo
	}
	return s.store.Restore(snapshot)
}

func (s *ChatService) ClearAll() error {
	return s.store.ClearAll()
}

func (s *ChatService) SaveDraft(ctx context.Context, conversationID, draft string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetDraft(ctx, conversationID, draft); err != nil {
		s.logger.Debug("save draft failed", zap.Error(err))
	}
}

func (s *ChatService) GetDraft(ctx context.Context, conversationID string) string {
	if s.cache == nil {
		return ""
	}
	draft, err := s.cache.GetDraft(ctx, conversationID)
	if err != nil {
		s.logger.Debug("get draft failed", zap.Error(err))
		return ""
	}
	return draft
}

// StreamInput carries one user turn into a streaming session.
type StreamInput struct {
	ConversationID string
	Content        string
	Attachments    []model.Attachment
	SystemPrompt   string
	Jurisdiction   string
	SourcesEnabled bool
}

// StreamMessage appends the user message, streams the assistant response
// through onToken, and finalizes the accumulated text into the conversation
// on completion. The live buffer is broadcast to typing subscribers as it
// grows. On the first message of a conversation a title job is enqueued.
// Cancellation unwinds silently; nothing is appended and no error surfaces.
func (s *ChatService) StreamMessage(ctx context.Context, input StreamInput, onToken func(string) error) (string, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return "", ErrMessageEmpty
	}

	history, err := s.store.Messages(input.ConversationID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			return "", ErrConversationNotFound
		}
		return "", err
	}

	cfg, err := s.resolveLLM()
	if err != nil {
		return "", err
	}

	_, first, generation, err := s.store.AppendUserMessage(input.ConversationID, content, input.Attachments)
	if err != nil {
		return "", err
	}
	s.invalidate(input.ConversationID)
	if s.cache != nil {
		_ = s.cache.DeleteDraft(ctx, input.ConversationID)
	}

	if first && s.publisher != nil {
		// The job payload sits at rest in the queue and later leaves the
		// process; scrub identifiers before it is published.
		job := TitleJob{
			ConversationID: input.ConversationID,
			FirstMessage:   pii.Pseudonymize(content),
			Generation:     generation,
		}
		if err := s.publisher.Publish(ctx, job); err != nil {
			// Title upgrade is best-effort; the heuristic title stands.
			s.logger.Warn("enqueue title job failed", zap.Error(err))
		}
	}

	promptMessages := s.buildPromptMessages(history, content, input)

	var accumulated strings.Builder
	var streamErr error
	handler := ai.StreamHandler{
		OnToken: func(fragment string) error {
			accumulated.WriteString(fragment)
			s.store.BroadcastTyping(input.ConversationID, accumulated.String(), false)
			if onToken != nil {
				return onToken(fragment)
			}
			return nil
		},
		OnComplete: func(full string) {
			accumulated.Reset()
			accumulated.WriteString(full)
		},
		OnError: func(err error) {
			streamErr = err
		},
	}

	err = s.llmClient.StreamComplete(ctx, cfg, promptMessages, handler)
	s.store.BroadcastTyping(input.ConversationID, "", true)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if streamErr != nil {
		return "", streamErr
	}
	if err != nil {
		return "", err
	}

	full := strings.TrimSpace(accumulated.String())
	if full == "" {
		full = "El modelo no devolvió ninguna respuesta."
	}
	if _, err := s.store.AppendAssistantMessage(input.ConversationID, full); err != nil {
		return "", err
	}
	s.invalidate(input.ConversationID)
	return full, nil
}

// GenerateTitle serves the non-streaming title task of the chat transport.
func (s *ChatService) GenerateTitle(ctx context.Context, firstUserMessage string) (string, error) {
	firstUserMessage = strings.TrimSpace(firstUserMessage)
	if firstUserMessage == "" {
		return "", ErrMessageEmpty
	}
	cfg, err := s.resolveLLM()
	if err != nil {
		return "", err
	}
	return s.llmClient.GenerateTitle(ctx, cfg, pii.Pseudonymize(firstUserMessage))
}

// buildPromptMessages assembles system prompt plus recent history plus the
// current turn. User-authored content is pseudonymized before it leaves the
// process; stored history keeps the original text.
func (s *ChatService) buildPromptMessages(history []model.Message, content string, input StreamInput) []ai.ChatMessage {
	systemPrompt := strings.TrimSpace(input.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if input.Jurisdiction != "" {
		systemPrompt += "\nJurisdicción de referencia: " + input.Jurisdiction + "."
	}
	if input.SourcesEnabled {
		systemPrompt += "\nCita las fuentes normativas que respalden cada afirmación."
	}

	recent := history
	if len(recent) > s.maxContext {
		recent = recent[len(recent)-s.maxContext:]
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: systemPrompt})
	for _, item := range recent {
		role := item.Role
		if role == "" {
			role = "user"
		}
		msgContent := item.Content
		if role == "user" {
			msgContent = pii.Pseudonymize(msgContent)
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: msgContent})
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: pii.Pseudonymize(content)})
	return messages
}

func (s *ChatService) resolveLLM() (ai.ChatConfig, error) {
	cfg := s.defaultLLM
	if cfg.BaseURL == "" || cfg.Model == "" {
		return ai.ChatConfig{}, ErrLLMConfig
	}
	return cfg, nil
}

func (s *ChatService) invalidate(conversationID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteHistory(context.Background(), conversationID); err != nil {
		s.logger.Debug("invalidate history cache failed", zap.Error(err))
	}
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
