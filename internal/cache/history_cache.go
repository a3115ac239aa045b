package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"legalchat/internal/model"
)

// HistoryCache keeps a short-lived copy of conversation histories and the
// per-conversation draft text. Both are convenience caching, not durability:
// callers swallow failures and fall back to the durable store.
type HistoryCache struct {
	client     *redisv9.Client
	historyTTL time.Duration
	draftTTL   time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, draftTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if draftTTL <= 0 {
		draftTTL = 7 * 24 * time.Hour
	}
	return &HistoryCache{
		client:     client,
		historyTTL: historyTTL,
		draftTTL:   draftTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, conversationID string) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, c.historyKey(conversationID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, conversationID string, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(conversationID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, conversationID string) error {
	if err := c.client.Del(ctx, c.historyKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

// SetDraft stores the unsent input text of one conversation.
func (c *HistoryCache) SetDraft(ctx context.Context, conversationID, draft string) error {
	if draft == "" {
		return c.DeleteDraft(ctx, conversationID)
	}
	if err := c.client.Set(ctx, c.draftKey(conversationID), draft, c.draftTTL).Err(); err != nil {
		return fmt.Errorf("redis set draft failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) GetDraft(ctx context.Context, conversationID string) (string, error) {
	raw, err := c.client.Get(ctx, c.draftKey(conversationID)).Result()
	if err == redisv9.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get draft failed: %w", err)
	}
	return raw, nil
}

func (c *HistoryCache) DeleteDraft(ctx context.Context, conversationID string) error {
	if err := c.client.Del(ctx, c.draftKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete draft failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) historyKey(conversationID string) string {
	return "chat:history:" + conversationID
}

func (c *HistoryCache) draftKey(conversationID string) string {
	return "chat:draft:" + conversationID
}
