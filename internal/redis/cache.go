package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"legaldocgo/internal/models"
)

const cacheTTL = 30 * time.Minute

// StateCache mirrors conversation state (history and current document) into
// redis with a TTL so a fronting instance can serve reads cheaply. It
// satisfies session.Mirror; all writes are best-effort.
type StateCache struct {
	client *Client
}

// NewStateCache wraps a connected client.
func NewStateCache(client *Client) *StateCache {
	return &StateCache{client: client}
}

func historyKey(id string) string  { return fmt.Sprintf("conv:history:%s", id) }
func documentKey(id string) string { return fmt.Sprintf("conv:document:%s", id) }

func (s *StateCache) SaveConversation(ctx context.Context, id string, createdAt time.Time) error {
	// Nothing to mirror until a message or document lands.
	return nil
}

// SaveMessage appends the message to the cached history blob. The cache is a
// read accelerator, not the source of truth, so a stale read-modify-write
// only costs a cache miss later.
func (s *StateCache) SaveMessage(ctx context.Context, id string, seq int, msg models.Message) error {
	var history []models.Message
	if raw, err := s.client.Get(ctx, historyKey(id)); err == nil {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			history = nil
		}
	} else if err != ErrCacheMiss {
		return fmt.Errorf("load cached history: %w", err)
	}
	if len(history) != seq-1 {
		// Cache is out of step with the registry; drop it rather than store
		// a wrong ordering.
		return s.client.Del(ctx, historyKey(id))
	}
	history = append(history, msg)
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.client.Set(ctx, historyKey(id), data, cacheTTL)
}

func (s *StateCache) SaveDocument(ctx context.Context, id string, doc models.Document) error {
	payload := struct {
		models.Document
		Artifact []byte `json:"artifact"`
	}{Document: doc, Artifact: doc.Artifact}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return s.client.Set(ctx, documentKey(id), data, cacheTTL)
}

func (s *StateCache) Purge(ctx context.Context, id string) error {
	return s.client.Del(ctx, historyKey(id), documentKey(id))
}

// Document returns the cached document if present.
func (s *StateCache) Document(ctx context.Context, id string) (models.Document, bool) {
	raw, err := s.client.Get(ctx, documentKey(id))
	if err != nil {
		return models.Document{}, false
	}
	var payload struct {
		models.Document
		Artifact []byte `json:"artifact"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.Document{}, false
	}
	doc := payload.Document
	doc.Artifact = payload.Artifact
	return doc, true
}
