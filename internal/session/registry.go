// Package session owns conversation identity and per-conversation state:
// the ordered message history and the current document.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"legaldocgo/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound reports an operation against an unknown conversation id.
var ErrNotFound = errors.New("conversation not found")

// Mirror receives best-effort copies of registry writes. Implementations
// (sql archive, redis cache) must tolerate being called under the owning
// conversation's lock; failures are logged and never fail the registry call,
// because the in-memory state is the source of truth.
type Mirror interface {
	SaveConversation(ctx context.Context, id string, createdAt time.Time) error
	SaveMessage(ctx context.Context, id string, seq int, msg models.Message) error
	SaveDocument(ctx context.Context, id string, doc models.Document) error
	Purge(ctx context.Context, id string) error
}

type conversation struct {
	mu        sync.Mutex
	createdAt time.Time
	messages  []models.Message
	doc       *models.Document
}

// Registry is the single source of truth for conversations. The outer map is
// guarded by an RWMutex; each conversation carries its own mutex so work on
// different ids never blocks.
type Registry struct {
	mu      sync.RWMutex
	convs   map[string]*conversation
	mirrors []Mirror
}

// NewRegistry builds an empty registry. Passing no mirrors keeps all state
// purely in memory.
func NewRegistry(mirrors ...Mirror) *Registry {
	return &Registry{
		convs:   make(map[string]*conversation),
		mirrors: mirrors,
	}
}

// Create allocates a fresh conversation id with empty history and no document.
func (r *Registry) Create(ctx context.Context) string {
	id := uuid.NewString()
	conv := &conversation{createdAt: time.Now().UTC()}
	r.mu.Lock()
	r.convs[id] = conv
	r.mu.Unlock()
	for _, m := range r.mirrors {
		if err := m.SaveConversation(ctx, id, conv.createdAt); err != nil {
			log.Printf("session mirror create %s: %v", id, err)
		}
	}
	return id
}

// Exists reports whether the id is known.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.convs[id]
	return ok
}

func (r *Registry) get(id string) (*conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.convs[id]
	return conv, ok
}

// AppendMessage atomically appends a message to the conversation history and
// returns the stored record.
func (r *Registry) AppendMessage(ctx context.Context, id string, role models.Role, parts ...string) (models.Message, error) {
	conv, ok := r.get(id)
	if !ok {
		return models.Message{}, ErrNotFound
	}
	msg := models.Message{
		Role:      role,
		Parts:     append([]string(nil), parts...),
		CreatedAt: time.Now().UTC(),
	}
	conv.mu.Lock()
	conv.messages = append(conv.messages, msg)
	seq := len(conv.messages)
	for _, m := range r.mirrors {
		if err := m.SaveMessage(ctx, id, seq, msg); err != nil {
			log.Printf("session mirror message %s: %v", id, err)
		}
	}
	conv.mu.Unlock()
	return msg.Clone(), nil
}

// History returns a snapshot of the conversation's messages in append order.
// Appends committed after the call are not visible in the returned slice.
func (r *Registry) History(id string) ([]models.Message, error) {
	conv, ok := r.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	out := make([]models.Message, 0, len(conv.messages))
	for _, m := range conv.messages {
		out = append(out, m.Clone())
	}
	return out, nil
}

// SetDocument replaces the conversation's document as a whole.
func (r *Registry) SetDocument(ctx context.Context, id string, doc models.Document) error {
	conv, ok := r.get(id)
	if !ok {
		return ErrNotFound
	}
	stored := doc.Clone()
	conv.mu.Lock()
	conv.doc = &stored
	for _, m := range r.mirrors {
		if err := m.SaveDocument(ctx, id, stored); err != nil {
			log.Printf("session mirror document %s: %v", id, err)
		}
	}
	conv.mu.Unlock()
	return nil
}

// Document returns a copy of the current document. The second result is false
// when the conversation exists but no document has been generated yet.
func (r *Registry) Document(id string) (models.Document, bool, error) {
	conv, ok := r.get(id)
	if !ok {
		return models.Document{}, false, ErrNotFound
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if conv.doc == nil {
		return models.Document{}, false, nil
	}
	return conv.doc.Clone(), true, nil
}

// Delete removes the conversation and its document together. It is
// idempotent; the second delete of an id returns false.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	_, ok := r.convs[id]
	delete(r.convs, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	for _, m := range r.mirrors {
		if err := m.Purge(ctx, id); err != nil {
			log.Printf("session mirror purge %s: %v", id, err)
		}
	}
	return true
}
