package redis

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"legaldocgo/internal/config"
	"legaldocgo/internal/models"
)

func newTestStateCache(t *testing.T) (*StateCache, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed cache tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host: host,
			Port: port,
			DB:   db,
		},
	}
	client, err := NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	return NewStateCache(client), func() {
		client.Close()
	}
}

func TestStateCacheDocumentRoundTrip(t *testing.T) {
	sc, cleanup := newTestStateCache(t)
	defer cleanup()
	ctx := context.Background()

	id := "cache-doc-test"
	defer sc.Purge(ctx, id)

	doc := models.Document{
		Type:         "nda",
		Artifact:     []byte("<html>v1</html>"),
		ArtifactMIME: "text/html; charset=utf-8",
		Data:         map[string]any{"party_1": "Alice", "term": "2 years"},
		GeneratedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := sc.SaveDocument(ctx, id, doc); err != nil {
		t.Fatalf("save document: %v", err)
	}

	got, ok := sc.Document(ctx, id)
	if !ok {
		t.Fatalf("expected cached document")
	}
	if got.Type != "nda" || got.Data["term"] != "2 years" {
		t.Fatalf("document mismatch: %+v", got)
	}
	if string(got.Artifact) != "<html>v1</html>" {
		t.Fatalf("artifact not cached: %q", got.Artifact)
	}

	// A whole-document replace overwrites the cached copy.
	doc.Data["term"] = "3 years"
	doc.Artifact = []byte("<html>v2</html>")
	if err := sc.SaveDocument(ctx, id, doc); err != nil {
		t.Fatalf("replace document: %v", err)
	}
	got, ok = sc.Document(ctx, id)
	if !ok || got.Data["term"] != "3 years" || string(got.Artifact) != "<html>v2</html>" {
		t.Fatalf("replace did not take: %+v", got)
	}

	if err := sc.Purge(ctx, id); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, ok := sc.Document(ctx, id); ok {
		t.Fatalf("expected document invalidated")
	}
}

func TestStateCacheHistorySeqConsistency(t *testing.T) {
	sc, cleanup := newTestStateCache(t)
	defer cleanup()
	ctx := context.Background()

	id := "cache-history-test"
	defer sc.Purge(ctx, id)

	now := time.Now().UTC().Truncate(time.Second)
	for i, text := range []string{"Create an NDA", "Who are the parties?"} {
		msg := models.Message{Role: models.RoleUser, Parts: []string{text}, CreatedAt: now}
		if i == 1 {
			msg.Role = models.RoleModel
		}
		if err := sc.SaveMessage(ctx, id, i+1, msg); err != nil {
			t.Fatalf("save message %d: %v", i+1, err)
		}
	}

	raw, err := sc.client.Get(ctx, historyKey(id))
	if err != nil {
		t.Fatalf("read cached history: %v", err)
	}
	var history []models.Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		t.Fatalf("decode cached history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 cached messages, got %d", len(history))
	}
	if history[0].Parts[0] != "Create an NDA" || history[1].Role != models.RoleModel {
		t.Fatalf("cached order wrong: %+v", history)
	}

	// An out-of-step sequence number means the cache no longer matches the
	// registry; the entry is dropped instead of stored wrong.
	stale := models.Message{Role: models.RoleUser, Parts: []string{"late"}, CreatedAt: now}
	if err := sc.SaveMessage(ctx, id, 9, stale); err != nil {
		t.Fatalf("out-of-step save: %v", err)
	}
	if _, err := sc.client.Get(ctx, historyKey(id)); err != ErrCacheMiss {
		t.Fatalf("expected history dropped, got err=%v", err)
	}

	// The next in-step message rebuilds the cache from scratch.
	if err := sc.SaveMessage(ctx, id, 1, stale); err != nil {
		t.Fatalf("rebuild save: %v", err)
	}
	raw, err = sc.client.Get(ctx, historyKey(id))
	if err != nil {
		t.Fatalf("read rebuilt history: %v", err)
	}
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		t.Fatalf("decode rebuilt history: %v", err)
	}
	if len(history) != 1 || history[0].Parts[0] != "late" {
		t.Fatalf("rebuilt history wrong: %+v", history)
	}
}
