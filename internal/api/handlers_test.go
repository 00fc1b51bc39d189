package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocgo/internal/models"
	"legaldocgo/internal/session"
	"legaldocgo/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	submit func(worker.TurnRequest) error
	purged []string
}

func (f *fakeRunner) Submit(req worker.TurnRequest) error {
	if f.submit == nil {
		return nil
	}
	return f.submit(req)
}

func (f *fakeRunner) Purge(conversationID string) {
	f.purged = append(f.purged, conversationID)
}

func newTestRouter(registry *session.Registry, runner TurnRunner) *gin.Engine {
	router := gin.New()
	NewHandler(registry, runner).RegisterRoutes(router)
	return router
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func sseFrames(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, chunk := range strings.Split(raw, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if !strings.HasPrefix(chunk, "data: ") {
			t.Fatalf("frame without data prefix: %q", chunk)
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), &ev); err != nil {
			t.Fatalf("decode frame %q: %v", chunk, err)
		}
		frames = append(frames, ev)
	}
	return frames
}

func TestCreateAndDeleteConversation(t *testing.T) {
	registry := session.NewRegistry()
	runner := &fakeRunner{}
	router := newTestRouter(registry, runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/conversations", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	id, _ := decodeBody(t, rec)["conversation_id"].(string)
	if id == "" {
		t.Fatal("missing conversation_id")
	}
	if !registry.Exists(id) {
		t.Fatalf("conversation %s not registered", id)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/"+id, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if len(runner.purged) != 1 || runner.purged[0] != id {
		t.Fatalf("purged = %v, want [%s]", runner.purged, id)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestGetHistory(t *testing.T) {
	registry := session.NewRegistry()
	router := newTestRouter(registry, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/nope/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}

	ctx := context.Background()
	id := registry.Create(ctx)
	if _, err := registry.AppendMessage(ctx, id, models.RoleUser, "draft an nda"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := registry.AppendMessage(ctx, id, models.RoleModel, "Which parties are involved?"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/"+id+"/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	history, _ := decodeBody(t, rec)["history"].([]any)
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	first, _ := history[0].(map[string]any)
	if first["role"] != "user" {
		t.Fatalf("first role = %v, want user", first["role"])
	}
}

func TestChatStreamsEvents(t *testing.T) {
	registry := session.NewRegistry()
	id := registry.Create(context.Background())

	runner := &fakeRunner{
		submit: func(req worker.TurnRequest) error {
			if req.ConversationID != id {
				t.Errorf("conversation id = %s, want %s", req.ConversationID, id)
			}
			if req.UserText != "hello there" {
				t.Errorf("user text = %q", req.UserText)
			}
			for _, ev := range []models.Event{
				models.TextEvent("Hi, "),
				models.TextEvent("how can I help?"),
				models.DoneEvent(),
			} {
				if err := req.Emit(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	router := newTestRouter(registry, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/"+id+"/chat",
		strings.NewReader(`{"message": "hello there"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	frames := sseFrames(t, rec.Body.String())
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[0]["type"] != string(models.EventText) || frames[0]["content"] != "Hi, " {
		t.Fatalf("unexpected first frame: %v", frames[0])
	}
	if frames[len(frames)-1]["type"] != string(models.EventDone) {
		t.Fatalf("last frame = %v, want done", frames[len(frames)-1])
	}
}

func TestChatValidation(t *testing.T) {
	registry := session.NewRegistry()
	id := registry.Create(context.Background())
	called := false
	runner := &fakeRunner{submit: func(worker.TurnRequest) error {
		called = true
		return nil
	}}
	router := newTestRouter(registry, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/"+id+"/chat",
		strings.NewReader(`{"message": "   "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank message status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/conversations/missing/chat",
		strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}
	if called {
		t.Fatal("runner invoked for rejected request")
	}
}

func TestChatBusyConversation(t *testing.T) {
	registry := session.NewRegistry()
	id := registry.Create(context.Background())
	runner := &fakeRunner{submit: func(worker.TurnRequest) error {
		return worker.ErrBusy
	}}
	router := newTestRouter(registry, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/"+id+"/chat",
		strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] == "" {
		t.Fatal("missing error message")
	}
}

func TestGetDocument(t *testing.T) {
	registry := session.NewRegistry()
	ctx := context.Background()
	id := registry.Create(ctx)
	router := newTestRouter(registry, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/"+id+"/document", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no document status = %d, want 404", rec.Code)
	}

	doc := models.Document{
		Type:         "nda",
		Artifact:     []byte("<h1>Non-Disclosure Agreement</h1>"),
		ArtifactMIME: "text/html; charset=utf-8",
		Data: map[string]any{
			"party_1": "Acme Corp",
			"party_2": "Widget LLC",
		},
		GeneratedAt: time.Now().UTC(),
	}
	if err := registry.SetDocument(ctx, id, doc); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/"+id+"/document", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "Non-Disclosure Agreement") {
		t.Fatalf("artifact body missing title: %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/"+id+"/document?format=data", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("data format status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["document_type"] != "nda" {
		t.Fatalf("document_type = %v, want nda", body["document_type"])
	}
	data, _ := body["data"].(map[string]any)
	if data["party_1"] != "Acme Corp" {
		t.Fatalf("data = %v", data)
	}
}
