package turn

import (
	"context"
	"encoding/json"
	"log"

	"legaldocgo/internal/models"
	"legaldocgo/internal/render"
	"legaldocgo/internal/service/ai"
	"legaldocgo/internal/session"
)

// Orchestrator drives one user turn end to end as a bounded sequence:
// await the single model response, interpret its tool calls in order, done.
// The model is never re-invoked within a turn. The orchestrator is
// stateless between turns; everything durable lives in the registry.
type Orchestrator struct {
	registry *session.Registry
	renderer render.Renderer
	model    ai.Collaborator
}

func NewOrchestrator(registry *session.Registry, renderer render.Renderer, model ai.Collaborator) *Orchestrator {
	return &Orchestrator{registry: registry, renderer: renderer, model: model}
}

// emitter enforces the stream contract: events stop flowing once the
// consumer is gone, and nothing follows done. State mutations continue
// regardless, because commits are not tied to stream delivery.
type emitter struct {
	fn       func(models.Event) error
	dead     bool
	doneSent bool
}

func (e *emitter) send(ev models.Event) {
	if e.dead || e.doneSent {
		return
	}
	if ev.Type == models.EventDone {
		e.doneSent = true
	}
	if err := e.fn(ev); err != nil {
		e.dead = true
	}
}

// Run executes one turn for the conversation. The returned error is non-nil
// only for failures that prevented the turn from starting (unknown id);
// every started turn emits exactly one terminal done event.
func (o *Orchestrator) Run(ctx context.Context, convID, userText string, emit func(models.Event) error) error {
	if _, err := o.registry.AppendMessage(ctx, convID, models.RoleUser, userText); err != nil {
		return err
	}
	out := &emitter{fn: emit}
	defer out.send(models.DoneEvent())

	history, err := o.registry.History(convID)
	if err != nil {
		return err
	}

	interp := NewInterpreter(o.registry, o.renderer, convID)
	result, err := o.model.StreamTurn(ctx, history, func(delta string) error {
		out.send(models.TextEvent(delta))
		return nil
	})
	if err != nil {
		// Tool calls applied before the failure stay applied; the document
		// sits at its last successfully set value.
		kind, ok := errorKind(err)
		if !ok {
			kind = models.ErrKindUpstream
		}
		log.Printf("turn %s model call failed: %v", convID, err)
		out.send(models.ErrorEvent(kind, err.Error()))
		return nil
	}

	var toolRecords []string
	for _, call := range result.ToolCalls {
		outcome, err := interp.Apply(ctx, call)
		if err != nil {
			kind, recoverable := errorKind(err)
			if !recoverable {
				log.Printf("turn %s tool %s failed: %v", convID, call.Name, err)
				out.send(models.ErrorEvent(models.ErrKindUpstream, "internal failure applying tool call"))
				return nil
			}
			// A single bad call does not void the rest of the response.
			out.send(models.ErrorEvent(kind, err.Error()))
			continue
		}
		out.send(models.Event{
			Type: models.EventFunctionCall,
			Payload: map[string]any{
				"name":   outcome.Tool,
				"result": outcome.Result,
			},
		})
		if outcome.DocumentUpdated {
			doc, ok, derr := o.registry.Document(convID)
			if derr == nil && ok {
				out.send(models.Event{
					Type: models.EventDocument,
					Payload: map[string]any{
						"conversation_id": convID,
						"document_type":   doc.Type,
						"generated_at":    doc.GeneratedAt,
					},
				})
			}
		}
		if record := toolRecord(outcome); record != "" {
			toolRecords = append(toolRecords, record)
		}
	}

	parts := make([]string, 0, 1+len(toolRecords))
	if result.Text != "" {
		parts = append(parts, result.Text)
	}
	parts = append(parts, toolRecords...)
	if len(parts) > 0 {
		if _, err := o.registry.AppendMessage(ctx, convID, models.RoleModel, parts...); err != nil {
			log.Printf("turn %s append model message: %v", convID, err)
		}
	}

	return nil
}

// toolRecord serializes an applied call for the history, so the next turn's
// prompt carries what the model already did and learned.
func toolRecord(outcome *Outcome) string {
	record := map[string]any{"tool": outcome.Tool}
	for k, v := range outcome.Result {
		record[k] = v
	}
	data, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	return string(data)
}
