// Package turn drives one user turn: the single model round trip, the
// interpretation of emitted tool calls into document-state transitions, and
// the ordered protocol event stream.
package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"legaldocgo/internal/models"
	"legaldocgo/internal/render"
	"legaldocgo/internal/service/ai"
	"legaldocgo/internal/session"
)

// Outcome is the interpreted result of one tool call: the payload surfaced
// to the client and whether the conversation's document changed.
type Outcome struct {
	Tool            string
	Result          map[string]any
	DocumentUpdated bool
}

// Interpreter validates and applies tool calls against the registry. One
// instance lives for exactly one turn; extracted information accumulates
// here and is discarded with the turn (it reaches the next turn only through
// the tool record appended to history).
type Interpreter struct {
	registry *session.Registry
	renderer render.Renderer
	convID   string

	pendingType string
	gathered    map[string]any
	missing     []string
}

func NewInterpreter(registry *session.Registry, renderer render.Renderer, convID string) *Interpreter {
	return &Interpreter{
		registry: registry,
		renderer: renderer,
		convID:   convID,
		gathered: make(map[string]any),
	}
}

type extractArgs struct {
	DocumentType  string         `json:"document_type"`
	ExtractedData map[string]any `json:"extracted_data"`
	MissingFields []string       `json:"missing_fields"`
}

type generateArgs struct {
	DocumentType string         `json:"document_type"`
	DocumentData map[string]any `json:"document_data"`
}

type editArgs struct {
	EditType  string `json:"edit_type"`
	FieldName string `json:"field_name"`
	NewValue  string `json:"new_value"`
	Reason    string `json:"reason"`
}

// Apply interprets one tool call. Tool-level failures come back as
// ValidationError, ErrUnknownTool, ErrNoDocument, or *render.RenderError;
// the caller decides whether they end the turn.
func (i *Interpreter) Apply(ctx context.Context, call ai.ToolCall) (*Outcome, error) {
	switch call.Name {
	case ai.ToolExtractInformation:
		return i.extract(call.Arguments)
	case ai.ToolGenerateDocument:
		return i.generate(ctx, call.Arguments)
	case ai.ToolApplyEdits:
		return i.edit(ctx, call.Arguments)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
}

func (i *Interpreter) extract(raw json.RawMessage) (*Outcome, error) {
	var args extractArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &ValidationError{Tool: ai.ToolExtractInformation, Reason: err.Error()}
	}
	if args.DocumentType == "" {
		return nil, &ValidationError{Tool: ai.ToolExtractInformation, Reason: "document_type is required"}
	}
	if args.ExtractedData == nil {
		return nil, &ValidationError{Tool: ai.ToolExtractInformation, Reason: "extracted_data is required"}
	}

	i.pendingType = args.DocumentType
	for k, v := range args.ExtractedData {
		i.gathered[k] = v
	}
	i.missing = args.MissingFields

	return &Outcome{
		Tool: ai.ToolExtractInformation,
		Result: map[string]any{
			"document_type":  args.DocumentType,
			"extracted_data": args.ExtractedData,
			"missing_fields": args.MissingFields,
		},
	}, nil
}

func (i *Interpreter) generate(ctx context.Context, raw json.RawMessage) (*Outcome, error) {
	var args generateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &ValidationError{Tool: ai.ToolGenerateDocument, Reason: err.Error()}
	}
	if args.DocumentType == "" {
		return nil, &ValidationError{Tool: ai.ToolGenerateDocument, Reason: "document_type is required"}
	}
	if args.DocumentData == nil {
		return nil, &ValidationError{Tool: ai.ToolGenerateDocument, Reason: "document_data is required"}
	}

	artifact, mime, err := i.renderer.Render(args.DocumentType, args.DocumentData)
	if err != nil {
		return nil, err
	}
	doc := models.Document{
		Type:         args.DocumentType,
		Artifact:     artifact,
		ArtifactMIME: mime,
		Data:         args.DocumentData,
		GeneratedAt:  time.Now().UTC(),
	}
	if err := i.registry.SetDocument(ctx, i.convID, doc); err != nil {
		return nil, err
	}
	return &Outcome{
		Tool: ai.ToolGenerateDocument,
		Result: map[string]any{
			"document_type": args.DocumentType,
			"field_count":   len(args.DocumentData),
		},
		DocumentUpdated: true,
	}, nil
}

func (i *Interpreter) edit(ctx context.Context, raw json.RawMessage) (*Outcome, error) {
	var args editArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &ValidationError{Tool: ai.ToolApplyEdits, Reason: err.Error()}
	}
	if args.FieldName == "" {
		return nil, &ValidationError{Tool: ai.ToolApplyEdits, Reason: "field_name is required"}
	}
	switch args.EditType {
	case "update_field", "replace_section", "add_clause":
	default:
		return nil, &ValidationError{Tool: ai.ToolApplyEdits, Reason: fmt.Sprintf("unsupported edit_type %q", args.EditType)}
	}

	doc, ok, err := i.registry.Document(i.convID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoDocument
	}

	// Edits are applied to a copy and swapped in whole, so the artifact is
	// always the render of the data it sits next to.
	data := models.CloneData(doc.Data)
	switch args.EditType {
	case "update_field", "replace_section":
		data[args.FieldName] = args.NewValue
	case "add_clause":
		clauses, _ := data["additional_clauses"].([]any)
		data["additional_clauses"] = append(clauses, args.NewValue)
	}

	artifact, mime, err := i.renderer.Render(doc.Type, data)
	if err != nil {
		return nil, err
	}
	next := models.Document{
		Type:         doc.Type,
		Artifact:     artifact,
		ArtifactMIME: mime,
		Data:         data,
		GeneratedAt:  time.Now().UTC(),
	}
	if err := i.registry.SetDocument(ctx, i.convID, next); err != nil {
		return nil, err
	}

	result := map[string]any{
		"edit_type":  args.EditType,
		"field_name": args.FieldName,
		"new_value":  args.NewValue,
	}
	if args.Reason != "" {
		result["reason"] = args.Reason
	}
	return &Outcome{
		Tool:            ai.ToolApplyEdits,
		Result:          result,
		DocumentUpdated: true,
	}, nil
}

// Gathered returns the information extracted so far this turn, with the
// document type it belongs to and the fields the model flagged as missing.
func (i *Interpreter) Gathered() (docType string, data map[string]any, missing []string) {
	return i.pendingType, i.gathered, i.missing
}
