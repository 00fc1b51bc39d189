package turn

import (
	"errors"
	"fmt"

	"legaldocgo/internal/models"
	"legaldocgo/internal/render"
	"legaldocgo/internal/service/ai"
)

// ErrUnknownTool reports a tool name outside the recognized set.
var ErrUnknownTool = errors.New("unknown tool")

// ErrNoDocument reports an edit requested before any document was generated.
var ErrNoDocument = errors.New("no document has been generated yet")

// ValidationError reports structurally malformed tool-call arguments.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s arguments: %s", e.Tool, e.Reason)
}

// errorKind maps an interpreter or collaborator failure onto the stream
// error taxonomy. The second result is false for errors outside the
// taxonomy, which end the turn.
func errorKind(err error) (string, bool) {
	var verr *ValidationError
	var rerr *render.RenderError
	var uerr *ai.UpstreamError
	switch {
	case errors.As(err, &verr):
		return models.ErrKindValidation, true
	case errors.Is(err, ErrUnknownTool):
		return models.ErrKindUnknownTool, true
	case errors.Is(err, ErrNoDocument):
		return models.ErrKindNoDocument, true
	case errors.As(err, &rerr):
		return models.ErrKindRender, true
	case errors.As(err, &uerr):
		return models.ErrKindUpstream, true
	}
	return "", false
}
