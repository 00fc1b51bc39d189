package models

import "time"

// Document is the current document of a conversation. Data is the canonical
// source of truth; Artifact is the rendered form and is always derivable
// from Data by a renderer pass. The engine never edits Artifact directly.
type Document struct {
	Type         string         `json:"type"`
	Artifact     []byte         `json:"-"`
	ArtifactMIME string         `json:"artifact_mime"`
	Data         map[string]any `json:"data"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// Clone copies the document, including the data map and artifact bytes, so
// store snapshots cannot be mutated by callers.
func (d Document) Clone() Document {
	c := d
	c.Artifact = append([]byte(nil), d.Artifact...)
	c.Data = CloneData(d.Data)
	return c
}

// CloneData shallow-copies a structured data map. Values are JSON scalars,
// arrays, or objects decoded by encoding/json; nested maps and slices are
// copied one level deep, which is enough for the field-level edits the
// engine performs.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case map[string]any:
			inner := make(map[string]any, len(t))
			for ik, iv := range t {
				inner[ik] = iv
			}
			out[k] = inner
		case []any:
			out[k] = append([]any(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}
