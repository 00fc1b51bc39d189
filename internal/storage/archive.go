package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"legaldocgo/internal/models"
)

// Archive mirrors registry writes into SQL so conversations survive a
// restart. It satisfies session.Mirror.
type Archive struct {
	db *sql.DB
}

// NewArchive wraps an opened, migrated database.
func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) SaveConversation(ctx context.Context, id string, createdAt time.Time) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at) VALUES (?, ?)`,
		id, createdAt,
	)
	if err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}
	return nil
}

func (a *Archive) SaveMessage(ctx context.Context, id string, seq int, msg models.Message) error {
	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		return fmt.Errorf("encode message parts: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, seq, role, parts, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, seq, string(msg.Role), string(parts), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("archive message: %w", err)
	}
	return nil
}

func (a *Archive) SaveDocument(ctx context.Context, id string, doc models.Document) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode document data: %w", err)
	}
	// Whole-document replace matches the registry's swap semantics.
	_, err = a.db.ExecContext(ctx,
		`REPLACE INTO documents (conversation_id, doc_type, mime, artifact, data, generated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, doc.Type, doc.ArtifactMIME, doc.Artifact, string(data), doc.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("archive document: %w", err)
	}
	return nil
}

func (a *Archive) Purge(ctx context.Context, id string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purge tx: %w", err)
	}
	for _, stmt := range []string{
		`DELETE FROM documents WHERE conversation_id = ?`,
		`DELETE FROM messages WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("purge conversation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit purge: %w", err)
	}
	return nil
}

// History reads the archived messages of a conversation in sequence order.
func (a *Archive) History(ctx context.Context, id string) ([]models.Message, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT role, parts, created_at FROM messages WHERE conversation_id = ? ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			role  string
			parts string
			at    time.Time
		)
		if err := rows.Scan(&role, &parts, &at); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m := models.Message{Role: models.Role(role), CreatedAt: at}
		if err := json.Unmarshal([]byte(parts), &m.Parts); err != nil {
			return nil, fmt.Errorf("decode message parts: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Document reads the archived document, if any.
func (a *Archive) Document(ctx context.Context, id string) (models.Document, bool, error) {
	var (
		doc  models.Document
		data string
	)
	err := a.db.QueryRowContext(ctx,
		`SELECT doc_type, mime, artifact, data, generated_at FROM documents WHERE conversation_id = ?`,
		id,
	).Scan(&doc.Type, &doc.ArtifactMIME, &doc.Artifact, &data, &doc.GeneratedAt)
	if err == sql.ErrNoRows {
		return models.Document{}, false, nil
	}
	if err != nil {
		return models.Document{}, false, fmt.Errorf("load document: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &doc.Data); err != nil {
		return models.Document{}, false, fmt.Errorf("decode document data: %w", err)
	}
	return doc, true, nil
}
