package repository

import (
	"context"
	"slices"
)

// ChatRepo stores the assistant conversation.
type ChatRepo struct{ db DBTX }

func NewChatRepo(db DBTX) *ChatRepo { return &ChatRepo{db: db} }

func (r *ChatRepo) Add(ctx context.Context, m ChatMessage) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO chat_messages(id, role, sender, body, created_at)
	VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.Role, m.Sender, m.Body, m.CreatedAt)
	return err
}

// Recent returns up to limit of the newest messages, oldest first.
func (r *ChatRepo) Recent(ctx context.Context, limit int) ([]ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, role, sender, body, created_at FROM chat_messages
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Sender, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (r *ChatRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages`)
	return err
}
