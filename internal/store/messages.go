package store

import (
	"context"
	"fmt"

	"github.com/aarondl/null/v8"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

// PostMessage appends an entry to a request's activity feed. A zero
// authorID records a system message.
func PostMessage(ctx context.Context, q db.Querier, requestID, authorID int64, body string) error {
	var author null.Int64
	if authorID > 0 {
		author = null.Int64From(authorID)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO request_messages (request_id, author_id, body) VALUES (?, ?, ?)`,
		requestID, author, body,
	)
	if err != nil {
		return fmt.Errorf("posting message: %w", err)
	}
	return nil
}

// ListMessages returns a request's activity feed, oldest first.
func ListMessages(ctx context.Context, q db.Querier, requestID int64) ([]model.RequestMessage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, request_id, author_id, body, created_at
		 FROM request_messages WHERE request_id = ? ORDER BY id`, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []model.RequestMessage
	for rows.Next() {
		var m model.RequestMessage
		if err := rows.Scan(&m.ID, &m.RequestID, &m.AuthorID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
