package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/uid"
)

// CreateLink stores a pending link request. A pending request between the
// same two users in either direction is returned instead of duplicated.
func CreateLink(ctx context.Context, database *sql.DB, requesterID, receiverID string) (*model.Link, error) {
	existing, err := findPendingLink(ctx, database, requesterID, receiverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	id := uid.New()
	_, err = database.ExecContext(ctx,
		`INSERT INTO links (id, requester_id, receiver_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, requesterID, receiverID, model.LinkPending, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating link: %w", err)
	}
	return GetLink(ctx, database, id)
}

func findPendingLink(ctx context.Context, q db.Querier, a, b string) (*model.Link, error) {
	links, err := queryLinks(ctx, q,
		`SELECT id, requester_id, receiver_id, status, created_at FROM links
		 WHERE status = ? AND ((requester_id = ? AND receiver_id = ?) OR (requester_id = ? AND receiver_id = ?))`,
		model.LinkPending, a, b, b, a)
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return &links[0], nil
}

// GetLink returns a link request by ID.
func GetLink(ctx context.Context, q db.Querier, id string) (*model.Link, error) {
	links, err := queryLinks(ctx, q,
		`SELECT id, requester_id, receiver_id, status, created_at FROM links WHERE id = ?`, id)
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return &links[0], nil
}

// RespondLink lets the receiver accept or reject a pending request.
func RespondLink(ctx context.Context, database *sql.DB, id, receiverID, status string) error {
	res, err := database.ExecContext(ctx,
		`UPDATE links SET status = ? WHERE id = ? AND receiver_id = ? AND status = ?`,
		status, id, receiverID, model.LinkPending,
	)
	if err != nil {
		return fmt.Errorf("responding to link: %w", err)
	}
	return requireOneRow(res, model.ErrStaleState)
}

// ListPendingLinks returns pending requests addressed to userID, newest first.
func ListPendingLinks(ctx context.Context, q db.Querier, userID string) ([]model.Link, error) {
	return queryLinks(ctx, q,
		`SELECT id, requester_id, receiver_id, status, created_at FROM links
		 WHERE receiver_id = ? AND status = ? ORDER BY created_at DESC`,
		userID, model.LinkPending)
}

func queryLinks(ctx context.Context, q db.Querier, query string, args ...any) ([]model.Link, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.ID, &l.RequesterID, &l.ReceiverID, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
