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

// AppendProvenance appends a history entry. ID and CreatedAt are assigned
// here when empty.
func AppendProvenance(ctx context.Context, q db.Querier, e model.ProvenanceEntry) (*model.ProvenanceEntry, error) {
	if e.ID == "" {
		e.ID = uid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var proposalID any
	if e.ProposalID != "" {
		proposalID = e.ProposalID
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO provenance (id, object_id, from_owner_id, to_owner_id, kind, price, proposal_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ObjectID, e.FromOwnerID, e.ToOwnerID, e.Kind, e.Price, proposalID, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("appending provenance for %s: %w", e.ObjectID, err)
	}
	return &e, nil
}

// GetObjectHistory returns the provenance of an object, oldest first.
func GetObjectHistory(ctx context.Context, q db.Querier, objectID string) ([]model.ProvenanceEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT p.id, p.object_id, p.from_owner_id, p.to_owner_id, p.kind, p.price, p.proposal_id, p.created_at,
		        COALESCE(fu.username, ''), tu.username
		 FROM provenance p
		 LEFT JOIN users fu ON fu.id = p.from_owner_id
		 JOIN users tu ON tu.id = p.to_owner_id
		 WHERE p.object_id = ?
		 ORDER BY p.created_at, p.rowid`, objectID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting object history: %w", err)
	}
	defer rows.Close()

	return scanProvenance(rows)
}

// ListProposalProvenance returns the entries written for one exchange.
func ListProposalProvenance(ctx context.Context, q db.Querier, proposalID string) ([]model.ProvenanceEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT p.id, p.object_id, p.from_owner_id, p.to_owner_id, p.kind, p.price, p.proposal_id, p.created_at,
		        COALESCE(fu.username, ''), tu.username
		 FROM provenance p
		 LEFT JOIN users fu ON fu.id = p.from_owner_id
		 JOIN users tu ON tu.id = p.to_owner_id
		 WHERE p.proposal_id = ?
		 ORDER BY p.created_at, p.rowid`, proposalID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing proposal provenance: %w", err)
	}
	defer rows.Close()

	return scanProvenance(rows)
}

func scanProvenance(rows *sql.Rows) ([]model.ProvenanceEntry, error) {
	var entries []model.ProvenanceEntry
	for rows.Next() {
		var e model.ProvenanceEntry
		var from, proposalID sql.NullString
		var price sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ObjectID, &from, &e.ToOwnerID, &e.Kind, &price, &proposalID, &e.CreatedAt,
			&e.FromUsername, &e.ToUsername); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		if from.Valid {
			e.FromOwnerID = &from.String
		}
		if price.Valid {
			e.Price = &price.Int64
		}
		e.ProposalID = proposalID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
