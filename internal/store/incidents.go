package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
)

// ListIncidents returns incidents, oldest first. With openOnly set, resolved
// incidents are skipped.
func ListIncidents(ctx context.Context, q db.Querier, openOnly bool) ([]model.Incident, error) {
	query := `SELECT id, proposal_id, kind, detail, created_at, resolved_at, resolution FROM incidents`
	if openOnly {
		query += ` WHERE resolved_at IS NULL`
	}
	query += ` ORDER BY created_at`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	defer rows.Close()

	var incidents []model.Incident
	for rows.Next() {
		var i model.Incident
		var resolution sql.NullString
		if err := rows.Scan(&i.ID, &i.ProposalID, &i.Kind, &i.Detail, &i.CreatedAt, &i.ResolvedAt, &resolution); err != nil {
			return nil, fmt.Errorf("scanning incident: %w", err)
		}
		i.Resolution = resolution.String
		incidents = append(incidents, i)
	}
	return incidents, rows.Err()
}

// ResolveFlaggedProposal is the operator's way out of a partial transfer:
// after ownership has been corrected by hand, it sets the proposal's final
// status, clears the flag and closes its open incidents.
func ResolveFlaggedProposal(ctx context.Context, database *sql.DB, proposalID, status, note string) error {
	if status != model.ProposalAccepted && status != model.ProposalCancelled {
		return fmt.Errorf("resolution must be %q or %q", model.ProposalAccepted, model.ProposalCancelled)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE proposals SET status = ?, resolved_at = ?, flagged_at = NULL
		 WHERE id = ? AND flagged_at IS NOT NULL`,
		status, now, proposalID,
	)
	if err != nil {
		return fmt.Errorf("resolving proposal: %w", err)
	}
	if err := requireOneRow(res, model.ErrNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE incidents SET resolved_at = ?, resolution = ?
		 WHERE proposal_id = ? AND resolved_at IS NULL`,
		now, status+": "+note, proposalID,
	); err != nil {
		return fmt.Errorf("closing incidents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing resolution: %w", err)
	}
	return nil
}
