package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/uid"
)

const objectColumns = `id, owner_id, name, category, condition, public, for_sale, for_trade, price, image_mime, created_at, updated_at`

// CreateObject adds an object to ownerID's collection and writes its intake
// provenance entry in the same transaction.
func CreateObject(ctx context.Context, database *sql.DB, ownerID string, attrs model.ObjectAttrs) (*model.Object, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id := uid.New()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO objects (id, owner_id, name, category, condition, public, for_sale, for_trade, price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, attrs.Name, attrs.Category, attrs.Condition,
		attrs.Public, attrs.ForSale, attrs.ForTrade, attrs.Price, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating object: %w", err)
	}

	if _, err := AppendProvenance(ctx, tx, model.ProvenanceEntry{
		ObjectID:  id,
		ToOwnerID: ownerID,
		Kind:      model.ProvenanceIntake,
		Price:     attrs.Price,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing object: %w", err)
	}
	return GetObject(ctx, database, id)
}

// GetObject returns an object by ID.
func GetObject(ctx context.Context, q db.Querier, id string) (*model.Object, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	defer rows.Close()

	objects, err := scanObjects(rows)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, nil
	}
	return &objects[0], nil
}

// GetObjects returns the objects with the given IDs keyed by ID. Missing IDs
// are absent from the map.
func GetObjects(ctx context.Context, q db.Querier, ids []string) (map[string]model.Object, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[string]model.Object{}, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE id IN (`+placeholders(len(ids))+`)`,
		lo.ToAnySlice(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting objects: %w", err)
	}
	defer rows.Close()

	objects, err := scanObjects(rows)
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(objects, func(o model.Object) string { return o.ID }), nil
}

// ListObjectsByOwner returns an owner's objects, newest first. When
// publicOnly is set, hidden objects are left out.
func ListObjectsByOwner(ctx context.Context, q db.Querier, ownerID string, publicOnly bool) ([]model.Object, error) {
	query := `SELECT ` + objectColumns + ` FROM objects WHERE owner_id = ?`
	if publicOnly {
		query += ` AND public = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	defer rows.Close()

	return scanObjects(rows)
}

// UpdateObjectAttrs edits an object's attributes if ownerID still owns it.
// Returns false if no such object is owned by ownerID.
func UpdateObjectAttrs(ctx context.Context, database *sql.DB, id, ownerID string, attrs model.ObjectAttrs) (bool, error) {
	res, err := database.ExecContext(ctx,
		`UPDATE objects SET name = ?, category = ?, condition = ?, public = ?, for_sale = ?, for_trade = ?, price = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		attrs.Name, attrs.Category, attrs.Condition, attrs.Public, attrs.ForSale, attrs.ForTrade, attrs.Price,
		time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("updating object: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating object: %w", err)
	}
	return n == 1, nil
}

// SetObjectImage sets an object's image if ownerID still owns it.
func SetObjectImage(ctx context.Context, database *sql.DB, id, ownerID string, image []byte, mime string) (bool, error) {
	res, err := database.ExecContext(ctx,
		`UPDATE objects SET image = ?, image_mime = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		image, mime, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("setting object image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting object image: %w", err)
	}
	return n == 1, nil
}

// GetObjectImage returns an object's image data and MIME type.
func GetObjectImage(ctx context.Context, q db.Querier, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM objects WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting object image: %w", err)
	}
	return image, mime.String, nil
}

// Owners returns the current owner of each existing object in ids.
func Owners(ctx context.Context, q db.Querier, ids []string) (map[string]string, error) {
	ids = lo.Uniq(ids)
	owners := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return owners, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, owner_id FROM objects WHERE id IN (`+placeholders(len(ids))+`)`,
		lo.ToAnySlice(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, owner string
		if err := rows.Scan(&id, &owner); err != nil {
			return nil, fmt.Errorf("scanning owner: %w", err)
		}
		owners[id] = owner
	}
	return owners, rows.Err()
}

// TransferAtomic applies every transfer or none of them. Each object moves
// only if its current owner is the transfer's FromOwnerID; if any object has
// moved, nothing is written and an *model.OwnershipMismatchError lists the
// offending objects.
func TransferAtomic(ctx context.Context, database *sql.DB, transfers []model.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := reassignOwners(ctx, tx, transfers, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transfer: %w", err)
	}
	return nil
}

// reassignOwners runs one conditional update per transfer inside tx and
// reports every object whose owner did not match.
func reassignOwners(ctx context.Context, tx *sql.Tx, transfers []model.Transfer, now time.Time) error {
	var mismatched []string
	for _, t := range transfers {
		res, err := tx.ExecContext(ctx,
			`UPDATE objects SET owner_id = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
			t.ToOwnerID, now, t.ObjectID, t.FromOwnerID,
		)
		if err != nil {
			return fmt.Errorf("reassigning object %s: %w", t.ObjectID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reassigning object %s: %w", t.ObjectID, err)
		}
		if n != 1 {
			mismatched = append(mismatched, t.ObjectID)
		}
	}
	if len(mismatched) > 0 {
		return &model.OwnershipMismatchError{ObjectIDs: mismatched}
	}
	return nil
}

func scanObjects(rows *sql.Rows) ([]model.Object, error) {
	var objects []model.Object
	for rows.Next() {
		var o model.Object
		var category, condition, imageMime sql.NullString
		var price sql.NullInt64
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.Name, &category, &condition,
			&o.Public, &o.ForSale, &o.ForTrade, &price, &imageMime, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		o.Category = category.String
		o.Condition = condition.String
		o.ImageMime = imageMime.String
		if price.Valid {
			o.Price = &price.Int64
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
