package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Usernames are unique among active users only, so a deleted account's
	// name can be reused.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
	     ON users(username) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_objects_owner ON objects(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_proposals_receiver ON proposals(receiver_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_proposals_sender ON proposals(sender_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_provenance_object ON provenance(object_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_links_receiver ON links(receiver_id, status)`,
}

func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
