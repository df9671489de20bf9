// Package postgres persists drive metadata with write-through from the
// in-memory store and full hydration at boot.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/arjunkorath02/DigiData/internal/drive"
	"github.com/arjunkorath02/DigiData/internal/logging"
	"github.com/arjunkorath02/DigiData/internal/metrics"
)

// Store is a PostgreSQL persistence layer for drive metadata.
type Store struct {
	db *sql.DB
}

// New opens a connection pool to the given database URL.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// Migrate runs SQL migration files in lexical order.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// LoadAll hydrates the in-memory drive store from the database.
// Must run before the store is shared with request handlers.
func (s *Store) LoadAll(ctx context.Context, dst *drive.Store) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("load_all", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, parent_id, name, kind, content_handle, thumb_handle,
		        size_bytes, mime_hint, is_starred, is_trashed, created_at, modified_at, trashed_at
		 FROM nodes`)
	if err != nil {
		return fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodeCount := 0
	for rows.Next() {
		var n drive.Node
		var parentID, contentHandle, thumbHandle, mimeHint sql.NullString
		var trashedAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.OwnerID, &parentID, &n.Name, &n.Kind,
			&contentHandle, &thumbHandle, &n.SizeBytes, &mimeHint,
			&n.Starred, &n.Trashed, &n.CreatedAt, &n.ModifiedAt, &trashedAt); err != nil {
			return fmt.Errorf("scan node: %w", err)
		}
		n.ParentID = parentID.String
		n.ContentHandle = contentHandle.String
		n.ThumbHandle = thumbHandle.String
		n.MimeHint = mimeHint.String
		if trashedAt.Valid {
			n.TrashedAt = trashedAt.Time
		}
		dst.LoadNode(&n)
		nodeCount++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	grantRows, err := s.db.QueryContext(ctx,
		`SELECT node_id, grantee, permission FROM share_grants`)
	if err != nil {
		return fmt.Errorf("query grants: %w", err)
	}
	defer grantRows.Close()

	grantCount := 0
	for grantRows.Next() {
		var g drive.Grant
		if err := grantRows.Scan(&g.NodeID, &g.Grantee, &g.Permission); err != nil {
			return fmt.Errorf("scan grant: %w", err)
		}
		dst.LoadGrant(g)
		grantCount++
	}
	if err := grantRows.Err(); err != nil {
		return fmt.Errorf("grant rows error: %w", err)
	}

	quotaRows, err := s.db.QueryContext(ctx,
		`SELECT id, storage_limit_bytes FROM users`)
	if err != nil {
		return fmt.Errorf("query storage limits: %w", err)
	}
	defer quotaRows.Close()

	for quotaRows.Next() {
		var ownerID string
		var limit int64
		if err := quotaRows.Scan(&ownerID, &limit); err != nil {
			return fmt.Errorf("scan storage limit: %w", err)
		}
		dst.SetQuotaLimit(ownerID, limit)
	}
	if err := quotaRows.Err(); err != nil {
		return fmt.Errorf("quota rows error: %w", err)
	}

	metrics.SetNodeCount(int64(nodeCount))
	logging.Info("hydrated drive store",
		zap.Int("nodes", nodeCount),
		zap.Int("grants", grantCount),
		zap.Duration("took", time.Since(start)))
	return nil
}

// SaveNodes upserts a batch of nodes in a single transaction. Used for
// write-through after every mutating drive operation.
func (s *Store) SaveNodes(ctx context.Context, nodes ...*drive.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_nodes", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, n := range nodes {
		var parentID interface{}
		if n.ParentID != "" {
			parentID = n.ParentID
		}
		var trashedAt interface{}
		if !n.TrashedAt.IsZero() {
			trashedAt = n.TrashedAt
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (id, owner_id, parent_id, name, kind, content_handle, thumb_handle,
			                    size_bytes, mime_hint, is_starred, is_trashed, created_at, modified_at, trashed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (id) DO UPDATE SET
				parent_id = EXCLUDED.parent_id,
				name = EXCLUDED.name,
				content_handle = EXCLUDED.content_handle,
				thumb_handle = EXCLUDED.thumb_handle,
				size_bytes = EXCLUDED.size_bytes,
				mime_hint = EXCLUDED.mime_hint,
				is_starred = EXCLUDED.is_starred,
				is_trashed = EXCLUDED.is_trashed,
				modified_at = EXCLUDED.modified_at,
				trashed_at = EXCLUDED.trashed_at`,
			n.ID, n.OwnerID, parentID, n.Name, n.Kind, n.ContentHandle, n.ThumbHandle,
			n.SizeBytes, n.MimeHint, n.Starred, n.Trashed, n.CreatedAt, n.ModifiedAt, trashedAt)
		if err != nil {
			return fmt.Errorf("upsert node %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteNodes removes node rows and their grants after a purge.
func (s *Store) DeleteNodes(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_nodes", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM share_grants WHERE node_id = $1`, id); err != nil {
			return fmt.Errorf("delete grants for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete node %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// SaveGrant upserts a share grant.
func (s *Store) SaveGrant(ctx context.Context, g drive.Grant) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_grant", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO share_grants (node_id, grantee, permission)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (node_id, grantee) DO UPDATE SET permission = EXCLUDED.permission`,
		g.NodeID, g.Grantee, g.Permission)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

// DeleteGrant removes a share grant.
func (s *Store) DeleteGrant(ctx context.Context, nodeID, grantee string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_grant", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM share_grants WHERE node_id = $1 AND grantee = $2`, nodeID, grantee)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}

// NodeCount returns the total number of node rows.
func (s *Store) NodeCount(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("node_count", time.Since(start)) }()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count)
	return count, err
}

// ─── Activity Log ───────────────────────────────────────────────────────────

// ActivityEntry represents a single activity log entry.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	NodeID    string    `json:"node_id"`
	NodeName  string    `json:"node_name"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordActivity appends an activity log entry. Failures are logged,
// not surfaced; the log is advisory.
func (s *Store) RecordActivity(ctx context.Context, userID, action, nodeID, nodeName string) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("record_activity", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_log (user_id, action, node_id, node_name) VALUES ($1, $2, $3, $4)`,
		userID, action, nodeID, nodeName)
	if err != nil {
		logging.Error("record activity failed", zap.Error(err))
	}
}

// GetActivity returns recent activity entries for a user.
func (s *Store) GetActivity(ctx context.Context, userID string, limit int) ([]ActivityEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_activity", time.Since(start)) }()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, action, node_id, node_name, created_at
		 FROM activity_log WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.NodeID, &e.NodeName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
