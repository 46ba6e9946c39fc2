package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/stashlink/backend/internal/backend"
	"github.com/stashlink/backend/internal/db"
	"github.com/stashlink/backend/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AssetQuery filters List. Empty fields match everything.
type AssetQuery struct {
	Tag    string
	Search string
	Limit  int
}

// AssetRepository persists saved links in SQLite.
type AssetRepository struct {
	db  *sqlx.DB
	tx  *TransactionManager
	cfg backend.Configuration
}

// OpenAssetRepository opens the record store described by cfg. Configurations come
// from backend.Resolver; there is no default location.
func OpenAssetRepository(ctx context.Context, cfg backend.Configuration) (*AssetRepository, error) {
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	conn, err := db.OpenSQLite(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	repo := NewAssetRepository(conn)
	repo.cfg = cfg
	return repo, nil
}

// NewAssetRepository wraps an already migrated connection.
func NewAssetRepository(conn *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: conn, tx: NewTransactionManager(conn)}
}

// Configuration reports where the repository was opened.
func (r *AssetRepository) Configuration() backend.Configuration {
	return r.cfg
}

// Transactions exposes the transaction manager so callers can group writes.
func (r *AssetRepository) Transactions() *TransactionManager {
	return r.tx
}

// Close releases the underlying connection.
func (r *AssetRepository) Close() error {
	return r.db.Close()
}

type assetRow struct {
	ID                    string       `db:"id"`
	URL                   string       `db:"url"`
	Title                 string       `db:"title"`
	ImageRef              string       `db:"image_ref"`
	SourceApp             string       `db:"source_app"`
	CreatedAt             time.Time    `db:"created_at"`
	Reviewed              bool         `db:"reviewed"`
	Summary               string       `db:"summary"`
	CoverEmoji            string       `db:"cover_emoji"`
	CoverColor            string       `db:"cover_color"`
	EnrichmentSource      string       `db:"enrichment_source"`
	SnapshotStatus        string       `db:"snapshot_status"`
	SnapshotAttempts      int          `db:"snapshot_attempts"`
	SnapshotError         string       `db:"snapshot_error"`
	SnapshotLastAttemptAt sql.NullTime `db:"snapshot_last_attempt_at"`
}

const assetColumns = `id, url, title, image_ref, source_app, created_at, reviewed, summary,
	cover_emoji, cover_color, enrichment_source, snapshot_status, snapshot_attempts,
	snapshot_error, snapshot_last_attempt_at`

func (row assetRow) toModel() models.SavedAsset {
	asset := models.SavedAsset{
		ID:               row.ID,
		URL:              row.URL,
		Title:            row.Title,
		ImageRef:         row.ImageRef,
		SourceApp:        row.SourceApp,
		CreatedAt:        row.CreatedAt.UTC(),
		Reviewed:         row.Reviewed,
		Summary:          row.Summary,
		Tags:             []string{},
		CoverEmoji:       row.CoverEmoji,
		CoverColor:       row.CoverColor,
		EnrichmentSource: row.EnrichmentSource,
		Snapshot: models.Snapshot{
			Status:    decodeStatus(row.SnapshotStatus),
			Attempts:  row.SnapshotAttempts,
			LastError: row.SnapshotError,
		},
	}
	if row.SnapshotLastAttemptAt.Valid {
		at := row.SnapshotLastAttemptAt.Time.UTC()
		asset.Snapshot.LastAttemptAt = &at
	}
	return asset
}

// Create inserts the asset and its tags in one transaction.
func (r *AssetRepository) Create(ctx context.Context, asset models.SavedAsset) error {
	if strings.TrimSpace(asset.ID) == "" || strings.TrimSpace(asset.URL) == "" {
		return fmt.Errorf("%w: id and url are required", ErrInvalidAsset)
	}
	if len(asset.Tags) > models.MaxTags {
		return fmt.Errorf("%w: at most %d tags", ErrInvalidAsset, models.MaxTags)
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}

	var lastAttempt any
	if asset.Snapshot.LastAttemptAt != nil {
		lastAttempt = asset.Snapshot.LastAttemptAt.UTC()
	}

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := executor(ctx, r.db).ExecContext(ctx, `
			INSERT INTO assets (`+assetColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			asset.ID, asset.URL, asset.Title, asset.ImageRef, asset.SourceApp,
			asset.CreatedAt.UTC(), asset.Reviewed, asset.Summary,
			asset.CoverEmoji, asset.CoverColor, asset.EnrichmentSource,
			encodeStatus(asset.Snapshot.Status), asset.Snapshot.Attempts,
			asset.Snapshot.LastError, lastAttempt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert asset: %w", err)
		}
		return r.replaceTags(ctx, asset.ID, asset.Tags)
	})
}

// Get loads one asset with its tags.
func (r *AssetRepository) Get(ctx context.Context, id string) (models.SavedAsset, error) {
	q := executor(ctx, r.db)

	var row assetRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SavedAsset{}, ErrNotFound
		}
		return models.SavedAsset{}, fmt.Errorf("select asset: %w", err)
	}

	assets := []models.SavedAsset{row.toModel()}
	if err := r.attachTags(ctx, assets); err != nil {
		return models.SavedAsset{}, err
	}
	return assets[0], nil
}

// List returns assets newest first.
func (r *AssetRepository) List(ctx context.Context, query AssetQuery) ([]models.SavedAsset, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var (
		where []string
		args  []any
	)
	if tag := strings.TrimSpace(query.Tag); tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM asset_tags t WHERE t.asset_id = assets.id AND t.tag = ? COLLATE NOCASE)`)
		args = append(args, tag)
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\' OR url LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	stmt := `SELECT ` + assetColumns + ` FROM assets`
	if len(where) > 0 {
		stmt += ` WHERE ` + strings.Join(where, ` AND `)
	}
	stmt += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	var rows []assetRow
	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	assets := make([]models.SavedAsset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, row.toModel())
	}
	if err := r.attachTags(ctx, assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// UpdateEnrichment replaces the summary and tags. Snapshot fields are untouched.
func (r *AssetRepository) UpdateEnrichment(ctx context.Context, id, summary string, tags []string, source string) error {
	if len(tags) > models.MaxTags {
		return fmt.Errorf("%w: at most %d tags", ErrInvalidAsset, models.MaxTags)
	}
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := executor(ctx, r.db).ExecContext(ctx,
			`UPDATE assets SET summary = ?, enrichment_source = ? WHERE id = ?`, summary, source, id)
		if err != nil {
			return fmt.Errorf("update enrichment: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return r.replaceTags(ctx, id, tags)
	})
}

// SetReviewed flips the reviewed flag.
func (r *AssetRepository) SetReviewed(ctx context.Context, id string, reviewed bool) error {
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := executor(ctx, r.db).ExecContext(ctx, `UPDATE assets SET reviewed = ? WHERE id = ?`, reviewed, id)
		if err != nil {
			return fmt.Errorf("update reviewed: %w", err)
		}
		return requireRow(res)
	})
}

// ListSnapshotCandidates returns pending assets without an image that still have
// attempts left, oldest first.
func (r *AssetRepository) ListSnapshotCandidates(ctx context.Context, maxAttempts int) ([]models.SnapshotCandidate, error) {
	var rows []struct {
		ID  string `db:"id"`
		URL string `db:"url"`
	}
	err := sqlx.SelectContext(ctx, executor(ctx, r.db), &rows, `
		SELECT id, url FROM assets
		WHERE snapshot_status = ? AND image_ref = '' AND snapshot_attempts < ?
		ORDER BY created_at, id
	`, encodeStatus(models.SnapshotPending), maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("list snapshot candidates: %w", err)
	}

	candidates := make([]models.SnapshotCandidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, models.SnapshotCandidate{ID: row.ID, URL: row.URL})
	}
	return candidates, nil
}

// RecordSnapshotAttempt increments the attempt counter and returns the new count.
// The counter never passes maxAttempts; a pending asset already at the cap yields
// ErrSnapshotExhausted.
func (r *AssetRepository) RecordSnapshotAttempt(ctx context.Context, id string, maxAttempts int, at time.Time) (int, error) {
	var attempts int
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		err := sqlx.GetContext(ctx, executor(ctx, r.db), &attempts, `
			UPDATE assets
			SET snapshot_attempts = snapshot_attempts + 1, snapshot_last_attempt_at = ?
			WHERE id = ? AND snapshot_status = ? AND snapshot_attempts < ?
			RETURNING snapshot_attempts
		`, at.UTC(), id, encodeStatus(models.SnapshotPending), maxAttempts)
		if errors.Is(err, sql.ErrNoRows) {
			return r.settledOrMissing(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("record snapshot attempt: %w", err)
		}
		return nil
	})
	return attempts, err
}

// CompleteSnapshot stores the captured image and marks the snapshot succeeded.
func (r *AssetRepository) CompleteSnapshot(ctx context.Context, id, imageRef string) error {
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := executor(ctx, r.db).ExecContext(ctx, `
			UPDATE assets SET image_ref = ?, snapshot_status = ?, snapshot_error = ''
			WHERE id = ? AND snapshot_status = ?
		`, imageRef, encodeStatus(models.SnapshotSucceeded), id, encodeStatus(models.SnapshotPending))
		if err != nil {
			return fmt.Errorf("complete snapshot: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return r.settledOrMissing(ctx, id)
		}
		return nil
	})
}

// FailSnapshot records a failed attempt. status must be pending or failed.
func (r *AssetRepository) FailSnapshot(ctx context.Context, id string, status models.SnapshotStatus, message string) error {
	if status == models.SnapshotSucceeded {
		return fmt.Errorf("%w: a failed attempt cannot succeed", ErrInvalidAsset)
	}
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := executor(ctx, r.db).ExecContext(ctx, `
			UPDATE assets SET snapshot_status = ?, snapshot_error = ?
			WHERE id = ? AND snapshot_status = ?
		`, encodeStatus(status), message, id, encodeStatus(models.SnapshotPending))
		if err != nil {
			return fmt.Errorf("fail snapshot: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return r.settledOrMissing(ctx, id)
		}
		return nil
	})
}

// GetSetting reads a value from the settings table.
func (r *AssetRepository) GetSetting(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := sqlx.GetContext(ctx, executor(ctx, r.db), &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select setting %s: %w", key, err)
	}
	return value, true, nil
}

// PutSetting upserts a value in the settings table.
func (r *AssetRepository) PutSetting(ctx context.Context, key string, value []byte) error {
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := executor(ctx, r.db).ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
		return nil
	})
}

func (r *AssetRepository) replaceTags(ctx context.Context, id string, tags []string) error {
	q := executor(ctx, r.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM asset_tags WHERE asset_id = ?`, id); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for i, tag := range tags {
		if _, err := q.ExecContext(ctx, `INSERT INTO asset_tags (asset_id, position, tag) VALUES (?, ?, ?)`, id, i, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

func (r *AssetRepository) attachTags(ctx context.Context, assets []models.SavedAsset) error {
	if len(assets) == 0 {
		return nil
	}

	ids := make([]string, 0, len(assets))
	index := make(map[string]int, len(assets))
	for i, asset := range assets {
		ids = append(ids, asset.ID)
		index[asset.ID] = i
	}

	query, args, err := sqlx.In(`SELECT asset_id, tag FROM asset_tags WHERE asset_id IN (?) ORDER BY asset_id, position`, ids)
	if err != nil {
		return fmt.Errorf("build tag query: %w", err)
	}

	q := executor(ctx, r.db)
	var rows []struct {
		AssetID string `db:"asset_id"`
		Tag     string `db:"tag"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("select tags: %w", err)
	}

	for _, row := range rows {
		i := index[row.AssetID]
		assets[i].Tags = append(assets[i].Tags, row.Tag)
	}
	return nil
}

func (r *AssetRepository) settledOrMissing(ctx context.Context, id string) error {
	var status string
	err := sqlx.GetContext(ctx, executor(ctx, r.db), &status, `SELECT snapshot_status FROM assets WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select snapshot status: %w", err)
	}
	if status == encodeStatus(models.SnapshotPending) {
		return ErrSnapshotExhausted
	}
	return ErrSnapshotSettled
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeStatus(status models.SnapshotStatus) string {
	switch status {
	case models.SnapshotSucceeded:
		return "succeeded"
	case models.SnapshotFailed:
		return "failed"
	default:
		return "pending"
	}
}

func decodeStatus(value string) models.SnapshotStatus {
	switch value {
	case "succeeded":
		return models.SnapshotSucceeded
	case "failed":
		return models.SnapshotFailed
	default:
		return models.SnapshotPending
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
