package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// retentionPolicyKey is the well-known key of the single policy row.
// The row is created lazily on first read so callers never see an
// uninitialized state.
const retentionPolicyKey = "global"

// SQLiteStore is the canonical persistent memory storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the memory database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process memory service. Use one shared connection to avoid
	// writer lock contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memory_items (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL DEFAULT '',
			scope TEXT NOT NULL,
			item_type TEXT NOT NULL,
			content TEXT NOT NULL,
			tags_json TEXT NOT NULL DEFAULT '[]',
			confidence INTEGER NOT NULL DEFAULT 60,
			pinned INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'chat',
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			last_used_at_ms INTEGER NOT NULL DEFAULT 0,
			expires_at_ms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS memory_items_owner_idx ON memory_items(owner_id, scope, item_type, updated_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS memory_items_live_idx ON memory_items(owner_id, expires_at_ms, updated_at_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS memory_events (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			details_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS memory_events_user_idx ON memory_events(user_id, created_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS memory_events_action_idx ON memory_events(action, created_at_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS retention_policy (
			policy_key TEXT PRIMARY KEY,
			retention_days INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func nowMS() int64 { return time.Now().UnixMilli() }

func newItemID() string  { return "mem-" + uuid.NewString() }
func newEventID() string { return ulid.Make().String() }

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	out := []string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func encodeMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMap(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]string{}
	}
	return out
}

const itemColumns = `id, owner_id, scope, item_type, content, tags_json, confidence, pinned, source, created_at_ms, updated_at_ms, last_used_at_ms, expires_at_ms`

func (s *SQLiteStore) InsertItem(ctx context.Context, item MemoryItem) error {
	pinned := 0
	if item.Pinned {
		pinned = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO memory_items(`+itemColumns+`)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OwnerID, string(item.Scope), string(item.Type), item.Content,
		encodeTags(item.Tags), item.Confidence, pinned, string(item.Source),
		item.CreatedAtMS, item.UpdatedAtMS, item.LastUsedAtMS, item.ExpiresAtMS)
	if err != nil {
		return fmt.Errorf("insert memory item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, item MemoryItem) error {
	pinned := 0
	if item.Pinned {
		pinned = 1
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE memory_items
SET content = ?, tags_json = ?, item_type = ?, confidence = ?, pinned = ?, source = ?, updated_at_ms = ?, last_used_at_ms = ?, expires_at_ms = ?
WHERE id = ?`,
		item.Content, encodeTags(item.Tags), string(item.Type), item.Confidence, pinned,
		string(item.Source), item.UpdatedAtMS, item.LastUsedAtMS, item.ExpiresAtMS, item.ID)
	if err != nil {
		return fmt.Errorf("update memory item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (MemoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM memory_items WHERE id = ?`, id)
	item, err := scanItemRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MemoryItem{}, ErrItemNotFound
		}
		return MemoryItem{}, fmt.Errorf("get memory item: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListDedupeCandidates returns rows of the same owner/scope/type whose content
// exactly matches or overlaps the incoming content's 40-char prefix. This is
// the cheap prefilter; the Jaccard test runs in the writer on at most 5 rows.
func (s *SQLiteStore) ListDedupeCandidates(ctx context.Context, ownerID string, scope Scope, itemType ItemType, content string, limit int) ([]MemoryItem, error) {
	if limit <= 0 {
		limit = 5
	}
	// sqlite's substr() counts characters; slice the Go side the same way so
	// a multi-byte rune at the boundary never splits.
	prefix := truncateRunes(content, 40)
	rows, err := s.db.QueryContext(ctx, `
SELECT `+itemColumns+`
FROM memory_items
WHERE owner_id = ? AND scope = ? AND item_type = ?
AND (content = ? OR instr(content, ?) > 0 OR instr(?, substr(content, 1, 40)) > 0)
ORDER BY updated_at_ms DESC
LIMIT ?`, ownerID, string(scope), string(itemType), content, prefix, content, limit)
	if err != nil {
		return nil, fmt.Errorf("list dedupe candidates: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListLiveItems returns the owner's live items plus all live global items,
// most recently updated first, capped at limit.
func (s *SQLiteStore) ListLiveItems(ctx context.Context, ownerID string, atMS int64, limit int) ([]MemoryItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+itemColumns+`
FROM memory_items
WHERE (owner_id = ? OR scope = ?)
AND (expires_at_ms = 0 OR expires_at_ms > ?)
ORDER BY updated_at_ms DESC
LIMIT ?`, ownerID, string(ScopeGlobal), atMS, limit)
	if err != nil {
		return nil, fmt.Errorf("list live items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// TouchItems stamps last_used_at/updated_at on the given rows in one batch.
func (s *SQLiteStore) TouchItems(ctx context.Context, ids []string, atMS int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, atMS, atMS)
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE memory_items SET last_used_at_ms = ?, updated_at_ms = ? WHERE id IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch memory items: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteUserItems(ctx context.Context, ownerID string, includePinned bool) (int, error) {
	keepPinned := 1
	if includePinned {
		keepPinned = 0
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM memory_items
WHERE owner_id = ? AND scope = ?
AND (? = 0 OR pinned = 0)`, ownerID, string(ScopeUser), keepPinned)
	if err != nil {
		return 0, fmt.Errorf("delete user items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteExpiredItems removes rows whose expiry has passed. Pinned rows carry
// expires_at_ms = 0 and are never touched.
func (s *SQLiteStore) DeleteExpiredItems(ctx context.Context, atMS int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM memory_items
WHERE expires_at_ms > 0 AND expires_at_ms <= ?`, atMS)
	if err != nil {
		return 0, fmt.Errorf("delete expired items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev MemoryEvent) error {
	if ev.ID == "" {
		ev.ID = newEventID()
	}
	if ev.CreatedAtMS == 0 {
		ev.CreatedAtMS = nowMS()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO memory_events(id, actor_id, user_id, action, details_json, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ActorID, ev.UserID, string(ev.Action), encodeMap(ev.Details), ev.CreatedAtMS)
	if err != nil {
		return fmt.Errorf("append memory event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, userID string, action EventAction, limit int) ([]MemoryEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, actor_id, user_id, action, details_json, created_at_ms
FROM memory_events
WHERE (? = '' OR user_id = ?)
AND (? = '' OR action = ?)
ORDER BY created_at_ms DESC, id DESC
LIMIT ?`, userID, userID, string(action), string(action), limit)
	if err != nil {
		return nil, fmt.Errorf("list memory events: %w", err)
	}
	defer rows.Close()

	out := make([]MemoryEvent, 0, limit)
	for rows.Next() {
		var ev MemoryEvent
		var action string
		var detailsRaw string
		if err := rows.Scan(&ev.ID, &ev.ActorID, &ev.UserID, &action, &detailsRaw, &ev.CreatedAtMS); err != nil {
			return nil, fmt.Errorf("scan memory event: %w", err)
		}
		ev.Action = EventAction(action)
		ev.Details = decodeMap(detailsRaw)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory events: %w", err)
	}
	return out, nil
}

// ListItemsConsole serves the admin search with composable filters.
func (s *SQLiteStore) ListItemsConsole(ctx context.Context, f ConsoleFilters, atMS int64) ([]MemoryItem, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	where := []string{"1 = 1"}
	args := []interface{}{}
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Query != "" {
		where = append(where, "(instr(lower(content), lower(?)) > 0 OR instr(lower(tags_json), lower(?)) > 0)")
		args = append(args, f.Query, f.Query)
	}
	if f.Type != "" {
		where = append(where, "item_type = ?")
		args = append(args, string(f.Type))
	}
	if f.Scope != "" {
		where = append(where, "scope = ?")
		args = append(args, string(f.Scope))
	}
	if f.PinnedOnly {
		where = append(where, "pinned = 1")
	}
	if f.ExpiredOnly {
		where = append(where, "expires_at_ms > 0 AND expires_at_ms <= ?")
		args = append(args, atMS)
	}
	args = append(args, limit)

	query := `SELECT ` + itemColumns + ` FROM memory_items WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY updated_at_ms DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("console list items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// GetRetentionDays reads the single policy row, creating it with the default
// on first access.
func (s *SQLiteStore) GetRetentionDays(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT retention_days FROM retention_policy WHERE policy_key = ?`, retentionPolicyKey)
	var days int
	switch err := row.Scan(&days); {
	case err == nil:
		return days, nil
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, `
INSERT INTO retention_policy(policy_key, retention_days, updated_at_ms)
VALUES(?, ?, ?)
ON CONFLICT(policy_key) DO NOTHING`, retentionPolicyKey, DefaultRetentionDays, nowMS()); err != nil {
			return 0, fmt.Errorf("seed retention policy: %w", err)
		}
		return DefaultRetentionDays, nil
	default:
		return 0, fmt.Errorf("get retention policy: %w", err)
	}
}

func (s *SQLiteStore) SetRetentionDays(ctx context.Context, days int) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO retention_policy(policy_key, retention_days, updated_at_ms)
VALUES(?, ?, ?)
ON CONFLICT(policy_key) DO UPDATE SET
	retention_days = excluded.retention_days,
	updated_at_ms = excluded.updated_at_ms`, retentionPolicyKey, days, nowMS())
	if err != nil {
		return fmt.Errorf("set retention policy: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountStats(ctx context.Context, atMS int64) (Stats, error) {
	out := Stats{ByType: map[ItemType]int{}, ByScope: map[Scope]int{}}

	rows, err := s.db.QueryContext(ctx, `
SELECT item_type, scope, pinned, (expires_at_ms > 0 AND expires_at_ms <= ?), COUNT(*)
FROM memory_items
GROUP BY item_type, scope, pinned, (expires_at_ms > 0 AND expires_at_ms <= ?)`, atMS, atMS)
	if err != nil {
		return Stats{}, fmt.Errorf("count stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemType, scope string
		var pinned, expired, count int
		if err := rows.Scan(&itemType, &scope, &pinned, &expired, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats row: %w", err)
		}
		out.TotalItems += count
		out.ByType[ItemType(itemType)] += count
		out.ByScope[Scope(scope)] += count
		if pinned == 1 {
			out.PinnedItems += count
		}
		if expired == 1 {
			out.ExpiredItems += count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate stats rows: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_events`)
	if err := row.Scan(&out.TotalEvents); err != nil {
		return Stats{}, fmt.Errorf("count events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItemRow(row rowScanner) (MemoryItem, error) {
	var it MemoryItem
	var scope, itemType, source, tagsRaw string
	var pinned int
	if err := row.Scan(&it.ID, &it.OwnerID, &scope, &itemType, &it.Content, &tagsRaw,
		&it.Confidence, &pinned, &source, &it.CreatedAtMS, &it.UpdatedAtMS,
		&it.LastUsedAtMS, &it.ExpiresAtMS); err != nil {
		return MemoryItem{}, err
	}
	it.Scope = Scope(scope)
	it.Type = ItemType(itemType)
	it.Source = Source(source)
	it.Tags = decodeTags(tagsRaw)
	it.Pinned = pinned != 0
	return it, nil
}

func scanItems(rows *sql.Rows) ([]MemoryItem, error) {
	out := []MemoryItem{}
	for rows.Next() {
		it, err := scanItemRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory items: %w", err)
	}
	return out, nil
}
