package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swell-alerts/internal/window"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	upsertWindowSQL = `INSERT INTO notified_windows (
        chat_id,
        spot_id,
        rule_fingerprint,
        start_ms,
        end_ms,
        sent_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (chat_id, spot_id, rule_fingerprint) DO UPDATE
    SET
        start_ms = EXCLUDED.start_ms,
        end_ms   = EXCLUDED.end_ms,
        sent_at  = EXCLUDED.sent_at;`

	selectWindowSQL = `SELECT start_ms, end_ms
    FROM notified_windows
    WHERE chat_id = $1
      AND spot_id = $2
      AND rule_fingerprint = $3;`

	insertNotificationSQL = `INSERT INTO notifications (
        chat_id,
        rule_id,
        spot_id,
        window_start,
        window_end,
        hours
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, chat_id, rule_id, spot_id, window_start, window_end, hours, created_at;`

	listRecentNotificationsSQL = `SELECT
        id, chat_id, rule_id, spot_id, window_start, window_end, hours, created_at
    FROM notifications
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteNotificationsBeforeSQL = `DELETE FROM notifications WHERE created_at < $1;`
)

// WindowStore persists the per-rule last-notified window.
type WindowStore interface {
	LastWindow(ctx context.Context, chatID int64, spotID, fingerprint string) (*window.Span, error)
	SaveWindow(ctx context.Context, w NotifiedWindow) error
}

// AuditStore records delivered notifications.
type AuditStore interface {
	InsertNotification(ctx context.Context, rec NotificationRecord) (NotificationRecord, error)
	ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error)
	DeleteNotificationsBefore(ctx context.Context, olderThan time.Time) error
}

// Store aggregates access to notified windows and the notification audit.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// LastWindow loads the last sent span, nil when none was ever sent.
func (s *Store) LastWindow(ctx context.Context, chatID int64, spotID, fingerprint string) (*window.Span, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var span window.Span
	scanErr := pool.QueryRow(ctx, selectWindowSQL, chatID, spotID, fingerprint).
		Scan(&span.StartMs, &span.EndMs)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load notified window: %w", scanErr)
	}
	return &span, nil
}

// SaveWindow upserts the last sent span for a rule.
func (s *Store) SaveWindow(ctx context.Context, w NotifiedWindow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertWindowSQL,
		w.ChatID,
		w.SpotID,
		w.RuleFingerprint,
		w.StartMs,
		w.EndMs,
		w.SentAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert notified window: %w", execErr)
	}
	return nil
}

// InsertNotification appends an audit row.
func (s *Store) InsertNotification(ctx context.Context, rec NotificationRecord) (NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return NotificationRecord{}, err
	}

	row := pool.QueryRow(ctx, insertNotificationSQL,
		rec.ChatID,
		rec.RuleID,
		rec.SpotID,
		rec.WindowStart,
		rec.WindowEnd,
		rec.Hours,
	)

	var out NotificationRecord
	if scanErr := row.Scan(
		&out.ID,
		&out.ChatID,
		&out.RuleID,
		&out.SpotID,
		&out.WindowStart,
		&out.WindowEnd,
		&out.Hours,
		&out.CreatedAt,
	); scanErr != nil {
		return NotificationRecord{}, fmt.Errorf("insert notification: %w", scanErr)
	}
	return out, nil
}

// ListRecentNotifications lists the most recent audit rows.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentNotificationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent notifications: %w", queryErr)
	}
	defer rows.Close()

	records := make([]NotificationRecord, 0, limit)
	for rows.Next() {
		var rec NotificationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ChatID,
			&rec.RuleID,
			&rec.SpotID,
			&rec.WindowStart,
			&rec.WindowEnd,
			&rec.Hours,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteNotificationsBefore prunes historical audit rows.
func (s *Store) DeleteNotificationsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteNotificationsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete notifications before: %w", execErr)
	}
	return nil
}

var (
	_ WindowStore = (*Store)(nil)
	_ AuditStore  = (*Store)(nil)
)
