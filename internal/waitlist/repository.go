package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/reservation-engine/internal/db"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, filter Filter) ([]*Entry, int, error)
	// ListWaiting returns the resource's waiting entries oldest first.
	ListWaiting(ctx context.Context, resourceID string) ([]*Entry, error)
	// FindWaiting returns the requester's waiting entry for exactly iv, or ErrNotFound.
	FindWaiting(ctx context.Context, resourceID, requesterID string, iv interval.Interval) (*Entry, error)
	MarkPromoted(ctx context.Context, id, bookingID string, at time.Time) error
	SetStatus(ctx context.Context, id string, status Status, at time.Time) error
	// ExpireStarted expires every waiting entry whose start is not after now.
	ExpireStarted(ctx context.Context, now time.Time) (int, error)
}

type pgxRepository struct {
	db db.DBTX
}

func NewPgxRepository(conn db.DBTX) Repository {
	return &pgxRepository{db: conn}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var entryColumns = []string{
	"id", "resource_id", "requester_id", "start_time", "end_time",
	"status", "promoted_booking_id", "created_at", "updated_at",
}

func scanEntry(row pgx.Row, extra ...any) (*Entry, error) {
	var e Entry
	dest := append([]any{
		&e.ID, &e.ResourceID, &e.RequesterID, &e.StartTime, &e.EndTime,
		&e.Status, &e.PromotedBookingID, &e.CreatedAt, &e.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()
	return &e, nil
}

func (r *pgxRepository) Create(ctx context.Context, e *Entry) error {
	query, args, err := psql.Insert("public.waitlist_entries").
		Columns("resource_id", "requester_id", "start_time", "end_time", "status").
		Values(e.ResourceID, e.RequesterID, e.StartTime, e.EndTime, e.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create waitlist entry query failed: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("create waitlist entry failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) queryOne(ctx context.Context, where squirrel.Sqlizer) (*Entry, error) {
	query, args, err := psql.Select(entryColumns...).
		From("public.waitlist_entries").
		Where(where).
		OrderBy("created_at ASC", "id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get waitlist entry query failed: %w", err)
	}

	e, err := scanEntry(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get waitlist entry failed: %w", err)
	}
	return e, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	return r.queryOne(ctx, squirrel.Eq{"id": id})
}

func (r *pgxRepository) FindWaiting(ctx context.Context, resourceID, requesterID string, iv interval.Interval) (*Entry, error) {
	return r.queryOne(ctx, squirrel.Eq{
		"resource_id":  resourceID,
		"requester_id": requesterID,
		"start_time":   iv.Start,
		"end_time":     iv.End,
		"status":       StatusWaiting,
	})
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Entry, int, error) {
	query := psql.Select(append(entryColumns, "count(*) OVER() AS total_count")...).
		From("public.waitlist_entries")

	if filter.ResourceID != "" {
		query = query.Where(squirrel.Eq{"resource_id": filter.ResourceID})
	}
	if filter.RequesterID != "" {
		query = query.Where(squirrel.Eq{"requester_id": filter.RequesterID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}

	orderDir := "ASC"
	if filter.SortOrder != "" {
		orderDir = filter.SortOrder
	}
	query = query.OrderBy("created_at "+orderDir, "id "+orderDir)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64((filter.Page - 1) * filter.PageSize))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list waitlist query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list waitlist entries failed: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	var total int
	for rows.Next() {
		e, err := scanEntry(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan waitlist entry failed: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list waitlist entries failed: %w", err)
	}
	return entries, total, nil
}

func (r *pgxRepository) ListWaiting(ctx context.Context, resourceID string) ([]*Entry, error) {
	query, args, err := psql.Select(entryColumns...).
		From("public.waitlist_entries").
		Where(squirrel.Eq{"resource_id": resourceID, "status": StatusWaiting}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list waiting query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list waiting entries failed: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry failed: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list waiting entries failed: %w", err)
	}
	return entries, nil
}

func (r *pgxRepository) MarkPromoted(ctx context.Context, id, bookingID string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":              StatusPromoted,
		"promoted_booking_id": bookingID,
		"updated_at":          at,
	})
}

func (r *pgxRepository) SetStatus(ctx context.Context, id string, status Status, at time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return r.update(ctx, id, map[string]any{"status": status, "updated_at": at})
}

func (r *pgxRepository) update(ctx context.Context, id string, values map[string]any) error {
	query, args, err := psql.Update("public.waitlist_entries").
		SetMap(values).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update waitlist entry query failed: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update waitlist entry failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) ExpireStarted(ctx context.Context, now time.Time) (int, error) {
	query, args, err := psql.Update("public.waitlist_entries").
		Set("status", StatusExpired).
		Set("updated_at", now).
		Where(squirrel.Eq{"status": StatusWaiting}).
		Where(squirrel.LtOrEq{"start_time": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build expire waitlist query failed: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire waitlist entries failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
