package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/reservation-engine/internal/db"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	// ListActiveByResource returns active bookings of the resource overlapping
	// iv, ordered by start time.
	ListActiveByResource(ctx context.Context, resourceID string, iv interval.Interval) ([]*Booking, error)
	// UpdateStatus persists the status, decision and updated_at of b.
	UpdateStatus(ctx context.Context, b *Booking) error
	// CompleteElapsed marks approved bookings that ended at or before now as
	// completed and returns them.
	CompleteElapsed(ctx context.Context, now time.Time) ([]*Booking, error)
}

type pgxRepository struct {
	db db.DBTX
}

func NewPgxRepository(conn db.DBTX) Repository {
	return &pgxRepository{db: conn}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"id", "resource_id", "requester_id", "start_time", "end_time", "status",
	"decision_notes", "decision_by", "recurrence_rule", "recurrence_description", "series_id",
	"created_at", "updated_at",
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var b Booking
	dest := append([]any{
		&b.ID, &b.ResourceID, &b.RequesterID, &b.StartTime, &b.EndTime, &b.Status,
		&b.DecisionNotes, &b.DecisionBy, &b.RecurrenceRule, &b.RecurrenceDescription, &b.SeriesID,
		&b.CreatedAt, &b.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]*Booking, error) {
	defer rows.Close()
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	query, args, err := psql.Insert("public.bookings").
		Columns("resource_id", "requester_id", "start_time", "end_time", "status",
			"decision_notes", "decision_by", "recurrence_rule", "recurrence_description", "series_id").
		Values(b.ResourceID, b.RequesterID, b.StartTime, b.EndTime, b.Status,
			b.DecisionNotes, b.DecisionBy, b.RecurrenceRule, b.RecurrenceDescription, b.SeriesID).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return fmt.Errorf("create booking failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	query := psql.Select(append(bookingColumns, "count(*) OVER() AS total_count")...).
		From("public.bookings")

	if filter.RequesterID != "" {
		query = query.Where(squirrel.Eq{"requester_id": filter.RequesterID})
	}
	if filter.ResourceID != "" {
		query = query.Where(squirrel.Eq{"resource_id": filter.ResourceID})
	}
	if filter.SeriesID != "" {
		query = query.Where(squirrel.Eq{"series_id": filter.SeriesID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.StartTime != nil {
		query = query.Where(squirrel.GtOrEq{"start_time": *filter.StartTime})
	}
	if filter.EndTime != nil {
		query = query.Where(squirrel.LtOrEq{"end_time": *filter.EndTime})
	}

	orderBy := "start_time"
	if filter.SortBy != "" {
		orderBy = filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder != "" {
		orderDir = filter.SortOrder
	}
	query = query.OrderBy(orderBy+" "+orderDir, "id "+orderDir)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64((filter.Page - 1) * filter.PageSize))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}

	return bookings, total, nil
}

func (r *pgxRepository) ListActiveByResource(ctx context.Context, resourceID string, iv interval.Interval) ([]*Booking, error) {
	// Half-open overlap: existing.start < iv.end AND existing.end > iv.start.
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"resource_id": resourceID, "status": ActiveStatuses}).
		Where(squirrel.Lt{"start_time": iv.End}).
		Where(squirrel.Gt{"end_time": iv.Start}).
		OrderBy("start_time ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build active bookings query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active bookings failed: %w", err)
	}
	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, fmt.Errorf("list active bookings failed: %w", err)
	}
	return bookings, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, b *Booking) error {
	query, args, err := psql.Update("public.bookings").
		Set("status", b.Status).
		Set("decision_notes", b.DecisionNotes).
		Set("decision_by", b.DecisionBy).
		Set("updated_at", b.UpdatedAt).
		Where(squirrel.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query failed: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update booking failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) CompleteElapsed(ctx context.Context, now time.Time) ([]*Booking, error) {
	query, args, err := psql.Update("public.bookings").
		Set("status", StatusCompleted).
		Set("updated_at", now).
		Where(squirrel.Eq{"status": StatusApproved}).
		Where(squirrel.LtOrEq{"end_time": now}).
		Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build complete bookings query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("complete elapsed bookings failed: %w", err)
	}
	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, fmt.Errorf("complete elapsed bookings failed: %w", err)
	}
	return bookings, nil
}
