package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/reservation-engine/internal/db"
)

type Repository interface {
	Create(ctx context.Context, res *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	// GetForUpdate reads the resource and holds its row lock until the surrounding
	// transaction ends. Booking writes for one resource serialize on this lock.
	GetForUpdate(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, res *Resource) error
}

type pgxRepository struct {
	db db.DBTX
}

// NewPgxRepository returns a repository running against a pool or a transaction.
func NewPgxRepository(conn db.DBTX) Repository {
	return &pgxRepository{db: conn}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var resourceColumns = []string{
	"id", "owner_id", "name", "description", "capacity", "is_restricted",
	"time_zone", "availability_schedule", "created_at", "updated_at",
}

func encodeSchedule(s *Schedule) (any, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode availability schedule failed: %w", err)
	}
	return b, nil
}

func scanResource(row pgx.Row, extra ...any) (*Resource, error) {
	var res Resource
	var schedule []byte
	dest := append([]any{
		&res.ID, &res.OwnerID, &res.Name, &res.Description, &res.Capacity, &res.IsRestricted,
		&res.TimeZone, &schedule, &res.CreatedAt, &res.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if schedule != nil {
		res.Schedule = &Schedule{}
		if err := json.Unmarshal(schedule, res.Schedule); err != nil {
			return nil, fmt.Errorf("decode availability schedule failed: %w", err)
		}
	}
	return &res, nil
}

func (r *pgxRepository) Create(ctx context.Context, res *Resource) error {
	schedule, err := encodeSchedule(res.Schedule)
	if err != nil {
		return err
	}

	query, args, err := psql.Insert("public.resources").
		Columns("owner_id", "name", "description", "capacity", "is_restricted", "time_zone", "availability_schedule").
		Values(res.OwnerID, res.Name, res.Description, res.Capacity, res.IsRestricted, res.TimeZone, schedule).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create resource query failed: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) get(ctx context.Context, id string, forUpdate bool) (*Resource, error) {
	builder := psql.Select(resourceColumns...).
		From("public.resources").
		Where(squirrel.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get resource query failed: %w", err)
	}

	res, err := scanResource(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource failed: %w", err)
	}
	return res, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	return r.get(ctx, id, false)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, id string) (*Resource, error) {
	return r.get(ctx, id, true)
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	query := psql.Select(append(resourceColumns, "count(*) OVER() AS total_count")...).
		From("public.resources")

	if filter.OwnerID != "" {
		query = query.Where(squirrel.Eq{"owner_id": filter.OwnerID})
	}
	if filter.IsRestricted != nil {
		query = query.Where(squirrel.Eq{"is_restricted": *filter.IsRestricted})
	}
	if filter.Keyword != "" {
		query = query.Where(squirrel.ILike{"name": "%" + filter.Keyword + "%"})
	}

	orderBy := "created_at"
	if filter.SortBy != "" {
		orderBy = filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder != "" {
		orderDir = filter.SortOrder
	}
	query = query.OrderBy(orderBy + " " + orderDir)

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list resources query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}
	defer rows.Close()

	var result []*Resource
	var total int
	for rows.Next() {
		res, err := scanResource(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan resource failed: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, res *Resource) error {
	schedule, err := encodeSchedule(res.Schedule)
	if err != nil {
		return err
	}

	query, args, err := psql.Update("public.resources").
		Set("name", res.Name).
		Set("description", res.Description).
		Set("capacity", res.Capacity).
		Set("is_restricted", res.IsRestricted).
		Set("time_zone", res.TimeZone).
		Set("availability_schedule", schedule).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": res.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update resource query failed: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update resource failed: %w", err)
	}
	return nil
}
