package booking

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/reservation-engine/internal/db"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
	"github.com/nekogravitycat/reservation-engine/internal/waitlist"
)

// Tx exposes the repositories bound to one transaction. Everything read or
// written through it commits or rolls back together.
type Tx interface {
	Resources() resource.Repository
	Bookings() Repository
	Waitlist() waitlist.Repository
}

// Store opens engine transactions.
type Store interface {
	// Reader returns repositories running outside any transaction, for
	// single-statement reads.
	Reader() Tx
	// RunInTx runs fn in one serializable transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// RunInResourceTx is RunInTx that first locks the resource. Calls for the
	// same resource run one at a time; calls for different resources do not
	// wait for each other. It fails with resource.ErrNotFound when the
	// resource does not exist.
	RunInResourceTx(ctx context.Context, resourceID string, fn func(ctx context.Context, tx Tx, res *resource.Resource) error) error
}

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	db.DBTX
	db.TxBeginner
}

type pgxTx struct {
	resources resource.Repository
	bookings  Repository
	waitlist  waitlist.Repository
}

func newPgxTx(conn db.DBTX) *pgxTx {
	return &pgxTx{
		resources: resource.NewPgxRepository(conn),
		bookings:  NewPgxRepository(conn),
		waitlist:  waitlist.NewPgxRepository(conn),
	}
}

func (t *pgxTx) Resources() resource.Repository { return t.resources }
func (t *pgxTx) Bookings() Repository            { return t.bookings }
func (t *pgxTx) Waitlist() waitlist.Repository   { return t.waitlist }

type pgxStore struct {
	pool   Pool
	reader *pgxTx
}

// NewPgxStore returns a Store backed by PostgreSQL. Resource locking uses
// SELECT ... FOR UPDATE on the resource row inside a SERIALIZABLE transaction.
func NewPgxStore(pool Pool) Store {
	return &pgxStore{pool: pool, reader: newPgxTx(pool)}
}

func (s *pgxStore) Reader() Tx {
	return s.reader
}

func (s *pgxStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.WithTx(ctx, s.pool, db.Serializable, func(tx pgx.Tx) error {
		return fn(ctx, newPgxTx(tx))
	})
}

func (s *pgxStore) RunInResourceTx(ctx context.Context, resourceID string, fn func(ctx context.Context, tx Tx, res *resource.Resource) error) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		res, err := tx.Resources().GetForUpdate(ctx, resourceID)
		if err != nil {
			return err
		}
		return fn(ctx, tx, res)
	})
}
