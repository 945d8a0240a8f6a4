package teardown

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/reservation-engine/internal/db"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// condition selects the rows of the last table on path. Nested sub-selects use
// '?' placeholders; the outer statement rewrites them to $n.
func (g *Graph) condition(root, rootID string, path []Edge) squirrel.Sqlizer {
	if len(path) == 0 {
		return squirrel.Eq{g.keys[root]: rootID}
	}
	last := path[len(path)-1]
	if len(path) == 1 {
		return squirrel.Eq{last.Column: rootID}
	}
	parent := squirrel.Select(g.keys[last.Parent]).
		From(last.Parent).
		Where(g.condition(root, rootID, path[:len(path)-1]))
	return squirrel.Expr(last.Column+" IN (?)", parent)
}

// ToSql renders the step for the given root row.
func (g *Graph) ToSql(root, rootID string, s Step) (string, []any, error) {
	where := g.condition(root, rootID, s.Path)
	if s.Action == SetNull {
		return psql.Update(s.Table).Set(s.Column, nil).Where(where).ToSql()
	}
	return psql.Delete(s.Table).Where(where).ToSql()
}

// Executor runs teardown plans with SQL.
type Executor struct {
	graph *Graph
}

func NewExecutor(g *Graph) *Executor {
	return &Executor{graph: g}
}

// Run deletes the root row and its dependents using conn, which should be a
// transaction so that a failure leaves nothing half-deleted. It reports whether
// the root row existed.
func (e *Executor) Run(ctx context.Context, conn db.DBTX, root, rootID string) (bool, error) {
	steps, err := e.graph.Plan(root)
	if err != nil {
		return false, err
	}

	var removed bool
	for _, s := range steps {
		query, args, err := e.graph.ToSql(root, rootID, s)
		if err != nil {
			return false, fmt.Errorf("build teardown step %q failed: %w", s, err)
		}
		tag, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return false, fmt.Errorf("teardown step %q failed: %w", s, err)
		}
		if len(s.Path) == 0 {
			removed = tag.RowsAffected() > 0
		}
	}
	return removed, nil
}

// Remover deletes an entity and everything it owns atomically.
type Remover interface {
	Remove(ctx context.Context, root, id string) (bool, error)
}

type pgxRemover struct {
	pool db.TxBeginner
	exec *Executor
}

// NewPgxRemover runs each teardown in its own serializable transaction.
func NewPgxRemover(pool db.TxBeginner, g *Graph) Remover {
	return &pgxRemover{pool: pool, exec: NewExecutor(g)}
}

func (r *pgxRemover) Remove(ctx context.Context, root, id string) (bool, error) {
	var removed bool
	err := db.WithTx(ctx, r.pool, db.Serializable, func(tx pgx.Tx) error {
		var err error
		removed, err = r.exec.Run(ctx, tx, root, id)
		return err
	})
	return removed, err
}
