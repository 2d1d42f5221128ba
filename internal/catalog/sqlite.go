package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/operator"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteImpl is the impl name of the scan that reads tables directly.
const SQLiteImpl = "sqlite"

// SQLiteStore keeps globals as bags in a SQLite database. Every global is
// a table of elements; element order is insertion order.
type SQLiteStore struct {
	db     *sql.DB
	ids    IDGenerator
	logger *slog.Logger
}

// Open creates or opens a store at path.
//
// Every connection uses WAL journaling, a 5-second busy timeout and
// foreign keys. The pool is not limited to one connection: a statement
// may stream several tables at once, and each open cursor holds a
// connection until it is closed.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	dsn := "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to database")
	}
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &SQLiteStore{db: db, ids: o.ids, logger: o.logger}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTable registers an empty global and returns its id.
func (s *SQLiteStore) CreateTable(ctx context.Context, name string) (string, error) {
	id := s.ids.Generate()
	_, err := s.db.ExecContext(ctx, `INSERT INTO globals (id, name) VALUES (?, ?)`, id, name)
	if err != nil {
		var exists int
		if qerr := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM globals WHERE name = ?`, name).Scan(&exists); qerr == nil && exists > 0 {
			return "", errors.Wrapf(ErrDuplicateName, "%q", name)
		}
		return "", errors.Wrapf(err, "create table %q", name)
	}
	return id, nil
}

// Resolve implements binder.GlobalBindings. A database failure is logged
// and resolves to Undefined; the binder calls ResolveContext instead and
// reports the failure as a problem.
func (s *SQLiteStore) Resolve(name plan.BindingName) binder.Resolution {
	res, err := s.ResolveContext(context.Background(), name)
	if err != nil {
		s.logger.Error("resolve global failed", "name", name.Name, "error", err)
		return binder.Undefined{}
	}
	return res
}

// ResolveContext implements binder.ContextBindings. Among case-insensitive
// matches the first registered table wins.
func (s *SQLiteStore) ResolveContext(ctx context.Context, name plan.BindingName) (binder.Resolution, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM globals ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "query globals")
	}
	defer rows.Close()

	var res binder.Global
	for rows.Next() {
		var id, n string
		if err := rows.Scan(&id, &n); err != nil {
			return nil, errors.Wrap(err, "scan global")
		}
		if !name.Matches(n) {
			continue
		}
		if res.Candidates == 0 {
			res.ID, res.Name = id, n
		}
		res.Candidates++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate globals")
	}
	if res.Candidates == 0 {
		return binder.Undefined{}, nil
	}
	return res, nil
}

// Session loads every table as a bag.
func (s *SQLiteStore) Session(ctx context.Context, now time.Time) (*eval.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM globals ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "query globals")
	}
	type table struct{ id, name string }
	var tables []table
	for rows.Next() {
		var t table
		if err := rows.Scan(&t.id, &t.name); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan global")
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate globals")
	}

	globals := make(map[string]value.Value, len(tables))
	order := make([]string, len(tables))
	for i, t := range tables {
		bag, err := s.load(ctx, t.id)
		if err != nil {
			return nil, err
		}
		globals[t.name] = bag
		order[i] = t.name
	}
	return &eval.Session{Globals: globals, Order: order, Now: now}, nil
}

func (s *SQLiteStore) load(ctx context.Context, id string) (value.Bag, error) {
	rows, err := s.elements(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bag := value.Bag{}
	for rows.Next() {
		_, v, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		bag = append(bag, v)
	}
	return bag, errors.Wrap(rows.Err(), "iterate elements")
}

func (s *SQLiteStore) elements(ctx context.Context, id string) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pos, doc FROM elements WHERE global_id = ? ORDER BY pos`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query elements")
	}
	return rows, nil
}

func scanElement(rows *sql.Rows) (int64, value.Value, error) {
	var (
		pos int64
		doc string
	)
	if err := rows.Scan(&pos, &doc); err != nil {
		return 0, nil, errors.Wrap(err, "scan element")
	}
	v, err := value.UnmarshalJSON([]byte(doc))
	if err != nil {
		return 0, nil, errors.Wrapf(err, "decode element %d", pos)
	}
	return pos, v, nil
}

// Insert implements compiler.Mutator.
func (s *SQLiteStore) Insert(ctx context.Context, target compiler.Target, rows []value.Value) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(pos), 0) + 1 FROM elements WHERE global_id = ?`, target.ID,
	).Scan(&next); err != nil {
		return 0, errors.Wrap(err, "next position")
	}
	for i, v := range rows {
		doc, err := value.MarshalJSON(v)
		if err != nil {
			return 0, errors.Wrapf(err, "encode element %d", i)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO elements (global_id, pos, fingerprint, doc) VALUES (?, ?, ?, ?)`,
			target.ID, next+int64(i), value.Fingerprint(v), string(doc),
		); err != nil {
			return 0, errors.Wrapf(err, "insert into %s", target.Name)
		}
	}
	return len(rows), errors.Wrap(tx.Commit(), "commit")
}

// Delete implements compiler.Mutator. Nothing is removed if match fails.
func (s *SQLiteStore) Delete(ctx context.Context, target compiler.Target, match func(value.Value) (bool, error)) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT pos, doc FROM elements WHERE global_id = ? ORDER BY pos`, target.ID)
	if err != nil {
		return 0, errors.Wrap(err, "query elements")
	}
	var doomed []int64
	for rows.Next() {
		pos, v, err := scanElement(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		drop, err := match(v)
		if err != nil {
			rows.Close()
			return 0, err
		}
		if drop {
			doomed = append(doomed, pos)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errors.Wrap(err, "iterate elements")
	}

	for _, pos := range doomed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE global_id = ? AND pos = ?`, target.ID, pos); err != nil {
			return 0, errors.Wrapf(err, "delete from %s", target.Name)
		}
	}
	return len(doomed), errors.Wrap(tx.Commit(), "commit")
}

// ScanFactory returns the "sqlite" Scan factory. It streams a table's
// elements straight from the database when the scan source is a global,
// and falls back to the default scan otherwise.
func (s *SQLiteStore) ScanFactory() operator.Factory {
	return operator.NewFactory(plan.KindScan, SQLiteImpl, func(spec operator.Spec) (eval.Rows, error) {
		ss := spec.(*operator.ScanSpec)
		g, ok := ss.Node.Expr.(*plan.VarGlobal)
		if !ok {
			return operator.NewScan(ss), nil
		}
		return &tableScan{store: s, spec: ss, id: g.ID}, nil
	})
}

type tableScan struct {
	store *SQLiteStore
	spec  *operator.ScanSpec
	id    string
}

func (t *tableScan) Open(st *eval.State) (eval.Cursor, error) {
	rows, err := t.store.elements(st.Context(), t.id)
	if err != nil {
		return nil, err
	}
	return &tableCursor{rows: rows, st: st, spec: t.spec}, nil
}

// tableCursor binds one element per row. Tables are bags, so AT is
// MISSING.
type tableCursor struct {
	rows *sql.Rows
	st   *eval.State
	spec *operator.ScanSpec
}

func (c *tableCursor) Next() (bool, error) {
	if err := c.st.Checkpoint(); err != nil {
		return false, err
	}
	if !c.rows.Next() {
		return false, errors.Wrap(c.rows.Err(), "iterate elements")
	}
	_, v, err := scanElement(c.rows)
	if err != nil {
		return false, err
	}
	c.st.Store(c.spec.AsSlot, v)
	if c.spec.HasAt {
		c.st.Store(c.spec.AtSlot, value.MissingValue)
	}
	return true, nil
}

func (c *tableCursor) Close() error { return c.rows.Close() }
