package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestCommandTagAdapter_RowsAffected(t *testing.T) {
	tag := pgconn.NewCommandTag("UPDATE 12")
	got := commandTagAdapter{tag: tag}.RowsAffected()
	if got != 12 {
		t.Fatalf("expected RowsAffected 12, got %d", got)
	}
}

type fakePgxRow struct {
	ScanFunc func(dest ...any) error
}

func (f fakePgxRow) Scan(dest ...any) error {
	if f.ScanFunc != nil {
		return f.ScanFunc(dest...)
	}
	return errors.New("ScanFunc not set")
}

type fakePgxRows struct {
	rows [][]any
	idx  int
	err  error
}

func (f *fakePgxRows) Close()                        {}
func (f *fakePgxRows) Err() error                    { return f.err }
func (f *fakePgxRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (f *fakePgxRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}
func (f *fakePgxRows) Next() bool {
	if f.idx >= len(f.rows) {
		return false
	}
	f.idx++
	return true
}
func (f *fakePgxRows) Scan(dest ...any) error {
	if f.idx == 0 || f.idx > len(f.rows) {
		return errors.New("scan called without active row")
	}
	return assignRow(dest, f.rows[f.idx-1])
}
func (f *fakePgxRows) Values() ([]any, error) { return nil, errors.New("not implemented") }
func (f *fakePgxRows) RawValues() [][]byte    { return nil }
func (f *fakePgxRows) Conn() *pgx.Conn        { return nil }

type fakePgxTx struct {
	BeginFunc    func(ctx context.Context) (pgx.Tx, error)
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (f *fakePgxTx) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.BeginFunc != nil {
		return f.BeginFunc(ctx)
	}
	return f, nil
}
func (f *fakePgxTx) Commit(ctx context.Context) error {
	if f.CommitFunc != nil {
		return f.CommitFunc(ctx)
	}
	return nil
}
func (f *fakePgxTx) Rollback(ctx context.Context) error {
	if f.RollbackFunc != nil {
		return f.RollbackFunc(ctx)
	}
	return nil
}
func (f *fakePgxTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (f *fakePgxTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}
func (f *fakePgxTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }
func (f *fakePgxTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (f *fakePgxTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}
func (f *fakePgxTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, sql, args...)
	}
	return &fakePgxRows{}, nil
}
func (f *fakePgxTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return fakePgxRow{}
}
func (f *fakePgxTx) Conn() *pgx.Conn { return nil }

type fakePgxPool struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	BeginFunc    func(ctx context.Context) (pgx.Tx, error)
}

func (f *fakePgxPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.ExecFunc(ctx, sql, args...)
}
func (f *fakePgxPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.QueryFunc(ctx, sql, args...)
}
func (f *fakePgxPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.QueryRowFunc(ctx, sql, args...)
}
func (f *fakePgxPool) Begin(ctx context.Context) (pgx.Tx, error) {
	return f.BeginFunc(ctx)
}

func scanString(row Row) (string, error) {
	var s string
	err := row.Scan(&s)
	return s, err
}

func TestPoolAdapter_DelegatesStatements(t *testing.T) {
	ctx := context.Background()
	pool := &fakePgxPool{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 12"), nil
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &fakePgxRows{rows: [][]any{{"casa"}, {"vila"}}}, nil
		},
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return fakePgxRow{ScanFunc: func(dest ...any) error {
				return assignRow(dest, []any{"row"})
			}}
		},
	}
	adapter := newPoolAdapter(pool)

	tag, err := adapter.Exec(ctx, "UPDATE profiles")
	if err != nil || tag.RowsAffected() != 12 {
		t.Fatalf("expected 12 rows affected, got %v (%v)", tag, err)
	}

	rows, err := adapter.Query(ctx, "SELECT casa_name FROM profiles")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	names, err := collectRows(rows, scanString)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(names) != 2 || names[0] != "casa" || names[1] != "vila" {
		t.Fatalf("unexpected names %v", names)
	}

	got, err := scanString(adapter.QueryRow(ctx, "SELECT 1"))
	if err != nil || got != "row" {
		t.Fatalf("expected row, got %q (%v)", got, err)
	}
}

func TestPoolAdapter_QueryError(t *testing.T) {
	adapter := newPoolAdapter(&fakePgxPool{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return nil, errors.New("conn reset")
		},
	})
	rows, err := adapter.Query(context.Background(), "SELECT 1")
	if err == nil || rows != nil {
		t.Fatalf("expected nil rows and error, got %v %v", rows, err)
	}
}

func TestPoolAdapter_BeginWrapsTx(t *testing.T) {
	ctx := context.Background()
	var committed, rolledBack bool
	pool := &fakePgxPool{
		BeginFunc: func(ctx context.Context) (pgx.Tx, error) {
			return &fakePgxTx{
				ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
					return pgconn.NewCommandTag("DELETE 2"), nil
				},
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
					return fakePgxRow{ScanFunc: func(dest ...any) error {
						return assignRow(dest, []any{"txrow"})
					}}
				},
				CommitFunc:   func(ctx context.Context) error { committed = true; return nil },
				RollbackFunc: func(ctx context.Context) error { rolledBack = true; return nil },
			}, nil
		},
	}

	tx, err := newPoolAdapter(pool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	tag, err := tx.Exec(ctx, "DELETE FROM scraps")
	if err != nil || tag.RowsAffected() != 2 {
		t.Fatalf("expected 2 rows affected, got %v (%v)", tag, err)
	}
	if got, err := scanString(tx.QueryRow(ctx, "SELECT 1")); err != nil || got != "txrow" {
		t.Fatalf("expected txrow, got %q (%v)", got, err)
	}
	if err := tx.Commit(ctx); err != nil || !committed {
		t.Fatalf("expected commit, err=%v", err)
	}
	if err := tx.Rollback(ctx); err != nil || !rolledBack {
		t.Fatalf("expected rollback, err=%v", err)
	}
}

func TestPoolAdapter_BeginError(t *testing.T) {
	adapter := newPoolAdapter(&fakePgxPool{
		BeginFunc: func(ctx context.Context) (pgx.Tx, error) {
			return nil, errors.New("too many connections")
		},
	})
	if _, err := adapter.Begin(context.Background()); err == nil {
		t.Fatal("expected begin error")
	}
}

func TestNewPoolAdapter_CanBeConstructed(t *testing.T) {
	if NewPoolAdapter(nil) == nil {
		t.Fatal("expected adapter")
	}
}

func TestWithTx(t *testing.T) {
	tests := []struct {
		name         string
		beginErr     error
		fnErr        error
		commitErr    error
		wantErr      bool
		wantCommit   bool
		wantRollback bool
	}{
		{name: "commits", wantCommit: true},
		{name: "rolls back on error", fnErr: errors.New("boom"), wantErr: true, wantRollback: true},
		{name: "begin fails", beginErr: errors.New("down"), wantErr: true},
		{name: "commit fails", commitErr: errors.New("serialization"), wantErr: true, wantCommit: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var committed, rolledBack, ran bool
			db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) {
				if tt.beginErr != nil {
					return nil, tt.beginErr
				}
				return &fakeTx{
					CommitFunc:   func(ctx context.Context) error { committed = true; return tt.commitErr },
					RollbackFunc: func(ctx context.Context) error { rolledBack = true; return nil },
				}, nil
			}}

			err := WithTx(context.Background(), db, func(tx Tx) error {
				ran = true
				return tt.fnErr
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if tt.fnErr != nil && !errors.Is(err, tt.fnErr) {
				t.Fatalf("expected fn error to pass through, got %v", err)
			}
			if ran == (tt.beginErr != nil) {
				t.Fatalf("unexpected fn execution: ran=%v", ran)
			}
			if committed != tt.wantCommit || rolledBack != tt.wantRollback {
				t.Fatalf("commit=%v rollback=%v", committed, rolledBack)
			}
		})
	}
}

func TestCollectRows_Errors(t *testing.T) {
	rows := &fakeRows{rows: [][]any{{"a"}}, err: errors.New("cursor closed")}
	if _, err := collectRows(rows, scanString); err == nil {
		t.Fatal("expected iteration error")
	}
	if !rows.closed {
		t.Fatal("expected rows to be closed")
	}

	rows = &fakeRows{rows: [][]any{{1, 2}}}
	if _, err := collectRows(rows, scanString); err == nil {
		t.Fatal("expected scan error")
	}

	empty, err := collectRows(&fakeRows{}, scanString)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v (%v)", empty, err)
	}
}
