package core

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/entities/internal/naming"
)

type invoice struct {
	Id     int64
	Number string
	Total  float64
}

func mockDB(t *testing.T, dialect string, opts ...Option) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	db, err := WrapDB(sqlDB, dialect, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = sqlDB.Close()
	})
	return db, mock
}

func invoices(t *testing.T, db *DB) *Repository[invoice, int64] {
	t.Helper()
	repo, err := NewRepository[invoice, int64](db)
	require.NoError(t, err)
	return repo
}

func TestPostgres_InsertReturningID(t *testing.T) {
	db, mock := mockDB(t, "postgres", WithNaming(naming.SnakeCase))
	repo := invoices(t, db)

	mock.ExpectQuery("INSERT INTO public.invoice (number, total) VALUES ($1, $2) RETURNING id;").
		WithArgs("A-1", 10.5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	inv := &invoice{Number: "A-1", Total: 10.5}
	require.NoError(t, repo.Save(context.Background(), inv))
	assert.Equal(t, int64(7), inv.Id)
}

func TestPostgres_GetByID(t *testing.T) {
	db, mock := mockDB(t, "postgres", WithNaming(naming.SnakeCase))
	repo := invoices(t, db)

	mock.ExpectQuery("SELECT id AS Id, number AS Number, total AS Total FROM public.invoice WHERE id = $1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Number", "Total"}).AddRow(int64(7), "A-1", 10.5))

	got, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, &invoice{Id: 7, Number: "A-1", Total: 10.5}, got)
}

func TestPostgres_UpdateAndDelete(t *testing.T) {
	db, mock := mockDB(t, "postgres", WithNaming(naming.SnakeCase))
	repo := invoices(t, db)
	inv := &invoice{Id: 7, Number: "A-1", Total: 12}

	mock.ExpectExec("UPDATE public.invoice SET number=$1, total=$2 WHERE id=$3").
		WithArgs("A-1", 12.0, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM public.invoice WHERE id=$1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), inv))
	require.NoError(t, repo.Delete(context.Background(), inv))
}

func TestSQLServer_InsertScopeIdentity(t *testing.T) {
	db, mock := mockDB(t, "sqlserver")
	repo := invoices(t, db)

	// SCOPE_IDENTITY() is numeric(38,0); drivers hand it back as text
	mock.ExpectQuery("INSERT INTO [dbo].[invoice] ([Number], [Total]) VALUES (@p1, @p2); SELECT SCOPE_IDENTITY()").
		WithArgs("A-1", 10.5).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow([]byte("12")))

	inv := &invoice{Number: "A-1", Total: 10.5}
	require.NoError(t, repo.Save(context.Background(), inv))
	assert.Equal(t, int64(12), inv.Id)
}

func TestSQLServer_GetAndDelete(t *testing.T) {
	db, mock := mockDB(t, "mssql")
	repo := invoices(t, db)

	mock.ExpectQuery("SELECT * FROM [dbo].[invoice] WHERE [Id]=@p1").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Number", "Total", "RowVersion"}).
			AddRow(int64(12), "A-1", 10.5, []byte{1}))
	mock.ExpectExec("DELETE [dbo].[invoice] WHERE [Id]=@p1").
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.MustGet(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "A-1", got.Number, "unknown columns are discarded")

	require.NoError(t, repo.DeleteByID(context.Background(), 12))
}

func TestSQLServer_SnakeCaseSelectStar(t *testing.T) {
	db, mock := mockDB(t, "sqlserver", WithNaming(naming.SnakeCase))
	repo := invoices(t, db)

	mock.ExpectQuery("SELECT * FROM [dbo].[invoice] WHERE [id]=@p1").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "total"}).AddRow(int64(3), "B-2", 1.5))

	got, err := repo.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, &invoice{Id: 3, Number: "B-2", Total: 1.5}, got)
}

func TestMySQL_InsertLastInsertID(t *testing.T) {
	db, mock := mockDB(t, "mysql")
	repo := invoices(t, db)

	mock.ExpectExec("INSERT INTO `invoice` (`Number`, `Total`) VALUES (?, ?)").
		WithArgs("A-1", 10.5).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("UPDATE `invoice` SET `Number`=?, `Total`=? WHERE `Id`=?").
		WithArgs("A-2", 10.5, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inv := &invoice{Number: "A-1", Total: 10.5}
	require.NoError(t, repo.Save(context.Background(), inv))
	assert.Equal(t, int64(5), inv.Id)

	inv.Number = "A-2"
	require.NoError(t, repo.Save(context.Background(), inv))
}

func TestMySQL_UpdateColumns(t *testing.T) {
	db, mock := mockDB(t, "mysql")
	repo := invoices(t, db)

	mock.ExpectExec("UPDATE `invoice` SET `Total`=? WHERE `Id`=?").
		WithArgs(99.0, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateColumns(context.Background(), &invoice{Id: 5, Number: "x", Total: 99}, "total"))
}

func TestExecutor_ExecutionErrorWrapped(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	repo := invoices(t, db)
	cause := errors.New("connection reset")

	mock.ExpectQuery(`SELECT Id AS Id, Number AS Number, Total AS Total FROM public.invoice WHERE Id = $1`).
		WithArgs(int64(1)).
		WillReturnError(cause)

	_, err := repo.Get(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))

	var repoErr *RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.Equal(t, ActionGet, repoErr.Action)
	assert.Equal(t, repo.Statements().GetByID, repoErr.SQL)
	assert.Equal(t, Params{"id": int64(1)}, repoErr.Params)
}

func TestExecutor_MissingParamBeforeIO(t *testing.T) {
	db, _ := mockDB(t, "postgres")

	_, err := db.Execute(context.Background(), "DELETE FROM t WHERE id=@id AND v=@Version", Params{"ID": 1})
	assert.True(t, errors.Is(err, ErrMissingParam))
}

func TestExecutor_QueryOne(t *testing.T) {
	db, mock := mockDB(t, "postgres")
	query := "SELECT Id, Number FROM invoice WHERE Number = @n"

	mock.ExpectQuery("SELECT Id, Number FROM invoice WHERE Number = $1").
		WithArgs("none").
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Number"}))
	mock.ExpectQuery("SELECT Id, Number FROM invoice WHERE Number = $1").
		WithArgs("dup").
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Number"}).AddRow(1, "dup").AddRow(2, "dup"))

	var inv invoice
	found, err := db.QueryOne(context.Background(), query, Params{"n": "none"}, &inv)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = db.QueryOne(context.Background(), query, Params{"n": "dup"}, &inv)
	assert.ErrorIs(t, err, ErrMultipleRows)
}

func TestExecutor_ExecuteScalar(t *testing.T) {
	db, mock := mockDB(t, "postgres")

	mock.ExpectQuery("SELECT COUNT(*), MAX(id) FROM invoice").
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(int64(3), int64(9)))
	mock.ExpectQuery("SELECT id FROM invoice WHERE false").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var n int
	require.NoError(t, db.ExecuteScalar(context.Background(), "SELECT COUNT(*), MAX(id) FROM invoice", nil, &n))
	assert.Equal(t, 3, n)

	var id int64
	err := db.ExecuteScalar(context.Background(), "SELECT id FROM invoice WHERE false", nil, &id)
	assert.Error(t, err)

	assert.Error(t, db.ExecuteScalar(context.Background(), "SELECT 1", nil, n), "dest must be a pointer")
}

func TestExecutor_QueryAll(t *testing.T) {
	db, mock := mockDB(t, "mysql")

	mock.ExpectQuery("SELECT * FROM invoice WHERE total > ?").
		WithArgs(1.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "total"}).
			AddRow(int64(1), "A", 2.0).
			AddRow(int64(2), "B", 3.0))

	var all []*invoice
	require.NoError(t, db.QueryAll(context.Background(), "SELECT * FROM invoice WHERE total > @min", Params{"min": 1.0}, &all))
	require.Len(t, all, 2)
	assert.Equal(t, "B", all[1].Number)
}

func TestExecutor_QueryHook(t *testing.T) {
	var events []QueryEvent
	db, mock := mockDB(t, "postgres", WithNaming(naming.SnakeCase),
		WithQueryHook(func(_ context.Context, e QueryEvent) { events = append(events, e) }))
	repo := invoices(t, db)

	mock.ExpectQuery("INSERT INTO public.invoice (number, total) VALUES ($1, $2) RETURNING id;").
		WithArgs("A-1", 10.5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	require.NoError(t, repo.Save(context.Background(), &invoice{Number: "A-1", Total: 10.5}))

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, repo.Statements().Insert, e.SQL)
	assert.Equal(t, "INSERT INTO public.invoice (number, total) VALUES ($1, $2) RETURNING id;", e.BoundSQL)
	assert.Equal(t, []interface{}{"A-1", 10.5}, e.Args)
	assert.Equal(t, "INSERT", e.Operation)
	assert.Equal(t, ActionInsert, e.Action)
	assert.NoError(t, e.Error)
}

func TestExecutor_TransactionOnMock(t *testing.T) {
	db, mock := mockDB(t, "postgres", WithNaming(naming.SnakeCase))
	repo := invoices(t, db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM public.invoice WHERE id=$1").
		WithArgs(int64(7)).
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	err := db.Transactional(context.Background(), func(tx *Tx) error {
		return repo.WithTx(tx).DeleteByID(context.Background(), 7)
	})
	var repoErr *RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.Equal(t, ActionDelete, repoErr.Action)
}

func TestWrapDB_UnsupportedDialect(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = WrapDB(sqlDB, "oracle")
	assert.ErrorIs(t, err, ErrUnsupportedDialect)

	db, err := WrapDB(sqlDB, "pgx/v5", WithDialect("postgres"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", db.Dialect().Name())
	assert.Equal(t, "pgx/v5", db.DriverName())
}
