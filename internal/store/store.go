package store

import "database/sql"

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx. Stores
// run on a plain handle by default; WithTx rebinds one to a caller's
// transaction so multi-store updates commit or roll back together.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
