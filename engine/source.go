/*
source.go - External data source interface

PURPOSE:
  The sheet-backed store the engine synchronizes against. Implementations
  live under source/ (Google Sheets, sqlite mirror); the engine treats
  them as potentially slow and fallible.

ERROR CONTRACT:
  FetchRows failures unwrap to ErrFetch, AppendRow/UpdateRow failures
  to ErrWrite (see errors.go).

SEE ALSO:
  - source/gsheet: Google Sheets values API implementation
  - source/sqlite: local mirror implementation
*/
package engine

import "context"

// DataSource is the external tabular store of business records.
type DataSource interface {
	// FetchRows reads the full sheet: header columns in sheet order and
	// one Row per data row. Rows without a project code are filtered out
	// at the source boundary.
	FetchRows(ctx context.Context) (columns []string, rows []Row, err error)

	// AppendRow appends a new record.
	AppendRow(ctx context.Context, row Row) error

	// UpdateRow replaces the record identified by its project code.
	UpdateRow(ctx context.Context, code string, row Row) error
}
