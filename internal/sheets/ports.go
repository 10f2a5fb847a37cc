// Package sheets exports the ledger to a spreadsheet, one row per transaction.
package sheets

import (
	"context"
	"strconv"

	"mxmoney/internal/core"
)

// Header is the first row of the ledger sheet.
var Header = []string{"ID", "Date", "Description", "Type", "Amount", "Category", "Recurrence", "Parent"}

// Ports for outbound adapters.
type (
	// LedgerWriter writes a transaction row, replacing any row with the same ID.
	LedgerWriter interface {
		Upsert(ctx context.Context, row Row) (rowRef string, err error)
	}

	// LedgerDeleter clears the row of a deleted transaction. Clearing a
	// missing row is not an error.
	LedgerDeleter interface {
		Clear(ctx context.Context, id int64) error
	}

	Ledger interface {
		LedgerWriter
		LedgerDeleter
	}
)

// Row is the exported form of a transaction.
type Row struct {
	ID          int64
	Date        string
	Description string
	Kind        string
	Amount      string
	Category    string
	Recurrence  string
	Parent      string
}

// RowFromTransaction flattens t into a sheet row.
func RowFromTransaction(t core.Transaction) Row {
	r := Row{
		ID:          t.ID,
		Date:        t.EffectiveDate.String(),
		Description: t.Description,
		Kind:        string(t.Kind),
		Amount:      t.Amount.String(),
		Recurrence:  string(t.Recurrence),
	}
	if t.Category != nil {
		r.Category = t.Category.Name
	}
	if t.IsMaterialized() {
		r.Parent = strconv.FormatInt(*t.ParentTemplateID, 10)
	}
	return r
}

// Values returns the row as cell values in Header order.
func (r Row) Values() []any {
	return []any{r.ID, r.Date, r.Description, r.Kind, r.Amount, r.Category, r.Recurrence, r.Parent}
}
