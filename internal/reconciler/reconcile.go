package reconciler

import (
	"strings"

	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/pkg/errors"
)

const (
	sideBook   = "book"
	sideReturn = "gstr2a"
)

// validateInputs checks that every record of both registers carries the
// fields the join needs.
func validateInputs(book, returnSide []*models.TransactionRecord) error {
	for _, side := range []struct {
		name    string
		records []*models.TransactionRecord
	}{{sideBook, book}, {sideReturn, returnSide}} {
		for i, r := range side.records {
			if r == nil {
				return errors.SchemaError(side.name, i, "record")
			}
			if strings.TrimSpace(r.InvoiceNumber) == "" {
				return errors.SchemaError(side.name, i, "invoice_number")
			}
		}
	}
	return nil
}

// Reconcile classifies every transaction of the purchase register and the
// GSTR2A return as matched, present only in the books or present only in
// the return.
//
// Rows are joined on the identity key. When a key occurs several times on
// both sides every book row is paired with every return row. Party name,
// GSTIN and invoice date come from the book row when present and from the
// return row otherwise. Rows whose projected fields are all equal are
// reported once, so exact duplicates inside one register collapse.
//
// Row order follows the first appearance of each key, books first. If both
// registers are empty Reconcile returns an empty slice together with an
// empty_input error that callers should treat as a warning.
func Reconcile(book, returnSide []*models.TransactionRecord) ([]*models.ReconciledRow, error) {
	if err := validateInputs(book, returnSide); err != nil {
		return nil, err
	}
	if len(book) == 0 && len(returnSide) == 0 {
		return []*models.ReconciledRow{}, errors.EmptyInputError("reconcile")
	}

	index := buildJoinIndex(book, returnSide)

	rows := make([]*models.ReconciledRow, 0, len(index.entries))
	seen := make(map[string]struct{}, len(index.entries))
	emit := func(row *models.ReconciledRow) {
		fp := row.Fingerprint()
		if _, dup := seen[fp]; dup {
			return
		}
		seen[fp] = struct{}{}
		rows = append(rows, row)
	}

	for _, e := range index.entries {
		status := e.status()
		switch status {
		case models.StatusMatched:
			for _, b := range e.book {
				for _, r := range e.ret {
					emit(resolve(b, r, status))
				}
			}
		case models.StatusNotInReturn:
			for _, b := range e.book {
				emit(resolve(b, nil, status))
			}
		default:
			for _, r := range e.ret {
				emit(resolve(nil, r, status))
			}
		}
	}

	return rows, nil
}

// resolve builds the output row for a joined pair. Either side may be nil but
// not both.
func resolve(book, ret *models.TransactionRecord, status models.MatchStatus) *models.ReconciledRow {
	keySource := book
	if keySource == nil {
		keySource = ret
	}

	row := &models.ReconciledRow{
		InvoiceNumber: keySource.InvoiceNumber,
		TaxRate:       keySource.TaxRate,
		TaxableAmount: keySource.TaxableAmount,
		CGST:          keySource.CGST,
		SGST:          keySource.SGST,
		IGST:          keySource.IGST,
		Status:        status,
	}

	if book != nil {
		row.PartyName = book.PartyName
		row.GSTIN = book.GSTIN
		row.InvoiceDate = book.InvoiceDate
	}
	if ret != nil {
		if row.PartyName == "" {
			row.PartyName = ret.PartyName
		}
		if row.GSTIN == "" {
			row.GSTIN = ret.GSTIN
		}
		if row.InvoiceDate.IsZero() {
			row.InvoiceDate = ret.InvoiceDate
		}
	}

	return row
}

// CountByStatus tallies reconciled rows per status.
func CountByStatus(rows []*models.ReconciledRow) map[models.MatchStatus]int {
	counts := map[models.MatchStatus]int{
		models.StatusMatched:     0,
		models.StatusNotInReturn: 0,
		models.StatusNotInBooks:  0,
	}
	for _, row := range rows {
		counts[row.Status]++
	}
	return counts
}
