package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical rendering of invoice dates.
const DateLayout = "2006-01-02"

// MatchStatus classifies a reconciled transaction.
type MatchStatus string

const (
	// StatusMatched means the transaction appears in both registers.
	StatusMatched MatchStatus = "Matched"
	// StatusNotInReturn means the transaction appears only in the purchase register.
	StatusNotInReturn MatchStatus = "NotInReturn"
	// StatusNotInBooks means the transaction appears only in GSTR2A.
	StatusNotInBooks MatchStatus = "NotInBooks"
)

// String returns the string representation of MatchStatus
func (s MatchStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values
func (s MatchStatus) IsValid() bool {
	switch s {
	case StatusMatched, StatusNotInReturn, StatusNotInBooks:
		return true
	default:
		return false
	}
}

// Label returns the human facing remark used in exported reports.
func (s MatchStatus) Label() string {
	switch s {
	case StatusMatched:
		return "Matched"
	case StatusNotInReturn:
		return "Not in GSTR2A"
	case StatusNotInBooks:
		return "Not in Books"
	default:
		return string(s)
	}
}

// TransactionRecord is one purchase invoice line as it appears in either the
// purchase register (books) or the GSTR2A return. Empty PartyName/GSTIN and a
// zero InvoiceDate mean the value is absent.
type TransactionRecord struct {
	InvoiceNumber string          `json:"invoice_number"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
	PartyName     string          `json:"party_name"`
	GSTIN         string          `json:"gstin"`
	InvoiceDate   time.Time       `json:"invoice_date"`
}

// Key returns the identity key of the record.
func (r *TransactionRecord) Key() IdentityKey {
	return IdentityKey{
		InvoiceNumber: r.InvoiceNumber,
		TaxRate:       r.TaxRate.String(),
		TaxableAmount: r.TaxableAmount.String(),
		CGST:          r.CGST.String(),
		SGST:          r.SGST.String(),
		IGST:          r.IGST.String(),
	}
}

// Taxes returns the four summable amounts of the record.
func (r *TransactionRecord) Taxes() TaxTotals {
	return TaxTotals{
		TaxableAmount: r.TaxableAmount,
		CGST:          r.CGST,
		SGST:          r.SGST,
		IGST:          r.IGST,
	}
}

// HasInvoiceDate reports whether the invoice date is present.
func (r *TransactionRecord) HasInvoiceDate() bool {
	return !r.InvoiceDate.IsZero()
}

// Validate performs basic validation on the record
func (r *TransactionRecord) Validate() error {
	if strings.TrimSpace(r.InvoiceNumber) == "" {
		return fmt.Errorf("invoice number cannot be empty")
	}
	if r.TaxRate.IsNegative() {
		return fmt.Errorf("tax rate cannot be negative: %s", r.TaxRate)
	}
	return nil
}

// String returns a string representation of the record
func (r *TransactionRecord) String() string {
	return fmt.Sprintf("Transaction{Invoice: %s, Party: %s, Rate: %s, Taxable: %s, CGST: %s, SGST: %s, IGST: %s}",
		r.InvoiceNumber, r.PartyName, r.TaxRate, r.TaxableAmount, r.CGST, r.SGST, r.IGST)
}

// IdentityKey is the tuple that identifies a transaction across both registers.
// Decimal components are stored in their normalized string form so that 18 and
// 18.00 compare equal; the struct is usable as a map key.
type IdentityKey struct {
	InvoiceNumber string
	TaxRate       string
	TaxableAmount string
	CGST          string
	SGST          string
	IGST          string
}

// String returns a compact representation of the key
func (k IdentityKey) String() string {
	return strings.Join([]string{k.InvoiceNumber, k.TaxRate, k.TaxableAmount, k.CGST, k.SGST, k.IGST}, "|")
}

// ReconciledRow is one line of the reconciliation output: descriptive fields
// first, then the identity key, then the status.
type ReconciledRow struct {
	PartyName     string          `json:"party_name"`
	GSTIN         string          `json:"gstin"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	InvoiceNumber string          `json:"invoice_number"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
	Status        MatchStatus     `json:"status"`
}

// Key returns the identity key of the row.
func (r *ReconciledRow) Key() IdentityKey {
	return IdentityKey{
		InvoiceNumber: r.InvoiceNumber,
		TaxRate:       r.TaxRate.String(),
		TaxableAmount: r.TaxableAmount.String(),
		CGST:          r.CGST.String(),
		SGST:          r.SGST.String(),
		IGST:          r.IGST.String(),
	}
}

// FormattedDate renders the invoice date, or an empty string when absent.
func (r *ReconciledRow) FormattedDate() string {
	if r.InvoiceDate.IsZero() {
		return ""
	}
	return r.InvoiceDate.Format(DateLayout)
}

// Fingerprint returns a string that is equal for two rows exactly when all
// projected fields are equal. It is used to collapse duplicate rows.
func (r *ReconciledRow) Fingerprint() string {
	return strings.Join([]string{
		r.PartyName, r.GSTIN, r.FormattedDate(), r.Key().String(), string(r.Status),
	}, "\x1f")
}

// Equals compares two rows field by field
func (r *ReconciledRow) Equals(other *ReconciledRow) bool {
	if other == nil {
		return false
	}
	return r.Fingerprint() == other.Fingerprint()
}

// MarshalJSON renders decimals as strings and the date in DateLayout.
func (r *ReconciledRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		PartyName     string `json:"party_name"`
		GSTIN         string `json:"gstin"`
		InvoiceDate   string `json:"invoice_date"`
		InvoiceNumber string `json:"invoice_number"`
		TaxRate       string `json:"tax_rate"`
		TaxableAmount string `json:"taxable_amount"`
		CGST          string `json:"cgst"`
		SGST          string `json:"sgst"`
		IGST          string `json:"igst"`
		Status        string `json:"status"`
	}{
		PartyName:     r.PartyName,
		GSTIN:         r.GSTIN,
		InvoiceDate:   r.FormattedDate(),
		InvoiceNumber: r.InvoiceNumber,
		TaxRate:       r.TaxRate.String(),
		TaxableAmount: r.TaxableAmount.String(),
		CGST:          r.CGST.String(),
		SGST:          r.SGST.String(),
		IGST:          r.IGST.String(),
		Status:        r.Status.String(),
	})
}

// TaxTotals holds the four amounts that are summed per party.
type TaxTotals struct {
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
}

// Add returns the field-wise sum of t and other.
func (t TaxTotals) Add(other TaxTotals) TaxTotals {
	return TaxTotals{
		TaxableAmount: t.TaxableAmount.Add(other.TaxableAmount),
		CGST:          t.CGST.Add(other.CGST),
		SGST:          t.SGST.Add(other.SGST),
		IGST:          t.IGST.Add(other.IGST),
	}
}

// Sub returns the field-wise difference t - other.
func (t TaxTotals) Sub(other TaxTotals) TaxTotals {
	return TaxTotals{
		TaxableAmount: t.TaxableAmount.Sub(other.TaxableAmount),
		CGST:          t.CGST.Sub(other.CGST),
		SGST:          t.SGST.Sub(other.SGST),
		IGST:          t.IGST.Sub(other.IGST),
	}
}

// IsZero reports whether every field is zero.
func (t TaxTotals) IsZero() bool {
	return t.TaxableAmount.IsZero() && t.CGST.IsZero() && t.SGST.IsZero() && t.IGST.IsZero()
}

// Equal compares the totals by value.
func (t TaxTotals) Equal(other TaxTotals) bool {
	return t.TaxableAmount.Equal(other.TaxableAmount) &&
		t.CGST.Equal(other.CGST) &&
		t.SGST.Equal(other.SGST) &&
		t.IGST.Equal(other.IGST)
}

// Values returns the fields in export order.
func (t TaxTotals) Values() []decimal.Decimal {
	return []decimal.Decimal{t.TaxableAmount, t.CGST, t.SGST, t.IGST}
}

// OrZero dereferences t, treating nil as all zeros.
func OrZero(t *TaxTotals) TaxTotals {
	if t == nil {
		return TaxTotals{}
	}
	return *t
}

// PartyAggregate compares the book and return totals of one counterparty.
// Books or Return is nil when the party has no rows on that side.
type PartyAggregate struct {
	PartyName string     `json:"party_name"`
	Books     *TaxTotals `json:"books,omitempty"`
	Return    *TaxTotals `json:"gstr2a,omitempty"`
	Diff      TaxTotals  `json:"diff"`
}

// HasDiscrepancy reports whether any diff field is non-zero.
func (p *PartyAggregate) HasDiscrepancy() bool {
	return !p.Diff.IsZero()
}
