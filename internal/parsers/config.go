package parsers

import (
	"fmt"
	"strings"
)

// Canonical register column names.
const (
	ColumnInvoiceNumber = "Invoice_Number"
	ColumnTaxRate       = "Tax_Rate"
	ColumnTaxableAmount = "Taxable_Amount"
	ColumnCGST          = "CGST"
	ColumnSGST          = "SGST"
	ColumnIGST          = "IGST"
	ColumnPartyName     = "Party_Name"
	ColumnGSTIN         = "GSTIN"
	ColumnInvoiceDate   = "Invoice_Date"
)

// RequiredColumns lists the columns every register must carry.
var RequiredColumns = []string{
	ColumnInvoiceNumber,
	ColumnTaxRate,
	ColumnTaxableAmount,
	ColumnCGST,
	ColumnSGST,
	ColumnIGST,
	ColumnPartyName,
}

// OptionalColumns may be absent; their values are then treated as null.
var OptionalColumns = []string{
	ColumnGSTIN,
	ColumnInvoiceDate,
}

// DefaultDateFormats are tried in order when parsing Invoice_Date.
var DefaultDateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"02-Jan-2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
}

// DefaultColumnAliases maps canonical column names to alternative headers
// found in common GST software exports.
func DefaultColumnAliases() map[string][]string {
	return map[string][]string{
		ColumnInvoiceNumber: {"Invoice No", "Invoice Number", "Inv No", "Bill No", "Document Number"},
		ColumnTaxRate:       {"Rate", "GST Rate", "Rate (%)", "Tax Rate (%)"},
		ColumnTaxableAmount: {"Taxable Value", "Taxable Amt", "Assessable Value"},
		ColumnCGST:          {"Central Tax", "CGST Amount"},
		ColumnSGST:          {"State Tax", "State/UT Tax", "SGST Amount"},
		ColumnIGST:          {"Integrated Tax", "IGST Amount"},
		ColumnPartyName:     {"Supplier Name", "Trade Name", "Party", "Vendor Name"},
		ColumnGSTIN:         {"GSTIN of Supplier", "Supplier GSTIN", "GSTIN/UIN"},
		ColumnInvoiceDate:   {"Invoice Date", "Inv Date", "Bill Date", "Document Date"},
	}
}

// RegisterParserConfig holds configuration for parsing register CSV files.
type RegisterParserConfig struct {
	Delimiter     rune                `json:"delimiter" mapstructure:"delimiter"`
	DateFormats   []string            `json:"date_formats" mapstructure:"date_formats"`
	ColumnAliases map[string][]string `json:"column_aliases,omitempty" mapstructure:"column_aliases"`
	StrictMode    bool                `json:"strict_mode" mapstructure:"strict_mode"`
	MaxErrors     int                 `json:"max_errors" mapstructure:"max_errors"`
}

// DefaultRegisterParserConfig returns a configuration with standard defaults.
func DefaultRegisterParserConfig() *RegisterParserConfig {
	formats := make([]string, len(DefaultDateFormats))
	copy(formats, DefaultDateFormats)
	return &RegisterParserConfig{
		Delimiter:     ',',
		DateFormats:   formats,
		ColumnAliases: DefaultColumnAliases(),
		MaxErrors:     1000,
	}
}

// Validate checks if the configuration is usable.
func (c *RegisterParserConfig) Validate() error {
	switch c.Delimiter {
	case 0, '"', '\r', '\n':
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}

	if len(c.DateFormats) == 0 {
		return fmt.Errorf("at least one date format is required")
	}
	for _, f := range c.DateFormats {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("date format cannot be empty")
		}
	}

	if c.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative, got %d", c.MaxErrors)
	}

	for column := range c.ColumnAliases {
		if !isKnownColumn(column) {
			return fmt.Errorf("alias defined for unknown column %q", column)
		}
	}

	return nil
}

// ColumnNames returns the canonical name of column followed by its aliases.
func (c *RegisterParserConfig) ColumnNames(column string) []string {
	return append([]string{column}, c.ColumnAliases[column]...)
}

func isKnownColumn(column string) bool {
	for _, known := range append(RequiredColumns, OptionalColumns...) {
		if known == column {
			return true
		}
	}
	return false
}
