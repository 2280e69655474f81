package reconciler

import (
	"fmt"
	"testing"
	"time"

	"gst-reconciliation-service/internal/matcher"
	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func record(inv, rate, amt, cgst, sgst, igst, party, gstin, day string) *models.TransactionRecord {
	r := &models.TransactionRecord{
		InvoiceNumber: inv,
		TaxRate:       d(rate),
		TaxableAmount: d(amt),
		CGST:          d(cgst),
		SGST:          d(sgst),
		IGST:          d(igst),
		PartyName:     party,
		GSTIN:         gstin,
	}
	if day != "" {
		r.InvoiceDate = date(day)
	}
	return r
}

func acmeBook() *models.TransactionRecord {
	return record("A1", "18", "1000", "90", "90", "0", "Acme Corp", "G1", "2024-01-01")
}

func acmeReturn() *models.TransactionRecord {
	return record("A1", "18", "1000", "90", "90", "0", "ACME CORPORATION", "G1", "2024-01-01")
}

func mixedRegisters() (book, ret []*models.TransactionRecord) {
	book = []*models.TransactionRecord{
		record("INV-001", "18", "1000", "90", "90", "0", "Acme Corp", "27AAACA1234A1Z5", "2024-01-05"),
		record("INV-002", "12", "500", "0", "0", "60", "Globex", "29AAACG5678B1Z2", "2024-01-06"),
		record("INV-003", "5", "200", "5", "5", "0", "Initech", "", "2024-01-07"),
		record("INV-004", "18", "300", "27", "27", "0", "Acme Corp", "27AAACA1234A1Z5", ""),
	}
	ret = []*models.TransactionRecord{
		record("INV-001", "18.00", "1000.00", "90.00", "90.00", "0.00", "ACME CORPORATION", "27AAACA1234A1Z5", "2024-01-05"),
		record("INV-002", "12", "500", "0", "0", "60", "GLOBEX LTD", "29AAACG5678B1Z2", "2024-01-06"),
		record("INV-004", "18", "300", "27", "27", "0", "ACME CORPORATION", "27AAACA1234A1Z5", "2024-01-09"),
		record("INV-009", "28", "700", "98", "98", "0", "Umbrella Inc", "07AAACU9999C1Z9", "2024-01-10"),
	}
	return book, ret
}

func TestReconcile_EndToEndScenario(t *testing.T) {
	rows, err := Reconcile([]*models.TransactionRecord{acmeBook()}, []*models.TransactionRecord{acmeReturn()})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, models.StatusMatched, row.Status)
	assert.Equal(t, "Acme Corp", row.PartyName)
	assert.Equal(t, "G1", row.GSTIN)
	assert.Equal(t, "2024-01-01", row.FormattedDate())
	assert.Equal(t, "A1", row.InvoiceNumber)
	assert.True(t, row.TaxableAmount.Equal(d("1000")))
}

func TestReconcile_OneSidedScenario(t *testing.T) {
	rows, err := Reconcile([]*models.TransactionRecord{acmeBook()}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusNotInReturn, rows[0].Status)
	assert.Equal(t, "Acme Corp", rows[0].PartyName)

	rows, err = Reconcile(nil, []*models.TransactionRecord{acmeReturn()})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusNotInBooks, rows[0].Status)
	assert.Equal(t, "ACME CORPORATION", rows[0].PartyName)
}

func TestReconcile_Classification(t *testing.T) {
	book, ret := mixedRegisters()

	rows, err := Reconcile(book, ret)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	byInvoice := make(map[string]*models.ReconciledRow)
	for _, row := range rows {
		byInvoice[row.InvoiceNumber] = row
	}

	assert.Equal(t, models.StatusMatched, byInvoice["INV-001"].Status)
	assert.Equal(t, models.StatusMatched, byInvoice["INV-002"].Status)
	assert.Equal(t, models.StatusNotInReturn, byInvoice["INV-003"].Status)
	assert.Equal(t, models.StatusMatched, byInvoice["INV-004"].Status)
	assert.Equal(t, models.StatusNotInBooks, byInvoice["INV-009"].Status)

	counts := CountByStatus(rows)
	assert.Equal(t, 3, counts[models.StatusMatched])
	assert.Equal(t, 1, counts[models.StatusNotInReturn])
	assert.Equal(t, 1, counts[models.StatusNotInBooks])
}

func TestReconcile_ResolutionPrefersBooks(t *testing.T) {
	book, ret := mixedRegisters()

	rows, err := Reconcile(book, ret)
	require.NoError(t, err)

	for _, row := range rows {
		if row.InvoiceNumber != "INV-004" {
			continue
		}
		assert.Equal(t, "Acme Corp", row.PartyName, "book name wins")
		assert.Equal(t, "2024-01-09", row.FormattedDate(), "missing book date falls back to return")
	}
}

func TestReconcile_NullBookFieldsFallBackToReturn(t *testing.T) {
	b := record("X1", "18", "100", "9", "9", "0", "", "", "")
	r := record("X1", "18", "100", "9", "9", "0", "Return Party", "RG1", "2024-03-01")

	rows, err := Reconcile([]*models.TransactionRecord{b}, []*models.TransactionRecord{r})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Return Party", rows[0].PartyName)
	assert.Equal(t, "RG1", rows[0].GSTIN)
	assert.Equal(t, "2024-03-01", rows[0].FormattedDate())
}

func TestReconcile_KeyDifferencesAreNotMatched(t *testing.T) {
	b := record("A1", "18", "1000", "90", "90", "0", "Acme", "G1", "2024-01-01")
	r := record("A1", "18", "1000", "90.01", "90", "0", "Acme", "G1", "2024-01-01")

	rows, err := Reconcile([]*models.TransactionRecord{b}, []*models.TransactionRecord{r})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusNotInReturn, rows[0].Status)
	assert.Equal(t, models.StatusNotInBooks, rows[1].Status)
}

func TestReconcile_DuplicatesCollapse(t *testing.T) {
	book := []*models.TransactionRecord{acmeBook(), acmeBook()}
	ret := []*models.TransactionRecord{acmeReturn()}

	rows, err := Reconcile(book, ret)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReconcile_SameKeyDifferentDescriptiveFields(t *testing.T) {
	b1 := record("A1", "18", "1000", "90", "90", "0", "Acme Corp", "G1", "2024-01-01")
	b2 := record("A1", "18", "1000", "90", "90", "0", "Acme Corp Branch", "G1", "2024-01-01")
	r := acmeReturn()

	rows, err := Reconcile([]*models.TransactionRecord{b1, b2}, []*models.TransactionRecord{r})
	require.NoError(t, err)
	require.Len(t, rows, 2, "each book row pairs with the return row")
	assert.Equal(t, "Acme Corp", rows[0].PartyName)
	assert.Equal(t, "Acme Corp Branch", rows[1].PartyName)
	for _, row := range rows {
		assert.Equal(t, models.StatusMatched, row.Status)
	}
}

func TestReconcile_PartitionProperty(t *testing.T) {
	book, ret := mixedRegisters()

	rows, err := Reconcile(book, ret)
	require.NoError(t, err)

	bookKeys := make(map[models.IdentityKey]bool)
	for _, r := range book {
		bookKeys[r.Key()] = true
	}
	retKeys := make(map[models.IdentityKey]bool)
	for _, r := range ret {
		retKeys[r.Key()] = true
	}

	statusByKey := make(map[models.IdentityKey]models.MatchStatus)
	for _, row := range rows {
		prev, seen := statusByKey[row.Key()]
		if seen {
			assert.Equal(t, prev, row.Status, "a key belongs to one partition only")
		}
		statusByKey[row.Key()] = row.Status
	}

	for key := range bookKeys {
		require.Contains(t, statusByKey, key)
	}
	for key := range retKeys {
		require.Contains(t, statusByKey, key)
	}
	assert.Len(t, statusByKey, len(union(bookKeys, retKeys)))

	for key, status := range statusByKey {
		switch status {
		case models.StatusMatched:
			assert.True(t, bookKeys[key] && retKeys[key])
		case models.StatusNotInReturn:
			assert.True(t, bookKeys[key] && !retKeys[key])
		case models.StatusNotInBooks:
			assert.True(t, !bookKeys[key] && retKeys[key])
		default:
			t.Errorf("unexpected status %q", status)
		}
	}
}

func union(a, b map[models.IdentityKey]bool) map[models.IdentityKey]bool {
	out := make(map[models.IdentityKey]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func TestReconcile_Idempotent(t *testing.T) {
	book, ret := mixedRegisters()

	first, err := Reconcile(book, ret)
	require.NoError(t, err)
	second, err := Reconcile(book, ret)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equals(second[i]))
	}
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	book, ret := mixedRegisters()
	before := fmt.Sprint(book, ret)

	_, err := Reconcile(book, ret)
	require.NoError(t, err)
	_, err = Aggregate(book, ret, nil)
	require.NoError(t, err)

	assert.Equal(t, before, fmt.Sprint(book, ret))
}

func TestReconcile_EmptyInputs(t *testing.T) {
	rows, err := Reconcile(nil, []*models.TransactionRecord{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEmptyInput))
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestReconcile_SchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		book  []*models.TransactionRecord
		ret   []*models.TransactionRecord
		field string
		side  string
	}{
		{
			name:  "blank invoice in books",
			book:  []*models.TransactionRecord{record(" ", "18", "1", "0", "0", "0", "P", "", "")},
			field: "invoice_number",
			side:  "book",
		},
		{
			name:  "nil record in return",
			book:  []*models.TransactionRecord{acmeBook()},
			ret:   []*models.TransactionRecord{acmeReturn(), nil},
			field: "record",
			side:  "gstr2a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Reconcile(tt.book, tt.ret)
			assert.Nil(t, rows)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeSchemaError))

			rerr, ok := errors.AsReconcilerError(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, rerr.Context["field"])
			assert.Equal(t, tt.side, rerr.Context["side"])

			_, err = Aggregate(tt.book, tt.ret, nil)
			assert.True(t, errors.IsCode(err, errors.CodeSchemaError))
		})
	}
}

func TestAggregate_EndToEndScenario(t *testing.T) {
	aggs, err := Aggregate([]*models.TransactionRecord{acmeBook()}, []*models.TransactionRecord{acmeReturn()}, nil)
	require.NoError(t, err)
	require.Len(t, aggs, 1)

	agg := aggs[0]
	assert.Equal(t, "ACME CORPORATION", agg.PartyName)
	require.NotNil(t, agg.Books)
	require.NotNil(t, agg.Return)
	assert.True(t, agg.Books.Equal(*agg.Return))
	assert.True(t, agg.Diff.IsZero())
	assert.False(t, agg.HasDiscrepancy())
}

func TestAggregate_OneSidedScenario(t *testing.T) {
	aggs, err := Aggregate([]*models.TransactionRecord{acmeBook()}, nil, nil)
	require.NoError(t, err)
	require.Len(t, aggs, 1)

	agg := aggs[0]
	assert.Equal(t, "Acme Corp", agg.PartyName, "no references, name kept")
	assert.Nil(t, agg.Return)
	require.NotNil(t, agg.Books)
	assert.True(t, agg.Diff.Equal(*agg.Books))
	assert.True(t, models.OrZero(agg.Return).IsZero())
}

func TestAggregate_MixedRegisters(t *testing.T) {
	book, ret := mixedRegisters()

	aggs, err := Aggregate(book, ret, nil)
	require.NoError(t, err)

	byParty := make(map[string]*models.PartyAggregate)
	var names []string
	for _, a := range aggs {
		byParty[a.PartyName] = a
		names = append(names, a.PartyName)
	}
	assert.Equal(t, []string{"ACME CORPORATION", "GLOBEX LTD", "Initech", "Umbrella Inc"}, names)

	acme := byParty["ACME CORPORATION"]
	assert.True(t, acme.Books.TaxableAmount.Equal(d("1300")))
	assert.True(t, acme.Return.TaxableAmount.Equal(d("1300")))
	assert.True(t, acme.Diff.IsZero())

	initech := byParty["Initech"]
	assert.Nil(t, initech.Return)
	assert.True(t, initech.Diff.CGST.Equal(d("5")))

	umbrella := byParty["Umbrella Inc"]
	assert.Nil(t, umbrella.Books)
	assert.True(t, umbrella.Diff.TaxableAmount.Equal(d("-700")))
	assert.True(t, umbrella.Diff.CGST.Equal(d("-98")))
}

func TestAggregate_ConservationProperty(t *testing.T) {
	book, ret := mixedRegisters()
	book = append(book, record("INV-010", "18", "0.10", "0.01", "0.01", "0", "Someone New", "", ""))

	aggs, err := Aggregate(book, ret, nil)
	require.NoError(t, err)

	var wantBook, wantRet, gotBook, gotRet models.TaxTotals
	for _, r := range book {
		wantBook = wantBook.Add(r.Taxes())
	}
	for _, r := range ret {
		wantRet = wantRet.Add(r.Taxes())
	}
	for _, a := range aggs {
		gotBook = gotBook.Add(models.OrZero(a.Books))
		gotRet = gotRet.Add(models.OrZero(a.Return))
	}

	assert.True(t, wantBook.Equal(gotBook), "book totals conserved: want %+v got %+v", wantBook, gotBook)
	assert.True(t, wantRet.Equal(gotRet), "return totals conserved")
}

func TestAggregate_DiffCorrectness(t *testing.T) {
	book, ret := mixedRegisters()
	book = append(book, record("INV-011", "18", "50", "4.5", "4.5", "0", "Globex", "", ""))

	aggs, err := Aggregate(book, ret, nil)
	require.NoError(t, err)

	for _, a := range aggs {
		want := models.OrZero(a.Books).Sub(models.OrZero(a.Return))
		assert.True(t, a.Diff.Equal(want), "diff for %s", a.PartyName)
	}
}

func TestAggregate_PartiesAppearOnce(t *testing.T) {
	book, ret := mixedRegisters()

	aggs, err := Aggregate(book, ret, nil)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, a := range aggs {
		assert.False(t, seen[a.PartyName], "duplicate party %s", a.PartyName)
		seen[a.PartyName] = true
	}
}

func TestAggregate_BelowThresholdKeepsSeparateParties(t *testing.T) {
	book := []*models.TransactionRecord{record("B1", "18", "100", "9", "9", "0", "Zzzqq Traders", "", "")}
	ret := []*models.TransactionRecord{record("B1", "18", "100", "9", "9", "0", "ACME CORPORATION", "", "")}

	aggs, err := Aggregate(book, ret, nil)
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, "ACME CORPORATION", aggs[0].PartyName)
	assert.Equal(t, "Zzzqq Traders", aggs[1].PartyName)
}

func TestAggregate_ThresholdIsConfigurable(t *testing.T) {
	book := []*models.TransactionRecord{record("B1", "18", "100", "9", "9", "0", "abcd", "", "")}
	ret := []*models.TransactionRecord{record("B1", "18", "100", "9", "9", "0", "xxabxd", "", "")}

	aggs, err := AggregateWithThreshold(book, ret, 75)
	require.NoError(t, err)
	assert.Len(t, aggs, 2)

	aggs, err = AggregateWithThreshold(book, ret, 74)
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, "xxabxd", aggs[0].PartyName)

	_, err = AggregateWithThreshold(book, ret, 150)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidConfig))
}

func TestAggregate_ReturnNamesAreNotCanonicalized(t *testing.T) {
	ret := []*models.TransactionRecord{
		record("R1", "18", "100", "9", "9", "0", "Acme", "", ""),
		record("R2", "18", "100", "9", "9", "0", "Acme Corporation", "", ""),
	}

	aggs, err := Aggregate(nil, ret, nil)
	require.NoError(t, err)
	assert.Len(t, aggs, 2, "return names are grouped as given")
}

func TestAggregate_EmptyInputs(t *testing.T) {
	aggs, err := Aggregate(nil, nil, nil)
	assert.True(t, errors.IsCode(err, errors.CodeEmptyInput))
	assert.NotNil(t, aggs)
	assert.Empty(t, aggs)
}

func TestAggregate_CustomMatcher(t *testing.T) {
	strict, err := matcher.NewNameMatcher(matcher.StrictMatchingConfig())
	require.NoError(t, err)

	book := []*models.TransactionRecord{record("B1", "18", "100", "9", "9", "0", "Acme Corp", "", "")}
	ret := []*models.TransactionRecord{record("B1", "18", "100", "9", "9", "0", "ACME CORPORATION", "", "")}

	aggs, err := Aggregate(book, ret, strict)
	require.NoError(t, err)
	require.Len(t, aggs, 1, "contained name still scores 100")
}
