package reconciler

import (
	"sort"

	"gst-reconciliation-service/internal/matcher"
	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/pkg/errors"
)

// referenceNames returns the distinct party names of records in first-seen order.
func referenceNames(records []*models.TransactionRecord) []string {
	seen := make(map[string]struct{}, len(records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.PartyName]; ok {
			continue
		}
		seen[r.PartyName] = struct{}{}
		names = append(names, r.PartyName)
	}
	return names
}

// sumByParty groups records by the parallel names slice and sums their taxes.
func sumByParty(records []*models.TransactionRecord, names []string) map[string]*models.TaxTotals {
	sums := make(map[string]*models.TaxTotals)
	for i, r := range records {
		total, ok := sums[names[i]]
		if !ok {
			total = &models.TaxTotals{}
			sums[names[i]] = total
		}
		*total = total.Add(r.Taxes())
	}
	return sums
}

// Aggregate compares book and GSTR2A tax totals per counterparty.
//
// Book party names are first pulled toward the party names found in the
// return with the given matcher; return names are left as they are. Totals
// are then grouped per name on each side and joined. A party missing from one
// side has a nil total for that side, and that side counts as zero in the
// diff (books minus return). The inputs are not modified.
//
// The result is sorted by party name. Errors mirror Reconcile.
func Aggregate(book, returnSide []*models.TransactionRecord, nameMatcher *matcher.NameMatcher) ([]*models.PartyAggregate, error) {
	if err := validateInputs(book, returnSide); err != nil {
		return nil, err
	}
	if len(book) == 0 && len(returnSide) == 0 {
		return []*models.PartyAggregate{}, errors.EmptyInputError("aggregate")
	}
	if nameMatcher == nil {
		var err error
		if nameMatcher, err = matcher.NewNameMatcher(nil); err != nil {
			return nil, err
		}
	}

	references := referenceNames(returnSide)

	bookNames := make([]string, len(book))
	for i, r := range book {
		bookNames[i] = r.PartyName
	}
	bookNames = nameMatcher.CanonicalizeAll(bookNames, references)

	returnNames := make([]string, len(returnSide))
	for i, r := range returnSide {
		returnNames[i] = r.PartyName
	}

	bookSums := sumByParty(book, bookNames)
	returnSums := sumByParty(returnSide, returnNames)

	parties := make([]string, 0, len(bookSums)+len(returnSums))
	for name := range bookSums {
		parties = append(parties, name)
	}
	for name := range returnSums {
		if _, ok := bookSums[name]; !ok {
			parties = append(parties, name)
		}
	}
	sort.Strings(parties)

	aggregates := make([]*models.PartyAggregate, 0, len(parties))
	for _, name := range parties {
		agg := &models.PartyAggregate{
			PartyName: name,
			Books:     bookSums[name],
			Return:    returnSums[name],
		}
		agg.Diff = models.OrZero(agg.Books).Sub(models.OrZero(agg.Return))
		aggregates = append(aggregates, agg)
	}

	return aggregates, nil
}

// AggregateWithThreshold is Aggregate with a matcher built from threshold.
func AggregateWithThreshold(book, returnSide []*models.TransactionRecord, threshold int) ([]*models.PartyAggregate, error) {
	nameMatcher, err := matcher.NewNameMatcher(&matcher.MatchingConfig{Threshold: threshold, ProcessNames: true})
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "threshold", threshold, err)
	}
	return Aggregate(book, returnSide, nameMatcher)
}
