package reconciler

import "gst-reconciliation-service/internal/models"

// joinEntry collects the rows of both registers that share one identity key.
type joinEntry struct {
	key  models.IdentityKey
	book []*models.TransactionRecord
	ret  []*models.TransactionRecord
}

// status classifies the entry by which sides are present.
func (e *joinEntry) status() models.MatchStatus {
	switch {
	case len(e.book) > 0 && len(e.ret) > 0:
		return models.StatusMatched
	case len(e.book) > 0:
		return models.StatusNotInReturn
	default:
		return models.StatusNotInBooks
	}
}

// joinIndex is a full outer join of two registers on the identity key.
// Entries keep the order in which keys were first seen, books before returns.
type joinIndex struct {
	entries []*joinEntry
	byKey   map[models.IdentityKey]*joinEntry
}

func newJoinIndex(sizeHint int) *joinIndex {
	return &joinIndex{
		entries: make([]*joinEntry, 0, sizeHint),
		byKey:   make(map[models.IdentityKey]*joinEntry, sizeHint),
	}
}

func (ji *joinIndex) entry(key models.IdentityKey) *joinEntry {
	e, ok := ji.byKey[key]
	if !ok {
		e = &joinEntry{key: key}
		ji.byKey[key] = e
		ji.entries = append(ji.entries, e)
	}
	return e
}

func (ji *joinIndex) addBook(r *models.TransactionRecord) {
	e := ji.entry(r.Key())
	e.book = append(e.book, r)
}

func (ji *joinIndex) addReturn(r *models.TransactionRecord) {
	e := ji.entry(r.Key())
	e.ret = append(e.ret, r)
}

// buildJoinIndex indexes both registers.
func buildJoinIndex(book, returnSide []*models.TransactionRecord) *joinIndex {
	ji := newJoinIndex(len(book) + len(returnSide))
	for _, r := range book {
		ji.addBook(r)
	}
	for _, r := range returnSide {
		ji.addReturn(r)
	}
	return ji
}
