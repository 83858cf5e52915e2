package database

import "slices"

// Change describes the rows touched by one committed write.
// Scopes holds both the old and the new scope of every touched row, so a row
// moving between partitions notifies observers of both.
type Change struct {
	Table  string
	IDs    []uint
	Scopes []uint
}

func (c *Change) add(ids []uint, scopes []uint) {
	for _, id := range ids {
		if !slices.Contains(c.IDs, id) {
			c.IDs = append(c.IDs, id)
		}
	}
	for _, s := range scopes {
		if !slices.Contains(c.Scopes, s) {
			c.Scopes = append(c.Scopes, s)
		}
	}
}

func (c Change) empty() bool {
	return len(c.IDs) == 0 && len(c.Scopes) == 0
}

// AffectsID reports whether the row with the given id was written or deleted.
func (c Change) AffectsID(id uint) bool {
	return slices.Contains(c.IDs, id)
}

// AffectsScope reports whether the partition may have changed.
func (c Change) AffectsScope(scope uint) bool {
	return slices.Contains(c.Scopes, scope)
}
