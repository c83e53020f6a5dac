package aggfuncs

import (
	"github.com/tidwall/btree"
	"mit.edu/dsg/aggengine/common"
)

// distinctSet is an ordered set of value tuples, deduplicated by value equality (common.Value.Compare).
//
// The whole set is held in memory. With limit == 0 it grows without bound, which is the scaling limit of
// distinct aggregation; a positive limit turns overflow into a DistinctLimitExceededError.
type distinctSet struct {
	// types is nil until known: a placeholder learns it from the first set merged or decoded into it.
	types []common.Type
	tree  *btree.BTreeG[[]common.Value]
	limit int
}

func newDistinctSet(types []common.Type, limit int) *distinctSet {
	return &distinctSet{
		types: types,
		// A set has a single owner, so the tree's internal locking is disabled.
		tree:  btree.NewBTreeGOptions(lessTuple, btree.Options{NoLocks: true}),
		limit: limit,
	}
}

func lessTuple(a, b []common.Value) bool {
	for i := range a {
		if c := a[i].Compare(b[i]); c != 0 {
			return c < 0
		}
	}
	return false
}

func (s *distinctSet) len() int {
	return s.tree.Len()
}

// insert adds a copy of vals to the set. vals must match the set's column types.
func (s *distinctSet) insert(vals []common.Value) error {
	if s.limit > 0 && s.tree.Len() >= s.limit {
		if _, found := s.tree.Get(vals); !found {
			return common.NewError(common.DistinctLimitExceededError,
				"distinct set reached its limit of %d entries", s.limit)
		}
		return nil
	}
	item := make([]common.Value, len(vals))
	copy(item, vals)
	s.tree.Set(item)
	return nil
}

// compatible reports whether tuples of other can live in s, adopting other's column types if s does not
// know its own yet.
func (s *distinctSet) compatible(other *distinctSet) bool {
	if other.types == nil {
		return true
	}
	if s.types == nil {
		s.types = other.types
		return true
	}
	if len(s.types) != len(other.types) {
		return false
	}
	for i := range s.types {
		if s.types[i] != other.types[i] {
			return false
		}
	}
	return true
}

// union inserts every tuple of other into s.
func (s *distinctSet) union(other *distinctSet) error {
	var err error
	other.tree.Scan(func(item []common.Value) bool {
		err = s.insert(item)
		return err == nil
	})
	return err
}

// scan visits the tuples in ascending order until fn returns false.
func (s *distinctSet) scan(fn func(vals []common.Value) bool) {
	s.tree.Scan(fn)
}
