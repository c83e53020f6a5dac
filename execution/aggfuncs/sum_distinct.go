package aggfuncs

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

type sumDistinctAccumulator struct {
	baseAccumulator
	set *distinctSet
}

func (a *sumDistinctAccumulator) Update(row storage.Tuple) error {
	v, err := a.arg(row)
	if err != nil {
		return err
	}
	if v.IsNull() {
		return nil
	}
	return a.set.insert([]common.Value{v})
}

func (a *sumDistinctAccumulator) Merge(other Accumulator) error {
	if err := a.checkMerge(other); err != nil {
		return err
	}
	o, ok := other.(*sumDistinctAccumulator)
	if !ok || !a.set.compatible(o.set) {
		return mismatch(a, other)
	}
	return a.set.union(o.set)
}

// Eval reduces the distinct values with Add in ascending order, which keeps floating point sums
// reproducible regardless of the order values arrived in. An empty set has nothing to start the reduction
// from and yields EmptyReductionError rather than a zero that the caller did not ask for.
func (a *sumDistinctAccumulator) Eval() (common.Value, error) {
	if a.set.len() == 0 {
		return common.Value{}, common.NewError(common.EmptyReductionError, "%s over an empty set", a.kind)
	}
	var (
		acc common.Value
		err error
	)
	a.set.scan(func(vals []common.Value) bool {
		if acc.IsNil() {
			acc = vals[0]
			return true
		}
		acc, err = acc.Add(vals[0])
		return err == nil
	})
	if err != nil {
		return common.Value{}, err
	}
	return acc, nil
}

func (a *sumDistinctAccumulator) MarshalBinary() ([]byte, error) {
	return appendSet(a.appendHeader(nil), a.set), nil
}

func (a *sumDistinctAccumulator) UnmarshalBinary(data []byte) error {
	data, err := a.readHeader(data)
	if err != nil {
		return err
	}
	set, data, err := readSet(data, a.set.limit)
	if err != nil {
		return err
	}
	if !a.set.compatible(set) {
		return corrupt("SUM DISTINCT state over %v, want %v", set.types, a.set.types)
	}
	set.types = a.set.types
	a.set = set
	return expectEnd(data)
}
