package aggfuncs

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

type countDistinctAccumulator struct {
	baseAccumulator
	set *distinctSet
	// buf is reused across Update calls; insert copies what it keeps.
	buf []common.Value
}

// Update implements Accumulator. A row contributes its argument tuple only if every argument is non-NULL.
func (a *countDistinctAccumulator) Update(row storage.Tuple) error {
	if a.source == nil {
		return a.placeholderUpdate()
	}
	args := a.source.Args()
	a.buf = a.buf[:0]
	for _, arg := range args {
		v := arg.Eval(row)
		if v.IsNull() {
			return nil
		}
		a.buf = append(a.buf, v)
	}
	return a.set.insert(a.buf)
}

func (a *countDistinctAccumulator) Merge(other Accumulator) error {
	if err := a.checkMerge(other); err != nil {
		return err
	}
	o, ok := other.(*countDistinctAccumulator)
	if !ok || !a.set.compatible(o.set) {
		return mismatch(a, other)
	}
	return a.set.union(o.set)
}

func (a *countDistinctAccumulator) Eval() (common.Value, error) {
	return common.NewIntValue(int64(a.set.len())), nil
}

func (a *countDistinctAccumulator) MarshalBinary() ([]byte, error) {
	return appendSet(a.appendHeader(nil), a.set), nil
}

func (a *countDistinctAccumulator) UnmarshalBinary(data []byte) error {
	data, err := a.readHeader(data)
	if err != nil {
		return err
	}
	set, data, err := readSet(data, a.set.limit)
	if err != nil {
		return err
	}
	if !a.set.compatible(set) {
		return corrupt("COUNT DISTINCT state over %v, want %v", set.types, a.set.types)
	}
	set.types = a.set.types
	a.set = set
	return expectEnd(data)
}
