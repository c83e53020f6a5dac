package aggfuncs

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

type countAccumulator struct {
	baseAccumulator
	count int64
}

// Update implements Accumulator. Rows on which the argument is NULL are not counted.
func (a *countAccumulator) Update(row storage.Tuple) error {
	v, err := a.arg(row)
	if err != nil {
		return err
	}
	if !v.IsNull() {
		a.count++
	}
	return nil
}

func (a *countAccumulator) Merge(other Accumulator) error {
	if err := a.checkMerge(other); err != nil {
		return err
	}
	o, ok := other.(*countAccumulator)
	if !ok {
		return mismatch(a, other)
	}
	a.count += o.count
	return nil
}

func (a *countAccumulator) Eval() (common.Value, error) {
	return common.NewIntValue(a.count), nil
}

func (a *countAccumulator) MarshalBinary() ([]byte, error) {
	buf := a.appendHeader(nil)
	return appendVarint(buf, a.count), nil
}

func (a *countAccumulator) UnmarshalBinary(data []byte) error {
	data, err := a.readHeader(data)
	if err != nil {
		return err
	}
	count, data, err := readVarint(data)
	if err != nil {
		return err
	}
	if count < 0 {
		return corrupt("negative count %d", count)
	}
	a.count = count
	return expectEnd(data)
}
