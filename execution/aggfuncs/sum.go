package aggfuncs

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

// sumAccumulator keeps a running sum typed like its input. NULL inputs are skipped, so the sum of no values
// is the zero of the type.
type sumAccumulator struct {
	baseAccumulator
	sum common.Value
}

func (a *sumAccumulator) Update(row storage.Tuple) error {
	v, err := a.arg(row)
	if err != nil {
		return err
	}
	if v.IsNull() {
		return nil
	}
	sum, err := a.sum.Add(v)
	if err != nil {
		return err
	}
	a.sum = sum
	return nil
}

func (a *sumAccumulator) Merge(other Accumulator) error {
	if err := a.checkMerge(other); err != nil {
		return err
	}
	o, ok := other.(*sumAccumulator)
	if !ok {
		return mismatch(a, other)
	}
	sum, err := a.sum.Add(o.sum)
	if err != nil {
		return err
	}
	a.sum = sum
	return nil
}

func (a *sumAccumulator) Eval() (common.Value, error) {
	return a.sum, nil
}

func (a *sumAccumulator) MarshalBinary() ([]byte, error) {
	buf := a.appendHeader(nil)
	return storage.AppendValue(buf, a.sum), nil
}

func (a *sumAccumulator) UnmarshalBinary(data []byte) error {
	data, err := a.readHeader(data)
	if err != nil {
		return err
	}
	sum, data, err := storage.DecodeValue(data)
	if err != nil {
		return err
	}
	if sum.Type() != a.resultType || sum.IsNull() {
		return corrupt("SUM state %s does not fit %s", sum, a.resultType)
	}
	a.sum = sum
	return expectEnd(data)
}
