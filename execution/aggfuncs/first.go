package aggfuncs

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

// firstAccumulator keeps the first non-NULL value it sees. Merge only fills an unset state, so when two
// partitions both saw a value the one merged first wins: the result is the first row's value only if
// partial states are merged in row order.
type firstAccumulator struct {
	baseAccumulator
	value common.Value
	set   bool
}

func (a *firstAccumulator) Update(row storage.Tuple) error {
	if a.source == nil {
		return a.placeholderUpdate()
	}
	if a.set {
		return nil
	}
	v := a.source.Args()[0].Eval(row)
	if v.IsNull() {
		return nil
	}
	a.value, a.set = v, true
	return nil
}

func (a *firstAccumulator) Merge(other Accumulator) error {
	if err := a.checkMerge(other); err != nil {
		return err
	}
	o, ok := other.(*firstAccumulator)
	if !ok {
		return mismatch(a, other)
	}
	if !a.set && o.set {
		a.value, a.set = o.value, true
	}
	return nil
}

func (a *firstAccumulator) Eval() (common.Value, error) {
	if !a.set {
		return common.NewNullValue(a.resultType), nil
	}
	return a.value, nil
}

func (a *firstAccumulator) MarshalBinary() ([]byte, error) {
	buf := a.appendHeader(nil)
	if !a.set {
		return append(buf, 0), nil
	}
	buf = append(buf, 1)
	return storage.AppendValue(buf, a.value), nil
}

func (a *firstAccumulator) UnmarshalBinary(data []byte) error {
	data, err := a.readHeader(data)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return corrupt("FIRST state truncated")
	}
	if data[0] == 0 {
		a.value, a.set = common.Value{}, false
		return expectEnd(data[1:])
	}
	v, rest, err := storage.DecodeValue(data[1:])
	if err != nil {
		return err
	}
	if v.Type() != a.resultType || v.IsNull() {
		return corrupt("FIRST state %s does not fit %s", v, a.resultType)
	}
	a.value, a.set = v, true
	return expectEnd(rest)
}
