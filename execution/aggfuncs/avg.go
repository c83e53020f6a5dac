package aggfuncs

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

// avgAccumulator keeps a running sum typed like its input and the number of non-NULL inputs.
type avgAccumulator struct {
	baseAccumulator
	// sum is nil only in a placeholder that has not merged or decoded a state yet.
	sum   common.Value
	count int64
}

func (a *avgAccumulator) Update(row storage.Tuple) error {
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
	a.count++
	return nil
}

func (a *avgAccumulator) Merge(other Accumulator) error {
	if err := a.checkMerge(other); err != nil {
		return err
	}
	o, ok := other.(*avgAccumulator)
	if !ok {
		return mismatch(a, other)
	}
	switch {
	case o.sum.IsNil():
		return nil
	case a.sum.IsNil():
		a.sum = o.sum
	default:
		if a.sum.Type() != o.sum.Type() {
			return common.NewError(common.AccumulatorTypeMismatch,
				"cannot merge AVG over %s into AVG over %s", o.sum.Type(), a.sum.Type())
		}
		sum, err := a.sum.Add(o.sum)
		if err != nil {
			return err
		}
		a.sum = sum
	}
	a.count += o.count
	return nil
}

// Eval returns cast(sum, double) / cast(count, double), or NULL when no non-NULL value was seen.
func (a *avgAccumulator) Eval() (common.Value, error) {
	if a.count == 0 {
		return common.NewNullValue(common.FloatType), nil
	}
	sum, err := a.sum.Cast(common.FloatType)
	if err != nil {
		return common.Value{}, err
	}
	return sum.Divide(common.NewFloatValue(float64(a.count)))
}

func (a *avgAccumulator) MarshalBinary() ([]byte, error) {
	buf := a.appendHeader(nil)
	if a.sum.IsNil() {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = storage.AppendValue(buf, a.sum)
	}
	return appendVarint(buf, a.count), nil
}

func (a *avgAccumulator) UnmarshalBinary(data []byte) error {
	data, err := a.readHeader(data)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return corrupt("AVG state truncated")
	}
	hasSum := data[0] == 1
	data = data[1:]
	var sum common.Value
	if hasSum {
		sum, data, err = storage.DecodeValue(data)
		if err != nil {
			return err
		}
		if !sum.Type().IsNumeric() || sum.IsNull() {
			return corrupt("AVG sum %s is not a numeric value", sum)
		}
	}
	count, data, err := readVarint(data)
	if err != nil {
		return err
	}
	if count < 0 || (count > 0 && !hasSum) {
		return corrupt("AVG count %d inconsistent with sum", count)
	}
	if a.source != nil {
		argType := a.source.Args()[0].OutputType()
		if !hasSum {
			// A built accumulator keeps its typed zero.
			sum, _ = common.ZeroValue(argType)
		} else if sum.Type() != argType {
			return corrupt("AVG sum type %s, want %s", sum.Type(), argType)
		}
	}
	a.sum, a.count = sum, count
	return expectEnd(data)
}
