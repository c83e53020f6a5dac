package storage

import (
	"encoding/binary"
	"math"

	"github.com/shopspring/decimal"
	"mit.edu/dsg/aggengine/common"
)

const (
	flagNull byte = 1 << iota
)

// canonicalNaN is the bit pattern every NaN is encoded with, so that NaNs, which compare equal to each
// other, also produce equal keys.
const canonicalNaN = 0x7FF8000000000001

// AppendValue appends the self-describing binary encoding of v to buf and returns the extended buffer.
//
// Layout: [type tag (1)][flags (1)][payload]. Payload is absent for NULL, 8 little-endian bytes for int and
// double, and a uvarint length followed by the bytes for decimal (canonical string form) and string.
//
// Values that compare equal encode to identical bytes (decimal 1.0 and 1.00, double -0 and 0), so the
// encoding doubles as a hash/group key.
func AppendValue(buf []byte, v common.Value) []byte {
	common.Assert(!v.IsNil(), "cannot encode an uninitialized value")
	buf = append(buf, byte(v.Type()))
	if v.IsNull() {
		return append(buf, flagNull)
	}
	buf = append(buf, 0)

	switch v.Type() {
	case common.IntType:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.IntValue()))
	case common.FloatType:
		f := v.FloatValue()
		var bits uint64
		switch {
		case math.IsNaN(f):
			bits = canonicalNaN
		case f == 0:
			bits = 0
		default:
			bits = math.Float64bits(f)
		}
		buf = binary.LittleEndian.AppendUint64(buf, bits)
	case common.DecimalType:
		buf = appendBytes(buf, v.DecimalValue().String())
	case common.StringType:
		buf = appendBytes(buf, v.StringValue())
	default:
		common.Assert(false, "unknown value type %d", v.Type())
	}
	return buf
}

func appendBytes(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// DecodeValue decodes one value produced by AppendValue from the front of data and returns it along with
// the remaining bytes.
func DecodeValue(data []byte) (common.Value, []byte, error) {
	if len(data) < 2 {
		return common.Value{}, nil, corrupt("value header truncated")
	}
	t := common.Type(data[0])
	flags := data[1]
	data = data[2:]
	switch t {
	case common.IntType, common.FloatType, common.DecimalType, common.StringType:
	default:
		return common.Value{}, nil, corrupt("unknown type tag %d", t)
	}
	if flags&flagNull != 0 {
		return common.NewNullValue(t), data, nil
	}

	switch t {
	case common.IntType, common.FloatType:
		if len(data) < 8 {
			return common.Value{}, nil, corrupt("%s payload truncated", t)
		}
		bits := binary.LittleEndian.Uint64(data)
		if t == common.IntType {
			return common.NewIntValue(int64(bits)), data[8:], nil
		}
		return common.NewFloatValue(math.Float64frombits(bits)), data[8:], nil
	default:
		s, rest, err := decodeBytes(data)
		if err != nil {
			return common.Value{}, nil, err
		}
		if t == common.StringType {
			return common.NewStringValue(s), rest, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return common.Value{}, nil, corrupt("bad decimal %q", s)
		}
		return common.NewDecimalValue(d), rest, nil
	}
}

func decodeBytes(data []byte) (string, []byte, error) {
	n, k := binary.Uvarint(data)
	if k <= 0 {
		return "", nil, corrupt("bad length prefix")
	}
	data = data[k:]
	if uint64(len(data)) < n {
		return "", nil, corrupt("payload truncated: want %d bytes, have %d", n, len(data))
	}
	return string(data[:n]), data[n:], nil
}

// EncodeTuple appends the encoding of every field of t to buf.
func EncodeTuple(buf []byte, t Tuple) []byte {
	for _, v := range t.values {
		buf = AppendValue(buf, v)
	}
	return buf
}

// EncodeKey appends the encoding of values to buf. It is the group-by and distinct-set key.
func EncodeKey(buf []byte, values ...common.Value) []byte {
	for _, v := range values {
		buf = AppendValue(buf, v)
	}
	return buf
}

// DecodeTuple decodes exactly n values from data.
func DecodeTuple(data []byte, n int) (Tuple, []byte, error) {
	values := make([]common.Value, n)
	for i := 0; i < n; i++ {
		v, rest, err := DecodeValue(data)
		if err != nil {
			return Tuple{}, nil, err
		}
		values[i] = v
		data = rest
	}
	return FromValues(values...), data, nil
}

func corrupt(format string, args ...any) error {
	return common.NewError(common.CorruptStateError, format, args...)
}
