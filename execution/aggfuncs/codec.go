package aggfuncs

import (
	"encoding/binary"

	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// Every encoded state starts with [kind (1)][result type (1)], so a state can be decoded without knowing
// which aggregate produced it.
const headerSize = 2

// Marshal encodes the state of acc. It is the package form of acc.MarshalBinary.
func Marshal(acc Accumulator) ([]byte, error) {
	return acc.MarshalBinary()
}

// Unmarshal decodes a state produced by Marshal into a placeholder accumulator, using the default Builder.
func Unmarshal(data []byte) (Accumulator, error) {
	return Builder{}.Unmarshal(data)
}

// Unmarshal decodes a state produced by Marshal into a placeholder accumulator whose distinct sets, if any,
// are bounded by the Builder's limit.
func (b Builder) Unmarshal(data []byte) (Accumulator, error) {
	if len(data) < headerSize {
		return nil, corrupt("accumulator state of %d bytes has no header", len(data))
	}
	acc, err := b.NewEmpty(planner.AggKind(data[0]), common.Type(data[1]))
	if err != nil {
		return nil, corrupt("bad accumulator header: %v", err)
	}
	if err := acc.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return acc, nil
}

func (b *baseAccumulator) appendHeader(buf []byte) []byte {
	return append(buf, byte(b.kind), byte(b.resultType))
}

// readHeader checks that data encodes a state of the receiver's kind and result type and returns the
// payload that follows.
func (b *baseAccumulator) readHeader(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, corrupt("%s state of %d bytes has no header", b.kind, len(data))
	}
	kind, resultType := planner.AggKind(data[0]), common.Type(data[1])
	if kind != b.kind || resultType != b.resultType {
		return nil, corrupt("state of %s(%s) cannot be decoded into %s(%s)", kind, resultType, b.kind, b.resultType)
	}
	return data[headerSize:], nil
}

func appendVarint(buf []byte, v int64) []byte {
	return binary.AppendVarint(buf, v)
}

func readVarint(data []byte) (int64, []byte, error) {
	v, n := binary.Varint(data)
	if n <= 0 {
		return 0, nil, corrupt("malformed varint")
	}
	return v, data[n:], nil
}

func readUvarint(data []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, corrupt("malformed uvarint")
	}
	return v, data[n:], nil
}

func expectEnd(data []byte) error {
	if len(data) != 0 {
		return corrupt("%d trailing bytes after accumulator state", len(data))
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return common.NewError(common.CorruptStateError, format, args...)
}

// appendSet encodes a distinct set as
// [#columns (uvarint)][column types][#entries (uvarint)][entries in ascending order].
func appendSet(buf []byte, s *distinctSet) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s.types)))
	for _, t := range s.types {
		buf = append(buf, byte(t))
	}
	buf = binary.AppendUvarint(buf, uint64(s.len()))
	s.scan(func(vals []common.Value) bool {
		for _, v := range vals {
			buf = storage.AppendValue(buf, v)
		}
		return true
	})
	return buf
}

func readSet(data []byte, limit int) (*distinctSet, []byte, error) {
	numCols, data, err := readUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	if numCols > uint64(len(data)) {
		return nil, nil, corrupt("distinct set claims %d columns in %d bytes", numCols, len(data))
	}
	var types []common.Type
	if numCols > 0 {
		types = make([]common.Type, numCols)
		for i := range types {
			types[i] = common.Type(data[i])
			if types[i] == common.DefaultType {
				return nil, nil, corrupt("distinct set column %d has no type", i)
			}
		}
		data = data[numCols:]
	}
	n, data, err := readUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	if n > 0 && types == nil {
		return nil, nil, corrupt("untyped distinct set with %d entries", n)
	}
	set := newDistinctSet(types, limit)
	vals := make([]common.Value, len(types))
	for i := uint64(0); i < n; i++ {
		tuple, rest, err := storage.DecodeTuple(data, len(types))
		if err != nil {
			return nil, nil, err
		}
		data = rest
		for j := range vals {
			v := tuple.GetValue(j)
			if v.IsNull() || v.Type() != types[j] {
				return nil, nil, corrupt("distinct entry %s does not fit column type %s", v, types[j])
			}
			vals[j] = v
		}
		if err := set.insert(vals); err != nil {
			return nil, nil, err
		}
	}
	return set, data, nil
}
