package netcdf

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// ReadFile decodes the classic-format file at path.
func ReadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses a classic-format file with fixed-size variables only.
func Decode(data []byte) (*Dataset, error) {
	r := &reader{buf: data}

	magic := r.bytes(4)
	if r.err != nil || string(magic[:3]) != "CDF" {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	version := magic[3]
	if version != versionClassic && version != version64BitOffsets {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}
	if numrecs := r.int32(); numrecs != 0 {
		return nil, fmt.Errorf("%w: record variables are not supported", ErrFormat)
	}

	ds := &Dataset{}

	n := r.listHeader(tagDimension)
	for range n {
		dim := Dimension{Name: r.name(), Len: int(r.int32())}
		if dim.Len <= 0 {
			return nil, fmt.Errorf("%w: unlimited dimension %q is not supported", ErrFormat, dim.Name)
		}
		ds.Dims = append(ds.Dims, dim)
	}

	ds.Attrs = r.attrList()

	n = r.listHeader(tagVariable)
	for range n {
		v := Variable{Name: r.name()}
		count := 1
		ndims := int(r.int32())
		for range ndims {
			id := int(r.int32())
			if id < 0 || id >= len(ds.Dims) {
				return nil, fmt.Errorf("%w: variable %q references dimension %d", ErrFormat, v.Name, id)
			}
			v.Dims = append(v.Dims, ds.Dims[id].Name)
			count *= ds.Dims[id].Len
		}
		v.Attrs = r.attrList()
		t := Type(r.int32())
		r.int32() // vsize, recomputed from shape

		var begin int64
		if version == versionClassic {
			begin = int64(r.int32())
		} else {
			begin = int64(r.uint64())
		}
		if r.err != nil {
			return nil, r.err
		}
		if begin < 0 || begin > int64(len(data)) {
			return nil, fmt.Errorf("%w: variable %q begins at %d", ErrFormat, v.Name, begin)
		}

		dr := &reader{buf: data, off: int(begin)}
		v.Data = dr.values(t, count)
		if dr.err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, dr.err)
		}
		ds.Vars = append(ds.Vars, v)
	}

	if r.err != nil {
		return nil, r.err
	}
	return ds, nil
}

// reader is a sticky-error cursor over the file bytes.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) bytes(n int) []byte {
	if n < 0 {
		n = 0
	}
	if r.err != nil {
		return make([]byte, n)
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: truncated at offset %d", ErrFormat, r.off)
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) int32() int32 {
	return int32(binary.BigEndian.Uint32(r.bytes(4)))
}

func (r *reader) uint64() uint64 {
	return binary.BigEndian.Uint64(r.bytes(8))
}

func (r *reader) skipPadding(n int) {
	if rem := n % 4; rem != 0 {
		r.bytes(4 - rem)
	}
}

func (r *reader) name() string {
	n := int(r.int32())
	if n < 0 || n > maxNameLen {
		if r.err == nil {
			r.err = fmt.Errorf("%w: name length %d", ErrFormat, n)
		}
		return ""
	}
	s := string(r.bytes(n))
	r.skipPadding(n)
	return s
}

// listHeader reads either ABSENT or the given tag followed by an element count.
func (r *reader) listHeader(tag int32) int {
	t := r.int32()
	n := int(r.int32())
	if r.err != nil {
		return 0
	}
	if t == 0 && n == 0 {
		return 0
	}
	if t != tag || n < 0 {
		r.err = fmt.Errorf("%w: expected list tag %#x, got %#x", ErrFormat, tag, t)
		return 0
	}
	return n
}

func (r *reader) attrList() []Attribute {
	n := r.listHeader(tagAttribute)
	var attrs []Attribute
	for range n {
		name := r.name()
		t := Type(r.int32())
		count := int(r.int32())
		start := r.off
		value := r.values(t, count)
		r.skipPadding(r.off - start)
		if r.err != nil {
			return attrs
		}
		attrs = append(attrs, Attribute{Name: name, Value: scalarAttr(value)})
	}
	return attrs
}

// values reads count values of type t. Char data is returned as a string.
func (r *reader) values(t Type, count int) any {
	if count < 0 || (t.size() > 0 && count > len(r.buf)/t.size()) {
		r.err = fmt.Errorf("%w: %d values of %s", ErrFormat, count, t)
		return nil
	}
	switch t {
	case Char:
		return string(r.bytes(count))
	case Byte:
		out := make([]int8, count)
		for i, b := range r.bytes(count) {
			out[i] = int8(b)
		}
		return out
	case Short:
		out := make([]int16, count)
		for i := range out {
			out[i] = int16(binary.BigEndian.Uint16(r.bytes(2)))
		}
		return out
	case Int:
		out := make([]int32, count)
		for i := range out {
			out[i] = r.int32()
		}
		return out
	case Float:
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(r.bytes(4)))
		}
		return out
	case Double:
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(r.uint64())
		}
		return out
	default:
		r.err = fmt.Errorf("%w: unknown type %d", ErrFormat, int32(t))
		return nil
	}
}

// scalarAttr unwraps single-element numeric attributes so they decode to the
// same Go values Attribute accepts for encoding.
func scalarAttr(v any) any {
	switch x := v.(type) {
	case []int16:
		if len(x) == 1 {
			return x[0]
		}
	case []int32:
		if len(x) == 1 {
			return x[0]
		}
	case []float32:
		if len(x) == 1 {
			return x[0]
		}
	case []float64:
		if len(x) == 1 {
			return x[0]
		}
	}
	return v
}
