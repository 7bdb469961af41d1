package netcdf

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	tagDimension = 0x0A
	tagVariable  = 0x0B
	tagAttribute = 0x0C

	versionClassic      = 1
	version64BitOffsets = 2
)

// Fill values used to pad byte and short data to a 4-byte boundary.
const (
	fillByte  = 0x81   // -127
	fillShort = 0x8001 // -32767
)

// MarshalBinary encodes the dataset in the classic format. Version 1 is used
// unless offsets exceed 32 bits.
func (d *Dataset) MarshalBinary() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	vsizes := make([]int64, len(d.Vars))
	var dataLen int64
	for i, v := range d.Vars {
		t, n, _ := dataType(v.Data)
		vsizes[i] = pad4(int64(n) * int64(t.size()))
		if vsizes[i] > math.MaxUint32 {
			return nil, fmt.Errorf("%w: variable %q is larger than 4 GiB", ErrUnrepresentable, v.Name)
		}
		dataLen += vsizes[i]
	}

	version := byte(versionClassic)
	hdrLen := int64(len(d.appendHeader(nil, version, nil)))
	if hdrLen+dataLen > math.MaxInt32 {
		version = version64BitOffsets
		hdrLen = int64(len(d.appendHeader(nil, version, nil)))
	}

	begins := make([]int64, len(d.Vars))
	offset := hdrLen
	for i := range d.Vars {
		begins[i] = offset
		offset += vsizes[i]
	}

	buf := make([]byte, 0, offset)
	buf = d.appendHeader(buf, version, begins)
	for _, v := range d.Vars {
		buf = appendData(buf, v.Data)
	}
	return buf, nil
}

// appendHeader encodes the header. A nil begins slice writes zero offsets,
// which is enough to measure the header.
func (d *Dataset) appendHeader(buf []byte, version byte, begins []int64) []byte {
	buf = append(buf, 'C', 'D', 'F', version)
	buf = appendInt32(buf, 0) // numrecs

	if len(d.Dims) == 0 {
		buf = appendAbsent(buf)
	} else {
		buf = appendInt32(buf, tagDimension)
		buf = appendInt32(buf, int32(len(d.Dims)))
		for _, dim := range d.Dims {
			buf = appendName(buf, dim.Name)
			buf = appendInt32(buf, int32(dim.Len))
		}
	}

	buf = appendAttrList(buf, d.Attrs)

	if len(d.Vars) == 0 {
		return appendAbsent(buf)
	}
	buf = appendInt32(buf, tagVariable)
	buf = appendInt32(buf, int32(len(d.Vars)))
	for i, v := range d.Vars {
		buf = appendName(buf, v.Name)
		buf = appendInt32(buf, int32(len(v.Dims)))
		for _, name := range v.Dims {
			buf = appendInt32(buf, int32(d.dimID(name)))
		}
		buf = appendAttrList(buf, v.Attrs)

		t, n, _ := dataType(v.Data)
		buf = appendInt32(buf, int32(t))
		buf = binary.BigEndian.AppendUint32(buf, uint32(pad4(int64(n)*int64(t.size()))))

		var begin int64
		if begins != nil {
			begin = begins[i]
		}
		if version == versionClassic {
			buf = appendInt32(buf, int32(begin))
		} else {
			buf = binary.BigEndian.AppendUint64(buf, uint64(begin))
		}
	}
	return buf
}

func (d *Dataset) dimID(name string) int {
	for i, dim := range d.Dims {
		if dim.Name == name {
			return i
		}
	}
	return -1
}

func appendAttrList(buf []byte, attrs []Attribute) []byte {
	if len(attrs) == 0 {
		return appendAbsent(buf)
	}
	buf = appendInt32(buf, tagAttribute)
	buf = appendInt32(buf, int32(len(attrs)))
	for _, a := range attrs {
		t, n, _ := attrType(a.Value)
		buf = appendName(buf, a.Name)
		buf = appendInt32(buf, int32(t))
		buf = appendInt32(buf, int32(n))
		start := len(buf)
		buf = appendValues(buf, a.Value)
		buf = appendPadding(buf, len(buf)-start, 0)
	}
	return buf
}

// appendData encodes variable data padded with the type's fill value.
func appendData(buf []byte, data any) []byte {
	start := len(buf)
	buf = appendValues(buf, data)
	n := len(buf) - start
	switch data.(type) {
	case []int8:
		return appendPadding(buf, n, fillByte)
	case []int16:
		for n%4 != 0 {
			buf = binary.BigEndian.AppendUint16(buf, fillShort)
			n += 2
		}
		return buf
	default:
		return appendPadding(buf, n, 0)
	}
}

func appendValues(buf []byte, value any) []byte {
	switch v := value.(type) {
	case string:
		return append(buf, v...)
	case []int8:
		for _, x := range v {
			buf = append(buf, byte(x))
		}
	case int16:
		buf = binary.BigEndian.AppendUint16(buf, uint16(v))
	case []int16:
		for _, x := range v {
			buf = binary.BigEndian.AppendUint16(buf, uint16(x))
		}
	case int32:
		buf = appendInt32(buf, v)
	case []int32:
		for _, x := range v {
			buf = appendInt32(buf, x)
		}
	case float32:
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
	case []float32:
		for _, x := range v {
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(x))
		}
	case float64:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
	case []float64:
		for _, x := range v {
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(x))
		}
	}
	return buf
}

func appendName(buf []byte, name string) []byte {
	buf = appendInt32(buf, int32(len(name)))
	buf = append(buf, name...)
	return appendPadding(buf, len(name), 0)
}

func appendAbsent(buf []byte) []byte {
	return appendInt32(appendInt32(buf, 0), 0)
}

func appendInt32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

func appendPadding(buf []byte, n int, fill byte) []byte {
	for ; n%4 != 0; n++ {
		buf = append(buf, fill)
	}
	return buf
}

func pad4(n int64) int64 {
	return (n + 3) &^ 3
}
