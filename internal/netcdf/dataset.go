package netcdf

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// Type is a NetCDF classic external data type.
type Type int32

const (
	Byte   Type = 1
	Char   Type = 2
	Short  Type = 3
	Int    Type = 4
	Float  Type = 5
	Double Type = 6
)

func (t Type) String() string {
	switch t {
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("type(%d)", int32(t))
	}
}

// size returns the encoded width of one value.
func (t Type) size() int {
	switch t {
	case Byte, Char:
		return 1
	case Short:
		return 2
	case Int, Float:
		return 4
	case Double:
		return 8
	default:
		return 0
	}
}

// ErrUnrepresentable is returned when a dataset cannot be expressed in the
// classic format.
var ErrUnrepresentable = errors.New("netcdf: unrepresentable dataset")

// ErrFormat is returned when decoding bytes that are not a supported
// classic-format file.
var ErrFormat = errors.New("netcdf: malformed file")

// maxNameLen caps dimension, attribute and variable names. The format
// allows longer names; the NetCDF C library does not.
const maxNameLen = 256

// Dimension is a named, fixed-length axis.
type Dimension struct {
	Name string
	Len  int
}

// Attribute is a named value attached to a variable or to the dataset.
// Value must be one of: string, []int8, int16, []int16, int32, []int32,
// float32, []float32, float64, []float64.
type Attribute struct {
	Name  string
	Value any
}

// Variable is a named array shaped by Dims. Data must be one of: string
// (char), []int8, []int16, []int32, []float32, []float64.
type Variable struct {
	Name  string
	Dims  []string
	Attrs []Attribute
	Data  any
}

// Dataset is a complete classic-format file.
type Dataset struct {
	Dims  []Dimension
	Attrs []Attribute
	Vars  []Variable
}

// Var returns the variable with the given name.
func (d *Dataset) Var(name string) (*Variable, bool) {
	for i := range d.Vars {
		if d.Vars[i].Name == name {
			return &d.Vars[i], true
		}
	}
	return nil, false
}

// Attr returns the global attribute with the given name.
func (d *Dataset) Attr(name string) (any, bool) {
	return findAttr(d.Attrs, name)
}

// Attr returns the variable attribute with the given name.
func (v *Variable) Attr(name string) (any, bool) {
	return findAttr(v.Attrs, name)
}

// Float64s returns the data of a double variable.
func (d *Dataset) Float64s(name string) ([]float64, error) {
	v, ok := d.Var(name)
	if !ok {
		return nil, fmt.Errorf("netcdf: no variable %q", name)
	}
	data, ok := v.Data.([]float64)
	if !ok {
		return nil, fmt.Errorf("netcdf: variable %q is %T, not []float64", name, v.Data)
	}
	return data, nil
}

// StringAttr returns a char global attribute.
func (d *Dataset) StringAttr(name string) (string, bool) {
	v, ok := d.Attr(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func findAttr(attrs []Attribute, name string) (any, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// Validate checks that the dataset can be encoded.
func (d *Dataset) Validate() error {
	dimIndex := make(map[string]int, len(d.Dims))
	for _, dim := range d.Dims {
		if err := checkName(dim.Name); err != nil {
			return err
		}
		if _, dup := dimIndex[dim.Name]; dup {
			return fmt.Errorf("%w: duplicate dimension %q", ErrUnrepresentable, dim.Name)
		}
		if dim.Len <= 0 || int64(dim.Len) > math.MaxInt32 {
			return fmt.Errorf("%w: dimension %q has length %d", ErrUnrepresentable, dim.Name, dim.Len)
		}
		dimIndex[dim.Name] = dim.Len
	}

	if err := checkAttrs(d.Attrs); err != nil {
		return err
	}

	seen := make(map[string]bool, len(d.Vars))
	for _, v := range d.Vars {
		if err := checkName(v.Name); err != nil {
			return err
		}
		if seen[v.Name] {
			return fmt.Errorf("%w: duplicate variable %q", ErrUnrepresentable, v.Name)
		}
		seen[v.Name] = true

		want := 1
		for _, name := range v.Dims {
			n, ok := dimIndex[name]
			if !ok {
				return fmt.Errorf("%w: variable %q uses unknown dimension %q", ErrUnrepresentable, v.Name, name)
			}
			want *= n
		}
		t, n, err := dataType(v.Data)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		if n != want {
			return fmt.Errorf("%w: variable %q has %d %s values, shape needs %d", ErrUnrepresentable, v.Name, n, t, want)
		}
		if err := checkAttrs(v.Attrs); err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
	}
	return nil
}

func checkAttrs(attrs []Attribute) error {
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if err := checkName(a.Name); err != nil {
			return err
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate attribute %q", ErrUnrepresentable, a.Name)
		}
		seen[a.Name] = true
		if _, _, err := attrType(a.Value); err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
	}
	return nil
}

func checkName(name string) error {
	if name == "" || len(name) > maxNameLen || !utf8.ValidString(name) {
		return fmt.Errorf("%w: invalid name %q", ErrUnrepresentable, name)
	}
	return nil
}

// dataType maps variable data to its external type and element count.
func dataType(data any) (Type, int, error) {
	switch v := data.(type) {
	case string:
		return Char, len(v), nil
	case []int8:
		return Byte, len(v), nil
	case []int16:
		return Short, len(v), nil
	case []int32:
		return Int, len(v), nil
	case []float32:
		return Float, len(v), nil
	case []float64:
		return Double, len(v), nil
	default:
		return 0, 0, fmt.Errorf("%w: unsupported data type %T", ErrUnrepresentable, data)
	}
}

// attrType maps an attribute value to its external type and element count.
func attrType(value any) (Type, int, error) {
	switch v := value.(type) {
	case int16:
		return Short, 1, nil
	case int32:
		return Int, 1, nil
	case float32:
		return Float, 1, nil
	case float64:
		return Double, 1, nil
	default:
		return dataType(v)
	}
}
