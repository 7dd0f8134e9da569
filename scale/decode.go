package scale

import (
	"encoding/binary"
	"io"
	"reflect"
)

// Unmarshaler is implemented by types with a custom SCALE decoding.
type Unmarshaler interface {
	UnmarshalSCALE(r *Reader) error
}

// Reader provides sequential access to SCALE-encoded data. Every read
// checks the remaining input first and returns io.ErrUnexpectedEOF when it
// is too short, so malformed input never panics.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over b. The slice is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{data: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.pos }

// Done returns ErrTrailingBytes if any input is left unread.
func (r *Reader) Done() error {
	if r.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

// Raw reads exactly n bytes. The returned slice aliases the input.
func (r *Reader) Raw(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.Raw(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.Raw(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Raw(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	b, err := r.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Bool reads a strict 0x00/0x01 bool.
func (r *Reader) Bool() (bool, error) {
	b, err := r.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

// Compact reads a canonical compact integer.
func (r *Reader) Compact() (uint64, error) {
	first, err := r.U8()
	if err != nil {
		return 0, err
	}
	switch first & 0b11 {
	case 0b00:
		return uint64(first >> 2), nil
	case 0b01:
		b, err := r.U8()
		if err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint16([]byte{first, b})) >> 2
		if v < 1<<6 {
			return 0, ErrNonCanonicalCompact
		}
		return v, nil
	case 0b10:
		rest, err := r.Raw(3)
		if err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint32([]byte{first, rest[0], rest[1], rest[2]})) >> 2
		if v < 1<<14 {
			return 0, ErrNonCanonicalCompact
		}
		return v, nil
	default:
		n := int(first>>2) + 4
		if n > 8 {
			return 0, ErrCompactOverflow
		}
		b, err := r.Raw(n)
		if err != nil {
			return 0, err
		}
		if b[n-1] == 0 {
			return 0, ErrNonCanonicalCompact
		}
		var v uint64
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		if v < 1<<30 {
			return 0, ErrNonCanonicalCompact
		}
		return v, nil
	}
}

// Length reads a compact length prefix and checks that at least
// length*minElem bytes remain, which bounds allocations driven by
// attacker-controlled prefixes.
func (r *Reader) Length(minElem int) (int, error) {
	n, err := r.Compact()
	if err != nil {
		return 0, err
	}
	if minElem < 1 {
		minElem = 1
	}
	if n > uint64(r.Remaining()/minElem) {
		return 0, ErrLengthTooLarge
	}
	return int(n), nil
}

// Bytes reads a length-prefixed byte vector. The result is a copy.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Length(1)
	if err != nil {
		return nil, err
	}
	b, err := r.Raw(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Option reads an Option tag and reports whether a value follows.
func (r *Reader) Option() (bool, error) {
	tag, err := r.U8()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidOption
	}
}

// Decode reads a SCALE value from rd into the value pointed to by val.
func Decode(rd io.Reader, val interface{}) error {
	data, err := io.ReadAll(rd)
	if err != nil {
		return err
	}
	return DecodeBytes(data, val)
}

// DecodeBytes decodes b into the value pointed to by val. The whole input
// must be consumed.
func DecodeBytes(b []byte, val interface{}) error {
	r := NewReader(b)
	if err := r.Decode(val); err != nil {
		return err
	}
	return r.Done()
}

// Decode reads the next value into the value pointed to by val, leaving any
// remaining input unread.
func (r *Reader) Decode(val interface{}) error {
	v := reflect.ValueOf(val)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrNotPointer
	}
	return r.decodeInto(v.Elem(), false)
}

var unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()

func (r *Reader) decodeInto(v reflect.Value, compact bool) error {
	if v.CanAddr() && v.Addr().Type().Implements(unmarshalerType) {
		return v.Addr().Interface().(Unmarshaler).UnmarshalSCALE(r)
	}

	switch v.Kind() {
	case reflect.Ptr:
		some, err := r.Option()
		if err != nil {
			return err
		}
		if !some {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		elem := reflect.New(v.Type().Elem())
		if err := r.decodeInto(elem.Elem(), compact); err != nil {
			return err
		}
		v.Set(elem)
		return nil

	case reflect.Bool:
		b, err := r.Bool()
		if err != nil {
			return err
		}
		v.SetBool(b)
		return nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var u uint64
		var err error
		if compact {
			u, err = r.Compact()
			if err == nil && v.OverflowUint(u) {
				err = ErrCompactOverflow
			}
		} else {
			u, err = r.fixed(v.Type().Size())
		}
		if err != nil {
			return err
		}
		v.SetUint(u)
		return nil

	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		u, err := r.fixed(v.Type().Size())
		if err != nil {
			return err
		}
		switch v.Type().Size() {
		case 1:
			v.SetInt(int64(int8(u)))
		case 2:
			v.SetInt(int64(int16(u)))
		case 4:
			v.SetInt(int64(int32(u)))
		default:
			v.SetInt(int64(u))
		}
		return nil

	case reflect.String:
		b, err := r.Bytes()
		if err != nil {
			return err
		}
		v.SetString(string(b))
		return nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := r.Bytes()
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}
		n, err := r.Length(1)
		if err != nil {
			return err
		}
		s := reflect.MakeSlice(v.Type(), n, n)
		for i := 0; i < n; i++ {
			if err := r.decodeInto(s.Index(i), false); err != nil {
				return err
			}
		}
		v.Set(s)
		return nil

	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := r.Raw(v.Len())
			if err != nil {
				return err
			}
			reflect.Copy(v, reflect.ValueOf(b))
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := r.decodeInto(v.Index(i), false); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("scale") == "-" {
				continue
			}
			if err := r.decodeInto(v.Field(i), f.Tag.Get("scale") == "compact"); err != nil {
				return err
			}
		}
		return nil

	default:
		return ErrUnsupportedType
	}
}

func (r *Reader) fixed(size uintptr) (uint64, error) {
	switch size {
	case 1:
		v, err := r.U8()
		return uint64(v), err
	case 2:
		v, err := r.U16()
		return uint64(v), err
	case 4:
		v, err := r.U32()
		return uint64(v), err
	default:
		return r.U64()
	}
}
