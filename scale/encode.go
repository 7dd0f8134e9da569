// Package scale implements the SCALE binary codec used by Substrate chains:
// little-endian fixed-width integers, compact variable-width integers,
// length-prefixed vectors and tagged enums.
package scale

import (
	"encoding/binary"
	"io"
	"math/bits"
	"reflect"
)

// Marshaler is implemented by types with a custom SCALE encoding, such as
// tagged enums.
type Marshaler interface {
	MarshalSCALE(w *Writer) error
}

// Writer accumulates SCALE-encoded output.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded output.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// PutU8 appends a single byte.
func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

// PutU16 appends a little-endian uint16.
func (w *Writer) PutU16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

// PutU32 appends a little-endian uint32.
func (w *Writer) PutU32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

// PutU64 appends a little-endian uint64.
func (w *Writer) PutU64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// PutBool appends a bool as 0x00 or 0x01.
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutU8(1)
		return
	}
	w.PutU8(0)
}

// PutRaw appends b without a length prefix.
func (w *Writer) PutRaw(b []byte) { w.buf = append(w.buf, b...) }

// PutBytes appends b with a compact length prefix.
func (w *Writer) PutBytes(b []byte) {
	w.PutCompact(uint64(len(b)))
	w.PutRaw(b)
}

// PutCompact appends v in compact encoding.
func (w *Writer) PutCompact(v uint64) {
	w.buf = AppendCompact(w.buf, v)
}

// AppendCompact appends the compact encoding of v to dst.
func AppendCompact(dst []byte, v uint64) []byte {
	switch {
	case v < 1<<6:
		return append(dst, byte(v<<2))
	case v < 1<<14:
		return binary.LittleEndian.AppendUint16(dst, uint16(v<<2)|0b01)
	case v < 1<<30:
		return binary.LittleEndian.AppendUint32(dst, uint32(v<<2)|0b10)
	default:
		n := (bits.Len64(v) + 7) / 8
		dst = append(dst, byte((n-4)<<2)|0b11)
		for i := 0; i < n; i++ {
			dst = append(dst, byte(v>>(8*i)))
		}
		return dst
	}
}

// Encode writes the SCALE encoding of val to w.
func Encode(w io.Writer, val interface{}) error {
	b, err := EncodeToBytes(val)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// EncodeToBytes returns the SCALE encoding of val.
//
// Supported: bool, unsigned and signed integers (fixed width), string,
// []byte (length-prefixed), [N]byte (raw), slices (length-prefixed),
// arrays, structs (exported fields in order), pointers (Option: nil is
// 0x00, otherwise 0x01 followed by the value) and Marshaler. A struct
// field tagged `scale:"compact"` is written as a compact integer.
func EncodeToBytes(val interface{}) ([]byte, error) {
	w := NewWriter()
	if err := w.encodeValue(reflect.ValueOf(val), false); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

var marshalerType = reflect.TypeOf((*Marshaler)(nil)).Elem()

func (w *Writer) encodeValue(v reflect.Value, compact bool) error {
	if !v.IsValid() {
		return ErrUnsupportedType
	}
	if v.Type().Implements(marshalerType) {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return ErrUnsupportedType
		}
		return v.Interface().(Marshaler).MarshalSCALE(w)
	}
	if v.CanAddr() && v.Addr().Type().Implements(marshalerType) {
		return v.Addr().Interface().(Marshaler).MarshalSCALE(w)
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return ErrUnsupportedType
		}
		return w.encodeValue(v.Elem(), compact)

	case reflect.Ptr:
		if v.IsNil() {
			w.PutU8(0)
			return nil
		}
		w.PutU8(1)
		return w.encodeValue(v.Elem(), compact)

	case reflect.Bool:
		w.PutBool(v.Bool())
		return nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if compact {
			w.PutCompact(v.Uint())
			return nil
		}
		w.putFixed(v.Uint(), v.Type().Size())
		return nil

	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.putFixed(uint64(v.Int()), v.Type().Size())
		return nil

	case reflect.String:
		w.PutBytes([]byte(v.String()))
		return nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			w.PutBytes(v.Bytes())
			return nil
		}
		w.PutCompact(uint64(v.Len()))
		return w.encodeElems(v)

	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			for i := 0; i < v.Len(); i++ {
				w.PutU8(uint8(v.Index(i).Uint()))
			}
			return nil
		}
		return w.encodeElems(v)

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("scale") == "-" {
				continue
			}
			if err := w.encodeValue(v.Field(i), f.Tag.Get("scale") == "compact"); err != nil {
				return err
			}
		}
		return nil

	default:
		return ErrUnsupportedType
	}
}

func (w *Writer) encodeElems(v reflect.Value) error {
	for i := 0; i < v.Len(); i++ {
		if err := w.encodeValue(v.Index(i), false); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) putFixed(u uint64, size uintptr) {
	switch size {
	case 1:
		w.PutU8(uint8(u))
	case 2:
		w.PutU16(uint16(u))
	case 4:
		w.PutU32(uint32(u))
	default:
		w.PutU64(u)
	}
}
