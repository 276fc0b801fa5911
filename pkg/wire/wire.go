// Package wire hand-encodes the gravity.v1 protobuf messages the bridge core exchanges.
// Fields are appended in ascending field-number order; zero values are omitted as proto3 does.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshaler is implemented by every hand-encoded outbound message.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Message is implemented by types that are both sent and received.
type Message interface {
	Marshaler
	Unmarshal([]byte) error
}

// Field is a single decoded tag/value pair.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// String returns the length-delimited payload as a string.
func (f Field) String() string { return string(f.Bytes) }

// Bool returns the varint payload as a bool.
func (f Field) Bool() bool { return f.Varint != 0 }

// Expect returns an error when the field does not carry the wire type t.
func (f Field) Expect(t protowire.Type) error {
	if f.Type != t {
		return fmt.Errorf("field %d: wire type %d, want %d", f.Num, f.Type, t)
	}
	return nil
}

// Walk calls fn for every field in b. Fixed32/fixed64/group fields are skipped.
func Walk(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("consume tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			f.Varint, n = v, m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			f.Bytes, n = v, m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			continue
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// AppendUint64 appends a varint field, omitting zero.
func AppendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBool appends a bool field, omitting false.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

// AppendString appends a string field, omitting "".
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendBytes appends a bytes field, omitting empty.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendMessage appends an embedded message. Embedded messages are always written, even if empty.
func AppendMessage(b []byte, num protowire.Number, m Marshaler) ([]byte, error) {
	bz, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, bz), nil
}

// Any mirrors google.protobuf.Any.
type Any struct {
	TypeURL string
	Value   []byte
}

func (a *Any) Marshal() ([]byte, error) {
	var b []byte
	b = AppendString(b, 1, a.TypeURL)
	b = AppendBytes(b, 2, a.Value)
	return b, nil
}

func (a *Any) Unmarshal(bz []byte) error {
	*a = Any{}
	return Walk(bz, func(f Field) error {
		switch f.Num {
		case 1:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			a.TypeURL = f.String()
		case 2:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			a.Value = append([]byte(nil), f.Bytes...)
		}
		return nil
	})
}

// PackAny marshals m under typeURL.
func PackAny(typeURL string, m Marshaler) (*Any, error) {
	bz, err := m.Marshal()
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", typeURL, err)
	}
	return &Any{TypeURL: typeURL, Value: bz}, nil
}
