package object

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/value"
)

// Binary .sg format, adapted from the teacher's pkg/bytecode/format.go: a
// magic header, then one recursively-encoded function record. Recursive
// because a chunk's constant pool can itself hold TypeFunction constants
// (one per nested `fun`/method) - the teacher's format handles this the
// same way with its "Bytecode (recursive structure for blocks/methods)"
// constant type.
const (
	magic         uint32 = 0x534d4f47 // "SMOG"
	formatVersion uint32 = 1
)

const (
	constNil byte = iota
	constBool
	constNumber
	constString
	constFunction
)

// Encode writes fn (the compiled top-level script) to w in .sg format.
func Encode(fn *Object, w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	return encodeFunction(fn, w)
}

func encodeFunction(fn *Object, w io.Writer) error {
	arity, upvalueCount, ch, name := fn.Function()
	if err := writeUint32(w, uint32(arity)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(upvalueCount)); err != nil {
		return err
	}
	if err := writeString(w, functionNameOf(name)); err != nil {
		return err
	}

	if err := writeUint32(w, uint32(len(ch.Code))); err != nil {
		return err
	}
	if _, err := w.Write(ch.Code); err != nil {
		return err
	}

	lines := ch.Lines()
	if err := writeUint32(w, uint32(len(lines))); err != nil {
		return err
	}
	for _, n := range lines {
		if err := writeUint32(w, uint32(n)); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(ch.Constants))); err != nil {
		return err
	}
	for _, c := range ch.Constants {
		if err := encodeConstant(c, w); err != nil {
			return err
		}
	}
	return nil
}

func functionNameOf(name *Object) string {
	if name == nil {
		return ""
	}
	return name.StringChars()
}

func encodeConstant(v value.Value, w io.Writer) error {
	switch v.Kind {
	case value.KindNil:
		_, err := w.Write([]byte{constNil})
		return err
	case value.KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		_, err := w.Write([]byte{constBool, b})
		return err
	case value.KindNumber:
		if _, err := w.Write([]byte{constNumber}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.Number)
	case value.KindObject:
		o, ok := v.Obj.(*Object)
		if !ok {
			return fmt.Errorf("unsupported constant object type")
		}
		switch o.ObjType() {
		case value.TypeString:
			if _, err := w.Write([]byte{constString}); err != nil {
				return err
			}
			return writeString(w, o.StringChars())
		case value.TypeFunction:
			if _, err := w.Write([]byte{constFunction}); err != nil {
				return err
			}
			return encodeFunction(o, w)
		default:
			return fmt.Errorf("constant pool cannot hold a %s", o.ObjType())
		}
	default:
		return fmt.Errorf("cannot encode constant of kind %d", v.Kind)
	}
}

// Decode reads a .sg file produced by Encode back into a function object
// ready to run.
func Decode(r io.Reader) (*Object, error) {
	var gotMagic, version uint32
	if err := binary.Read(r, binary.BigEndian, &gotMagic); err != nil {
		return nil, fmt.Errorf("reading .sg header: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("not a smog bytecode file (bad magic %08x)", gotMagic)
	}
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("reading .sg version: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported .sg format version %d", version)
	}
	return decodeFunction(r)
}

func decodeFunction(r io.Reader) (*Object, error) {
	arity, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	upvalueCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}

	codeLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, err
	}

	lineCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	lines := make([]int, lineCount)
	for i := range lines {
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		lines[i] = int(n)
	}

	constCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	constants := make([]value.Value, constCount)
	for i := range constants {
		c, err := decodeConstant(r)
		if err != nil {
			return nil, err
		}
		constants[i] = c
	}

	fn := NewFunction()
	fn.SetFunctionArity(int(arity))
	fn.SetFunctionUpvalueCount(int(upvalueCount))
	if name != "" {
		fn.SetFunctionName(NewString(name, value.HashString(name), true))
	}
	fn.fn.Chunk = chunk.FromParts(code, constants, lines)
	return fn, nil
}

func decodeConstant(r io.Reader) (value.Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return value.Nil, err
	}
	switch tag[0] {
	case constNil:
		return value.Nil, nil
	case constBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return value.Nil, err
		}
		return value.FromBool(b[0] != 0), nil
	case constNumber:
		var n float64
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return value.Nil, err
		}
		return value.FromNumber(n), nil
	case constString:
		s, err := readString(r)
		if err != nil {
			return value.Nil, err
		}
		return value.FromObject(NewString(s, value.HashString(s), true)), nil
	case constFunction:
		fn, err := decodeFunction(r)
		if err != nil {
			return value.Nil, err
		}
		return value.FromObject(fn), nil
	default:
		return value.Nil, fmt.Errorf("unknown constant tag %d", tag[0])
	}
}

func writeUint32(w io.Writer, v uint32) error { return binary.Write(w, binary.BigEndian, v) }

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
