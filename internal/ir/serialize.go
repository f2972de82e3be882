package ir

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magic   = "LUM1"
	version = uint8(1)
)

// Write serializes b to w in the on-disk module format: a magic header,
// version byte, then every array verbatim, each preceded by its length.
// Write followed by Read must reproduce b bitwise.
func Write(w io.Writer, b *Bytecode) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(magic); err != nil {
		return err
	}
	if err := bw.WriteByte(version); err != nil {
		return err
	}

	if err := writeUint32(bw, uint32(len(b.Code.Op))); err != nil {
		return err
	}
	for _, op := range b.Code.Op {
		if err := bw.WriteByte(byte(op)); err != nil {
			return err
		}
	}
	for _, d := range b.Code.Data {
		if err := writeUint64(bw, d); err != nil {
			return err
		}
	}

	if err := writeUint32(bw, uint32(len(b.Extra))); err != nil {
		return err
	}
	for _, e := range b.Extra {
		if err := writeUint32(bw, e); err != nil {
			return err
		}
	}

	if err := writeUint32(bw, uint32(len(b.Strings))); err != nil {
		return err
	}
	if _, err := bw.Write(b.Strings); err != nil {
		return err
	}

	if err := writeUint32(bw, uint32(len(b.Functions))); err != nil {
		return err
	}
	for _, fn := range b.Functions {
		if err := writeString(bw, fn.Name); err != nil {
			return err
		}
		if err := writeUint32(bw, uint32(fn.Params)); err != nil {
			return err
		}
		if err := writeUint32(bw, uint32(fn.NumLocals)); err != nil {
			return err
		}
		if err := writeUint32(bw, uint32(len(fn.Body))); err != nil {
			return err
		}
		for _, idx := range fn.Body {
			if err := writeUint32(bw, uint32(idx)); err != nil {
				return err
			}
		}
	}

	if err := writeUint32(bw, uint32(b.MainIndex)); err != nil {
		return err
	}

	if err := writeString(bw, b.Debug.SourcePath); err != nil {
		return err
	}
	if err := writeString(bw, b.Debug.Source); err != nil {
		return err
	}
	if err := writeUint32(bw, uint32(len(b.Debug.Lines))); err != nil {
		return err
	}
	for i := 0; i < len(b.Code.Op); i++ {
		if off, ok := b.Debug.Lines[i]; ok {
			if err := writeUint32(bw, uint32(i)); err != nil {
				return err
			}
			if err := writeUint32(bw, uint32(off)); err != nil {
				return err
			}
		}
	}

	if err := writeString(bw, b.BuildID); err != nil {
		return err
	}

	return bw.Flush()
}

// Read deserializes a Bytecode module previously produced by Write.
func Read(r io.Reader) (*Bytecode, error) {
	br := bufio.NewReader(r)

	hdr := make([]byte, 4)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, err
	}
	if string(hdr) != magic {
		return nil, fmt.Errorf("ir: bad magic %q", hdr)
	}
	v, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	if v != version {
		return nil, fmt.Errorf("ir: unsupported module version %d", v)
	}

	b := &Bytecode{Debug: DebugInfo{Lines: map[int]int{}}}

	n, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	b.Code.Op = make([]Op, n)
	for i := range b.Code.Op {
		by, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		b.Code.Op[i] = Op(by)
	}
	b.Code.Data = make([]uint64, n)
	for i := range b.Code.Data {
		d, err := readUint64(br)
		if err != nil {
			return nil, err
		}
		b.Code.Data[i] = d
	}

	extraLen, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	b.Extra = make([]uint32, extraLen)
	for i := range b.Extra {
		v, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		b.Extra[i] = v
	}

	strLen, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	b.Strings = make([]byte, strLen)
	if _, err := io.ReadFull(br, b.Strings); err != nil {
		return nil, err
	}

	fnCount, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	b.Functions = make([]Function, fnCount)
	for i := range b.Functions {
		name, err := readString(br)
		if err != nil {
			return nil, err
		}
		params, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		locals, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		bodyLen, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		body := make([]int, bodyLen)
		for j := range body {
			idx, err := readUint32(br)
			if err != nil {
				return nil, err
			}
			body[j] = int(idx)
		}
		b.Functions[i] = Function{Name: name, Params: int(params), NumLocals: int(locals), Body: body}
	}

	mainIdx, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	b.MainIndex = int(mainIdx)

	srcPath, err := readString(br)
	if err != nil {
		return nil, err
	}
	b.Debug.SourcePath = srcPath
	src, err := readString(br)
	if err != nil {
		return nil, err
	}
	b.Debug.Source = src

	dbgCount, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < dbgCount; i++ {
		idx, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		off, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		b.Debug.Lines[int(idx)] = int(off)
	}

	buildID, err := readString(br)
	if err != nil {
		return nil, err
	}
	b.BuildID = buildID

	return b, nil
}

func writeUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeUint64(w io.Writer, v uint64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readUint64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
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
