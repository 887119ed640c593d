package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
)

// Value tags in a snapshot file.
const (
	TypeNil     = 0
	TypeBoolean = 1
	TypeInteger = 2
	TypeNumber  = 3
	TypeString  = 4
)

// MaxStringLen bounds every key and string value in a snapshot.
const MaxStringLen = 1 << 20

// WriteSnapshot serializes values as a little-endian, length-prefixed list
// of (key, tag, value) entries sorted by key.
func WriteSnapshot(w io.Writer, values map[string]any) error {
	var buf bytes.Buffer
	writeUint32 := func(v uint32) {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	writeString := func(s string) {
		writeUint32(uint32(len(s)))
		buf.WriteString(s)
	}
	for key, v := range values {
		if s, ok := v.(string); (ok && len(s) > MaxStringLen) || len(key) > MaxStringLen {
			return fmt.Errorf("write %q: string longer than %d bytes", key, MaxStringLen)
		}
	}

	writeUint32(uint32(len(values)))
	for _, key := range slices.Sorted(maps.Keys(values)) {
		writeString(key)
		switch v := values[key].(type) {
		case nil:
			buf.WriteByte(TypeNil)
		case bool:
			buf.WriteByte(TypeBoolean)
			if v {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case int64:
			buf.WriteByte(TypeInteger)
			binary.Write(&buf, binary.LittleEndian, v)
		case float64:
			buf.WriteByte(TypeNumber)
			binary.Write(&buf, binary.LittleEndian, math.Float64bits(v))
		case string:
			buf.WriteByte(TypeString)
			writeString(v)
		default:
			return fmt.Errorf("write %q: unsupported value type %T", key, v)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadSnapshot parses what WriteSnapshot wrote.
func ReadSnapshot(r io.Reader) (map[string]any, error) {
	br := bufio.NewReader(r)
	readUint32 := func() (uint32, error) {
		var v uint32
		if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return v, nil
	}
	readString := func() (string, error) {
		length, err := readUint32()
		if err != nil {
			return "", err
		}
		if length > MaxStringLen {
			return "", fmt.Errorf("string length %d exceeds %d", length, MaxStringLen)
		}
		var b bytes.Buffer
		if _, err := io.CopyN(&b, br, int64(length)); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		return b.String(), nil
	}

	count, err := readUint32()
	if err != nil {
		return nil, fmt.Errorf("read entry count: %w", err)
	}
	values := make(map[string]any, min(count, 1024))
	for i := 0; i < int(count); i++ {
		key, err := readString()
		if err != nil {
			return nil, fmt.Errorf("read key %d: %w", i, err)
		}
		tag, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read tag for %q: %w", key, err)
		}
		switch tag {
		case TypeNil:
			values[key] = nil
		case TypeBoolean:
			b, err := br.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("read %q: %w", key, err)
			}
			values[key] = b != 0
		case TypeInteger:
			var v int64
			if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
				return nil, fmt.Errorf("read %q: %w", key, err)
			}
			values[key] = v
		case TypeNumber:
			var bits uint64
			if err := binary.Read(br, binary.LittleEndian, &bits); err != nil {
				return nil, fmt.Errorf("read %q: %w", key, err)
			}
			values[key] = math.Float64frombits(bits)
		case TypeString:
			v, err := readString()
			if err != nil {
				return nil, fmt.Errorf("read %q: %w", key, err)
			}
			values[key] = v
		default:
			return nil, fmt.Errorf("unknown type tag %d for %q", tag, key)
		}
	}
	return values, nil
}

// LoadSnapshot reads a snapshot file from disk.
func LoadSnapshot(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	values, err := ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", path, err)
	}
	return values, nil
}

// Save writes the store's current values to path.
func (s *Store) Save(path string) error {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, s.Values()); err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0666); err != nil {
		return fmt.Errorf("persist snapshot %q: %w", path, err)
	}
	return nil
}
