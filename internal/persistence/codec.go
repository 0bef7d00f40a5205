/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package persistence reads and writes the binary artifacts of a session: save
// files and the two cross-playthrough tables (persistent variables and
// seen-dialogue watermarks).
//
// All layouts are big-endian and fixed width. Strings are an int32 byte length
// followed by UTF-8 bytes. A value is a tag byte (0 string, 1 number, 2 bool)
// followed by its payload: a string, a float64, or a single byte.
//
//	save file:   int32 varCount, varCount × (name, value),
//	             int32 depth,    depth × (path, int32 cursor)   root frame first
//	variables:   int32 count, count × (name, value)
//	seen table:  int32 count, count × (path, int16 index)
package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"vnengine/internal/ast"
	"vnengine/internal/interp"
)

// ErrTruncated reports data that ends inside a field.
var ErrTruncated = errors.New("unexpected end of data")

// Save is the decoded content of a save file.
type Save struct {
	Variables map[string]ast.Value
	Stack     []interp.SavedFrame
}

// EncodeSave serializes s. Variables are written in name order so equal saves
// produce equal bytes.
func EncodeSave(s Save) ([]byte, error) {
	var e encoder
	if err := e.variables(s.Variables); err != nil {
		return nil, err
	}
	if len(s.Stack) > math.MaxInt32 {
		return nil, fmt.Errorf("stack too deep: %d frames", len(s.Stack))
	}
	e.putInt32(int32(len(s.Stack)))
	for _, f := range s.Stack {
		if f.Cursor < 0 || f.Cursor > math.MaxInt32 {
			return nil, fmt.Errorf("frame %q: cursor %d does not fit int32", f.Path, f.Cursor)
		}
		if err := e.putString(f.Path); err != nil {
			return nil, err
		}
		e.putInt32(int32(f.Cursor))
	}
	return e.buf.Bytes(), nil
}

// DecodeSave parses a save file. Trailing bytes are rejected.
func DecodeSave(data []byte) (Save, error) {
	d := decoder{data: data}
	vars, err := d.variables()
	if err != nil {
		return Save{}, fmt.Errorf("variables: %w", err)
	}
	depth, err := d.count(8)
	if err != nil {
		return Save{}, fmt.Errorf("stack depth: %w", err)
	}
	stack := make([]interp.SavedFrame, 0, depth)
	for i := 0; i < depth; i++ {
		path, err := d.readString()
		if err != nil {
			return Save{}, fmt.Errorf("frame %d path: %w", i, err)
		}
		cur, err := d.readInt32()
		if err != nil {
			return Save{}, fmt.Errorf("frame %d cursor: %w", i, err)
		}
		stack = append(stack, interp.SavedFrame{Path: path, Cursor: int(cur)})
	}
	if err := d.end(); err != nil {
		return Save{}, err
	}
	return Save{Variables: vars, Stack: stack}, nil
}

// EncodeVariables serializes a persistent variable table.
func EncodeVariables(vars map[string]ast.Value) ([]byte, error) {
	var e encoder
	if err := e.variables(vars); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

func DecodeVariables(data []byte) (map[string]ast.Value, error) {
	d := decoder{data: data}
	vars, err := d.variables()
	if err != nil {
		return nil, err
	}
	if err := d.end(); err != nil {
		return nil, err
	}
	return vars, nil
}

// EncodeSeen serializes a seen-dialogue table.
func EncodeSeen(seen map[string]int16) ([]byte, error) {
	var e encoder
	e.putInt32(int32(len(seen)))
	for _, k := range sortedKeys(seen) {
		if err := e.putString(k); err != nil {
			return nil, err
		}
		_ = binary.Write(&e.buf, binary.BigEndian, seen[k])
	}
	return e.buf.Bytes(), nil
}

func DecodeSeen(data []byte) (map[string]int16, error) {
	d := decoder{data: data}
	n, err := d.count(6)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int16, n)
	for i := 0; i < n; i++ {
		k, err := d.readString()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		b, err := d.take(2)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out[k] = int16(binary.BigEndian.Uint16(b))
	}
	if err := d.end(); err != nil {
		return nil, err
	}
	return out, nil
}

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) putInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	e.buf.Write(b[:])
}

func (e *encoder) putString(s string) error {
	if len(s) > math.MaxInt32 {
		return fmt.Errorf("string of %d bytes is too long", len(s))
	}
	e.putInt32(int32(len(s)))
	e.buf.WriteString(s)
	return nil
}

func (e *encoder) putValue(v ast.Value) error {
	switch v.Kind {
	case ast.KindStr:
		e.buf.WriteByte(byte(ast.KindStr))
		return e.putString(v.Str)
	case ast.KindNum:
		e.buf.WriteByte(byte(ast.KindNum))
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Num))
		e.buf.Write(b[:])
	case ast.KindBool:
		e.buf.WriteByte(byte(ast.KindBool))
		if v.Bool {
			e.buf.WriteByte(1)
		} else {
			e.buf.WriteByte(0)
		}
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
	return nil
}

func (e *encoder) variables(vars map[string]ast.Value) error {
	if len(vars) > math.MaxInt32 {
		return fmt.Errorf("too many variables: %d", len(vars))
	}
	e.putInt32(int32(len(vars)))
	for _, name := range sortedKeys(vars) {
		if err := e.putString(name); err != nil {
			return err
		}
		if err := e.putValue(vars[name]); err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
	}
	return nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || n > len(d.data)-d.off {
		return nil, ErrTruncated
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) readInt32() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// count reads an element count and rejects values that cannot fit in the
// remaining bytes given the smallest possible entry size.
func (d *decoder) count(minEntry int) (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	if int(n) > (len(d.data)-d.off)/minEntry {
		return 0, fmt.Errorf("count %d exceeds remaining data: %w", n, ErrTruncated)
	}
	return int(n), nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readInt32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("negative string length %d", n)
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) readValue() (ast.Value, error) {
	tag, err := d.take(1)
	if err != nil {
		return ast.Value{}, err
	}
	switch ast.Kind(tag[0]) {
	case ast.KindStr:
		s, err := d.readString()
		if err != nil {
			return ast.Value{}, err
		}
		return ast.Str(s), nil
	case ast.KindNum:
		b, err := d.take(8)
		if err != nil {
			return ast.Value{}, err
		}
		return ast.Num(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case ast.KindBool:
		b, err := d.take(1)
		if err != nil {
			return ast.Value{}, err
		}
		return ast.Bool(b[0] != 0), nil
	}
	return ast.Value{}, fmt.Errorf("unknown value tag %d", tag[0])
}

func (d *decoder) variables() (map[string]ast.Value, error) {
	// smallest entry: empty name (4) + bool tag and payload (2)
	n, err := d.count(6)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ast.Value, n)
	for i := 0; i < n; i++ {
		name, err := d.readString()
		if err != nil {
			return nil, fmt.Errorf("entry %d name: %w", i, err)
		}
		v, err := d.readValue()
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func (d *decoder) end() error {
	if rest := len(d.data) - d.off; rest != 0 {
		return fmt.Errorf("%d trailing bytes", rest)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
