/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package persistence

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"vnengine/internal/ast"
	"vnengine/internal/interp"
)

func TestEncodeSaveLayout(t *testing.T) {
	data, err := EncodeSave(Save{
		Variables: map[string]ast.Value{"a": ast.Bool(true)},
		Stack:     []interp.SavedFrame{{Path: "start", Cursor: 2}},
	})
	if err != nil {
		t.Fatalf("EncodeSave: %v", err)
	}
	want := []byte{
		0, 0, 0, 1, // variable count
		0, 0, 0, 1, 'a', // name
		2, 1, // bool true
		0, 0, 0, 1, // depth
		0, 0, 0, 5, 's', 't', 'a', 'r', 't',
		0, 0, 0, 2, // cursor
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("bytes = %v, want %v", data, want)
	}
}

func TestEncodeValueTags(t *testing.T) {
	data, err := EncodeVariables(map[string]ast.Value{"n": ast.Num(1.5), "s": ast.Str("hé")})
	if err != nil {
		t.Fatalf("EncodeVariables: %v", err)
	}
	want := []byte{
		0, 0, 0, 2,
		0, 0, 0, 1, 'n', 1, 0x3f, 0xf8, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 1, 's', 0, 0, 0, 0, 3, 'h', 0xc3, 0xa9,
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("bytes = %x, want %x", data, want)
	}
}

func TestSaveRoundTripKeepsEdgeValues(t *testing.T) {
	in := Save{
		Variables: map[string]ast.Value{
			"nan":                    ast.Num(math.NaN()),
			"inf":                    ast.Num(math.Inf(1)),
			"ninf":                   ast.Num(math.Inf(-1)),
			"negzero":                ast.Num(math.Copysign(0, -1)),
			"empty":                  ast.Str(""),
			"ünïcødé 名前":             ast.Str("日本語 🎴"),
			strings.Repeat("n", 5000): ast.Bool(false),
		},
		Stack: []interp.SavedFrame{
			{Path: "start", Cursor: 3},
			{Path: "start/choice1-option0", Cursor: 0},
			{Path: "start/choice1-option0/if2-else", Cursor: 1},
		},
	}
	data, err := EncodeSave(in)
	if err != nil {
		t.Fatalf("EncodeSave: %v", err)
	}
	out, err := DecodeSave(data)
	if err != nil {
		t.Fatalf("DecodeSave: %v", err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("round trip (-in +out):\n%s", diff)
	}
	if !math.Signbit(out.Variables["negzero"].Num) {
		t.Fatalf("negative zero lost its sign")
	}
}

func TestSaveEncodingIsDeterministic(t *testing.T) {
	sv := Save{Variables: map[string]ast.Value{"b": ast.Num(1), "a": ast.Num(2), "c": ast.Str("x")}}
	first, err := EncodeSave(sv)
	if err != nil {
		t.Fatalf("EncodeSave: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := EncodeSave(sv)
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs between runs")
		}
	}
}

func TestSeenRoundTripBounds(t *testing.T) {
	in := map[string]int16{"start": math.MaxInt16, "other": math.MinInt16, "start/if1-branch0": 0}
	data, err := EncodeSeen(in)
	if err != nil {
		t.Fatalf("EncodeSeen: %v", err)
	}
	out, err := DecodeSeen(data)
	if err != nil {
		t.Fatalf("DecodeSeen: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip (-in +out):\n%s", diff)
	}
}

func TestDecodeSaveRejectsDamage(t *testing.T) {
	good, err := EncodeSave(Save{
		Variables: map[string]ast.Value{"x": ast.Str("hello")},
		Stack:     []interp.SavedFrame{{Path: "start", Cursor: 1}},
	})
	if err != nil {
		t.Fatalf("EncodeSave: %v", err)
	}
	cases := map[string][]byte{
		"empty":          {},
		"truncated":      good[:len(good)-1],
		"trailing":       append(append([]byte{}, good...), 0),
		"negative count": {0xff, 0xff, 0xff, 0xff},
		"huge count":     {0x7f, 0xff, 0xff, 0xff, 0, 0},
		"bad tag":        {0, 0, 0, 1, 0, 0, 0, 1, 'x', 9, 0, 0, 0, 0, 0},
		"huge string":    {0, 0, 0, 1, 0x7f, 0xff, 0xff, 0xff, 'x', 2},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeSave(data); err == nil {
				t.Fatalf("DecodeSave accepted %v", data)
			}
		})
	}
	if _, err := DecodeSave(good[:3]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short header error = %v, want ErrTruncated", err)
	}
}

func TestEncodeSaveRejectsNegativeCursor(t *testing.T) {
	_, err := EncodeSave(Save{Stack: []interp.SavedFrame{{Path: "start", Cursor: -1}}})
	if err == nil {
		t.Fatalf("negative cursor was encoded")
	}
}
