/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ast

import (
	"fmt"
	"strconv"
	"strings"

	"vnengine/internal/vnerr"
)

// Kind tags a Value. The numeric values double as the save-file type tags.
type Kind uint8

const (
	KindStr  Kind = 0
	KindNum  Kind = 1
	KindBool Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindStr:
		return "Str"
	case KindNum:
		return "Num"
	case KindBool:
		return "Bool"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the dynamically typed runtime value used for variables and expression
// results. Only the payload field matching Kind is meaningful.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
}

func Str(s string) Value { return Value{Kind: KindStr, Str: s} }
func Num(n float64) Value { return Value{Kind: KindNum, Num: n} }
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String renders the value with its kind, e.g. Num(8) or Str("x"). Used in diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindStr:
		return "Str(" + strconv.Quote(v.Str) + ")"
	case KindNum:
		return "Num(" + strconv.FormatFloat(v.Num, 'g', -1, 64) + ")"
	case KindBool:
		return "Bool(" + strconv.FormatBool(v.Bool) + ")"
	}
	return fmt.Sprintf("Value(%d)", v.Kind)
}

// Text renders the bare payload, the way a host would display it.
func (v Value) Text() string {
	switch v.Kind {
	case KindNum:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// AsNumber coerces v to a float. Strings are parsed; booleans never convert.
func (v Value) AsNumber() (float64, error) {
	switch v.Kind {
	case KindNum:
		return v.Num, nil
	case KindStr:
		n, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, &vnerr.TypeError{Msg: fmt.Sprintf("string %q can't be converted to number", v.Str)}
		}
		return n, nil
	}
	return 0, &vnerr.TypeError{Msg: fmt.Sprintf("boolean %t can't be converted to number", v.Bool)}
}

// AsBool coerces v to a boolean. Strings must spell true or false (any case);
// numbers never convert.
func (v Value) AsBool() (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.Bool, nil
	case KindStr:
		switch {
		case strings.EqualFold(v.Str, "true"):
			return true, nil
		case strings.EqualFold(v.Str, "false"):
			return false, nil
		}
		return false, &vnerr.TypeError{Msg: fmt.Sprintf("string %q can't be converted to boolean", v.Str)}
	}
	return false, &vnerr.TypeError{Msg: fmt.Sprintf("number %s can't be converted to boolean", strconv.FormatFloat(v.Num, 'g', -1, 64))}
}
