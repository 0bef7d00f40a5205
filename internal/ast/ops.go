/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ast

import (
	"math"

	"vnengine/internal/vnerr"
)

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpEqual BinaryOp = iota
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAnd
	OpOr
	OpPlus
	OpMinus
	OpMul
	OpDiv
	OpRem
	OpPow
)

type binaryInfo struct {
	symbol   string
	lbp, rbp int
	right    bool
}

// Binding powers. and/or share the additive band.
var binaryTable = [...]binaryInfo{
	OpEqual:        {"==", 1, 2, false},
	OpGreater:      {">", 3, 4, false},
	OpGreaterEqual: {">=", 3, 4, false},
	OpLess:         {"<", 3, 4, false},
	OpLessEqual:    {"<=", 3, 4, false},
	OpAnd:          {"and", 5, 6, false},
	OpOr:           {"or", 5, 6, false},
	OpPlus:         {"+", 5, 6, false},
	OpMinus:        {"-", 5, 6, false},
	OpMul:          {"*", 7, 8, false},
	OpDiv:          {"/", 7, 8, false},
	OpRem:          {"%", 7, 8, false},
	OpPow:          {"**", 10, 11, true},
}

func (op BinaryOp) String() string { return binaryTable[op].symbol }

// LBP is the left binding power.
func (op BinaryOp) LBP() int { return binaryTable[op].lbp }

// RBP is the right binding power used when parsing the right operand.
func (op BinaryOp) RBP() int { return binaryTable[op].rbp }

// RightAssoc reports whether a chain of op groups to the right (a ** b ** c is
// a ** (b ** c)).
func (op BinaryOp) RightAssoc() bool { return binaryTable[op].right }

// Apply evaluates l op r. Unsupported kind combinations and failed coercions
// return a *vnerr.TypeError.
func (op BinaryOp) Apply(l, r Value) (Value, error) {
	switch op {
	case OpEqual:
		return equal(l, r)
	case OpAnd:
		return logical(op, l, r, func(a, b bool) bool { return a && b })
	case OpOr:
		return logical(op, l, r, func(a, b bool) bool { return a || b })
	case OpGreater:
		return compare(op, l, r, func(a, b float64) bool { return a > b })
	case OpGreaterEqual:
		return compare(op, l, r, func(a, b float64) bool { return a >= b })
	case OpLess:
		return compare(op, l, r, func(a, b float64) bool { return a < b })
	case OpLessEqual:
		return compare(op, l, r, func(a, b float64) bool { return a <= b })
	case OpPlus:
		return arith(op, l, r, func(a, b float64) float64 { return a + b })
	case OpMinus:
		return arith(op, l, r, func(a, b float64) float64 { return a - b })
	case OpMul:
		return arith(op, l, r, func(a, b float64) float64 { return a * b })
	case OpDiv:
		return arith(op, l, r, func(a, b float64) float64 { return a / b })
	case OpRem:
		return arith(op, l, r, math.Mod)
	case OpPow:
		return arith(op, l, r, math.Pow)
	}
	return Value{}, &vnerr.TypeError{Msg: "unknown operator " + op.String()}
}

func invalid(op BinaryOp, l, r Value) error {
	return &vnerr.TypeError{Op: op.String(), Left: l.String(), Right: r.String()}
}

// numbers coerces both operands for numeric operators. Str/Num mixes parse the
// string side; a Bool on either side is rejected.
func numbers(op BinaryOp, l, r Value) (float64, float64, error) {
	if l.Kind == KindBool || r.Kind == KindBool {
		return 0, 0, invalid(op, l, r)
	}
	a, err := l.AsNumber()
	if err != nil {
		return 0, 0, err
	}
	b, err := r.AsNumber()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func arith(op BinaryOp, l, r Value, f func(a, b float64) float64) (Value, error) {
	a, b, err := numbers(op, l, r)
	if err != nil {
		return Value{}, err
	}
	return Num(f(a, b)), nil
}

func compare(op BinaryOp, l, r Value, f func(a, b float64) bool) (Value, error) {
	a, b, err := numbers(op, l, r)
	if err != nil {
		return Value{}, err
	}
	return Bool(f(a, b)), nil
}

// logical accepts Bool with Bool or with a Str spelling a boolean. Two strings or
// any number are rejected. Both sides are always evaluated.
func logical(op BinaryOp, l, r Value, f func(a, b bool) bool) (Value, error) {
	if l.Kind == KindNum || r.Kind == KindNum || (l.Kind == KindStr && r.Kind == KindStr) {
		return Value{}, invalid(op, l, r)
	}
	a, err := l.AsBool()
	if err != nil {
		return Value{}, err
	}
	b, err := r.AsBool()
	if err != nil {
		return Value{}, err
	}
	return Bool(f(a, b)), nil
}

func equal(l, r Value) (Value, error) {
	switch {
	case l.Kind == KindStr && r.Kind == KindStr:
		return Bool(l.Str == r.Str), nil
	case l.Kind == KindBool && r.Kind == KindBool:
		return Bool(l.Bool == r.Bool), nil
	case l.Kind == KindBool || r.Kind == KindBool:
		if l.Kind == KindNum || r.Kind == KindNum {
			return Value{}, invalid(OpEqual, l, r)
		}
		a, err := l.AsBool()
		if err != nil {
			return Value{}, err
		}
		b, err := r.AsBool()
		if err != nil {
			return Value{}, err
		}
		return Bool(a == b), nil
	default:
		a, b, err := numbers(OpEqual, l, r)
		if err != nil {
			return Value{}, err
		}
		return Bool(a == b), nil
	}
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
)

func (op UnaryOp) String() string { return "not" }

// BP is the binding power used when parsing the operand.
func (op UnaryOp) BP() int { return 9 }

// Apply evaluates the operator. not negates a Bool, maps a Num to n == 0 and a
// Str to the negation of its boolean spelling, falling back to emptiness.
func (op UnaryOp) Apply(v Value) (Value, error) {
	switch v.Kind {
	case KindBool:
		return Bool(!v.Bool), nil
	case KindNum:
		return Bool(v.Num == 0), nil
	case KindStr:
		if b, err := v.AsBool(); err == nil {
			return Bool(!b), nil
		}
		return Bool(v.Str == ""), nil
	}
	return Value{}, &vnerr.TypeError{Op: op.String(), Left: v.String()}
}
