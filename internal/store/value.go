// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Value is the universe a Node or attribute slot can hold: nil, bool,
// int64, float64, decimal.Decimal, string, []byte, Date, TimeOfDay,
// Timestamp, *Container or Resolver. It is a plain `any` rather than a
// wrapper sum type so callers can pass Go literals directly; Kind and
// Classify are what keep the universe closed.
type Value = any

// Kind names one member of the Value universe.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindDate
	KindTimeOfDay
	KindTimestamp
	KindContainer
	KindResolver
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDate:
		return "date"
	case KindTimeOfDay:
		return "time"
	case KindTimestamp:
		return "timestamp"
	case KindContainer:
		return "container"
	case KindResolver:
		return "resolver"
	default:
		return "unknown"
	}
}

// Date carries a calendar day, no time-of-day or offset component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(y int, m time.Month, d int) Date { return Date{y, m, d} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TimeOfDay carries hours/minutes/seconds/micros with no calendar date.
type TimeOfDay struct {
	Hour, Minute, Second, Micro int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%06d", t.Hour, t.Minute, t.Second, t.Micro)
}

// Timestamp carries a full date+time, optionally offset-aware.
type Timestamp struct {
	time.Time
	HasOffset bool
}

func NewTimestamp(t time.Time, hasOffset bool) Timestamp {
	return Timestamp{Time: t, HasOffset: hasOffset}
}

// Classify reports which Value-universe member v belongs to (plain int
// is accepted as KindInt alongside int64), rejecting anything else
// (other sized ints, uint, etc.) so the codec and
// query layer can switch exhaustively instead of falling back to
// reflection.
func Classify(v Value) (Kind, error) {
	switch v.(type) {
	case nil:
		return KindNull, nil
	case bool:
		return KindBool, nil
	case int64:
		return KindInt, nil
	case int:
		return KindInt, nil
	case float64:
		return KindFloat, nil
	case decimal.Decimal:
		return KindDecimal, nil
	case string:
		return KindString, nil
	case []byte:
		return KindBytes, nil
	case Date:
		return KindDate, nil
	case TimeOfDay:
		return KindTimeOfDay, nil
	case Timestamp:
		return KindTimestamp, nil
	case *Container:
		return KindContainer, nil
	case Resolver:
		return KindResolver, nil
	default:
		return 0, ErrInvalidPathSyntax.with("reason", "unsupported value type", "type", fmt.Sprintf("%T", v))
	}
}

// AsInt64 normalizes the int/int64 duality Classify accepts.
func AsInt64(v Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// IsContainer reports whether v is a nested Container value.
func IsContainer(v Value) (*Container, bool) {
	c, ok := v.(*Container)
	return c, ok
}

// IsResolver reports whether v is an unresolved Resolver value.
func IsResolver(v Value) (Resolver, bool) {
	r, ok := v.(Resolver)
	return r, ok
}

func valuesEqual(a, b Value) bool {
	da, aIsDec := a.(decimal.Decimal)
	db, bIsDec := b.(decimal.Decimal)
	if aIsDec && bIsDec {
		return da.Equal(db)
	}
	ai, aIsInt := AsInt64(a)
	bi, bIsInt := AsInt64(b)
	if aIsInt && bIsInt {
		return ai == bi
	}
	return a == b
}
