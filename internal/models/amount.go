/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// NanosPerUnit is the fixed scale between the display unit and the smallest unit
// of the payment rail.
const NanosPerUnit = 1_000_000_000

const nanoExp = 9

var maxNanos = decimal.NewFromInt(math.MaxInt64)

// Nanos is a currency amount in the smallest unit (1e-9 of a display unit).
// All ledger arithmetic is integer; decimal is only used at the edges.
type Nanos int64

// NanosFromDecimal rounds d to 9 fractional digits and converts it to Nanos.
func NanosFromDecimal(d decimal.Decimal) (Nanos, error) {
	scaled := d.Round(nanoExp).Shift(nanoExp)
	if scaled.Abs().GreaterThan(maxNanos) {
		return 0, fmt.Errorf("amount %s is out of range", d.String())
	}
	return Nanos(scaled.IntPart()), nil
}

// ParseNanos parses a display amount such as "1.3".
func ParseNanos(s string) (Nanos, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NanosFromDecimal(d)
}

// MustNanos is ParseNanos for constants and tests.
func MustNanos(s string) Nanos {
	n, err := ParseNanos(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Nanos) Decimal() decimal.Decimal {
	return decimal.New(int64(n), -nanoExp)
}

func (n Nanos) String() string {
	return n.Decimal().String()
}

// MulRate returns n*rate rounded half away from zero to a whole nano.
func (n Nanos) MulRate(rate decimal.Decimal) Nanos {
	return Nanos(n.Decimal().Mul(rate).Round(nanoExp).Shift(nanoExp).IntPart())
}

func (n Nanos) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON accepts both "1.3" and 1.3.
func (n *Nanos) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), "\"")
	parsed, err := ParseNanos(raw)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
