package rules

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"productimport/internal/catalog"
)

const ConditionsAll = "all"

type MarkupType string

const (
	MarkupPercent    MarkupType = "percent"
	MarkupPercentage MarkupType = "percentage"
	MarkupFixed      MarkupType = "fixed"
)

type MarkupConfig struct {
	Conditions     []Condition `json:"conditions"`
	ConditionsType string      `json:"conditionsType"`
}

type Condition struct {
	Field       string     `json:"field"`
	Operator    Operator   `json:"operator"`
	Value       Text       `json:"value"`
	MarkupType  MarkupType `json:"markupType"`
	MarkupValue Amount     `json:"markupValue"`
}

// Matches resolves the condition's field on p and evaluates it.
func (c Condition) Matches(p catalog.Product) bool {
	v, found := Resolve(p, c.Field)
	return Evaluate(v, found, c.Operator, string(c.Value))
}

func (c Condition) valid() bool {
	switch MarkupType(strings.ToLower(string(c.MarkupType))) {
	case MarkupPercent, MarkupPercentage, MarkupFixed:
		return c.MarkupValue.Decimal.IsPositive()
	}
	return false
}

// Matches reports whether the condition group holds for p: every condition
// for "all", any of them otherwise.
func (cfg MarkupConfig) Matches(p catalog.Product) bool {
	if len(cfg.Conditions) == 0 {
		return false
	}
	all := strings.EqualFold(cfg.ConditionsType, ConditionsAll)
	for _, c := range cfg.Conditions {
		ok := c.Matches(p)
		if all && !ok {
			return false
		}
		if !all && ok {
			return true
		}
	}
	return all
}

// Apply returns p with the first applicable markup applied. p itself is
// never modified.
func Apply(p catalog.Product, cfg MarkupConfig) catalog.Product {
	out := p.Clone()
	if !cfg.Matches(p) {
		return out
	}
	for _, c := range cfg.Conditions {
		if !c.valid() || !c.Matches(p) {
			continue
		}
		current := p.PrimaryPrice()
		price, ok := catalog.ParsePrice(current)
		if !ok {
			price = decimal.Zero
		}
		next := catalog.FormatPrice(markup(price, c))
		if next != current {
			out = out.WithPrimaryPrice(next)
		}
		out.MarkupApplied = true
		out.MarkupType = string(c.MarkupType)
		out.MarkupValue = c.MarkupValue.String()
		return out
	}
	return out
}

var hundred = decimal.NewFromInt(100)

func markup(price decimal.Decimal, c Condition) decimal.Decimal {
	v := c.MarkupValue.Decimal
	if MarkupType(strings.ToLower(string(c.MarkupType))) == MarkupFixed {
		return price.Add(v).Round(2)
	}
	return price.Mul(decimal.NewFromInt(1).Add(v.Div(hundred))).Round(2)
}

// Text accepts a JSON string or number.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

// Amount is a markup value. Blank or non-numeric input decodes to zero,
// which disables the condition's markup.
type Amount struct {
	decimal.Decimal
}

func NewAmount(s string) Amount {
	d, ok := catalog.ParsePrice(s)
	if !ok {
		return Amount{}
	}
	return Amount{Decimal: d}
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var t Text
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = NewAmount(string(t))
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}
