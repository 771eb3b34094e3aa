// Package terms splits raw line-item strings into structured terms carrying
// a product name, an optional price and a unit of measure.
package terms

import (
	"regexp"
	"strconv"
	"strings"
)

// Units of measure recognized by the parser.
const (
	UnitDefault    = "un"
	UnitGram       = "g"
	UnitKilogram   = "kg"
	UnitMilliliter = "mL"
	UnitLiter      = "L"
)

var (
	// Price only matches the two-decimal form (12,50 or 12.50), optionally
	// preceded by a currency marker. Other precisions stay in the name.
	priceRe = regexp.MustCompile(`(r\$)?\s?(\d+[,.]\d{2})`)
	unitRe  = regexp.MustCompile(`(\d+[.,]?\d*)\s?(g|kg|ml|l)\b`)
)

// ParsedTerm is the structured form of one raw input line. It is consumed
// immediately by the resolution pipeline and never persisted.
type ParsedTerm struct {
	Name  string
	Price *float64
	Unit  string
}

// Parse extracts (name, price, unit) from a raw term. The price match is
// removed from the working string, the unit match is kept as part of the
// name. A term with neither yields (trimmed term, nil, "un").
func Parse(rawTerm string) ParsedTerm {
	term := strings.ToLower(rawTerm)

	var price *float64
	unit := UnitDefault

	if m := priceRe.FindStringSubmatch(term); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64); err == nil {
			price = &v
			term = strings.ReplaceAll(term, m[0], "")
		}
	}

	if m := unitRe.FindStringSubmatch(term); m != nil {
		unit = CanonicalUnit(m[2])
	}

	return ParsedTerm{
		Name:  strings.TrimSpace(term),
		Price: price,
		Unit:  unit,
	}
}

// ExtractUnit derives a unit of measure from arbitrary text, such as a search
// result title. Returns "un" when no unit pattern is present.
func ExtractUnit(text string) string {
	if m := unitRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		return CanonicalUnit(m[2])
	}
	return UnitDefault
}

// CanonicalUnit maps a lowercase unit token to its canonical spelling.
func CanonicalUnit(unit string) string {
	switch unit {
	case "l":
		return UnitLiter
	case "ml":
		return UnitMilliliter
	default:
		return unit
	}
}
