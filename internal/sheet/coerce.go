package sheet

import (
	"fmt"
	"strconv"
	"strings"
)

// truthyTokens is the accepted spelling set for a true boolean, matching what
// the storefront's bilingual admin users actually type.
var truthyTokens = map[string]bool{
	"true": true, "1": true, "yes": true, "y": true,
	"on": true, "si": true, "sí": true, "checked": true,
}

// Truthy parses a free-form token as a boolean. Everything outside the token
// set, including the empty string, is false.
func Truthy(s string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(s))]
}

// DefaultValue returns the canonical empty value for a column type.
func DefaultValue(t ColumnType) CellValue {
	switch t {
	case TypeNumber:
		return Number(0)
	case TypeBoolean:
		return Bool(false)
	case TypeMultipleSelect:
		return List(nil)
	case TypeImage:
		return Images(nil)
	default:
		return Text("")
	}
}

// Stringify renders a value as plain text, used for filtering, CSV export,
// and coercion to text-like types.
func Stringify(v CellValue) string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		return strings.Join(v.List, ", ")
	case KindAttachments:
		urls := make([]string, len(v.Attachments))
		for i, a := range v.Attachments {
			urls[i] = a.URL
		}
		return strings.Join(urls, ", ")
	}
	return ""
}

// SplitList splits a comma-separated string, trims each token, and drops
// empties.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseNumber parses user input as a number, accepting the Colombian price
// convention (period for thousands, comma for decimals) as well as plain
// machine formats.
func ParseNumber(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	return strconv.ParseFloat(cleaned, 64)
}

// FormatPrice renders a number with period thousands separators and a comma
// decimal part, dropping the decimals when the value is whole.
func FormatPrice(n float64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatFloat(n, 'f', 2, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if fracPart != "00" {
		out += "," + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// priceColumn reports whether a number column should use price display
// formatting.
func priceColumn(c *Column) bool {
	k := strings.ToLower(c.Key)
	l := strings.ToLower(c.Label)
	return strings.Contains(k, "price") || strings.Contains(k, "precio") ||
		strings.Contains(l, "price") || strings.Contains(l, "precio")
}

// FormatValue renders a cell value for display in column c.
func FormatValue(v CellValue, c *Column) string {
	switch c.Type {
	case TypeNumber:
		if v.Kind != KindNumber {
			return Stringify(v)
		}
		if priceColumn(c) {
			return FormatPrice(v.Number)
		}
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case TypeBoolean:
		if v.Kind == KindBool && v.Bool {
			return "[x]"
		}
		return "[ ]"
	case TypeImage:
		n := len(v.Attachments)
		switch n {
		case 0:
			return ""
		case 1:
			return "1 image"
		default:
			return fmt.Sprintf("%d images", n)
		}
	default:
		return Stringify(v)
	}
}

// Coerce converts a value to the canonical representation of the target type.
// Converting to the value's current canonical type is the identity.
func Coerce(v CellValue, to ColumnType) CellValue {
	switch to {
	case TypeBoolean:
		if v.Kind == KindBool {
			return v
		}
		return Bool(Truthy(Stringify(v)))
	case TypeNumber:
		if v.Kind == KindNumber {
			return v
		}
		n, err := ParseNumber(Stringify(v))
		if err != nil {
			return Number(0)
		}
		return Number(n)
	case TypeMultipleSelect:
		switch v.Kind {
		case KindList:
			return v
		case KindAttachments:
			return List(SplitList(Stringify(v)))
		default:
			if v.IsZero() && v.Kind == KindText {
				return List(nil)
			}
			return List(SplitList(Stringify(v)))
		}
	case TypeImage:
		if v.Kind == KindAttachments {
			return v
		}
		if v.IsZero() {
			return Images(nil)
		}
		return Images([]Attachment{normalizeAttachment(Stringify(v))})
	default:
		// text, longText, select, date, phone, email, timestamps
		if v.Kind == KindText {
			return v
		}
		return Text(Stringify(v))
	}
}

// SlugKey derives a stable column key from a display label: lowercase, runs
// of non-alphanumerics collapsed to a single underscore, trimmed.
func SlugKey(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// UniqueKey resolves slug collisions by appending an incrementing suffix.
func UniqueKey(s *Sheet, label string) string {
	base := SlugKey(label)
	if base == "" {
		base = "column"
	}
	key := base
	for n := 2; s.ColumnByKey(key) != nil; n++ {
		key = fmt.Sprintf("%s_%d", base, n)
	}
	return key
}
