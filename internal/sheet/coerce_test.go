package sheet

import (
	"reflect"
	"testing"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.500,50", 1500.50, true},
		{"1500.50", 1500.50, true},
		{"89.000,00", 89000, true},
		{"$89.000,00", 89000, true},
		{"1,5", 1.5, true},
		{"89.5", 89.5, true}, // bare dot is a decimal point
		{"-3", -3, true},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := ParseNumber(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Fatalf("ParseNumber(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseNumber(%q) should fail", c.in)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1500.50, "1.500,50"},
		{89000, "89.000"},
		{0, "0"},
		{999, "999"},
		{1234567.89, "1.234.567,89"},
		{-2500, "-2.500"},
	}
	for _, c := range cases {
		if got := FormatPrice(c.in); got != c.want {
			t.Fatalf("FormatPrice(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "yes", "y", "on", "si", "Sí", "checked"} {
		if !Truthy(s) {
			t.Fatalf("Truthy(%q) = false", s)
		}
	}
	for _, s := range []string{"", "no", "0", "false", "off", "nope"} {
		if Truthy(s) {
			t.Fatalf("Truthy(%q) = true", s)
		}
	}
}

func TestCoerceTable(t *testing.T) {
	cases := []struct {
		name string
		in   CellValue
		to   ColumnType
		want CellValue
	}{
		{"text to bool true", Text("yes"), TypeBoolean, Bool(true)},
		{"text to bool false", Text("whatever"), TypeBoolean, Bool(false)},
		{"empty to bool", Text(""), TypeBoolean, Bool(false)},
		{"text to number", Text("42"), TypeNumber, Number(42)},
		{"bad text to number", Text("n/a"), TypeNumber, Number(0)},
		{"text to list", Text("a, b, , c"), TypeMultipleSelect, List([]string{"a", "b", "c"})},
		{"empty to list", Text(""), TypeMultipleSelect, List(nil)},
		{"list passthrough", List([]string{"x"}), TypeMultipleSelect, List([]string{"x"})},
		{"number to text", Number(3.5), TypeText, Text("3.5")},
		{"bool to text", Bool(true), TypeEmail, Text("true")},
		{"text to image wraps", Text("https://cdn.example.com/a.jpg"), TypeImage,
			Images([]Attachment{{URL: "https://cdn.example.com/a.jpg", Legacy: true}})},
		{"empty to image", Text(""), TypeImage, Images(nil)},
	}
	for _, c := range cases {
		got := Coerce(c.in, c.to)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("%s: Coerce = %+v, want %+v", c.name, got, c.want)
		}
	}
}

func TestCoerceIdentityAndLossiness(t *testing.T) {
	// T -> T is the identity
	for _, v := range []CellValue{Text("hola"), Number(7), Bool(true), List([]string{"a"})} {
		to := map[ValueKind]ColumnType{
			KindText: TypeText, KindNumber: TypeNumber,
			KindBool: TypeBoolean, KindList: TypeMultipleSelect,
		}[v.Kind]
		if got := Coerce(v, to); !reflect.DeepEqual(got, v) {
			t.Fatalf("identity coercion changed %+v to %+v", v, got)
		}
	}

	// text -> boolean -> text is lossy but deterministic
	first := Coerce(Coerce(Text("si"), TypeBoolean), TypeText)
	second := Coerce(Coerce(Text("si"), TypeBoolean), TypeText)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("lossy round-trip is not deterministic")
	}
	if first.Text != "true" {
		t.Fatalf("expected canonical true, got %q", first.Text)
	}
}

func TestSlugKey(t *testing.T) {
	cases := map[string]string{
		"Name":          "name",
		"Precio Total":  "precio_total",
		"  -- weird --": "weird",
		"A/B (test)":    "a_b_test",
		"ññ":            "",
	}
	for in, want := range cases {
		if got := SlugKey(in); got != want {
			t.Fatalf("SlugKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatValuePriceColumn(t *testing.T) {
	price := &Column{Key: "precio_unitario", Label: "Precio", Type: TypeNumber}
	if got := FormatValue(Number(89000), price); got != "89.000" {
		t.Fatalf("expected price format, got %q", got)
	}
	qty := &Column{Key: "qty", Label: "Qty", Type: TypeNumber}
	if got := FormatValue(Number(89000), qty); got != "89000" {
		t.Fatalf("expected plain format, got %q", got)
	}
}
