package shop

import (
	"testing"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

func productsSheet() *sheet.Sheet {
	sh := sheet.New("Productos")
	cols := []struct {
		key string
		typ sheet.ColumnType
	}{
		{"nombre", sheet.TypeText},
		{"precio", sheet.TypeNumber},
		{"cantidad", sheet.TypeNumber},
		{"activo", sheet.TypeBoolean},
		{"categorias", sheet.TypeMultipleSelect},
		{"fotos", sheet.TypeImage},
	}
	for i, c := range cols {
		sh.Columns = append(sh.Columns, &sheet.Column{
			ID: c.key, Key: c.key, Label: c.key, Type: c.typ,
			Sortable: true, Editable: true, Order: i,
		})
	}
	addRow := func(id, name string, price, qty float64, active bool, cats []string, photos []sheet.Attachment) {
		sh.Rows = append(sh.Rows, &sheet.Row{
			ID: id,
			Cells: map[string]*sheet.Cell{
				"nombre":     {ID: id + "-n", Value: sheet.Text(name), Type: sheet.TypeText, Editable: true},
				"precio":     {ID: id + "-p", Value: sheet.Number(price), Type: sheet.TypeNumber, Editable: true},
				"cantidad":   {ID: id + "-q", Value: sheet.Number(qty), Type: sheet.TypeNumber, Editable: true},
				"activo":     {ID: id + "-a", Value: sheet.Bool(active), Type: sheet.TypeBoolean, Editable: true},
				"categorias": {ID: id + "-c", Value: sheet.List(cats), Type: sheet.TypeMultipleSelect, Editable: true},
				"fotos":      {ID: id + "-f", Value: sheet.Images(photos), Type: sheet.TypeImage, Editable: true},
			},
		})
	}
	addRow("r1", "Morral ejecutivo", 89000, 12, true,
		[]string{"morrales"}, []sheet.Attachment{{URL: "https://cdn.example/morral.jpg"}})
	addRow("r2", "Correa descontinuada", 25000, 0, false, nil, nil)
	return sh
}

func TestProductProjection(t *testing.T) {
	sh := productsSheet()

	p, active := productOf(sh, sh.Rows[0])
	if !active {
		t.Fatal("active row projected as inactive")
	}
	if p.Name != "Morral ejecutivo" || p.Price != 89000 || p.Quantity != 12 {
		t.Fatalf("product = %+v", p)
	}
	if p.PriceLabel != "89.000" {
		t.Fatalf("price label = %q", p.PriceLabel)
	}
	if len(p.Photos) != 1 || p.Photos[0] != "https://cdn.example/morral.jpg" {
		t.Fatalf("photos = %v", p.Photos)
	}
	if len(p.Categories) != 1 || p.Categories[0] != "morrales" {
		t.Fatalf("categories = %v", p.Categories)
	}

	if _, active := productOf(sh, sh.Rows[1]); active {
		t.Fatal("inactive row projected as active")
	}
}
