package store

import (
	"fmt"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// SeedDemo creates a small products sheet so a fresh install has something to
// open in the editor and serve in the storefront.
func (st *Store) SeedDemo() (*sheet.Sheet, error) {
	s := sheet.New("Productos")
	eng := sheet.NewEngine(s, sheet.Options{})

	type colDef struct {
		label string
		typ   sheet.ColumnType
	}
	for _, c := range []colDef{
		{"Nombre", sheet.TypeText},
		{"Precio", sheet.TypeNumber},
		{"Cantidad", sheet.TypeNumber},
		{"Activo", sheet.TypeBoolean},
		{"Categorias", sheet.TypeMultipleSelect},
		{"Fotos", sheet.TypeImage},
	} {
		if _, err := eng.AddColumn(c.label, c.typ); err != nil {
			return nil, fmt.Errorf("seed column %s: %w", c.label, err)
		}
	}

	demo := []struct {
		name     string
		price    float64
		qty      float64
		active   bool
		category string
	}{
		{"Morral ejecutivo", 89000, 12, true, "morrales"},
		{"Bolso de viaje", 120000, 5, true, "bolsos, viaje"},
		{"Cartera clásica", 65000, 0, false, "carteras"},
	}
	for _, d := range demo {
		row, err := eng.AddRow()
		if err != nil {
			return nil, err
		}
		eng.SetCell(row.ID, "nombre", sheet.Text(d.name))
		eng.SetCell(row.ID, "precio", sheet.Number(d.price))
		eng.SetCell(row.ID, "cantidad", sheet.Number(d.qty))
		eng.SetCell(row.ID, "activo", sheet.Bool(d.active))
		eng.SetCell(row.ID, "categorias", sheet.List(sheet.SplitList(d.category)))
	}

	if err := st.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}
