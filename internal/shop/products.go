package shop

import (
	"errors"
	"strings"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// Product is one storefront listing projected out of the products sheet.
type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	PriceLabel string   `json:"price_label"`
	Quantity   float64  `json:"quantity"`
	Categories []string `json:"categories,omitempty"`
	Photos     []string `json:"photos,omitempty"`
}

var (
	ErrNoProductSheet  = errors.New("shop: no products sheet configured")
	ErrProductNotFound = errors.New("shop: product not found")
)

// Products loads the configured sheet and projects its active rows into
// storefront listings. Hidden rows are the ones with Activo unchecked.
func (s *Service) Products() ([]Product, error) {
	sh, err := s.productSheet()
	if err != nil {
		return nil, err
	}
	var out []Product
	for _, row := range sh.Rows {
		p, active := productOf(sh, row)
		if active {
			out = append(out, p)
		}
	}
	return out, nil
}

// Product returns one active listing by row id.
func (s *Service) Product(id string) (*Product, error) {
	sh, err := s.productSheet()
	if err != nil {
		return nil, err
	}
	row := sh.RowByID(id)
	if row == nil {
		return nil, ErrProductNotFound
	}
	p, active := productOf(sh, row)
	if !active {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (s *Service) productSheet() (*sheet.Sheet, error) {
	if s.sheets == nil || s.cfg.ProductsSheetID == "" {
		return nil, ErrNoProductSheet
	}
	return s.sheets.Load(s.cfg.ProductsSheetID)
}

// productOf maps a row to a listing by probing well-known column keys, so a
// renamed label with the same key keeps working.
func productOf(sh *sheet.Sheet, row *sheet.Row) (Product, bool) {
	p := Product{ID: row.ID}
	active := true
	for _, col := range sh.Columns {
		cell, ok := row.Cells[col.Key]
		if !ok {
			continue
		}
		v := cell.Value
		switch {
		case col.Key == "activo" || col.Key == "active":
			active = v.Kind == sheet.KindBool && v.Bool
		case col.Key == "nombre" || col.Key == "name":
			p.Name = sheet.Stringify(v)
		case strings.Contains(col.Key, "precio") || strings.Contains(col.Key, "price"):
			if v.Kind == sheet.KindNumber {
				p.Price = v.Number
				p.PriceLabel = sheet.FormatPrice(v.Number)
			}
		case strings.Contains(col.Key, "cantidad") || strings.Contains(col.Key, "quantity") || strings.Contains(col.Key, "stock"):
			if v.Kind == sheet.KindNumber {
				p.Quantity = v.Number
			}
		case col.Type == sheet.TypeMultipleSelect:
			p.Categories = append(p.Categories, v.List...)
		case col.Type == sheet.TypeImage:
			for _, a := range v.Attachments {
				p.Photos = append(p.Photos, a.URL)
			}
		}
	}
	return p, active
}
