package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Seed catálogo inicial para el modo memoria (desarrollo y demos).
type Seed struct {
	Branches []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Active *bool  `json:"active"`
	} `json:"branches"`
	Products []struct {
		ID           string          `json:"id"`
		Name         string          `json:"name"`
		Unit         string          `json:"unit"`
		ReorderLimit decimal.Decimal `json:"reorder_limit"`
	} `json:"products"`
	Clients []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"clients"`
}

// LoadSeed lee un Seed en JSON y lo registra en el store. Los clientes empiezan sin deuda.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, b := range seed.Branches {
		active := b.Active == nil || *b.Active
		s.AddBranch(entity.Branch{ID: b.ID, Name: b.Name, Active: active})
	}
	for _, p := range seed.Products {
		s.AddProduct(entity.Product{ID: p.ID, Name: p.Name, Unit: p.Unit, ReorderLimit: p.ReorderLimit, Active: true})
	}
	for _, c := range seed.Clients {
		s.AddClient(entity.Client{ID: c.ID, Name: c.Name, Phone: c.Phone, Debt: decimal.Zero})
	}
	return nil
}
