package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// RequireActiveBranch verifica que la sucursal exista y esté activa.
func RequireActiveBranch(ctx context.Context, catalog repository.CatalogRepository, id string) (*entity.Branch, error) {
	b, err := catalog.GetBranch(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrBranchNotFound
	}
	if !b.Active {
		return nil, domain.ErrBranchInactive
	}
	return b, nil
}

// RequireActiveProducts verifica que existan y estén activos todos los productos.
// Solo la usan los comandos que mueven mercadería hacia adelante; anulaciones y
// devoluciones aceptan productos dados de baja.
func RequireActiveProducts(ctx context.Context, catalog repository.CatalogRepository, ids []string) error {
	for _, id := range ids {
		p, err := catalog.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrProductNotFound
		}
		if !p.Active {
			return fmt.Errorf("%w: %s", domain.ErrProductInactive, id)
		}
	}
	return nil
}

// EventProducts productos distintos de los eventos, ordenados.
func EventProducts(events []entity.LedgerEvent) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.ProductID]; ok {
			continue
		}
		seen[ev.ProductID] = struct{}{}
		out = append(out, ev.ProductID)
	}
	sort.Strings(out)
	return out
}

// LevelList cantidades del resultado como filas ordenadas por clave.
func (r *Result) LevelList() []entity.StockLevel {
	if r == nil {
		return nil
	}
	out := make([]entity.StockLevel, 0, len(r.Levels))
	for k, q := range r.Levels {
		out = append(out, entity.StockLevel{BranchID: k.BranchID, ProductID: k.ProductID, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

// View ejecuta fn sobre una lectura consistente (consultas de los servicios).
func (e *Engine) View(ctx context.Context, fn func(repos Repositories) error) error {
	return e.store.Snapshot(ctx, fn)
}
