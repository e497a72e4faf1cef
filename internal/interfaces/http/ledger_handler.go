package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// LedgerHandler consultas de existencias y del libro de eventos.
type LedgerHandler struct {
	engine *ledger.Engine
	log    *logger.Logger
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(engine *ledger.Engine, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{engine: engine, log: log}
}

// GetStock godoc
// @Summary      Existencias de una sucursal
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        branch_id  path  string  true  "Sucursal"
// @Success      200  {array}   dto.StockLevelResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/branches/{branch_id}/stock [get]
func (h *LedgerHandler) GetStock(c *fiber.Ctx) error {
	levels, err := h.engine.Levels(c.UserContext(), c.Params("branch_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.StockLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, dto.StockLevelFromEntity(*l))
	}
	return c.JSON(out)
}

// ListEvents godoc
// @Summary      Eventos del libro
// @Description  Ordenados por secuencia ascendente.
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        branch_id   query  string  false  "Sucursal"
// @Param        product_id  query  string  false  "Producto"
// @Param        kind        query  string  false  "Tipo de evento"
// @Param        reference   query  string  false  "Documento de origen"
// @Param        limit       query  int     false  "Máximo 500"
// @Param        offset      query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.EventListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/ledger/events [get]
func (h *LedgerHandler) ListEvents(c *fiber.Ctx) error {
	var q dto.EventQuery
	if ok, err := bindQuery(c, &q); !ok {
		return err
	}
	events, err := h.engine.Events(c.UserContext(), repository.LedgerEventFilter{
		BranchID:  q.BranchID,
		ProductID: q.ProductID,
		Kind:      entity.LedgerEventKind(q.Kind),
		Reference: q.Reference,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.EventListResponse{Items: make([]dto.LedgerEventResponse, 0, len(events)), Page: dto.PageResponse{Limit: q.Limit, Offset: q.Offset}}
	for _, e := range events {
		out.Items = append(out.Items, dto.LedgerEventFromEntity(e))
	}
	return c.JSON(out)
}

// Reconcile godoc
// @Summary      Conciliar existencias contra el libro
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        branch_id  query  string  false  "Sucursal (vacío = todas)"
// @Success      200  {object}  dto.ReconcileResponse
// @Router       /api/ledger/reconcile [get]
func (h *LedgerHandler) Reconcile(c *fiber.Ctx) error {
	disc, err := h.engine.Reconcile(c.UserContext(), c.Query("branch_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.ReconcileResponse{Consistent: len(disc) == 0, Discrepancies: make([]dto.DiscrepancyResponse, 0, len(disc))}
	for _, d := range disc {
		out.Discrepancies = append(out.Discrepancies, dto.DiscrepancyResponse{
			BranchID: d.Key.BranchID, ProductID: d.Key.ProductID, Level: d.Level, EventSum: d.EventSum,
		})
	}
	return c.JSON(out)
}

// Replenishment godoc
// @Summary      Lista de reposición
// @Description  Productos en o bajo su límite de reposición, por urgencia.
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        branch_id  path  string  true  "Sucursal"
// @Success      200  {array}   dto.ReplenishmentItemResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/branches/{branch_id}/replenishment [get]
func (h *LedgerHandler) Replenishment(c *fiber.Ctx) error {
	items, err := h.engine.Replenishment(c.UserContext(), c.Params("branch_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.ReplenishmentItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, dto.ReplenishmentItemResponse{
			Priority: it.Priority, ProductID: it.ProductID, ProductName: it.ProductName, Unit: it.Unit,
			Current: it.Current, ReorderLimit: it.ReorderLimit, IdealStock: it.IdealStock, SuggestedQty: it.SuggestedQty,
		})
	}
	return c.JSON(out)
}
