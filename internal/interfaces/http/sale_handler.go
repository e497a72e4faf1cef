package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/settlement"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// SaleHandler ventas, devoluciones y deuda de clientes.
type SaleHandler struct {
	svc *settlement.Service
	log *logger.Logger
}

// NewSaleHandler construye el handler.
func NewSaleHandler(svc *settlement.Service, log *logger.Logger) *SaleHandler {
	return &SaleHandler{svc: svc, log: log}
}

// Checkout godoc
// @Summary      Registrar venta
// @Description  cash + card + credit debe igualar el total; el crédito exige client_id.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string               false  "Clave de idempotencia"
// @Param        body             body    dto.CheckoutRequest  true  "branch_id, items, pagos"
// @Success      201  {object}  dto.SaleResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *SaleHandler) Checkout(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	var in dto.CheckoutRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	items := make([]settlement.CheckoutItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, settlement.CheckoutItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	res, err := h.svc.Checkout(c.UserContext(), settlement.CheckoutInput{
		BranchID: in.BranchID,
		ClientID: in.ClientID,
		Items:    items,
		Cash:     in.Cash,
		Card:     in.Card,
		Credit:   in.Credit,
		Actor:    actor,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SaleFromEntity(res.Sale, nil, res.Levels))
}

// GetByID godoc
// @Summary      Obtener venta con sus devoluciones
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Venta"
// @Success      200  {object}  dto.SaleResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	detail, err := h.svc.GetSale(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SaleFromEntity(detail.Sale, detail.Returns, nil))
}

// Return godoc
// @Summary      Devolver ítems de una venta
// @Description  Repone stock y descuenta de la deuda la parte proporcional al crédito.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Venta"
// @Param        body  body  dto.ReturnRequest  true  "items"
// @Success      201  {object}  dto.SaleReturnResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/returns [post]
func (h *SaleHandler) Return(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	var in dto.ReturnRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	lines := make([]settlement.ReturnLine, 0, len(in.Items))
	for _, it := range in.Items {
		lines = append(lines, settlement.ReturnLine{SaleItemID: it.SaleItemID, Quantity: it.Quantity})
	}
	res, err := h.svc.ReturnItems(c.UserContext(), settlement.ReturnInput{SaleID: c.Params("id"), Items: lines, Actor: actor})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SaleReturnFromEntity(res.Return, res.Debt, res.Levels))
}

// ClientDebt godoc
// @Summary      Deuda de un cliente
// @Tags         clients
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Cliente"
// @Success      200  {object}  dto.ClientDebtResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/clients/{id}/debt [get]
func (h *SaleHandler) ClientDebt(c *fiber.Ctx) error {
	st, err := h.svc.ClientDebt(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ClientDebtFromEntity(st.Client, st.Entries))
}

// PayDebt godoc
// @Summary      Abonar a la deuda
// @Tags         clients
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "Cliente"
// @Param        body  body  dto.PayDebtRequest  true  "amount"
// @Success      200  {object}  dto.ClientDebtResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/clients/{id}/payments [post]
func (h *SaleHandler) PayDebt(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	var in dto.PayDebtRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	client, err := h.svc.PayDebt(c.UserContext(), settlement.PayDebtInput{ClientID: c.Params("id"), Amount: in.Amount, Actor: actor})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ClientDebtFromEntity(client, nil))
}
