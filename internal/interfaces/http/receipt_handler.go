package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/receiving"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// ReceiptHandler ingresos de mercadería.
type ReceiptHandler struct {
	svc *receiving.Service
	log *logger.Logger
}

// NewReceiptHandler construye el handler.
func NewReceiptHandler(svc *receiving.Service, log *logger.Logger) *ReceiptHandler {
	return &ReceiptHandler{svc: svc, log: log}
}

// Create godoc
// @Summary      Registrar ingreso de mercadería
// @Tags         receipts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                    false  "Clave de idempotencia"
// @Param        body             body    dto.CreateReceiptRequest  true  "branch_id, items"
// @Success      201  {object}  dto.ReceiptResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/receipts [post]
func (h *ReceiptHandler) Create(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	var in dto.CreateReceiptRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	res, err := h.svc.ReceiveStock(c.UserContext(), receiving.ReceiveInput{
		BranchID: in.BranchID,
		Items:    in.ToItems(),
		Comment:  in.Comment,
		Actor:    actor,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ReceiptFromEntity(res.Receipt, res.Levels))
}

// List godoc
// @Summary      Listar ingresos
// @Tags         receipts
// @Security     Bearer
// @Produce      json
// @Param        branch_id  query  string  false  "Sucursal"
// @Param        limit      query  int     false  "Máximo 200"
// @Param        offset     query  int     false  "Desplazamiento"
// @Success      200  {array}  dto.ReceiptResponse
// @Router       /api/receipts [get]
func (h *ReceiptHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if ok, err := bindQuery(c, &page); !ok {
		return err
	}
	list, err := h.svc.List(c.UserContext(), c.Query("branch_id"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.ReceiptResponse, 0, len(list))
	for _, rc := range list {
		out = append(out, dto.ReceiptFromEntity(rc, nil))
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener ingreso
// @Tags         receipts
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Ingreso"
// @Success      200  {object}  dto.ReceiptResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/receipts/{id} [get]
func (h *ReceiptHandler) GetByID(c *fiber.Ctx) error {
	rc, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ReceiptFromEntity(rc, nil))
}

// Cancel godoc
// @Summary      Anular ingreso
// @Description  Revierte las cantidades; falla con 409 si parte de la mercadería ya salió.
// @Tags         receipts
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Ingreso"
// @Success      200  {object}  dto.ReceiptResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/receipts/{id}/cancel [post]
func (h *ReceiptHandler) Cancel(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	res, err := h.svc.CancelReceipt(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ReceiptFromEntity(res.Receipt, res.Levels))
}
