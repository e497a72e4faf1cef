package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/transfer"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// MovementHandler traslados entre sucursales.
type MovementHandler struct {
	svc *transfer.Service
	log *logger.Logger
}

// NewMovementHandler construye el handler.
func NewMovementHandler(svc *transfer.Service, log *logger.Logger) *MovementHandler {
	return &MovementHandler{svc: svc, log: log}
}

// Create godoc
// @Summary      Solicitar traslado
// @Description  Queda en estado waiting; no mueve stock hasta que destino lo acepte.
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                     false  "Clave de idempotencia"
// @Param        body             body    dto.CreateMovementRequest  true  "from_branch_id, to_branch_id, items"
// @Success      201  {object}  dto.MovementResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/movements [post]
func (h *MovementHandler) Create(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	var in dto.CreateMovementRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	m, err := h.svc.CreateMovement(c.UserContext(), transfer.CreateMovementInput{
		FromBranchID: in.FromBranchID,
		ToBranchID:   in.ToBranchID,
		Items:        in.ToItems(),
		Comment:      in.Comment,
		Actor:        actor,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MovementFromEntity(m, nil))
}

// List godoc
// @Summary      Listar traslados
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        status     query  string  false  "waiting | done | rejected"
// @Param        branch_id  query  string  false  "Origen o destino"
// @Param        limit      query  int     false  "Máximo 200"
// @Param        offset     query  int     false  "Desplazamiento"
// @Success      200  {array}  dto.MovementResponse
// @Router       /api/movements [get]
func (h *MovementHandler) List(c *fiber.Ctx) error {
	var q dto.MovementQuery
	if ok, err := bindQuery(c, &q); !ok {
		return err
	}
	list, err := h.svc.List(c.UserContext(), repository.MovementFilter{
		Status:   entity.MovementStatus(q.Status),
		BranchID: q.BranchID,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, dto.MovementFromEntity(m, nil))
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener traslado
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Traslado"
// @Success      200  {object}  dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/movements/{id} [get]
func (h *MovementHandler) GetByID(c *fiber.Ctx) error {
	m, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MovementFromEntity(m, nil))
}

// Accept godoc
// @Summary      Aceptar traslado
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Traslado"
// @Success      200  {object}  dto.MovementResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/movements/{id}/accept [post]
func (h *MovementHandler) Accept(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	res, err := h.svc.Accept(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MovementFromEntity(res.Movement, res.Levels))
}

// Reject godoc
// @Summary      Rechazar traslado
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "Traslado"
// @Param        body  body  dto.RejectMovementRequest  true  "reason"
// @Success      200  {object}  dto.MovementResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/movements/{id}/reject [post]
func (h *MovementHandler) Reject(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	var in dto.RejectMovementRequest
	if ok, err := bindBody(c, &in); !ok {
		return err
	}
	m, err := h.svc.Reject(c.UserContext(), c.Params("id"), in.Reason, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MovementFromEntity(m, nil))
}

// Revert godoc
// @Summary      Revertir traslado aceptado
// @Description  Devuelve las cantidades al origen con eventos TRANSFER_REVERT. Solo una vez.
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Traslado"
// @Success      200  {object}  dto.MovementResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/movements/{id}/revert [post]
func (h *MovementHandler) Revert(c *fiber.Ctx) error {
	actor := GetActor(c)
	if actor.UserID == "" {
		return unauthorized(c)
	}
	res, err := h.svc.Revert(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MovementFromEntity(res.Movement, res.Levels))
}
