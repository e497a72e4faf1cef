package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// retryAfterSeconds valor de Retry-After para ErrBusy.
const retryAfterSeconds = "1"

// writeError traduce errores de dominio a HTTP. Los 5xx se registran en el log.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	var (
		ise *domain.InsufficientStockError
		ore *domain.OverReturnError
		ame *domain.AmountMismatchError
	)
	switch {
	case errors.As(err, &ise):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "INSUFFICIENT_STOCK", Message: ise.Error(),
			Details: fiber.Map{"branch_id": ise.BranchID, "product_id": ise.ProductID, "requested": ise.Requested, "available": ise.Available},
		})
	case errors.As(err, &ore):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "OVER_RETURN", Message: ore.Error(),
			Details: fiber.Map{"sale_item_id": ore.LineID, "requested": ore.Requested, "remaining": ore.Remaining},
		})
	case errors.As(err, &ame):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "AMOUNT_MISMATCH", Message: ame.Error(),
			Details: fiber.Map{"total": ame.Total, "paid": ame.Paid},
		})
	case errors.Is(err, domain.ErrBusy):
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "BUSY", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_STATE", Message: err.Error()})
	case errors.Is(err, domain.ErrOverpayment):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "OVERPAYMENT", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrBranchInactive):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "BRANCH_INACTIVE", Message: err.Error()})
	case errors.Is(err, domain.ErrProductInactive):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "PRODUCT_INACTIVE", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidBranches),
		errors.Is(err, domain.ErrEmptyItems),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrReasonRequired),
		errors.Is(err, domain.ErrClientRequired):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}

	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}
