package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"busy", fmt.Errorf("stock b1/p1: %w", domain.ErrBusy), fiber.StatusServiceUnavailable, "BUSY"},
		{"no encontrado", domain.ErrSaleNotFound, fiber.StatusNotFound, "NOT_FOUND"},
		{"prohibido", domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
		{"estado", fmt.Errorf("%w: done", domain.ErrInvalidState), fiber.StatusConflict, "INVALID_STATE"},
		{"sucursal inactiva", domain.ErrBranchInactive, fiber.StatusConflict, "BRANCH_INACTIVE"},
		{"producto inactivo", fmt.Errorf("%w: p9", domain.ErrProductInactive), fiber.StatusConflict, "PRODUCT_INACTIVE"},
		{"validación", domain.ErrInvalidQuantity, fiber.StatusBadRequest, "VALIDATION"},
		{"stock", &domain.InsufficientStockError{BranchID: "b1", ProductID: "p1", Requested: decimal.NewFromInt(5), Available: decimal.NewFromInt(2)},
			fiber.StatusConflict, "INSUFFICIENT_STOCK"},
		{"desconocido", fmt.Errorf("disco lleno"), fiber.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return writeError(c, logger.Nop(), tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			b, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(b, &body))
			assert.Equal(t, tt.wantCode, body.Code)

			if tt.wantCode == "BUSY" {
				assert.Equal(t, retryAfterSeconds, resp.Header.Get(fiber.HeaderRetryAfter))
			} else {
				assert.Empty(t, resp.Header.Get(fiber.HeaderRetryAfter))
			}
		})
	}
}
