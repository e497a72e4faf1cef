package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/receiving"
	"github.com/jhoicas/stock-ledger/internal/application/settlement"
	"github.com/jhoicas/stock-ledger/internal/application/transfer"
	"github.com/jhoicas/stock-ledger/pkg/logger"
	pkgredis "github.com/jhoicas/stock-ledger/pkg/redis"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine     *ledger.Engine
	Transfers  *transfer.Service
	Settlement *settlement.Service
	Receiving  *receiving.Service

	JWTSecret string
	JWTIssuer string

	// Opcionales.
	Idempotency    pkgredis.IdempotencyStore
	IdempotencyTTL time.Duration
	Gatherer       prometheus.Gatherer
	Logger         *logger.Logger
	ServiceName    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("http")

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	if deps.Idempotency != nil {
		api.Use(Idempotency(deps.Idempotency, deps.IdempotencyTTL, log))
	}

	// Existencias y libro
	ledgerHandler := NewLedgerHandler(deps.Engine, log)
	api.Get("/branches/:branch_id/stock", ledgerHandler.GetStock)
	api.Get("/branches/:branch_id/replenishment", ledgerHandler.Replenishment)
	api.Get("/ledger/events", ledgerHandler.ListEvents)
	api.Get("/ledger/reconcile", RequireRole("admin"), ledgerHandler.Reconcile)

	// Ingresos
	receipts := api.Group("/receipts")
	receiptHandler := NewReceiptHandler(deps.Receiving, log)
	receipts.Post("/", receiptHandler.Create)
	receipts.Get("/", receiptHandler.List)
	receipts.Get("/:id", receiptHandler.GetByID)
	receipts.Post("/:id/cancel", receiptHandler.Cancel)

	// Traslados
	movements := api.Group("/movements")
	movementHandler := NewMovementHandler(deps.Transfers, log)
	movements.Post("/", movementHandler.Create)
	movements.Get("/", movementHandler.List)
	movements.Get("/:id", movementHandler.GetByID)
	movements.Post("/:id/accept", movementHandler.Accept)
	movements.Post("/:id/reject", movementHandler.Reject)
	movements.Post("/:id/revert", movementHandler.Revert)

	// Ventas y deuda
	saleHandler := NewSaleHandler(deps.Settlement, log)
	sales := api.Group("/sales")
	sales.Post("/", saleHandler.Checkout)
	sales.Get("/:id", saleHandler.GetByID)
	sales.Post("/:id/returns", saleHandler.Return)

	clients := api.Group("/clients")
	clients.Get("/:id/debt", saleHandler.ClientDebt)
	clients.Post("/:id/payments", saleHandler.PayDebt)
}
