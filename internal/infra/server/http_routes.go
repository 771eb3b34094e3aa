package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/mercadolista/catalog-service/config"
	"github.com/mercadolista/catalog-service/internal/core/catalog"
	"github.com/mercadolista/catalog-service/internal/core/resolver"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogfiber "github.com/samber/slog-fiber"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

var (
	httpRequestsCounter  api.Int64Counter
	httpRequestHistogram api.Float64Histogram
)

// Handlers bundles the core services the HTTP layer calls into.
type Handlers struct {
	Pipeline *resolver.Pipeline
	Catalog  *catalog.Service
	Logger   *slog.Logger
}

func initGlobalMiddlewares(app *fiber.App, cfg *config.Config) {
	app.Use(
		compress.New(compress.Config{
			Level: compress.LevelDefault,
		}),

		slogfiber.NewWithFilters(slog.Default(), slogfiber.IgnorePath("/health")),

		cors.New(cors.Config{
			AllowOrigins: "*", // TODO - add allowed origins
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		}),

		favicon.New(),
		limiter.New(limiter.Config{
			Max:               cfg.RateLimitMax,
			Expiration:        time.Duration(cfg.RateLimitWindow) * time.Second,
			LimiterMiddleware: limiter.SlidingWindow{},
		}),
	)

	app.Use(otelfiber.Middleware())
}

func registerHttpRoutes(app *fiber.App, cfg *config.Config, h *Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "timestamp": time.Now().Unix()})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	products := app.Group("/v1/products", authRequired(cfg.GetAPITokens()))

	products.Post("/parse", withMetrics(h.handleParse))
	products.Get("/standardize", withMetrics(h.handleStandardize))
	products.Post("/:product_id/increment-score", withMetrics(h.handleIncrementScore))
}

type parseRequest struct {
	Terms *[]string `json:"terms"`
}

// handleParse resolves a batch of raw terms. A body whose terms field is not
// a list rejects the whole batch; per-term failures land in their own slot.
func (h *Handlers) handleParse(c *fiber.Ctx) error {
	var req parseRequest
	if err := c.BodyParser(&req); err != nil || req.Terms == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "O corpo da requisição deve conter uma lista no campo 'terms'.",
		})
	}

	results := h.Pipeline.ResolveMany(c.UserContext(), *req.Terms)
	return c.JSON(results)
}

// handleStandardize lists the catalog, optionally filtered by a free-text
// query, sorted by descending score.
func (h *Handlers) handleStandardize(c *fiber.Ctx) error {
	query := c.Query("q")

	var entries []*catalog.Entry
	var err error
	if strings.TrimSpace(query) != "" {
		entries, err = h.Catalog.Search(c.UserContext(), query)
	} else {
		entries, err = h.Catalog.List(c.UserContext())
	}
	if err != nil {
		h.Logger.Error("Catalog listing failed", "query", query, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Erro ao listar produtos."})
	}

	if entries == nil {
		entries = []*catalog.Entry{}
	}
	return c.JSON(entries)
}

// handleIncrementScore registers a vote: increments an existing entry's score
// or creates the entry with score 1 from the request body.
func (h *Handlers) handleIncrementScore(c *fiber.Ctx) error {
	productID := c.Params("product_id")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ID do produto é obrigatório."})
	}

	var payload catalog.VoteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Corpo da requisição inválido."})
		}
	}

	if err := h.Catalog.Vote(c.UserContext(), productID, payload); err != nil {
		h.Logger.Error("Vote failed", "product_id", productID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Erro inesperado ao processar o voto."})
	}

	return c.JSON(fiber.Map{"success": fmt.Sprintf("Pontuação para o produto '%s' processada.", productID)})
}

func withMetrics(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := handler(c)

		durationMs := float64(time.Since(start).Milliseconds())

		if httpRequestsCounter != nil {
			httpRequestsCounter.Add(c.UserContext(), 1,
				api.WithAttributes(
					attribute.String("method", c.Method()),
					attribute.String("path", c.Route().Path),
					attribute.Int("status_code", c.Response().StatusCode()),
				),
			)
		}

		if httpRequestHistogram != nil {
			httpRequestHistogram.Record(c.UserContext(), durationMs,
				api.WithAttributes(
					attribute.String("method", c.Method()),
					attribute.String("path", c.Route().Path),
					attribute.Int("status_code", c.Response().StatusCode()),
				),
			)
		}

		return err
	}
}
