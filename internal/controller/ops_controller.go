package controller

import (
	"ai-bookchat-be/internal/dto"
	"ai-bookchat-be/internal/pkg/serverutils"
	"ai-bookchat-be/internal/repository/memory"
	"ai-bookchat-be/pkg/pipeline"
	"ai-bookchat-be/pkg/progress"
	"ai-bookchat-be/pkg/vectorstore"

	"github.com/gofiber/fiber/v2"
)

// Operational views over the embedding storage, caches and the processing
// queue. Admin only.
type IOpsController interface {
	RegisterRoutes(r fiber.Router)
	StorageStats(ctx *fiber.Ctx) error
	CacheStats(ctx *fiber.Ctx) error
	QueueStats(ctx *fiber.Ctx) error
}

type opsController struct {
	store     *vectorstore.DiskStore
	cache     *vectorstore.MemoryCache
	respCache *memory.ResponseCache
	registry  *pipeline.Registry
	bus       *progress.Bus
}

func NewOpsController(
	store *vectorstore.DiskStore,
	cache *vectorstore.MemoryCache,
	respCache *memory.ResponseCache,
	registry *pipeline.Registry,
	bus *progress.Bus,
) IOpsController {
	return &opsController{
		store:     store,
		cache:     cache,
		respCache: respCache,
		registry:  registry,
		bus:       bus,
	}
}

func (c *opsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/ops/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Use(serverutils.RequireAdmin)
	h.Get("/storage", c.StorageStats)
	h.Get("/cache", c.CacheStats)
	h.Get("/queue", c.QueueStats)
}

func (c *opsController) StorageStats(ctx *fiber.Ctx) error {
	stats, err := c.store.Stats()
	if err != nil {
		return err
	}

	res := dto.StorageStatsResponse{
		Root:  c.store.Root(),
		Stats: stats,
	}
	return ctx.JSON(serverutils.SuccessResponse("Storage stats", res))
}

func (c *opsController) CacheStats(ctx *fiber.Ctx) error {
	res := dto.CacheStatsResponse{
		Memory: c.cache.Stats(),
		Response: dto.ResponseCacheStatsDTO{
			Entries:    c.respCache.Len(),
			MaxEntries: c.respCache.MaxEntries(),
		},
	}
	return ctx.JSON(serverutils.SuccessResponse("Cache stats", res))
}

func (c *opsController) QueueStats(ctx *fiber.Ctx) error {
	res := dto.QueueStatsResponse{
		Tracked: c.registry.Len(),
		Jobs:    c.registry.Snapshot(),
		Bus:     c.bus.Stats(),
	}
	return ctx.JSON(serverutils.SuccessResponse("Queue stats", res))
}
