package rest

import (
	"context"
	"errors"
	"fmt"

	domainPinterest "github.com/AzielCF/az-sticker/domains/pinterest"
	"github.com/AzielCF/az-sticker/pkg/fetchpool"
	"github.com/AzielCF/az-sticker/pkg/utils"
	"github.com/AzielCF/az-sticker/validations"
	"github.com/gofiber/fiber/v2"
)

type Pinterest struct {
	Service domainPinterest.ISearchUsecase
	Janitor domainPinterest.IJanitorUsecase
	Pool    *fetchpool.Pool
}

func InitRestPinterest(app fiber.Router, service domainPinterest.ISearchUsecase, janitor domainPinterest.IJanitorUsecase, pool *fetchpool.Pool) Pinterest {
	rest := Pinterest{Service: service, Janitor: janitor, Pool: pool}
	app.Get("/pinterest/search", rest.Search)
	app.Delete("/pinterest/cache/:type", rest.Invalidate)
	app.Post("/pinterest/cache/sweep", rest.Sweep)
	app.Get("/pinterest/cache/stats", rest.Stats)
	app.Get("/fetch-pool/stats", rest.PoolStats)

	return rest
}

// Search resolves q to a local artifact. With ?raw=true the file itself is
// sent instead of the JSON record.
func (handler *Pinterest) Search(c *fiber.Ctx) error {
	var request domainPinterest.SearchRequest
	if err := c.QueryParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}
	utils.PanicIfNeeded(validations.ValidateSearchRequest(c.UserContext(), &request))

	var result domainPinterest.FetchResult
	resolve := func(ctx context.Context) error {
		var err error
		result, err = handler.Service.Resolve(ctx, request.Namespace, request.Query)
		return err
	}

	var err error
	if handler.Pool != nil {
		err = handler.Pool.Run(c.UserContext(), string(request.Namespace), domainPinterest.NormalizeQuery(request.Query), resolve)
	} else {
		err = resolve(c.UserContext())
	}
	if errors.Is(err, fetchpool.ErrQueueFull) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "Too many searches in flight, try again later",
		})
	}
	utils.PanicIfNeeded(err)

	if c.QueryBool("raw") {
		return c.SendFile(result.Record.Location)
	}

	message := "Fetched new result"
	if result.FromCache {
		message = "Served cached result"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: result,
	})
}

func (handler *Pinterest) Invalidate(c *fiber.Ctx) error {
	ns := domainPinterest.Namespace(c.Params("type"))
	utils.PanicIfNeeded(validations.ValidateNamespace(ns))

	query := c.Query("q")
	existed, err := handler.Service.Invalidate(c.UserContext(), ns, query)
	utils.PanicIfNeeded(err)

	message := fmt.Sprintf("No cached entry for %q", query)
	if existed {
		message = fmt.Sprintf("Cache entry for %q removed", query)
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: fiber.Map{"existed": existed},
	})
}

func (handler *Pinterest) Sweep(c *fiber.Ctx) error {
	report := handler.Janitor.RunOnce(c.UserContext())

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Sweep completed",
		Results: report,
	})
}

func (handler *Pinterest) Stats(c *fiber.Ctx) error {
	stats, err := handler.Janitor.Stats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats retrieved",
		Results: stats,
	})
}

func (handler *Pinterest) PoolStats(c *fiber.Ctx) error {
	if handler.Pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Fetch pool not initialized",
		})
	}
	return c.JSON(handler.Pool.GetStats())
}
