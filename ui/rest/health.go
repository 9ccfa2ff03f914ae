package rest

import (
	"github.com/AzielCF/az-sticker/domains/health"
	"github.com/AzielCF/az-sticker/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Health struct {
	Service health.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service health.IHealthUsecase) Health {
	handler := Health{Service: service}

	group := app.Group("/health")
	group.Get("/status", handler.GetStatus)
	group.Post("/check-all", handler.CheckAll)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: h.Service.GetStatus(c.UserContext()),
	})
}

func (h *Health) CheckAll(c *fiber.Ctx) error {
	records := h.Service.CheckAll(c.UserContext())

	code, status := 200, "SUCCESS"
	for _, r := range records {
		if r.Status == health.StatusError {
			code, status = fiber.StatusServiceUnavailable, "DEGRADED"
			break
		}
	}
	return c.Status(code).JSON(utils.ResponseData{
		Status:  code,
		Code:    status,
		Message: "Health check completed",
		Results: records,
	})
}
