package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-diary-sync/internal/diary"
	"github.com/i474232898/weather-diary-sync/internal/diary/hybrid"
	"github.com/i474232898/weather-diary-sync/internal/diary/local"
	"github.com/i474232898/weather-diary-sync/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, router *weather.Router, engine *hybrid.Engine) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		rec := router.Current(c.UserContext())
		return c.JSON(fiber.Map{
			"weather": rec,
			"source":  router.ActiveSource(),
		})
	})

	v1.Post("/diaries", func(c *fiber.Ctx) error {
		var draft diary.Draft
		if err := c.BodyParser(&draft); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(draft); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		entry := engine.Save(c.UserContext(), draft)
		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	v1.Get("/diaries", func(c *fiber.Ctx) error {
		entries := engine.List(c.UserContext())
		return c.JSON(fiber.Map{
			"entries": entries,
			"count":   len(entries),
		})
	})

	v1.Patch("/diaries/:id", func(c *fiber.Ctx) error {
		var patch diary.Patch
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		entry, err := engine.Update(c.UserContext(), c.Params("id"), patch)
		if err != nil {
			if errors.Is(err, local.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "diary entry not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to update diary entry")
		}
		return c.JSON(entry)
	})

	v1.Delete("/diaries/:id", func(c *fiber.Ctx) error {
		if err := engine.Delete(c.UserContext(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to delete diary entry")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Post("/diaries/sync", func(c *fiber.Ctx) error {
		res, err := engine.ManualSync(c.UserContext())
		if err != nil {
			switch {
			case errors.Is(err, hybrid.ErrSyncInProgress):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			case errors.Is(err, hybrid.ErrSyncCooldown):
				return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
			case errors.Is(err, hybrid.ErrRemoteOffline):
				return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "sync failed")
		}
		return c.JSON(res)
	})

	v1.Get("/storage/status", func(c *fiber.Ctx) error {
		return c.JSON(engine.Status())
	})

	v1.Post("/storage/reinitialize", func(c *fiber.Ctx) error {
		engine.Reinitialize(c.UserContext())
		return c.JSON(engine.Status())
	})

	v1.Delete("/storage/state", func(c *fiber.Ctx) error {
		engine.ResetState()
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Post("/storage/mode", func(c *fiber.Ctx) error {
		var req modeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		mode, err := hybrid.ParseMode(req.Mode)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := engine.SwitchMode(c.UserContext(), mode); err != nil {
			if errors.Is(err, hybrid.ErrModeNeedsRemote) {
				return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to switch mode")
		}
		return c.JSON(engine.Status())
	})
}

// modeRequest is the body of the mode-switch endpoint.
type modeRequest struct {
	Mode string `json:"mode" validate:"required"`
}
