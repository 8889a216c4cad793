package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/source-open-meteo/internal/connector"
	"github.com/i474232898/source-open-meteo/internal/openmeteo"
	"github.com/i474232898/source-open-meteo/internal/protocol"
	"github.com/i474232898/source-open-meteo/internal/store"
)

var validate = validator.New()

const readTimeout = 30 * time.Second

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *connector.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/spec", func(c *fiber.Ctx) error {
		return c.JSON(protocol.ConnectorSpec())
	})

	v1.Post("/check", func(c *fiber.Ctx) error {
		cfg, err := parseSourceConfig(c)
		if err != nil {
			return err
		}
		return c.JSON(protocol.StatusFromCheck(service.Check(cfg)))
	})

	v1.Post("/discover", func(c *fiber.Ctx) error {
		cfg, err := parseSourceConfig(c)
		if err != nil {
			return err
		}
		streams, err := service.Streams(cfg)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(protocol.BuildCatalog(streams))
	})

	v1.Post("/read", func(c *fiber.Ctx) error {
		var q readQuery
		q.Stream = c.Query("stream")
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cfg, err := parseSourceConfig(c)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), readTimeout)
		defer cancel()

		var only []openmeteo.Variant
		if v, ok := openmeteo.LookupVariant(q.Stream); ok {
			only = append(only, v)
		}

		records := make(map[string][]openmeteo.Record)
		err = service.Read(ctx, cfg, only, func(stream string, rec openmeteo.Record) error {
			records[stream] = append(records[stream], rec)
			return nil
		})
		if err != nil {
			if errors.Is(err, openmeteo.ErrMissingField) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}

		return c.JSON(fiber.Map{"streams": records})
	})

	v1.Get("/records/:stream", func(c *fiber.Ctx) error {
		stream, err := parseStreamParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		batch, err := service.GetLatest(stream)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no synced records for requested stream")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch synced records")
		}

		return c.JSON(batch)
	})

	v1.Get("/records/:stream/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		batches, err := service.GetRange(req.Stream, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no synced records for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch sync history")
		}

		return c.JSON(fiber.Map{
			"stream":  req.Stream,
			"from":    req.From,
			"to":      req.To,
			"batches": batches,
		})
	})
}

func parseSourceConfig(c *fiber.Ctx) (openmeteo.SourceConfig, error) {
	cfg, err := openmeteo.ParseSourceConfig(c.Body())
	if err != nil {
		return cfg, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return cfg, nil
}

// readQuery holds query parameters for the read endpoint.
type readQuery struct {
	Stream string `validate:"omitempty,oneof=hourly_forecast daily_forecast"`
}

// streamParam identifies a stream in the path.
type streamParam struct {
	Stream string `validate:"required,oneof=hourly_forecast daily_forecast"`
}

func parseStreamParam(c *fiber.Ctx) (string, error) {
	p := streamParam{Stream: c.Params("stream")}
	if err := validate.Struct(p); err != nil {
		return "", err
	}
	return p.Stream, nil
}

// historyQuery holds parameters for the history endpoint.
type historyQuery struct {
	Stream string    `validate:"required"`
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	stream, err := parseStreamParam(c)
	if err != nil {
		return err
	}
	h.Stream = stream

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

// ErrorHandler renders errors as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
