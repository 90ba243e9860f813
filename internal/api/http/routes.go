package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-history/internal/export"
	"github.com/i474232898/weather-history/internal/weather"
)

var validate = validator.New()

// Options tune the routes. A zero RequestTimeout means no per-request deadline.
type Options struct {
	RequestTimeout time.Duration
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, opts Options) {
	h := &handlers{service: service, timeout: opts.RequestTimeout}

	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", h.currentWeather)

	history := v1.Group("/weather-history")
	history.Post("/", h.createRecord)
	history.Get("/", h.listRecords)
	// Registered before /:id so "export" is never taken for an id.
	history.Get("/export", h.exportRecords)
	history.Get("/:id", h.getRecord)
	history.Put("/:id", h.updateRecord)
	history.Patch("/:id", h.updateRecord)
	history.Delete("/:id", h.deleteRecord)

	info := v1.Group("/location-info")
	info.Get("/:name/videos", h.videos)
	info.Get("/:name/map", h.mapLink)
	info.Get("/:name", h.extras)
}

type handlers struct {
	service *weather.Service
	timeout time.Duration
}

func (h *handlers) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *handlers) currentWeather(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	result, err := h.service.GetCurrent(ctx, c.Query("location"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *handlers) createRecord(c *fiber.Ctx) error {
	var req weather.AssembleRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	rec, err := h.service.CreateRecord(ctx, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *handlers) listRecords(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	recs, err := h.service.ListRecords(ctx)
	if err != nil {
		return err
	}
	return c.JSON(recs)
}

func (h *handlers) exportRecords(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	recs, err := h.service.ListRecords(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, recs, format); err != nil {
		return err
	}

	c.Attachment(format.FileName())
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(buf.Bytes())
}

func (h *handlers) getRecord(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	rec, err := h.service.GetRecord(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// updateRequest only exposes the mutable fields of a record.
type updateRequest struct {
	UserNotes *string `json:"userNotes"`
}

type updateResponse struct {
	Updated bool                  `json:"updated"`
	Message string                `json:"message"`
	Record  weather.HistoryRecord `json:"record"`
}

func (h *handlers) updateRecord(c *fiber.Ctx) error {
	var req updateRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	rec, changed, err := h.service.UpdateRecord(ctx, c.Params("id"), weather.RecordPatch{UserNotes: req.UserNotes})
	if err != nil {
		return err
	}

	msg := "record updated"
	if !changed {
		msg = "no changes made"
	}
	return c.JSON(updateResponse{Updated: changed, Message: msg, Record: rec})
}

func (h *handlers) deleteRecord(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	id := c.Params("id")
	if err := h.service.DeleteRecord(ctx, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "record deleted", "id": id})
}

// videosQuery holds the optional result limit for video search.
type videosQuery struct {
	Limit int `validate:"min=0"`
}

func (h *handlers) videos(c *fiber.Ctx) error {
	name, err := locationParam(c)
	if err != nil {
		return err
	}

	var q videosQuery
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return weather.NewValidationError("limit", "must be an integer")
		}
		q.Limit = n
	}
	if err := validate.Struct(q); err != nil {
		return weather.NewValidationError("limit", "must not be negative")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	videos, err := h.service.SearchVideos(ctx, name, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"location": name, "videos": videos})
}

func (h *handlers) mapLink(c *fiber.Ctx) error {
	name, err := locationParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	link, err := h.service.GetMapLink(ctx, name)
	if err != nil {
		return err
	}
	return c.JSON(link)
}

func (h *handlers) extras(c *fiber.Ctx) error {
	name, err := locationParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	extras, err := h.service.GetExtras(ctx, name)
	if err != nil {
		return err
	}
	return c.JSON(extras)
}

func locationParam(c *fiber.Ctx) (string, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return "", weather.NewValidationError("name", "invalid path escape")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", weather.NewValidationError("name", weather.MsgMissingField)
	}
	return name, nil
}

// decodeBody unmarshals a JSON body into v. An empty body leaves v zero.
func decodeBody(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return weather.NewValidationError("body", "malformed JSON")
	}
	return nil
}
