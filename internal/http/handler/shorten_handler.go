package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/shortng/internal/app/model"
	"github.com/sifan077/shortng/internal/app/service"
	"github.com/sifan077/shortng/internal/http/view"
	"go.uber.org/zap"
)

// ShortenMetrics records the outcome of every POST /shortng call.
type ShortenMetrics interface {
	ObserveShorten(source, outcome string)
}

// ShortenDeps groups dependencies required by the shortener handlers.
type ShortenDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Metrics     ShortenMetrics
	// Pinger reports readiness of the optional journal database.
	Pinger func(ctx context.Context) error
	// EditWindow is the resave window shown on the form. Zero means
	// service.DefaultEditWindow.
	EditWindow time.Duration
}

// ShortenHandler serves the shortener form and the shorten endpoint.
type ShortenHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	metrics     ShortenMetrics
	pinger      func(ctx context.Context) error
	editWindow  time.Duration
}

// NewShortenHandler creates a shorten handler with the provided dependencies.
func NewShortenHandler(deps ShortenDeps) *ShortenHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	editWindow := deps.EditWindow
	if editWindow <= 0 {
		editWindow = service.DefaultEditWindow
	}
	return &ShortenHandler{
		logger:      logger,
		linkService: deps.LinkService,
		metrics:     deps.Metrics,
		pinger:      deps.Pinger,
		editWindow:  editWindow,
	}
}

// Register wires the shortener routes. Extra handlers run in front of
// POST /shortng only.
func (h *ShortenHandler) Register(router fiber.Router, shortenMiddleware ...fiber.Handler) {
	router.Get("/", h.Form)
	router.Get("/shortener.html", h.Form)
	router.Get("/health", h.Health)
	router.Post("/shortng", append(shortenMiddleware, h.Shorten)...)
}

// Health reports liveness and, when a journal database is configured, its reachability.
func (h *ShortenHandler) Health(c *fiber.Ctx) error {
	body := fiber.Map{
		"service": "shortng",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.pinger != nil {
		journal := "ok"
		if err := h.pinger(userContext(c)); err != nil {
			h.logger.Warn("journal database unreachable", zap.Error(err))
			journal = "unavailable"
		}
		body["journal"] = journal
	}
	return c.JSON(body)
}

// Form renders the shortener form prefilled from the query string.
func (h *ShortenHandler) Form(c *fiber.Ctx) error {
	html, err := view.RenderShortenerPage(view.ShortenerPageData{
		Action:   "shortng",
		Filename: c.Query(service.FieldFilename),
		Title:    c.Query(service.FieldTitle),
		Text:     c.Query(service.FieldText),

		EditWindow: service.HumanizeWindow(h.editWindow),
	})
	if err != nil {
		h.logger.Error("failed to render shortener page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("failed to render page")
	}
	return c.Type("html", "utf-8").SendString(html)
}

// Shorten handles POST /shortng.
func (h *ShortenHandler) Shorten(c *fiber.Ctx) error {
	in, err := inboundRequest(c)
	if err != nil {
		h.observe(model.SourceAPIPlain, "malformed")
		return c.Status(fiber.StatusBadRequest).SendString(err.Error())
	}

	res, err := h.linkService.Shorten(userContext(c), in)
	if err != nil {
		svcErr, ok := service.AsError(err)
		if !ok {
			h.logger.Error("shorten failed", zap.Error(err))
			h.observe(model.SourceAPIPlain, "internal")
			return c.Status(fiber.StatusInternalServerError).SendString("internal server error")
		}
		if svcErr.Kind == service.KindUpstream {
			h.logger.Error("shorten failed upstream",
				zap.Error(svcErr),
				zap.String("source", svcErr.Source.String()))
		} else {
			h.logger.Info("shorten rejected",
				zap.String("kind", svcErr.Kind.String()),
				zap.String("source", svcErr.Source.String()))
		}
		h.observe(svcErr.Source, svcErr.Kind.String())
		return h.fail(c, svcErr)
	}

	h.observe(res.Source, "ok")
	return h.succeed(c, res)
}

func (h *ShortenHandler) succeed(c *fiber.Ctx, res *service.Result) error {
	switch res.Source {
	case model.SourceSlack:
		return c.JSON(slackResponse(res.URL))
	case model.SourceAPIJSON:
		return c.JSON(fiber.Map{"link": res.URL})
	case model.SourceWeb:
		html, err := view.RenderResultPage(view.ResultPageData{
			URL:         res.URL,
			DownloadURL: res.DownloadURL,
			StartOver:   "shortener.html",
			Overwrite:   res.Overwrite,
		})
		if err != nil {
			h.logger.Error("failed to render result page", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).SendString("failed to render page")
		}
		return c.Type("html", "utf-8").SendString(html)
	default:
		return c.SendString(res.URL)
	}
}

func (h *ShortenHandler) fail(c *fiber.Ctx, svcErr *service.Error) error {
	c.Status(fiber.StatusBadRequest)
	switch svcErr.Source {
	case model.SourceSlack, model.SourceAPIJSON:
		return c.JSON(slackResponse(svcErr.Message))
	default:
		return c.SendString(svcErr.Message)
	}
}

func (h *ShortenHandler) observe(source model.RequestSource, outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveShorten(source.String(), outcome)
	}
}

func slackResponse(text string) fiber.Map {
	return fiber.Map{
		"text":          text,
		"response_type": "ephemeral",
	}
}

// inboundRequest copies the parts of the HTTP request the normalizer reads.
func inboundRequest(c *fiber.Ctx) (model.InboundRequest, error) {
	in := model.InboundRequest{
		UserAgent:   c.Get(fiber.HeaderUserAgent),
		ContentType: c.Get(fiber.HeaderContentType),
	}

	if in.IsJSON() {
		fields, err := jsonFields(c.Body())
		if err != nil {
			return in, err
		}
		in.JSON = fields
		return in, nil
	}

	in.Form = map[string]string{}
	if strings.HasPrefix(strings.ToLower(in.ContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return in, fmt.Errorf("could not parse multipart form: %w", err)
		}
		for key, values := range form.Value {
			if len(values) > 0 {
				in.Form[key] = values[0]
			}
		}
		return in, nil
	}

	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		if _, seen := in.Form[k]; !seen {
			in.Form[k] = string(value)
		}
	})
	return in, nil
}

// jsonFields flattens a JSON object body into string fields. Non-string
// scalars keep their JSON text.
func jsonFields(body []byte) (map[string]string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]string{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("request body is not a JSON object: %w", err)
	}
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			fields[key] = s
			continue
		}
		if string(value) == "null" {
			continue
		}
		fields[key] = string(value)
	}
	return fields, nil
}

func userContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
