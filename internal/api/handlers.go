package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"noiserelay/internal/models"
	"noiserelay/internal/service/relay"
)

// Relay is the operation surface the HTTP layer depends on.
type Relay interface {
	Describe(ctx context.Context, src io.Reader, variant string) relay.Result
	Summarize(ctx context.Context, descriptions string) relay.Result
}

type Options struct {
	// MaxUploadBytes caps the /describe request body; zero means unlimited.
	MaxUploadBytes  int64
	Model           string
	DescribeVariant string
}

// Handler wires HTTP routes to the relay service.
type Handler struct {
	relay Relay
	opts  Options
	log   zerolog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(r Relay, opts Options, log zerolog.Logger) *Handler {
	return &Handler{
		relay: r,
		opts:  opts,
		log:   log.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/describe", h.describeAudio)
	router.POST("/summarize", h.summarize)
	router.GET("/healthz", h.health)
}

// NewRouter builds an engine with recovery, request ids and access logging.
func (h *Handler) NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), AccessLog(h.log), gin.CustomRecovery(h.recoverPanic))
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) describeAudio(c *gin.Context) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		h.writeResult(c, h.readFailure(c, err), describeBody)
		return
	}
	f, err := file.Open()
	if err != nil {
		h.writeResult(c, h.readFailure(c, err), describeBody)
		return
	}
	defer f.Close()

	res := h.relay.Describe(c.Request.Context(), f, c.Query("variant"))
	h.writeResult(c, res, describeBody)
}

// summarize accepts descriptions as a query parameter or a form field.
// A missing value is the empty string.
func (h *Handler) summarize(c *gin.Context) {
	descriptions, ok := c.GetQuery("descriptions")
	if !ok {
		descriptions = c.PostForm("descriptions")
	}
	res := h.relay.Summarize(c.Request.Context(), descriptions)
	h.writeResult(c, res, summaryBody)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"model":            h.opts.Model,
		"describe_variant": h.opts.DescribeVariant,
	})
}

func describeBody(text string) any {
	return models.DescribeResponse{Description: text}
}

func summaryBody(text string) any {
	return models.SummaryResponse{Summary: text}
}

// writeResult is the single failure boundary: every error is a 500 with its message.
func (h *Handler) writeResult(c *gin.Context, res relay.Result, success func(string) any) {
	if !res.OK() {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: res.Err.Error()})
		return
	}
	c.JSON(http.StatusOK, success(res.Text))
}

func (h *Handler) readFailure(c *gin.Context, err error) relay.Result {
	res := relay.Fail(relay.ErrRead, err)
	h.log.Error().Err(err).
		Str("request_id", RequestIDFromContext(c)).
		Str("kind", relay.KindName(res.Err)).
		Msg("read upload failed")
	return res
}

func (h *Handler) recoverPanic(c *gin.Context, recovered any) {
	h.log.Error().Interface("panic", recovered).
		Str("request_id", RequestIDFromContext(c)).
		Str("path", c.Request.URL.Path).
		Msg("handler panicked")
	c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
}
