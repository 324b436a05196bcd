// @title           MarketBridge API
// @version         1.0
// @description     API for fetching TradingView chart data over pooled websocket sessions
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	appcharts "marketbridge/internal/application/service/charts"
	batch "marketbridge/internal/domain/entity/batch"
	marketdata "marketbridge/internal/domain/entity/marketdata"
	timeframe "marketbridge/internal/domain/timeframe"
	kvstore "marketbridge/internal/infrastructure/kvstore"
	tradingview "marketbridge/internal/infrastructure/tradingview"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const apiBasePath = "/api/v1"

var (
	errMissingToken       = errors.New("bearer token required")
	errMissingChart       = errors.New("chart query param required")
	errMissingAnchor      = errors.New("anchor query param required")
	errMissingPair        = errors.New("symbol and resolution are required")
	errMissingResolutions = errors.New("resolutions array required")
	errMissingSymbols     = errors.New("symbols or watchlist required")
	errEmptySymbolList    = errors.New("symbols array required")
	errKVUnavailable      = errors.New("key-value store is not configured")
)

type Handler struct {
	router   *gin.Engine
	charts   *appcharts.Service
	kv       *kvstore.Store
	manager  *tradingview.Manager
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewHandler(charts *appcharts.Service, kv *kvstore.Store, manager *tradingview.Manager, cache *redis.Client, cacheTTL time.Duration) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:   router,
		charts:   charts,
		kv:       kv,
		manager:  manager,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	h.router.GET("/healthz", h.health)

	api := h.router.Group(apiBasePath)

	// Timeframe checks are pure functions, so their responses cache well.
	tf := api.Group("/timeframes")
	if h.cache != nil {
		tf.Use(h.cacheMiddleware())
	}
	{
		tf.GET("/validate", h.validateTimeframe)
		tf.GET("/deltas", h.listDeltas)
	}

	charts := api.Group("/charts")
	{
		charts.POST("/fetch", h.fetchChart)
		charts.POST("/stream", h.streamBatch)
	}

	watchlists := api.Group("/watchlists")
	{
		watchlists.GET("", h.listWatchlists)
		watchlists.GET("/:name", h.getWatchlist)
		watchlists.PUT("/:name", h.saveWatchlist)
	}

	indicators := api.Group("/indicators")
	{
		indicators.GET("/:id", h.getIndicator)
		indicators.PUT("/:id", h.saveIndicator)
	}

	api.GET("/pool/stats", h.poolStats)
}

// health reports process liveness
// @Summary      Health check
// @Description  Report process liveness
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Timeframe handlers

// validateTimeframe checks an indicator timeframe combination
// @Summary      Validate timeframe combination
// @Description  Check an anchor period and optional delta against a chart resolution
// @Tags         timeframes
// @Produce      json
// @Param        chart   query     string  true   "Chart resolution (1, 60, 1D, ...)"
// @Param        anchor  query     string  true   "Anchor period (Session, Week, Month, Quarter, Year)"
// @Param        delta   query     string  false  "Delta resolution, must be finer than the chart"
// @Success      200     {object}  timeframe.Result
// @Failure      400     {object}  map[string]string
// @Router       /timeframes/validate [get]
func (h *Handler) validateTimeframe(c *gin.Context) {
	chart := c.Query("chart")
	if chart == "" {
		writeError(c, http.StatusBadRequest, errMissingChart)
		return
	}
	anchor := c.Query("anchor")
	if anchor == "" {
		writeError(c, http.StatusBadRequest, errMissingAnchor)
		return
	}
	c.JSON(http.StatusOK, timeframe.Validate(chart, anchor, c.Query("delta")))
}

// listDeltas lists the deltas valid for a chart resolution
// @Summary      List valid deltas
// @Description  Get the delta resolutions valid for a chart resolution, plus the recommended one
// @Tags         timeframes
// @Produce      json
// @Param        chart  query     string  true  "Chart resolution (1, 60, 1D, ...)"
// @Success      200    {object}  deltasResponse
// @Failure      400    {object}  map[string]string
// @Router       /timeframes/deltas [get]
func (h *Handler) listDeltas(c *gin.Context) {
	chart := c.Query("chart")
	if chart == "" {
		writeError(c, http.StatusBadRequest, errMissingChart)
		return
	}
	if _, ok := timeframe.ParseToMinutes(timeframe.Normalize(chart)); !ok {
		writeError(c, http.StatusBadRequest, fmt.Errorf("unparseable chart timeframe %q", chart))
		return
	}
	c.JSON(http.StatusOK, deltasResponse{
		Chart:       chart,
		ValidDeltas: timeframe.ValidDeltasFor(chart),
		Recommended: timeframe.RecommendedDelta(chart),
		Anchors:     timeframe.AnchorPeriods(),
	})
}

// Chart handlers

// fetchChart fetches one chart synchronously
// @Summary      Fetch chart
// @Description  Fetch bars for one symbol at one resolution over a pooled session
// @Tags         charts
// @Accept       json
// @Produce      json
// @Param        Authorization  header    string             true  "Bearer token"
// @Param        request        body      fetchChartPayload  true  "Chart request"
// @Success      200            {object}  marketdata.ChartData
// @Failure      400            {object}  map[string]string
// @Failure      401            {object}  map[string]string
// @Failure      422            {object}  map[string]string
// @Failure      502            {object}  map[string]string
// @Router       /charts/fetch [post]
func (h *Handler) fetchChart(c *gin.Context) {
	jwt := bearerToken(c)
	if jwt == "" {
		writeError(c, http.StatusUnauthorized, errMissingToken)
		return
	}
	var payload fetchChartPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if payload.Symbol == "" || payload.Resolution == "" {
		writeError(c, http.StatusBadRequest, errMissingPair)
		return
	}

	chart, err := h.charts.FetchChart(c.Request.Context(), jwt, appcharts.ChartQuery{
		Symbol:     payload.Symbol,
		Resolution: payload.Resolution,
		BarCount:   payload.BarCount,
		Indicator:  payload.Indicator,
	})
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, chart)
}

// streamBatch runs a batch job and streams progress as SSE
// @Summary      Stream batch fetch
// @Description  Fetch the cartesian product of symbols and resolutions, streaming one SSE event per completed batch and a terminal done event
// @Tags         charts
// @Accept       json
// @Produce      text/event-stream
// @Param        Authorization  header  string              true  "Bearer token"
// @Param        request        body    streamBatchPayload  true  "Batch job"
// @Success      200  "SSE stream of batch events"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /charts/stream [post]
func (h *Handler) streamBatch(c *gin.Context) {
	jwt := bearerToken(c)
	if jwt == "" {
		writeError(c, http.StatusUnauthorized, errMissingToken)
		return
	}
	var payload streamBatchPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if len(payload.Resolutions) == 0 {
		writeError(c, http.StatusBadRequest, errMissingResolutions)
		return
	}
	if len(payload.Symbols) == 0 && payload.Watchlist == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbols)
		return
	}

	job := &batch.Job{
		Symbols:     payload.Symbols,
		Resolutions: payload.Resolutions,
		BarCount:    payload.BarCount,
		Watchlist:   payload.Watchlist,
		Indicator:   payload.Indicator,
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	result, err := h.charts.FetchBatch(c.Request.Context(), jwt, job, func(event *batch.Event) {
		c.SSEvent("batch", event)
		c.Writer.Flush()
	})
	if err != nil {
		c.SSEvent("error", gin.H{"error": err.Error(), "kind": appcharts.ErrorKind(err)})
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", result)
	c.Writer.Flush()
}

// Watchlist handlers

// listWatchlists lists stored watchlist names
// @Summary      List watchlists
// @Description  List the names of every stored watchlist
// @Tags         watchlists
// @Produce      json
// @Success      200  {array}   string
// @Failure      500  {object}  map[string]string
// @Router       /watchlists [get]
func (h *Handler) listWatchlists(c *gin.Context) {
	if h.kv == nil {
		writeError(c, http.StatusServiceUnavailable, errKVUnavailable)
		return
	}
	names, err := h.kv.ListWatchlists(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

// getWatchlist retrieves one watchlist
// @Summary      Get watchlist
// @Description  Get the symbols of a named watchlist
// @Tags         watchlists
// @Produce      json
// @Param        name  path      string  true  "Watchlist name"
// @Success      200   {object}  watchlistResponse
// @Failure      404   {object}  map[string]string
// @Router       /watchlists/{name} [get]
func (h *Handler) getWatchlist(c *gin.Context) {
	if h.kv == nil {
		writeError(c, http.StatusServiceUnavailable, errKVUnavailable)
		return
	}
	name := c.Param("name")
	symbols, err := h.kv.FetchWatchlist(c.Request.Context(), name)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, watchlistResponse{Name: name, Symbols: symbols})
}

// saveWatchlist stores a watchlist in the key-value collaborator
// @Summary      Save watchlist
// @Description  Overwrite the symbols of a named watchlist
// @Tags         watchlists
// @Accept       json
// @Param        name     path  string            true  "Watchlist name"
// @Param        request  body  watchlistPayload  true  "Symbols"
// @Success      204  "No Content"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /watchlists/{name} [put]
func (h *Handler) saveWatchlist(c *gin.Context) {
	if h.kv == nil {
		writeError(c, http.StatusServiceUnavailable, errKVUnavailable)
		return
	}
	var payload watchlistPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if len(payload.Symbols) == 0 {
		writeError(c, http.StatusBadRequest, errEmptySymbolList)
		return
	}
	if err := h.kv.SaveWatchlist(c.Request.Context(), c.Param("name"), payload.Symbols); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Indicator handlers

// getIndicator retrieves a stored indicator configuration
// @Summary      Get indicator config
// @Description  Get the stored study configuration for an indicator id
// @Tags         indicators
// @Produce      json
// @Param        id   path      string  true  "Indicator id"
// @Success      200  {object}  marketdata.IndicatorConfig
// @Failure      404  {object}  map[string]string
// @Router       /indicators/{id} [get]
func (h *Handler) getIndicator(c *gin.Context) {
	if h.kv == nil {
		writeError(c, http.StatusServiceUnavailable, errKVUnavailable)
		return
	}
	cfg, err := h.kv.IndicatorConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// saveIndicator stores an indicator configuration
// @Summary      Save indicator config
// @Description  Store a study configuration under an indicator id
// @Tags         indicators
// @Accept       json
// @Param        id       path  string                      true  "Indicator id"
// @Param        request  body  marketdata.IndicatorConfig  true  "Indicator configuration"
// @Success      204  "No Content"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /indicators/{id} [put]
func (h *Handler) saveIndicator(c *gin.Context) {
	if h.kv == nil {
		writeError(c, http.StatusServiceUnavailable, errKVUnavailable)
		return
	}
	var cfg marketdata.IndicatorConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	cfg.ID = c.Param("id")
	if err := h.kv.SaveIndicatorConfig(c.Request.Context(), &cfg); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Pool handlers

// poolStats reports connection pool observability counters
// @Summary      Pool stats
// @Description  Get the shared pool's ref count and connection counters
// @Tags         pool
// @Produce      json
// @Success      200  {object}  poolStatsResponse
// @Router       /pool/stats [get]
func (h *Handler) poolStats(c *gin.Context) {
	c.JSON(http.StatusOK, poolStatsResponse{
		RefCount: h.manager.RefCount(),
		Pool:     h.manager.Stats(),
	})
}

// Helpers

type fetchChartPayload struct {
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"`
	BarCount   int    `json:"bar_count"`
	Indicator  string `json:"indicator"`
}

type streamBatchPayload struct {
	Symbols     []string `json:"symbols"`
	Resolutions []string `json:"resolutions"`
	BarCount    int      `json:"bar_count"`
	Watchlist   string   `json:"watchlist"`
	Indicator   string   `json:"indicator"`
}

type watchlistPayload struct {
	Symbols []string `json:"symbols"`
}

type watchlistResponse struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

type deltasResponse struct {
	Chart       string   `json:"chart"`
	ValidDeltas []string `json:"valid_deltas"`
	Recommended string   `json:"recommended"`
	Anchors     []string `json:"anchors"`
}

type poolStatsResponse struct {
	RefCount int                   `json:"ref_count"`
	Pool     tradingview.PoolStats `json:"pool"`
}

const bearerPrefix = "Bearer "

// bearerToken extracts the upstream JWT supplied by the caller. The token is
// opaque here; expiry surfaces as a session_expired error from the fetch.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
	}
	return c.GetHeader("X-Auth-Token")
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, appcharts.ErrMissingJWT), errors.Is(err, tradingview.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, timeframe.ErrConstraintViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, kvstore.ErrWatchlistNotFound), errors.Is(err, kvstore.ErrIndicatorNotFound):
		return http.StatusNotFound
	case errors.Is(err, appcharts.ErrNilJob), errors.Is(err, appcharts.ErrEmptyJob):
		return http.StatusBadRequest
	case errors.Is(err, appcharts.ErrNoWatchlistStore), errors.Is(err, appcharts.ErrNoIndicatorSource):
		return http.StatusServiceUnavailable
	case errors.Is(err, tradingview.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, tradingview.ErrTransport), errors.Is(err, tradingview.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// cacheMiddleware caches GET responses in Redis.
func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.FullPath(), c.Request.URL.RawQuery)
}
