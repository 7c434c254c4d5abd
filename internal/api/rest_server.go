package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/logging"
	"github.com/annel0/procworld/internal/middleware"
	"github.com/annel0/procworld/internal/sim"
	"github.com/annel0/procworld/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// execTimeout сколько запрос ждёт цикл кадров
const execTimeout = 2 * time.Second

// RestServer отладочный HTTP API над миром
type RestServer struct {
	router  *gin.Engine
	world   *sim.World
	addr    string
	metrics *ServerMetrics
	srv     *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr     string               // адрес для запуска сервера
	World    *sim.World           // мир; доступ только через Exec и Snapshot
	Registry *prometheus.Registry // nil - дефолтный регистр
	Logger   *logging.Logger      // логгер компонента api
	Service  string
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8089"
	}
	if cfg.Service == "" {
		cfg.Service = "procworld"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(cfg.Service))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	var reg prometheus.Registerer
	var gatherer prometheus.Gatherer
	if cfg.Registry != nil {
		reg, gatherer = cfg.Registry, cfg.Registry
	}
	promMw := middleware.NewPrometheusMiddleware(cfg.Service+"_debug", reg)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, gatherer)

	rs := &RestServer{
		router:  router,
		world:   cfg.World,
		addr:    cfg.Addr,
		metrics: NewServerMetrics(),
	}
	rs.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/height", rs.handleHeight)
		api.GET("/biome", rs.handleBiome)
		api.GET("/chunks", rs.handleChunks)
		api.GET("/birds", rs.handleBirds)
		api.GET("/creature", rs.handleCreature)
		api.POST("/creature/goal", rs.handleCreatureGoal)
		api.GET("/terrain", rs.handleGetTerrain)
		api.PUT("/terrain", rs.handleSetTerrain)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PointResponse ответ на запрос высоты/биома. Height == nil - данных нет.
type PointResponse struct {
	X      float64  `json:"x"`
	Z      float64  `json:"z"`
	Height *float64 `json:"height"`
	Biome  string   `json:"biome"`
}

// ChunkInfo состояние одного чанка
type ChunkInfo struct {
	X         int    `json:"x"`
	Z         int    `json:"z"`
	State     string `json:"state"`
	Vertices  int    `json:"vertices"`
	Triangles int    `json:"triangles"`
	Trees     int    `json:"trees"`
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, GenericResponse{Success: false, Message: msg})
}

// exec выполняет fn в цикле кадров с таймаутом запроса
func (rs *RestServer) exec(c *gin.Context, fn func(*sim.World)) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), execTimeout)
	defer cancel()

	if err := rs.world.Exec(ctx, fn); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		fail(c, status, fmt.Sprintf("Цикл кадров недоступен: %v", err))
		return false
	}
	return true
}

func parsePoint(c *gin.Context) (float64, float64, error) {
	x, err := strconv.ParseFloat(c.Query("x"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("параметр x: %w", err)
	}
	z, err := strconv.ParseFloat(c.Query("z"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("параметр z: %w", err)
	}
	if math.IsNaN(x) || math.IsNaN(z) || math.IsInf(x, 0) || math.IsInf(z, 0) {
		return 0, 0, errors.New("координаты должны быть конечными")
	}
	return x, z, nil
}

// handleStats обрабатывает запрос статистики
func (rs *RestServer) handleStats(c *gin.Context) {
	snap := rs.world.Snapshot()
	stats := map[string]interface{}{
		"frame":  snap.Frame,
		"time":   snap.Time,
		"chunks": snap.Chunks,
		"birds":  len(snap.Birds),
		"flocks": snap.Flocks,
	}

	rss, _ := rs.metrics.GetRSS()
	cpuPercent, _ := rs.metrics.GetCPUUsage()
	stats["process"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"rss_bytes":   rss,
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"server_time": time.Now().Unix(),
	}
	stats["memory_details"] = rs.metrics.GetDetailedMemoryStats()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

func (rs *RestServer) point(c *gin.Context) (PointResponse, bool) {
	x, z, err := parsePoint(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return PointResponse{}, false
	}

	resp := PointResponse{X: x, Z: z}
	ok := rs.exec(c, func(w *sim.World) {
		h := w.Manager().GetHeightAt(x, z)
		if !math.IsInf(h, 0) && !math.IsNaN(h) {
			resp.Height = &h
		}
		resp.Biome = w.Manager().GetBiomeAt(x, z)
	})
	return resp, ok
}

// handleHeight высота в точке; -Inf отдаётся как null
func (rs *RestServer) handleHeight(c *gin.Context) {
	resp, ok := rs.point(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Высота получена", Data: resp})
}

// handleBiome доминирующий биом в точке
func (rs *RestServer) handleBiome(c *gin.Context) {
	resp, ok := rs.point(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Биом получен", Data: resp})
}

// handleChunks список отслеживаемых чанков; ?ready=true - только готовые
func (rs *RestServer) handleChunks(c *gin.Context) {
	readyOnly := c.Query("ready") == "true"

	var chunks []ChunkInfo
	ok := rs.exec(c, func(w *sim.World) {
		m := w.Manager()
		var list []*world.Chunk
		if readyOnly {
			list = m.ReadyChunks()
		} else {
			for _, coords := range m.TrackedCoords() {
				ch, _ := m.Chunk(coords)
				list = append(list, ch)
			}
		}
		for _, ch := range list {
			chunks = append(chunks, ChunkInfo{
				X:         ch.Coords.X,
				Z:         ch.Coords.Y,
				State:     ch.State.String(),
				Vertices:  ch.VertexCount(),
				Triangles: ch.TriangleCount(),
				Trees:     len(ch.Trees),
			})
		}
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Чанки получены", Data: chunks})
}

// handleBirds позы птиц из последнего кадра
func (rs *RestServer) handleBirds(c *gin.Context) {
	snap := rs.world.Snapshot()
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Птицы получены", Data: snap.Birds})
}

// handleCreature поза существа из последнего кадра
func (rs *RestServer) handleCreature(c *gin.Context) {
	snap := rs.world.Snapshot()
	if snap.Creature == nil {
		fail(c, http.StatusNotFound, "Существо ещё не появилось")
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Поза получена", Data: snap.Creature})
}

// GoalRequest цель существа в мировых координатах
type GoalRequest struct {
	X *float64 `json:"x" binding:"required"`
	Z *float64 `json:"z" binding:"required"`
}

func (rs *RestServer) handleCreatureGoal(c *gin.Context) {
	var req GoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Неверный формат запроса: %v", err))
		return
	}

	x, z := *req.X, *req.Z
	set := false
	if !rs.exec(c, func(w *sim.World) { set = w.SetCreatureGoal(x, z) }) {
		return
	}
	if !set {
		fail(c, http.StatusNotFound, "Существо ещё не появилось")
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Цель задана", Data: gin.H{"x": x, "z": z}})
}

// handleGetTerrain текущие параметры рельефа
func (rs *RestServer) handleGetTerrain(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Параметры получены", Data: rs.world.Snapshot().Params})
}

// TerrainRequest запрос смены параметров рельефа
type TerrainRequest struct {
	Seed            string  `json:"seed" binding:"required"`
	Scale           float64 `json:"scale" binding:"required,gt=0"`
	BaseFrequency   float64 `json:"base_frequency" binding:"required,gt=0"`
	BaseAmplitude   float64 `json:"base_amplitude"`
	DetailFrequency float64 `json:"detail_frequency" binding:"required,gt=0"`
	DetailAmplitude float64 `json:"detail_amplitude"`
}

// handleSetTerrain меняет параметры рельефа; все чанки перегенерируются
func (rs *RestServer) handleSetTerrain(c *gin.Context) {
	var req TerrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Неверный формат запроса: %v", err))
		return
	}

	p := config.TerrainParams(req)
	changed := false
	if !rs.exec(c, func(w *sim.World) { changed = w.SetTerrainParams(p) }) {
		return
	}

	msg := "Параметры не изменились"
	if changed {
		msg = "Параметры применены, чанки перегенерируются"
		logging.Info("🔧 Параметры рельефа изменены через API: seed=%q scale=%.3f", p.Seed, p.Scale)
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: msg, Data: gin.H{"changed": changed}})
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"frame":  rs.world.Snapshot().Frame,
		"time":   time.Now().Unix(),
	})
}

// Handler корневой http.Handler (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Start запускает сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	logging.Info("🌐 Отладочный API слушает %s", rs.addr)
	if err := rs.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно останавливает сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.srv.Shutdown(ctx)
}
