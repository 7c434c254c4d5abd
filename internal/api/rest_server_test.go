package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/sim"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// startWorld запускает цикл кадров с неподвижной камерой
func startWorld(t *testing.T) (*sim.World, *prometheus.Registry) {
	t.Helper()
	cfg := config.Default()
	cfg.Streaming.ChunkWorldSize = 32
	cfg.Streaming.GridSize = 9
	cfg.Streaming.RenderDistance = 1
	cfg.Streaming.Workers = 2
	cfg.Streaming.Vegetation = false
	cfg.Sim.FPS = 120

	reg := prometheus.NewRegistry()
	w, err := sim.New(cfg, nil, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, sim.CameraFunc(func(float64) mgl64.Vec3 { return mgl64.Vec3{4, 0, 4} }))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return w, reg
}

func doJSON(t *testing.T, h http.Handler, method, path string, body []byte) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	w, reg := startWorld(t)
	rs := NewRestServer(Config{World: w, Registry: reg})

	code, _ := doJSON(t, rs.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHeight_BadRequest(t *testing.T) {
	w, reg := startWorld(t)
	rs := NewRestServer(Config{World: w, Registry: reg})

	code, env := doJSON(t, rs.Handler(), http.MethodGet, "/api/height?x=abc&z=1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestHeight_BecomesAvailable(t *testing.T) {
	w, reg := startWorld(t)
	rs := NewRestServer(Config{World: w, Registry: reg})

	// вне отслеживаемых чанков высоты нет
	code, env := doJSON(t, rs.Handler(), http.MethodGet, "/api/height?x=5000&z=5000", nil)
	require.Equal(t, http.StatusOK, code)
	var far PointResponse
	require.NoError(t, json.Unmarshal(env.Data, &far))
	assert.Nil(t, far.Height, "-Inf отдаётся как null")
	assert.Equal(t, "Unknown", far.Biome)

	assert.Eventually(t, func() bool {
		_, env := doJSON(t, rs.Handler(), http.MethodGet, "/api/height?x=4&z=4", nil)
		var p PointResponse
		return json.Unmarshal(env.Data, &p) == nil && p.Height != nil && p.Biome != "Unknown"
	}, 10*time.Second, 20*time.Millisecond, "Высота под камерой должна появиться")
}

func TestChunksAndStats(t *testing.T) {
	w, reg := startWorld(t)
	rs := NewRestServer(Config{World: w, Registry: reg})

	assert.Eventually(t, func() bool {
		_, env := doJSON(t, rs.Handler(), http.MethodGet, "/api/chunks", nil)
		var chunks []ChunkInfo
		return json.Unmarshal(env.Data, &chunks) == nil && len(chunks) == 9
	}, 10*time.Second, 20*time.Millisecond)

	code, env := doJSON(t, rs.Handler(), http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = doJSON(t, rs.Handler(), http.MethodGet, "/api/birds", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestChunks_ReadyFilter(t *testing.T) {
	w, reg := startWorld(t)
	rs := NewRestServer(Config{World: w, Registry: reg})

	var ready []ChunkInfo
	assert.Eventually(t, func() bool {
		_, env := doJSON(t, rs.Handler(), http.MethodGet, "/api/chunks?ready=true", nil)
		ready = nil
		return json.Unmarshal(env.Data, &ready) == nil && len(ready) == 9
	}, 10*time.Second, 20*time.Millisecond, "Все чанки вокруг камеры должны стать готовыми")

	for _, ch := range ready {
		assert.Equal(t, "Ready", ch.State)
		assert.Greater(t, ch.Triangles, 0, "Чанк (%d, %d) без треугольников", ch.X, ch.Z)
		assert.Equal(t, ch.Vertices, ch.Triangles*3, "Треугольники из независимых вершин")
	}
}

func TestSetTerrain(t *testing.T) {
	w, reg := startWorld(t)
	rs := NewRestServer(Config{World: w, Registry: reg})

	code, _ := doJSON(t, rs.Handler(), http.MethodPut, "/api/terrain", []byte(`{"seed":"x","scale":0}`))
	assert.Equal(t, http.StatusBadRequest, code, "Нулевой масштаб отклоняется")

	body, err := json.Marshal(TerrainRequest{
		Seed: "api-seed", Scale: 1, BaseFrequency: 1.0 / 700, BaseAmplitude: 1,
		DetailFrequency: 1.0 / 90, DetailAmplitude: 1,
	})
	require.NoError(t, err)

	code, env := doJSON(t, rs.Handler(), http.MethodPut, "/api/terrain", body)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	assert.Eventually(t, func() bool {
		return w.Snapshot().Params.Seed == "api-seed"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	w, reg := startWorld(t)
	rs := NewRestServer(Config{World: w, Registry: reg})

	doJSON(t, rs.Handler(), http.MethodGet, "/health", nil)

	scrape := func() string {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		rs.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return ""
		}
		return rec.Body.String()
	}

	assert.Eventually(t, func() bool {
		return strings.Contains(scrape(), "procworld_streaming_chunks")
	}, 5*time.Second, 20*time.Millisecond, "Метрики стриминга в регистре")
	assert.Contains(t, scrape(), "procworld_debug_http_request_duration_seconds")
}

func TestCreatureGoal(t *testing.T) {
	w, reg := startWorld(t)
	rs := NewRestServer(Config{World: w, Registry: reg})

	code, _ := doJSON(t, rs.Handler(), http.MethodPost, "/api/creature/goal", []byte(`{"x":1}`))
	assert.Equal(t, http.StatusBadRequest, code, "Без z запрос отклоняется")

	assert.Eventually(t, func() bool {
		code, _ := doJSON(t, rs.Handler(), http.MethodPost, "/api/creature/goal", []byte(`{"x":12,"z":0}`))
		return code == http.StatusOK
	}, 10*time.Second, 20*time.Millisecond, "Цель принимается после появления существа")

	assert.Eventually(t, func() bool {
		snap := w.Snapshot()
		return snap.Creature != nil && snap.Creature.Behavior == "seek"
	}, 5*time.Second, 10*time.Millisecond)
}
