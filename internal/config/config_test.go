package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate(), "Конфигурация по умолчанию должна быть валидной")
	assert.Equal(t, "terrain-42", cfg.Terrain.Seed)
	assert.Equal(t, 4, cfg.Streaming.Workers, "Пул по умолчанию - 4 воркера")
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	t.Setenv("PROCWORLD_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.yaml")
	data := []byte(`
terrain:
  seed: "island"
  scale: 2.0
streaming:
  render_distance: 5
  workers: 2
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "island", cfg.Terrain.Seed)
	assert.Equal(t, 2.0, cfg.Terrain.Scale)
	assert.Equal(t, 5, cfg.Streaming.RenderDistance)
	assert.Equal(t, 2, cfg.Streaming.Workers)
	// Незаданные поля сохраняют значения по умолчанию
	assert.Equal(t, Default().Terrain.BaseFrequency, cfg.Terrain.BaseFrequency)
	assert.Equal(t, 33, cfg.Streaming.GridSize)
}

func TestLoad_FromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("terrain:\n  seed: from-env\n"), 0o644))
	t.Setenv("PROCWORLD_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Terrain.Seed)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("streaming:\n  workers: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_Table(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"нулевой масштаб", func(c *Config) { c.Terrain.Scale = 0 }},
		{"сетка из одной вершины", func(c *Config) { c.Streaming.GridSize = 1 }},
		{"отрицательная дальность", func(c *Config) { c.Streaming.RenderDistance = -1 }},
		{"неизвестная форма", func(c *Config) { c.Streaming.Shape = "circle" }},
		{"стая меньше минимума", func(c *Config) { c.Flock.MaxFlockSize = 1; c.Flock.MinFlockSize = 3 }},
		{"нулевая скорость птиц", func(c *Config) { c.Flock.MaxSpeed = 0 }},
		{"нулевой fps", func(c *Config) { c.Sim.FPS = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestDebugAddr_Fallback(t *testing.T) {
	d := DebugConfig{}
	t.Setenv("PROCWORLD_DEBUG_ADDR", "")
	assert.Equal(t, ":8089", d.DebugAddr())

	t.Setenv("PROCWORLD_DEBUG_ADDR", ":9999")
	assert.Equal(t, ":9999", d.DebugAddr())

	d.Addr = ":7000"
	assert.Equal(t, ":7000", d.DebugAddr())
}
