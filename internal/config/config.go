package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig возвращается Validate при недопустимых значениях.
var ErrInvalidConfig = errors.New("invalid config")

// Config корневая структура конфигурации приложения.
type Config struct {
	Terrain    TerrainParams    `yaml:"terrain"`
	Streaming  StreamingConfig  `yaml:"streaming"`
	Vegetation VegetationConfig `yaml:"vegetation"`
	Flock      FlockConfig      `yaml:"flock"`
	Creature   CreatureConfig   `yaml:"creature"`
	Sim        SimConfig        `yaml:"sim"`
	Debug      DebugConfig      `yaml:"debug"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// TerrainParams набор параметров генерации, которым владеет слой камеры/ввода.
// Сравнивается через ==; любое изменение инвалидирует все чанки.
type TerrainParams struct {
	Seed            string  `yaml:"seed"`
	Scale           float64 `yaml:"scale"`
	BaseFrequency   float64 `yaml:"base_frequency"`
	BaseAmplitude   float64 `yaml:"base_amplitude"`
	DetailFrequency float64 `yaml:"detail_frequency"`
	DetailAmplitude float64 `yaml:"detail_amplitude"`
}

// StreamingConfig параметры стриминга чанков
type StreamingConfig struct {
	ChunkWorldSize float64 `yaml:"chunk_world_size"`
	GridSize       int     `yaml:"grid_size"` // вершин на сторону
	RenderDistance int     `yaml:"render_distance"`
	Shape          string  `yaml:"shape"` // square | diamond
	Workers        int     `yaml:"workers"`
	MaxRetries     int     `yaml:"max_retries"`
	Vegetation     bool    `yaml:"vegetation"`
}

// VegetationConfig параметры расстановки растительности
type VegetationConfig struct {
	CellSize          float64 `yaml:"cell_size"`
	CandidatesPerCell int     `yaml:"candidates_per_cell"`
	DensityNoise      float64 `yaml:"density_noise"` // доля модуляции плотности медленным шумом
	MaxLeaves         int     `yaml:"max_leaves"`
}

// FlockConfig параметры птиц
type FlockConfig struct {
	Enabled          bool    `yaml:"enabled"`
	MaxBirds         int     `yaml:"max_birds"`
	MinFlockSize     int     `yaml:"min_flock_size"`
	MaxFlockSize     int     `yaml:"max_flock_size"`
	SpawnChance      float64 `yaml:"spawn_chance"`
	ActiveRadius     int     `yaml:"active_radius"`
	SpawnMinRadius   float64 `yaml:"spawn_min_radius"`
	SpawnMaxRadius   float64 `yaml:"spawn_max_radius"`
	MaxSpeed         float64 `yaml:"max_speed"`
	MaxAccel         float64 `yaml:"max_accel"`
	SeparationRadius float64 `yaml:"separation_radius"`
	AlignmentRadius  float64 `yaml:"alignment_radius"`
	CohesionRadius   float64 `yaml:"cohesion_radius"`
	CruiseAltitude   float64 `yaml:"cruise_altitude"`
	MinAltitude      float64 `yaml:"min_altitude"`
	PersonalSpace    float64 `yaml:"personal_space"`
	OrbitRadius      float64 `yaml:"orbit_radius"`
	OrbitSpeed       float64 `yaml:"orbit_speed"`
	Noise            float64 `yaml:"noise"`
}

// CreatureConfig параметры существа
type CreatureConfig struct {
	Enabled       bool    `yaml:"enabled"`
	SpawnX        float64 `yaml:"spawn_x"`
	SpawnZ        float64 `yaml:"spawn_z"`
	Seed          uint64  `yaml:"seed"`
	Segments      int     `yaml:"segments"`
	SegmentLength float64 `yaml:"segment_length"`
	LegPairs      int     `yaml:"leg_pairs"`
	Speed         float64 `yaml:"speed"`
}

// SimConfig параметры цикла кадров
type SimConfig struct {
	FPS       int     `yaml:"fps"`
	MaxDelta  float64 `yaml:"max_delta"` // секунды
	EyeHeight float64 `yaml:"eye_height"`
}

// DebugConfig параметры отладочного HTTP API
type DebugConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
}

// TelemetryConfig параметры OpenTelemetry
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// DefaultTerrain возвращает параметры рельефа по умолчанию
func DefaultTerrain() TerrainParams {
	return TerrainParams{
		Seed:            "terrain-42",
		Scale:           1.0,
		BaseFrequency:   1.0 / 700.0,
		BaseAmplitude:   1.0,
		DetailFrequency: 1.0 / 90.0,
		DetailAmplitude: 1.0,
	}
}

// Default возвращает полную конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Terrain: DefaultTerrain(),
		Streaming: StreamingConfig{
			ChunkWorldSize: 64,
			GridSize:       33,
			RenderDistance: 3,
			Shape:          "square",
			Workers:        4,
			MaxRetries:     2,
			Vegetation:     true,
		},
		Vegetation: VegetationConfig{
			CellSize:          16,
			CandidatesPerCell: 3,
			DensityNoise:      0.35,
			MaxLeaves:         48,
		},
		Flock: FlockConfig{
			Enabled:          true,
			MaxBirds:         60,
			MinFlockSize:     5,
			MaxFlockSize:     12,
			SpawnChance:      0.35,
			ActiveRadius:     2,
			SpawnMinRadius:   40,
			SpawnMaxRadius:   140,
			MaxSpeed:         18,
			MaxAccel:         30,
			SeparationRadius: 4,
			AlignmentRadius:  12,
			CohesionRadius:   16,
			CruiseAltitude:   35,
			MinAltitude:      12,
			PersonalSpace:    10,
			OrbitRadius:      90,
			OrbitSpeed:       0.05,
			Noise:            0.5,
		},
		Creature: CreatureConfig{
			Enabled:       true,
			SpawnX:        8,
			SpawnZ:        8,
			Seed:          7,
			Segments:      4,
			SegmentLength: 1.2,
			LegPairs:      2,
			Speed:         1.5,
		},
		Sim: SimConfig{
			FPS:       60,
			MaxDelta:  0.05,
			EyeHeight: 2.0,
		},
		Debug: DebugConfig{
			Enabled:  true,
			Addr:     "",
			LogLevel: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "procworld",
		},
	}
}

// Validate проверяет числовые диапазоны
func (c *Config) Validate() error {
	t := c.Terrain
	if t.Scale <= 0 {
		return fmt.Errorf("%w: terrain.scale должен быть > 0, получено %v", ErrInvalidConfig, t.Scale)
	}
	if t.BaseFrequency <= 0 || t.DetailFrequency <= 0 {
		return fmt.Errorf("%w: частоты шума должны быть > 0", ErrInvalidConfig)
	}

	s := c.Streaming
	if s.ChunkWorldSize <= 0 {
		return fmt.Errorf("%w: streaming.chunk_world_size должен быть > 0", ErrInvalidConfig)
	}
	if s.GridSize < 2 {
		return fmt.Errorf("%w: streaming.grid_size должен быть >= 2, получено %d", ErrInvalidConfig, s.GridSize)
	}
	if s.RenderDistance < 0 {
		return fmt.Errorf("%w: streaming.render_distance не может быть отрицательным", ErrInvalidConfig)
	}
	if s.Workers < 1 {
		return fmt.Errorf("%w: streaming.workers должен быть >= 1, получено %d", ErrInvalidConfig, s.Workers)
	}
	if s.Shape != "square" && s.Shape != "diamond" {
		return fmt.Errorf("%w: streaming.shape должен быть square или diamond, получено %q", ErrInvalidConfig, s.Shape)
	}

	v := c.Vegetation
	if v.CellSize <= 0 || v.CandidatesPerCell < 1 {
		return fmt.Errorf("%w: vegetation.cell_size > 0 и candidates_per_cell >= 1", ErrInvalidConfig)
	}
	if v.DensityNoise < 0 || v.DensityNoise > 1 {
		return fmt.Errorf("%w: vegetation.density_noise должен быть в [0,1]", ErrInvalidConfig)
	}

	f := c.Flock
	if f.MaxBirds < 0 || f.MinFlockSize < 1 || f.MaxFlockSize < f.MinFlockSize {
		return fmt.Errorf("%w: некорректные размеры стаи", ErrInvalidConfig)
	}
	if f.SpawnMinRadius < 0 || f.SpawnMaxRadius < f.SpawnMinRadius {
		return fmt.Errorf("%w: flock.spawn_min_radius/spawn_max_radius", ErrInvalidConfig)
	}
	if f.MaxSpeed <= 0 || f.MaxAccel <= 0 {
		return fmt.Errorf("%w: flock.max_speed и max_accel должны быть > 0", ErrInvalidConfig)
	}

	if c.Sim.FPS <= 0 || c.Sim.MaxDelta <= 0 {
		return fmt.Errorf("%w: sim.fps и sim.max_delta должны быть > 0", ErrInvalidConfig)
	}
	return nil
}

// DebugAddr возвращает адрес отладочного API: config -> env -> default
func (d *DebugConfig) DebugAddr() string {
	if d.Addr != "" {
		return d.Addr
	}
	if envVal := os.Getenv("PROCWORLD_DEBUG_ADDR"); envVal != "" {
		return envVal
	}
	return ":8089"
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV PROCWORLD_CONFIG; если и он пуст -
// возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PROCWORLD_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
