package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации просмотрщика.
// Любое незаданное поле получает значение по умолчанию через геттеры.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	PID       PIDConfig       `yaml:"pid"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type EngineConfig struct {
	SupportedVersion   int       `yaml:"supported_version"`
	PollIntervalMs     int       `yaml:"poll_interval_ms"`
	TickHz             int       `yaml:"tick_hz"`
	TargetBufferFrames float64   `yaml:"target_buffer_frames"`
	MinSpeed           float64   `yaml:"min_speed"`
	MaxSpeed           float64   `yaml:"max_speed"`
	SpeedPresets       []float64 `yaml:"speed_presets"`
	DefaultPreset      *int      `yaml:"default_preset"`
	AutoloadPath       string    `yaml:"autoload_path"`
}

type PIDConfig struct {
	Kp            *float64 `yaml:"kp"`
	Ki            *float64 `yaml:"ki"`
	Kd            *float64 `yaml:"kd"`
	IntegralLimit float64  `yaml:"integral_limit"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

type StorageConfig struct {
	VolumeCacheDir string `yaml:"volume_cache_dir"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Значения по умолчанию
const (
	DefaultSupportedVersion   = 2
	DefaultPollInterval       = 50 * time.Millisecond
	DefaultTickHz             = 60
	DefaultTargetBufferFrames = 1.0
	DefaultMinSpeed           = 0.25
	DefaultMaxSpeed           = 4.0
	DefaultPreset             = 2
	DefaultKp                 = 0.5
	DefaultKi                 = 0.1
	DefaultKd                 = 0.05
	DefaultIntegralLimit      = 10.0
)

// DefaultSpeedPresets "Very Fast", "Fast", "Realtime", "Slow"
var DefaultSpeedPresets = []float64{10.0, 4.0, 1.1, 0.5}

// GetSupportedVersion возвращает поддерживаемую версию SCC
func (e *EngineConfig) GetSupportedVersion() int {
	return getIntWithEnvFallback(e.SupportedVersion, "SCC_VERSION", DefaultSupportedVersion)
}

// GetPollInterval возвращает период опроса растущего файла
func (e *EngineConfig) GetPollInterval() time.Duration {
	ms := getIntWithEnvFallback(e.PollIntervalMs, "SCC_POLL_INTERVAL_MS", int(DefaultPollInterval/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// GetTickInterval возвращает период тика движка
func (e *EngineConfig) GetTickInterval() time.Duration {
	hz := getIntWithEnvFallback(e.TickHz, "SCC_TICK_HZ", DefaultTickHz)
	return time.Second / time.Duration(hz)
}

// GetTargetBufferFrames целевой запас кадров при стриминге
func (e *EngineConfig) GetTargetBufferFrames() float64 {
	return positiveOr(e.TargetBufferFrames, DefaultTargetBufferFrames)
}

// GetSpeedBounds возвращает границы множителя скорости
func (e *EngineConfig) GetSpeedBounds() (float64, float64) {
	lo := positiveOr(e.MinSpeed, DefaultMinSpeed)
	hi := positiveOr(e.MaxSpeed, DefaultMaxSpeed)
	if hi < lo {
		return DefaultMinSpeed, DefaultMaxSpeed
	}
	return lo, hi
}

// GetSpeedPresets возвращает дискретные множители скорости
func (e *EngineConfig) GetSpeedPresets() []float64 {
	if len(e.SpeedPresets) == 0 {
		return append([]float64(nil), DefaultSpeedPresets...)
	}
	for _, p := range e.SpeedPresets {
		if p <= 0 {
			return append([]float64(nil), DefaultSpeedPresets...)
		}
	}
	return append([]float64(nil), e.SpeedPresets...)
}

// GetDefaultPreset индекс пресета при загрузке файла
func (e *EngineConfig) GetDefaultPreset() int {
	n := len(e.GetSpeedPresets())
	if e.DefaultPreset != nil && *e.DefaultPreset >= 0 && *e.DefaultPreset < n {
		return *e.DefaultPreset
	}
	if DefaultPreset < n {
		return DefaultPreset
	}
	return 0
}

// Gains возвращает коэффициенты PID; нулевое значение в YAML допустимо
func (p *PIDConfig) Gains() (kp, ki, kd float64) {
	kp, ki, kd = DefaultKp, DefaultKi, DefaultKd
	if p.Kp != nil {
		kp = *p.Kp
	}
	if p.Ki != nil {
		ki = *p.Ki
	}
	if p.Kd != nil {
		kd = *p.Kd
	}
	return kp, ki, kd
}

// GetIntegralLimit граница интегральной составляющей (anti-windup)
func (p *PIDConfig) GetIntegralLimit() float64 {
	return positiveOr(p.IntegralLimit, DefaultIntegralLimit)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getIntWithEnvFallback(s.RESTPort, "SCC_REST_PORT", 8088)
}

// GetLevel уровень логирования: config -> env -> "info"
func (l *LogConfig) GetLevel() string {
	return getStringWithEnvFallback(l.Level, "SCC_LOG_LEVEL", "info")
}

// GetDir каталог логов
func (l *LogConfig) GetDir() string {
	return getStringWithEnvFallback(l.Dir, "SCC_LOG_DIR", "logs")
}

// GetURL адрес NATS; пустая строка означает in-memory шину
func (e *EventBusConfig) GetURL() string {
	return getStringWithEnvFallback(e.URL, "SCC_NATS_URL", "")
}

// GetStream имя JetStream стрима
func (e *EventBusConfig) GetStream() string {
	return getStringWithEnvFallback(e.Stream, "SCC_NATS_STREAM", "REPLAY")
}

// GetRetention срок хранения событий в стриме
func (e *EventBusConfig) GetRetention() time.Duration {
	return time.Duration(getIntWithEnvFallback(e.Retention, "SCC_NATS_RETENTION_HOURS", 24)) * time.Hour
}

// GetCapacity буфер in-memory шины
func (e *EventBusConfig) GetCapacity() int {
	return getIntWithEnvFallback(e.Capacity, "SCC_EVENTBUS_CAPACITY", 256)
}

// GetVolumeCacheDir каталог кеша объемов; пустая строка: кеш в памяти
func (s *StorageConfig) GetVolumeCacheDir() string {
	return getStringWithEnvFallback(s.VolumeCacheDir, "SCC_VOLUME_CACHE_DIR", "")
}

// GetServiceName имя сервиса для трассировки
func (t *TelemetryConfig) GetServiceName() string {
	return getStringWithEnvFallback(t.ServiceName, "SCC_SERVICE_NAME", "scc-viewer")
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

func positiveOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

// Default возвращает пустую конфигурацию: все значения берутся из геттеров
func Default() *Config {
	return &Config{}
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV SCC_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SCC_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
