// Package config describes the ground station runtime configuration: the
// signalling listener, the shared cache, the command channel, and the
// parameters the coverage planner runs once at startup.
package config

import (
	"encoding/json"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/skyrelay/groundcore/cache"
	"github.com/skyrelay/groundcore/geodesy"
	"github.com/skyrelay/groundcore/planner"
)

// Defaults applied by Ensure when a field is unset.
const (
	DefaultListenPort         = 14500
	DefaultCacheHost          = "redis"
	DefaultCachePort          = 6379
	DefaultCommandChannel     = "drone_commands"
	DefaultPositionTTLSeconds = 60
	DefaultDroneCount         = 1
	DefaultOverlap            = 0.5
)

// Origin anchors the local tangent plane all planning happens in.
type Origin struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Config is the top level server configuration.
type Config struct {
	ListenIP   string `json:"listen_ip"`
	ListenPort int    `json:"listen_port"`

	// StatusAddr optionally serves GET /healthz on its own listener;
	// empty leaves status serving off.
	StatusAddr string `json:"status_addr,omitempty"`

	CacheHost         string `json:"cache_host"`
	CachePort         int    `json:"cache_port"`
	CacheDB           int    `json:"cache_db,omitempty"`
	CachePoolSize     int    `json:"cache_pool_size,omitempty"`
	CacheMinIdleConns int    `json:"cache_min_idle_conns,omitempty"`

	CommandChannel     string `json:"command_channel"`
	PositionTTLSeconds int    `json:"position_ttl_seconds"`

	// Overlap is a pointer so an explicit zero survives defaulting.
	DroneCount   int      `json:"drone_count"`
	Overlap      *float64 `json:"overlap,omitempty"`
	FOVDegrees   float64  `json:"fov_degrees"`
	AltitudeMinM float64  `json:"altitude_min_m"`
	AltitudeMaxM float64  `json:"altitude_max_m"`

	Origin           Origin `json:"origin"`
	TrajectoriesFile string `json:"trajectories_file"`
}

// Ensure fills in defaults for anything left unset.
func (c *Config) Ensure() {
	if c.ListenPort == 0 {
		c.ListenPort = DefaultListenPort
	}
	if c.CacheHost == "" {
		c.CacheHost = DefaultCacheHost
	}
	if c.CachePort == 0 {
		c.CachePort = DefaultCachePort
	}
	if c.CommandChannel == "" {
		c.CommandChannel = DefaultCommandChannel
	}
	if c.PositionTTLSeconds == 0 {
		c.PositionTTLSeconds = DefaultPositionTTLSeconds
	}
	if c.DroneCount == 0 {
		c.DroneCount = DefaultDroneCount
	}
	if c.Overlap == nil {
		overlap := DefaultOverlap
		c.Overlap = &overlap
	}
	if c.FOVDegrees == 0 {
		c.FOVDegrees = planner.DefaultFOVDegrees
	}
	if c.AltitudeMinM == 0 {
		c.AltitudeMinM = planner.DefaultAltitudeMinM
	}
	if c.AltitudeMaxM == 0 {
		c.AltitudeMaxM = planner.DefaultAltitudeMaxM
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return goutils.NewConfigValidationError(path, errors.New("listen_port must be in [0, 65535]"))
	}
	if c.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(c.StatusAddr); err != nil {
			return goutils.NewConfigValidationError(path, errors.Wrap(err, "status_addr"))
		}
	}
	if c.CachePort < 1 || c.CachePort > 65535 {
		return goutils.NewConfigValidationError(path, errors.New("cache_port must be in [1, 65535]"))
	}
	if c.PositionTTLSeconds <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("position_ttl_seconds must be positive"))
	}
	if c.DroneCount < 1 {
		return goutils.NewConfigValidationError(path, errors.New("drone_count must be at least 1"))
	}
	if c.Overlap == nil || *c.Overlap < 0 || *c.Overlap > planner.MaxOverlap {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("overlap must be in [0, %v]", planner.MaxOverlap))
	}
	if c.FOVDegrees <= 0 || c.FOVDegrees >= 180 {
		return goutils.NewConfigValidationError(path, errors.New("fov_degrees must be in (0, 180)"))
	}
	if c.AltitudeMinM <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("altitude_min_m must be positive"))
	}
	if c.AltitudeMaxM < c.AltitudeMinM {
		return goutils.NewConfigValidationError(path,
			errors.New("altitude_max_m must not be below altitude_min_m"))
	}
	if c.Origin.Latitude < -90 || c.Origin.Latitude > 90 {
		return goutils.NewConfigValidationError(path, errors.New("origin latitude must be in [-90, 90]"))
	}
	if c.Origin.Longitude < -180 || c.Origin.Longitude > 180 {
		return goutils.NewConfigValidationError(path, errors.New("origin longitude must be in [-180, 180]"))
	}
	if c.TrajectoriesFile == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "trajectories_file")
	}
	return nil
}

// ListenAddress is the host:port the signalling server binds.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.ListenIP, strconv.Itoa(c.ListenPort))
}

// CacheConfig adapts the cache fields for the store client.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Host:         c.CacheHost,
		Port:         c.CachePort,
		DB:           c.CacheDB,
		PoolSize:     c.CachePoolSize,
		MinIdleConns: c.CacheMinIdleConns,
	}
}

// PositionTTL is how long cached position reports live.
func (c *Config) PositionTTL() time.Duration {
	return time.Duration(c.PositionTTLSeconds) * time.Second
}

// OriginCoordinate returns the configured origin at ground level.
func (c *Config) OriginCoordinate() geodesy.Coordinate {
	return geodesy.NewCoordinate(c.Origin.Latitude, c.Origin.Longitude, 0)
}

// OverlapValue returns the planner overlap fraction.
func (c *Config) OverlapValue() float64 {
	if c.Overlap == nil {
		return DefaultOverlap
	}
	return *c.Overlap
}

// Read loads, defaults, and validates a config file.
func Read(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	defer goutils.UncheckedErrorFunc(file.Close)

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	cfg.Ensure()
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}
