package config

import "fmt"

// ServerConfig defines the WebSocket listener and protocol timings.
type ServerConfig struct {
	// Listen is the host:port the endpoint binds.
	Listen string `json:"listen"`
	// HeartbeatIntervalSeconds is handed to stations in BootNotification.
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds"`
	// CallTimeoutSeconds bounds server-initiated calls awaiting a reply.
	CallTimeoutSeconds int `json:"call_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Listen == "" {
		c.Listen = ":9000"
	}
	if c.HeartbeatIntervalSeconds == 0 {
		c.HeartbeatIntervalSeconds = 10
	}
	if c.CallTimeoutSeconds == 0 {
		c.CallTimeoutSeconds = 30
	}
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	if c.HeartbeatIntervalSeconds < 1 {
		return fmt.Errorf("heartbeat_interval_seconds must be positive")
	}
	if c.CallTimeoutSeconds < 1 {
		return fmt.Errorf("call_timeout_seconds must be positive")
	}
	return nil
}

// StoreConfig selects the Status Store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the database location for the sqlite backend.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "stations.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown store backend %s", c.Backend)
	}
	if c.Backend == "sqlite" && c.Path == "" {
		return fmt.Errorf("path is required for the sqlite backend")
	}
	return nil
}

// AuthConfig selects the authorization policy.
type AuthConfig struct {
	// Mode is "allow_all" or "allowlist".
	Mode string `json:"mode"`
	// Tags is the accepted idTag list for the allowlist mode.
	Tags []string `json:"tags"`
}

// SetDefaults applies sane defaults.
func (c *AuthConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "allow_all"
	}
}

// Validate checks mandatory fields.
func (c AuthConfig) Validate() error {
	switch c.Mode {
	case "allow_all":
		return nil
	case "allowlist":
		if len(c.Tags) == 0 {
			return fmt.Errorf("allowlist mode requires at least one tag")
		}
		return nil
	default:
		return fmt.Errorf("unknown auth mode %s", c.Mode)
	}
}
