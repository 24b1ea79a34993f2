package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kballard/go-shellquote"
)

const (
	DefaultConfigPath      = "/etc/desklab/desklab.toml"
	DefaultStateDir        = "/var/lib/desklab"
	DefaultListenAddr      = ":8080"
	DefaultRelayAddr       = ":6080"
	DefaultDisplayPort     = 6081
	DefaultPortFrom        = 6000
	DefaultPortTo          = 6999
	DefaultBaseRepo        = "dockerlab"
	DefaultUserRepoPrefix  = "userimages_"
	DefaultContainerPrefix = "desklab-"
	DefaultConfigRepo      = "dockerlabconfig"
	DefaultRegistryRef     = DefaultConfigRepo + ":container"
	DefaultUsersRef        = DefaultConfigRepo + ":auth"
	DefaultRotateTimeout   = 10 * time.Second
	DefaultRateLimit       = 5.0
	DefaultRateBurst       = 10

	// DefaultCredentialCommand reads the new display password on stdin.
	DefaultCredentialCommand = `sh -c 'mkdir -p "$HOME/.vnc" && vncpasswd -f > "$HOME/.vnc/passwd" && chmod 600 "$HOME/.vnc/passwd"'`
)

// Store backends
const (
	BackendFile     = "file"
	BackendImage    = "image"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// userNameRegex validates user names.
// Names end up inside image repository names, so they follow the same
// lowercase alphabet as docker repositories.
var userNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,62}$`)

// sessionIDRegex validates session ids, which become container name suffixes.
var sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)

// imageTagRegex follows the docker tag grammar.
var imageTagRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// ValidateUserName checks if a user name is valid.
func ValidateUserName(name string) error {
	if name == "" {
		return fmt.Errorf("user name cannot be empty")
	}
	if !userNameRegex.MatchString(name) {
		return fmt.Errorf("invalid user name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, '.', '_' or '-', and be at most 63 characters", name)
	}
	return nil
}

// ValidateSessionID checks if a session id is valid.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// ValidateImageTag checks if an image tag is valid.
func ValidateImageTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("image tag cannot be empty")
	}
	if !imageTagRegex.MatchString(tag) {
		return fmt.Errorf("invalid image tag %q", tag)
	}
	return nil
}

// PortRange is the inclusive range of host ports handed to sessions.
type PortRange struct {
	From int `toml:"from"`
	To   int `toml:"to"`
}

// RuntimeConfig selects the container CLI.
type RuntimeConfig struct {
	Command string `toml:"command"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Backend     string `toml:"backend"`
	Path        string `toml:"path"`
	RedisURL    string `toml:"redis_url"`
	PostgresDSN string `toml:"postgres_dsn"`
	RegistryRef string `toml:"registry_ref"`
	UsersRef    string `toml:"users_ref"`
}

// RelayConfig tunes the websocket relay.
type RelayConfig struct {
	RateLimit      float64  `toml:"rate_limit"` // connections per second per remote IP
	Burst          int      `toml:"burst"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LogConfig holds logging defaults; command line flags override them.
type LogConfig struct {
	Verbose bool `toml:"verbose"`
	JSON    bool `toml:"json"`
}

// Duration wraps time.Duration for TOML strings like "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the desklab configuration file.
type Config struct {
	ListenAddr      string        `toml:"listen_addr"`
	RelayAddr       string        `toml:"relay_addr"`
	StateDir        string        `toml:"state_dir"`
	DisplayPort     int           `toml:"display_port"`
	PortRange       PortRange     `toml:"port_range"`
	BaseRepo        string        `toml:"base_repo"`
	UserRepoPrefix  string        `toml:"user_repo_prefix"`
	ContainerPrefix string        `toml:"container_prefix"`
	Runtime         RuntimeConfig `toml:"runtime"`
	RotateTimeout   Duration      `toml:"rotate_timeout"`
	// CredentialCommand runs inside the session container with the new
	// credential on stdin. It is split with shell quoting rules.
	CredentialCommand string      `toml:"credential_command"`
	DisplayUser       string      `toml:"display_user"`
	Store             StoreConfig `toml:"store"`
	Relay             RelayConfig `toml:"relay"`
	Log               LogConfig   `toml:"log"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.RelayAddr == "" {
		c.RelayAddr = DefaultRelayAddr
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.DisplayPort == 0 {
		c.DisplayPort = DefaultDisplayPort
	}
	if c.PortRange.From == 0 {
		c.PortRange.From = DefaultPortFrom
	}
	if c.PortRange.To == 0 {
		c.PortRange.To = DefaultPortTo
	}
	if c.BaseRepo == "" {
		c.BaseRepo = DefaultBaseRepo
	}
	if c.UserRepoPrefix == "" {
		c.UserRepoPrefix = DefaultUserRepoPrefix
	}
	if c.ContainerPrefix == "" {
		c.ContainerPrefix = DefaultContainerPrefix
	}
	if c.Runtime.Command == "" {
		c.Runtime.Command = "docker"
	}
	if c.RotateTimeout.Duration == 0 {
		c.RotateTimeout.Duration = DefaultRotateTimeout
	}
	if c.CredentialCommand == "" {
		c.CredentialCommand = DefaultCredentialCommand
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendFile
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.StateDir, "documents")
	}
	if c.Store.RegistryRef == "" {
		c.Store.RegistryRef = DefaultRegistryRef
	}
	if c.Store.UsersRef == "" {
		c.Store.UsersRef = DefaultUsersRef
	}
	if c.Relay.RateLimit == 0 {
		c.Relay.RateLimit = DefaultRateLimit
	}
	if c.Relay.Burst == 0 {
		c.Relay.Burst = DefaultRateBurst
	}
}

// Validate checks that the Config is valid.
func (c *Config) Validate() error {
	if c.DisplayPort < 1 || c.DisplayPort > 65535 {
		return fmt.Errorf("display_port must be between 1 and 65535 (got %d)", c.DisplayPort)
	}
	if c.PortRange.From < 1 || c.PortRange.To > 65535 || c.PortRange.From > c.PortRange.To {
		return fmt.Errorf("invalid port_range %d..%d", c.PortRange.From, c.PortRange.To)
	}
	if !strings.HasSuffix(c.UserRepoPrefix, "_") && !strings.HasSuffix(c.UserRepoPrefix, "-") {
		return fmt.Errorf("user_repo_prefix must end in '_' or '-' (got %q)", c.UserRepoPrefix)
	}

	validRuntimes := map[string]bool{"docker": true, "podman": true}
	if !validRuntimes[filepath.Base(c.Runtime.Command)] {
		return fmt.Errorf("invalid runtime command: %s (must be docker or podman)", c.Runtime.Command)
	}

	if _, err := c.CredentialArgv(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendFile:
		if !filepath.IsAbs(c.Store.Path) {
			return fmt.Errorf("store.path must be an absolute path (got %q)", c.Store.Path)
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres backend")
		}
	case BackendImage, BackendMemory:
	default:
		return fmt.Errorf("invalid store backend: %s (must be file, image, redis, postgres, or memory)", c.Store.Backend)
	}

	for _, ref := range []string{c.Store.RegistryRef, c.Store.UsersRef} {
		name, tag, ok := strings.Cut(ref, ":")
		if !ok || name == "" || tag == "" {
			return fmt.Errorf("invalid document ref %q: expected name:tag", ref)
		}
	}

	if c.Relay.RateLimit < 0 || c.Relay.Burst < 0 {
		return fmt.Errorf("relay rate_limit and burst must not be negative")
	}
	return nil
}

// UserRepo returns the image repository holding a user's saved sessions.
func (c *Config) UserRepo(user string) string {
	return c.UserRepoPrefix + user
}

// ContainerName returns the container name for a session id.
func (c *Config) ContainerName(sessionID string) string {
	return c.ContainerPrefix + sessionID
}

// CredentialArgv splits CredentialCommand into an argument vector.
func (c *Config) CredentialArgv() ([]string, error) {
	argv, err := shellquote.Split(c.CredentialCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid credential_command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("credential_command is empty")
	}
	return argv, nil
}

// Parse decodes a TOML document, applies defaults and validates the result.
func Parse(data string) (*Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// Load reads the configuration file at path. A missing file at the default
// path yields the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultConfigPath {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(string(data))
}
