// Package channel holds the process-level configuration for channeld:
// the default video format a channel starts with, how many channels to
// run, and the monitoring HTTP surface.
package channel

import (
	"os"

	"github.com/kkyr/fig"

	"github.com/streamforge/channelcore/pkg/config/monitoring"
	"github.com/streamforge/channelcore/pkg/core/format"
)

// EnvPrefix is the prefix fig uses when overriding config fields from
// the environment, e.g. CHANNEL_COUNT, CHANNEL_MONITORING_PORT.
const EnvPrefix = "CHANNEL"

// Config is the top-level configuration loaded at process start.
type Config struct {
	// Count is how many channels channeld brings up.
	Count int `default:"1"`

	// Format is the default video mode a channel starts with before
	// any live reconfiguration.
	Format format.Desc

	Monitoring monitoring.Config
}

// Load reads the configuration file into cfg. path overrides the
// search path; an empty path falls back to a handful of conventional
// directories, mirroring the layout channeld ships with.
func Load(cfg *Config, path string) error {
	dirs := []string{path}
	if path == "" {
		dirs = append(dirs, ".", "configs", "../../../configs")
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, home+"/.channelcore")
		}
	}
	return fig.Load(cfg, fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
}

// LoadEnv loads configuration purely from CHANNEL_-prefixed environment
// variables, ignoring any config file, for deployments that inject
// configuration only through the environment.
func LoadEnv(cfg *Config) error {
	return fig.Load(cfg, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}
