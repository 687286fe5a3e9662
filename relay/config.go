package relay

import (
	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// Config is the relay daemon configuration, read from a TOML file.
type Config struct {
	RosterFile string
	KeyFile    string
	StorePath  string
	IntervalMs int64
	Wait       int
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't read config: %v", err)
	}
	if cfg.KeyFile == "" {
		return nil, xerrors.New("config is missing the oracle key file")
	}
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = 2000
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 4
	}
	return cfg, nil
}
