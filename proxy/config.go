package proxy

import (
	"encoding/json"
	"fmt"
)

// Header folding policies accepted by Config.HeaderFolding.
const (
	FoldBinaryCase = "binary-case"
	FoldMultiValue = "multi-value"
)

// Config holds the serializable proxy settings.
//
// A missing binary-mime-types key keeps the default list while an empty list
// disables base64 encoding.
type Config struct {
	BinaryMimeTypes []string `json:"binary-mime-types"`
	HeaderFolding   string   `json:"header-folding"`
	SocketDir       string   `json:"socket-dir"`
	TestMode        bool     `json:"test-mode"`
}

// NewConfigFromJson returns the proxy config described by s.
func NewConfigFromJson(s string) (*Config, error) {
	cfg := new(Config)

	if err := json.Unmarshal([]byte(s), cfg); err != nil {
		return nil, err
	}

	if cfg.HeaderFolding == "" {
		cfg.HeaderFolding = FoldBinaryCase
	}

	if _, err := cfg.folder(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) folder() (HeaderFolder, error) {
	switch cfg.HeaderFolding {
	case "", FoldBinaryCase:
		return BinaryCaseFolder{}, nil
	case FoldMultiValue:
		return MultiValueFolder{}, nil
	}

	return nil, fmt.Errorf("unknown header folding '%s'", cfg.HeaderFolding)
}

// Options converts the config into proxy options.
func (cfg *Config) Options() ([]Option, error) {
	folder, err := cfg.folder()
	if err != nil {
		return nil, err
	}

	return []Option{
		WithBinaryMimeTypes(cfg.BinaryMimeTypes),
		WithHeaderFolder(folder),
		WithSocketDir(cfg.SocketDir),
		WithTestMode(cfg.TestMode),
	}, nil
}
