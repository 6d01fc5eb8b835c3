package scanner

import "github.com/onemorebsmith/zdt/src/common"

type TrackerConfig struct {
	common.CommonConfig `yaml:",inline"`

	ViewingKey       string `yaml:"viewing_key"`
	Network          string `yaml:"network"` // testnet or mainnet
	MinConfirmations int    `yaml:"min_confirmations"`
	ScanIntervalSecs int    `yaml:"scan_interval_secs"`
	ListenPort       string `yaml:"listen_port"`
	CacheTTLSecs     int    `yaml:"cache_ttl_secs"`
}

const (
	DefaultMinConfirmations = 1
	DefaultScanIntervalSecs = 60
	DefaultCacheTTLSecs     = 60
)

func (cfg *TrackerConfig) ApplyDefaults() {
	if cfg.MinConfirmations <= 0 {
		cfg.MinConfirmations = DefaultMinConfirmations
	}
	if cfg.ScanIntervalSecs <= 0 {
		cfg.ScanIntervalSecs = DefaultScanIntervalSecs
	}
	if cfg.CacheTTLSecs <= 0 {
		cfg.CacheTTLSecs = DefaultCacheTTLSecs
	}
	if cfg.Network == "" {
		cfg.Network = "testnet"
	}
	if cfg.RPCServer == "" {
		cfg.RPCServer = "http://localhost:18232"
	}
	if cfg.ListenPort == "" {
		cfg.ListenPort = ":8080"
	}
}
