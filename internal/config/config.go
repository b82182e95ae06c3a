// Package config loads a FastDIR node's configuration and cluster roster.
//
// Configuration is YAML loaded via koanf (koanf/v2 + providers/file +
// parsers/yaml), rather than the single INI file the original server reads.
package config

import (
	"crypto/md5"
	"fmt"
	"sort"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// PeerSpec is one entry of the static cluster roster.
type PeerSpec struct {
	ServerID    int    `koanf:"server_id"`
	ClusterAddr string `koanf:"cluster_addr"` // inter-peer traffic
	ServiceAddr string `koanf:"service_addr"` // client traffic
}

// Config is a single node's full configuration.
type Config struct {
	ClusterID                 int    `koanf:"cluster_id"`
	DataPath                  string `koanf:"data_path"`
	BinlogBufferSize          int    `koanf:"binlog_buffer_size"`
	MaxBinlogFileSize         int64  `koanf:"max_binlog_file_size"`
	ReloadIntervalMs          int    `koanf:"reload_interval_ms"`
	CheckAliveIntervalSeconds int    `koanf:"check_alive_interval"`
	NamespaceHashtableCap     int    `koanf:"namespace_hashtable_capacity"`
	DentryMaxDataSize         int    `koanf:"dentry_max_data_size"`

	ConnectTimeoutMs int `koanf:"connect_timeout_ms"`
	NetworkTimeoutMs int `koanf:"network_timeout_ms"`

	MyServerID int        `koanf:"my_server_id"`
	Peers      []PeerSpec `koanf:"peers"`

	AdminAddr string `koanf:"admin_addr"`
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

func (c *Config) NetworkTimeout() time.Duration {
	return time.Duration(c.NetworkTimeoutMs) * time.Millisecond
}

func defaults() *Config {
	return &Config{
		BinlogBufferSize:          256 * 1024,
		MaxBinlogFileSize:         256 * 1024 * 1024,
		ReloadIntervalMs:          1000,
		CheckAliveIntervalSeconds: 5,
		NamespaceHashtableCap:     1024,
		DentryMaxDataSize:         4096,
		ConnectTimeoutMs:          3000,
		NetworkTimeoutMs:          5000,
		AdminAddr:                 ":8080",
	}
}

// Load reads path (a YAML file) and validates required keys.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := defaults()

	// Seed koanf with defaults so the file only needs to override what it cares about.
	if err := k.Load(structProvider(cfg), nil); err != nil {
		return nil, fmt.Errorf("seed defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClusterID <= 0 {
		return fmt.Errorf("config: cluster_id must be > 0")
	}
	if c.DataPath == "" {
		return fmt.Errorf("config: data_path is required")
	}
	if c.DentryMaxDataSize <= 0 || c.DentryMaxDataSize > 4096 {
		return fmt.Errorf("config: dentry_max_data_size must be in (0, 4096]")
	}
	if len(c.Peers) == 0 {
		return fmt.Errorf("config: peers roster must not be empty")
	}
	found := false
	for _, p := range c.Peers {
		if p.ServerID == c.MyServerID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("config: my_server_id %d not present in peers roster", c.MyServerID)
	}
	return nil
}

// ConfigSign is MD5 of the canonicalised roster text: peers sorted by
// server_id, one "id cluster_addr service_addr" line each. The wire
// protocol fixes config_sign to MD5, so this is the one place we reach
// for crypto/md5 instead of a third-party hash.
func (c *Config) ConfigSign() [16]byte {
	peers := make([]PeerSpec, len(c.Peers))
	copy(peers, c.Peers)
	sort.Slice(peers, func(i, j int) bool { return peers[i].ServerID < peers[j].ServerID })

	var canon string
	for _, p := range peers {
		canon += fmt.Sprintf("%d %s %s\n", p.ServerID, p.ClusterAddr, p.ServiceAddr)
	}
	return md5.Sum([]byte(canon))
}

// structProvider adapts the default values held in a *Config into a koanf
// provider so Load can seed defaults before applying the file overlay.
func structProvider(c *Config) koanfStructProvider {
	return koanfStructProvider{c}
}

type koanfStructProvider struct{ c *Config }

func (p koanfStructProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("structProvider: ReadBytes unsupported")
}

func (p koanfStructProvider) Read() (map[string]interface{}, error) {
	return map[string]interface{}{
		"binlog_buffer_size":           p.c.BinlogBufferSize,
		"max_binlog_file_size":         p.c.MaxBinlogFileSize,
		"reload_interval_ms":           p.c.ReloadIntervalMs,
		"check_alive_interval":         p.c.CheckAliveIntervalSeconds,
		"namespace_hashtable_capacity": p.c.NamespaceHashtableCap,
		"dentry_max_data_size":         p.c.DentryMaxDataSize,
		"connect_timeout_ms":           p.c.ConnectTimeoutMs,
		"network_timeout_ms":           p.c.NetworkTimeoutMs,
		"admin_addr":                   p.c.AdminAddr,
	}, nil
}
