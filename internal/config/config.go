// Package config loads the resolver's JSON settings file, grounded on
// spec.md §6: "Loaded from a JSON file by a peripheral loader; unknown
// keys are ignored, missing keys use defaults."
package config

import (
	"encoding/json"
	"os"
)

// Config is the resolver's full settings bag: spec.md §6's enumerated
// options plus the SPEC_FULL.md additions (redis_addr, audit_dsn,
// sweep_interval_seconds, root_hints).
type Config struct {
	Hostname      string `json:"hostname"`
	Port          uint16 `json:"port"`
	MaxThreads    uint32 `json:"max_threads"`
	CacheSize     uint32 `json:"cache_size"`
	LogFile       string `json:"log_file"`
	CacheFile     string `json:"cache_file"`
	ProxyHostname string `json:"proxy_hostname"`
	ProxyPort     uint16 `json:"proxy_port"`

	RedisAddr            string   `json:"redis_addr"`
	AuditDSN             string   `json:"audit_dsn"`
	SweepIntervalSeconds uint32   `json:"sweep_interval_seconds"`
	RootHints            []string `json:"root_hints"`
}

// ianaRootHints mirrors the teacher's hard-coded root server list
// (internal/dns/server/recursive.go newRecursiveResolver).
var ianaRootHints = []string{
	"198.41.0.4",     // a.root-servers.net
	"170.247.170.2",  // b.root-servers.net
	"192.33.4.12",    // c.root-servers.net
	"199.7.91.13",    // d.root-servers.net
	"192.203.230.10", // e.root-servers.net
	"192.5.5.241",    // f.root-servers.net
	"192.112.36.4",   // g.root-servers.net
	"198.97.190.53",  // h.root-servers.net
	"192.36.148.17",  // i.root-servers.net
	"192.58.128.30",  // j.root-servers.net
	"193.0.14.129",   // k.root-servers.net
	"199.7.83.42",    // l.root-servers.net
	"202.12.27.33",   // m.root-servers.net
}

// Default returns the settings spec.md §6 names as defaults.
func Default() *Config {
	hints := make([]string, len(ianaRootHints))
	copy(hints, ianaRootHints)
	return &Config{
		Hostname:             "127.0.0.2",
		Port:                 53,
		MaxThreads:           5,
		CacheSize:            100,
		LogFile:              "",
		CacheFile:            "cache.pkl",
		ProxyHostname:        "a.root-servers.net",
		ProxyPort:            53,
		RedisAddr:            "",
		AuditDSN:             "",
		SweepIntervalSeconds: 1,
		RootHints:            hints,
	}
}

// Load reads path as JSON onto a Default() config: present keys
// overwrite the default, absent keys keep it, unknown keys are ignored.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault emits the default config as indented JSON to path, for
// the CLI's "genconfig" subcommand.
func WriteDefault(path string) error {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
