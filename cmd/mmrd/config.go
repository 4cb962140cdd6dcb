package main

import (
	"io"
	"os"
	"strings"

	"github.com/forestrie/go-mountainrange/hashing"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	backendMemory = "memory"
	backendFile   = "file"
	backendBadger = "badger"
	backendPebble = "pebble"
)

type StoreConfig struct {
	// Backend is one of memory, file, badger or pebble
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	SyncWrites bool   `yaml:"syncWrites"`
}

type SnapshotConfig struct {
	// Path, if set, is restored from on start when the store is empty and
	// written on shutdown.
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

type GossipConfig struct {
	Enabled bool     `yaml:"enabled"`
	Listen  []string `yaml:"listen"`
	// Peers are multiaddrs, including the /p2p/ id, to connect to on start
	Peers []string `yaml:"peers"`
}

type BlobConfig struct {
	// Container, if set, enables publishing checkpoints to blob storage.
	// The account comes from the environment.
	Container string `yaml:"container"`
}

type Config struct {
	Listen          string           `yaml:"listen"`
	LogLevel        string           `yaml:"logLevel"`
	LogID           string           `yaml:"logId"`
	Hash            hashing.HashType `yaml:"hash"`
	WorkerID        uint16           `yaml:"workerId"`
	CommitmentEpoch uint8            `yaml:"commitmentEpoch"`
	Store           StoreConfig      `yaml:"store"`
	Snapshot        SnapshotConfig   `yaml:"snapshot"`
	Gossip          GossipConfig     `yaml:"gossip"`
	Blob            BlobConfig       `yaml:"blob"`
}

func DefaultConfig() Config {
	return Config{
		Listen:          "127.0.0.1:8080",
		LogLevel:        "INFO",
		Hash:            hashing.SHA256,
		CommitmentEpoch: 1,
		Store: StoreConfig{
			Backend: backendMemory,
		},
		Gossip: GossipConfig{
			Listen: []string{"/ip4/0.0.0.0/tcp/0"},
		},
	}
}

// LoadConfig reads the yaml file at path over the defaults. An empty path
// gives the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "opening config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	// an empty file is the defaults
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrapf(err, "decoding config %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Store.Backend {
	case backendMemory:
	case backendFile, backendBadger, backendPebble:
		if c.Store.Path == "" {
			return errors.Errorf("store backend %s requires a path", c.Store.Backend)
		}
	default:
		return errors.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if err := c.Hash.Validate(); err != nil {
		return errors.Wrap(err, "hash")
	}
	if c.LogID != "" {
		if _, err := uuid.Parse(c.LogID); err != nil {
			return errors.Wrap(err, "logId")
		}
	}
	if c.Listen == "" || !strings.Contains(c.Listen, ":") {
		return errors.Errorf("listen address %q must be host:port", c.Listen)
	}
	return nil
}
