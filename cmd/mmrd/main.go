// Command mmrd serves an append only mountain range log and provides offline
// tools for its snapshots and proofs.
package main

import (
	"fmt"
	"os"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-mountainrange/hashing"
	"github.com/forestrie/go-mountainrange/mountainrange"
	"github.com/forestrie/go-mountainrange/nodestore"
	"github.com/forestrie/go-mountainrange/snowflakeid"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configFile string
	cfg        Config
)

var rootCmd = &cobra.Command{
	Use:           "mmrd",
	Short:         "Merkle mountain range log daemon and tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig(configFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "yaml configuration file")
	rootCmd.AddCommand(serveCmd, appendCmd, rootOfCmd, verifyCmd, snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg Config) logger.Logger {
	logger.New(cfg.LogLevel)
	return logger.Sugar.WithServiceName("mmrd")
}

func openNodes(cfg Config, hasher *hashing.Hasher) (nodestore.Store, error) {
	opts := []nodestore.Option{
		nodestore.WithWidth(hasher.Size()),
		nodestore.WithSyncWrites(cfg.Store.SyncWrites),
	}
	switch cfg.Store.Backend {
	case backendFile:
		return nodestore.OpenFile(cfg.Store.Path, opts...)
	case backendBadger:
		return nodestore.OpenBadger(cfg.Store.Path, opts...)
	case backendPebble:
		return nodestore.OpenPebble(cfg.Store.Path, opts...)
	default:
		return nodestore.NewMemory(opts...), nil
	}
}

// openStore opens the configured node store and the range over it
func openStore(log logger.Logger, cfg Config, opts ...mountainrange.Option) (*mountainrange.Store, *hashing.Hasher, error) {
	hasher, err := hashing.New(cfg.Hash)
	if err != nil {
		return nil, nil, err
	}
	nodes, err := openNodes(cfg, hasher)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]mountainrange.Option{
		mountainrange.WithIDConfig(snowflakeid.Config{
			CommitmentEpoch: cfg.CommitmentEpoch,
			WorkerID:        cfg.WorkerID,
			AllowSpins:      snowflakeid.MaxSpins,
		}),
	}, opts...)
	if cfg.LogID != "" {
		opts = append(opts, mountainrange.WithLogID(uuid.MustParse(cfg.LogID)))
	}

	store, err := mountainrange.New(log, nodes, hasher, opts...)
	if err != nil {
		_ = nodes.Close()
		return nil, nil, err
	}
	return store, hasher, nil
}
