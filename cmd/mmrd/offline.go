package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-mountainrange/api"
	"github.com/forestrie/go-mountainrange/checkpoint"
	"github.com/forestrie/go-mountainrange/hashing"
	"github.com/forestrie/go-mountainrange/mmr"
	"github.com/forestrie/go-mountainrange/mountainrange"
	"github.com/forestrie/go-mountainrange/nodestore"
	"github.com/spf13/cobra"
)

var (
	snapshotFile string
	snapshotOut  string
	proofFile    string
	verifyValue  string
	verifyRoot   string
	watchLogID   string
)

func init() {
	rootOfCmd.Flags().StringVarP(&snapshotFile, "snapshot", "s", "", "snapshot file")
	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "file to write the snapshot to")
	verifyCmd.Flags().StringVar(&proofFile, "proof", "", "proof json, as served by /v1/proofs/{pos}")
	verifyCmd.Flags().StringVar(&verifyValue, "value", "", "hex value of the proven element")
	verifyCmd.Flags().StringVar(&verifyRoot, "root", "", "hex root to verify against")
	watchCmd.Flags().StringVar(&watchLogID, "log", "", "log id to watch, defaults to the configured logId")
	rootCmd.AddCommand(watchCmd)
}

// rootOfCmd restores a snapshot into memory, which checks the nodes against
// the recorded root, and prints the state.
var rootOfCmd = &cobra.Command{
	Use:   "root",
	Short: "Print and check the root of a snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if snapshotFile == "" {
			return fmt.Errorf("--snapshot is required")
		}
		data, err := os.ReadFile(snapshotFile)
		if err != nil {
			return err
		}
		snap, err := mountainrange.DecodeSnapshot(data)
		if err != nil {
			return err
		}

		log := newLogger(cfg)
		defer logger.OnExit()

		hasher, err := hashing.New(cfg.Hash)
		if err != nil {
			return err
		}
		store, err := mountainrange.New(log, nodestore.NewMemory(), hasher)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Restore(cmd.Context(), snap); err != nil {
			return err
		}
		state := store.State()
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"leavesCount":   state.LeavesCount,
			"elementsCount": state.ElementsCount,
			"root":          hex.EncodeToString(state.Root),
			"peaks":         hexStrings(state.Peaks),
		})
	},
}

// verifyCmd checks a proof with nothing but the hash function
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an inclusion proof against a root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if proofFile == "" || verifyValue == "" || verifyRoot == "" {
			return fmt.Errorf("--proof, --value and --root are required")
		}
		data, err := os.ReadFile(proofFile)
		if err != nil {
			return err
		}
		proof, err := api.DecodeProof(data)
		if err != nil {
			return err
		}
		value, err := hex.DecodeString(verifyValue)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		root, err := hex.DecodeString(verifyRoot)
		if err != nil {
			return fmt.Errorf("root: %w", err)
		}
		hasher, err := hashing.New(cfg.Hash)
		if err != nil {
			return err
		}

		ok, err := mmr.VerifyProof(hasher, value, proof, root)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok)
		if !ok {
			return fmt.Errorf("proof does not verify")
		}
		return nil
	},
}

// snapshotCmd writes a snapshot of the configured store
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write a snapshot of the configured store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if snapshotOut == "" {
			return fmt.Errorf("--out is required")
		}
		log := newLogger(cfg)
		defer logger.OnExit()

		store, _, err := openStore(log, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		return saveSnapshot(log, store, SnapshotConfig{Path: snapshotOut, Compress: cfg.Snapshot.Compress})
	},
}

// printer writes each commitment it is given as a json line
type printer struct {
	enc *json.Encoder
}

func (p printer) SetCommitment(_ context.Context, state checkpoint.MMRState) error {
	return p.enc.Encode(map[string]any{
		"logId":         state.LogID,
		"elementsCount": state.MMRSize,
		"root":          hex.EncodeToString(state.Root),
		"idTimestamp":   state.IDTimestamp,
	})
}

// watchCmd follows the checkpoints gossiped for a log. Each is archived in a
// ledger, which logs any root that conflicts with one already seen.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print checkpoints gossiped for a log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logID := watchLogID
		if logID == "" {
			logID = cfg.LogID
		}
		if logID == "" {
			return fmt.Errorf("--log or a configured logId is required")
		}

		log := newLogger(cfg)
		defer logger.OnExit()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hasher, err := hashing.New(cfg.Hash)
		if err != nil {
			return err
		}
		codec, err := checkpoint.NewCodec()
		if err != nil {
			return err
		}
		h, topic, err := joinGossip(ctx, log, codec, cfg.Gossip, logID)
		if err != nil {
			return err
		}
		defer h.Close()
		defer topic.Close()

		sink := checkpoint.Publishers{
			checkpoint.NewLedger(hasher, logID),
			printer{enc: json.NewEncoder(cmd.OutOrStdout())},
		}
		return checkpoint.Follow(ctx, log, codec, topic, sink)
	},
}

func hexStrings(values [][]byte) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = hex.EncodeToString(v)
	}
	return out
}
