package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datatrails/go-datatrails-common/azblob"
	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-mountainrange/api"
	"github.com/forestrie/go-mountainrange/checkpoint"
	"github.com/forestrie/go-mountainrange/hashing"
	"github.com/forestrie/go-mountainrange/mountainrange"
	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the log over http",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger(cfg)
	defer logger.OnExit()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hasher, err := hashing.New(cfg.Hash)
	if err != nil {
		return err
	}
	if cfg.LogID == "" {
		cfg.LogID = uuid.NewString()
		log.Infof("no logId configured, using %s", cfg.LogID)
	}

	codec, err := checkpoint.NewCodec()
	if err != nil {
		return err
	}

	ledger := checkpoint.NewLedger(hasher, cfg.LogID)
	publishers := checkpoint.Publishers{ledger}

	if cfg.Blob.Container != "" {
		storer, err := azblob.NewDev(azblob.NewDevConfigFromEnv(), cfg.Blob.Container)
		if err != nil {
			return err
		}
		publishers = append(publishers, checkpoint.NewBlobPublisher(log, storer, checkpoint.NewPlainEncoder(codec)))
		log.Infof("publishing checkpoints to container %s", cfg.Blob.Container)
	}

	if cfg.Gossip.Enabled {
		h, topic, err := joinGossip(ctx, log, codec, cfg.Gossip, cfg.LogID)
		if err != nil {
			return err
		}
		defer h.Close()
		defer topic.Close()
		publishers = append(publishers, checkpoint.NewGossipPublisher(log, codec, topic))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, _, err := openStore(log, cfg,
		mountainrange.WithPublisher(publishers),
		mountainrange.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := restoreSnapshot(ctx, log, store, cfg.Snapshot); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(log, store, api.ServerOptions{Ledger: ledger, Gatherer: reg, Leaves: hasher}, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	if serr := saveSnapshot(log, store, cfg.Snapshot); serr != nil {
		log.Infof("saving snapshot: %v", serr)
	}
	return err
}

// joinGossip starts a libp2p host, connects it to the configured peers and
// joins the checkpoint topic for logID.
func joinGossip(
	ctx context.Context, log logger.Logger, codec dtcbor.CBORCodec, gc GossipConfig, logID string,
) (host.Host, *pubsub.Topic, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(gc.Listen...))
	if err != nil {
		return nil, nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	for _, addr := range gc.Peers {
		ai, err := peer.AddrInfoFromString(addr)
		if err != nil {
			h.Close()
			return nil, nil, err
		}
		if err := h.Connect(ctx, *ai); err != nil {
			// gossip recovers once any peer is reachable
			log.Infof("connecting to %s: %v", addr, err)
		}
	}
	topic, err := checkpoint.JoinTopic(ps, codec, logID)
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	log.Infof("gossip host %s joined %s", h.ID(), topic.String())
	return h, topic, nil
}

func restoreSnapshot(ctx context.Context, log logger.Logger, store *mountainrange.Store, sc SnapshotConfig) error {
	if sc.Path == "" || store.State().ElementsCount != 0 {
		return nil
	}
	data, err := os.ReadFile(sc.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	snap, err := mountainrange.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	if err := store.Restore(ctx, snap); err != nil {
		return err
	}
	log.Infof("restored %d leaves from %s", snap.LeavesCount, sc.Path)
	return nil
}

func saveSnapshot(log logger.Logger, store *mountainrange.Store, sc SnapshotConfig) error {
	if sc.Path == "" {
		return nil
	}
	snap, err := store.Snapshot()
	if err != nil {
		return err
	}
	data, err := mountainrange.EncodeSnapshot(snap, sc.Compress)
	if err != nil {
		return err
	}
	// write then rename so a crash never leaves a partial snapshot
	tmp := sc.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, sc.Path); err != nil {
		return err
	}
	log.Infof("saved %d leaves to %s", snap.LeavesCount, sc.Path)
	return nil
}
