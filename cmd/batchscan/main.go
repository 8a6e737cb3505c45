// Command batchscan runs one batch of the pipelined, multi-GPU, multi-node
// video-inference core end to end (spec §1, §4.7). It wires the CLI flags
// to a concrete storage backend, decoder variant, and network loader, then
// hands control to internal/pipeline.Run.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumenvid/batchscan/internal/config"
	"github.com/lumenvid/batchscan/internal/decode"
	"github.com/lumenvid/batchscan/internal/decode/gstdecoder"
	"github.com/lumenvid/batchscan/internal/errs"
	"github.com/lumenvid/batchscan/internal/loader"
	"github.com/lumenvid/batchscan/internal/logging"
	"github.com/lumenvid/batchscan/internal/netinfer"
	"github.com/lumenvid/batchscan/internal/pipeline"
	"github.com/lumenvid/batchscan/internal/storage"
	"github.com/lumenvid/batchscan/internal/videometa"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{Debug: cfg.Debug})
	if err != nil {
		fmt.Fprintln(os.Stderr, "batchscan: build logger:", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	backend, err := newStorageBackend(cfg)
	if err != nil {
		log.Fatalw("build storage backend", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- pipeline.Run(ctx, pipeline.Config{
			Cfg:         cfg,
			Storage:     backend,
			OpenDecoder: newOpenDecoder(cfg),
			NetLoader:   netinfer.NewReferenceLoader(224),
			ModelKind:   netinfer.ReferenceModel,
			Log:         log,
		})
	}()

	select {
	case sig := <-sigCh:
		log.Infow("received shutdown signal", "signal", sig.String())
		cancel()
		err = <-errCh
	case err = <-errCh:
	}

	if err != nil {
		if errors.Is(err, errs.ErrNotPreprocessed) {
			log.Errorw("preprocessing incomplete, run stopped", "error", err)
			os.Exit(2)
		}
		log.Errorw("pipeline run failed", "error", err)
		os.Exit(1)
	}
	log.Info("pipeline run complete")
}

func newStorageBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return storage.NewS3Backend(context.Background(), cfg.S3Bucket)
	default:
		return storage.NewDiskBackend(cfg.StorageRoot), nil
	}
}

// newOpenDecoder selects the loader.OpenDecoder variant per
// --decoder-backend (spec §9 "polymorphism over capability, not
// inheritance" — dispatched once here, never branched on again downstream).
func newOpenDecoder(cfg *config.Config) loader.OpenDecoder {
	if cfg.DecoderBackend != config.DecoderGStreamer {
		return loader.SoftwareOpenDecoder
	}
	return func(path string, _ storage.RandomReadFile, meta videometa.Metadata, kf videometa.KeyframeIndex, framesPerKeyframe int) (decode.Decoder, error) {
		return gstdecoder.New(gstdecoder.Config{Path: path, Width: meta.Width, Height: meta.Height}, meta, kf, framesPerKeyframe, estimateFPS(kf, framesPerKeyframe))
	}
}

// estimateFPS derives a frame rate from the keyframe index's own
// timestamps (assumed milliseconds) when at least two keyframes are
// present, falling back to a conservative default otherwise. The core's
// keyframe index carries no explicit fps field (spec §6); gstdecoder only
// needs this to convert a target frame index into a seek position.
func estimateFPS(kf videometa.KeyframeIndex, framesPerKeyframe int) float64 {
	if len(kf.Timestamps) < 2 || framesPerKeyframe <= 0 {
		return 30.0
	}
	deltaMS := kf.Timestamps[1] - kf.Timestamps[0]
	if deltaMS <= 0 {
		return 30.0
	}
	return float64(framesPerKeyframe) / (float64(deltaMS) / 1000.0)
}
