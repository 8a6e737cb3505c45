// Package config parses the core's CLI surface (spec §6, expanded per
// SPEC_FULL.md's Configuration section) with spf13/cobra + spf13/pflag,
// following the example pack's single-root-command cobra layout
// (maxdcmn-blackbox's cmd/root.go).
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// StorageBackend selects the storage.Backend variant.
type StorageBackend string

const (
	StorageDisk StorageBackend = "disk"
	StorageS3   StorageBackend = "s3"
)

// DecoderBackend selects the decode.Decoder variant.
type DecoderBackend string

const (
	DecoderSoftware  DecoderBackend = "software"
	DecoderGStreamer DecoderBackend = "gstreamer"
)

// Config is the fully parsed and validated CLI surface.
type Config struct {
	VideoPathsFile      string
	GPUsPerNode         int
	BatchSize           int
	BatchesPerWorkItem  int
	TasksInQueuePerGPU  int
	LoadWorkersPerNode  int
	NumCUDAStreams      int
	StorageBackend      StorageBackend
	StorageRoot         string
	S3Bucket            string
	DecoderBackend      DecoderBackend
	Rank                int
	WorldSize           int
	MasterAddr          string
	Debug               bool
}

// Exit is called for the --help early-exit path (spec §6: exits 1, not
// cobra's default 0). A package variable so tests can intercept it
// instead of killing the test binary.
var Exit = os.Exit

// ErrMissingRequiredFlag is returned when a required flag was not
// supplied (spec §7 "Configuration error... non-zero exit").
type ErrMissingRequiredFlag struct{ Flag string }

func (e *ErrMissingRequiredFlag) Error() string {
	return fmt.Sprintf("config: required flag --%s not set", e.Flag)
}

// Parse builds the root cobra command, runs it against args, and returns
// the validated Config. --help exits the process with status 1 (spec §6,
// overriding cobra's default exit-0-on-help behavior).
func Parse(args []string) (*Config, error) {
	cfg := &Config{}

	root := &cobra.Command{
		Use:           "batchscan",
		Short:         "pipelined multi-GPU, multi-node batched video inference",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return validate(cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfg.VideoPathsFile, "video-paths-file", "", "text file, one video path per line (required)")
	flags.IntVar(&cfg.GPUsPerNode, "gpus-per-node", 1, "number of GPUs on this node")
	flags.IntVar(&cfg.BatchSize, "batch-size", 64, "network input batch size (GLOBAL_BATCH_SIZE)")
	flags.IntVar(&cfg.BatchesPerWorkItem, "batches-per-work-item", 4, "micro-batches per work item")
	flags.IntVar(&cfg.TasksInQueuePerGPU, "tasks-in-queue-per-gpu", 4, "buffer pool depth per GPU")
	flags.IntVar(&cfg.LoadWorkersPerNode, "load-workers-per-node", 2, "loader threads per node")
	flags.IntVar(&cfg.NumCUDAStreams, "num-cuda-streams", 32, "CUDA streams per evaluator")
	flags.StringVar((*string)(&cfg.StorageBackend), "storage-backend", string(StorageDisk), "disk or s3")
	flags.StringVar(&cfg.StorageRoot, "storage-root", "", "root directory for the disk storage backend")
	flags.StringVar(&cfg.S3Bucket, "s3-bucket", "", "bucket name for the s3 storage backend")
	flags.StringVar((*string)(&cfg.DecoderBackend), "decoder-backend", string(DecoderSoftware), "software or gstreamer")
	flags.IntVar(&cfg.Rank, "rank", 0, "this node's cluster rank (0 is master)")
	flags.IntVar(&cfg.WorldSize, "world-size", 1, "total number of cluster nodes")
	flags.StringVar(&cfg.MasterAddr, "master-addr", "", "ZeroMQ endpoint of the master (required if world-size > 1)")
	flags.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")

	root.SetArgs(args)

	for _, a := range args {
		if a == "--help" || a == "-h" {
			root.Usage()
			Exit(1)
			return nil, fmt.Errorf("config: help requested")
		}
	}

	if err := root.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.VideoPathsFile == "" {
		return &ErrMissingRequiredFlag{Flag: "video-paths-file"}
	}
	if cfg.StorageBackend != StorageDisk && cfg.StorageBackend != StorageS3 {
		return fmt.Errorf("config: unknown --storage-backend %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == StorageS3 && cfg.S3Bucket == "" {
		return &ErrMissingRequiredFlag{Flag: "s3-bucket"}
	}
	if cfg.DecoderBackend != DecoderSoftware && cfg.DecoderBackend != DecoderGStreamer {
		return fmt.Errorf("config: unknown --decoder-backend %q", cfg.DecoderBackend)
	}
	if cfg.WorldSize > 1 && cfg.MasterAddr == "" {
		return &ErrMissingRequiredFlag{Flag: "master-addr"}
	}
	if cfg.GPUsPerNode <= 0 || cfg.BatchSize <= 0 || cfg.BatchesPerWorkItem <= 0 ||
		cfg.TasksInQueuePerGPU <= 0 || cfg.LoadWorkersPerNode <= 0 || cfg.NumCUDAStreams <= 0 {
		return fmt.Errorf("config: numeric flags must be positive")
	}
	return nil
}
