package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--video-paths-file", "videos.txt"})
	require.NoError(t, err)
	require.Equal(t, "videos.txt", cfg.VideoPathsFile)
	require.Equal(t, 1, cfg.GPUsPerNode)
	require.Equal(t, 64, cfg.BatchSize)
	require.Equal(t, 4, cfg.BatchesPerWorkItem)
	require.Equal(t, 4, cfg.TasksInQueuePerGPU)
	require.Equal(t, 2, cfg.LoadWorkersPerNode)
	require.Equal(t, 32, cfg.NumCUDAStreams)
	require.Equal(t, StorageDisk, cfg.StorageBackend)
	require.Equal(t, DecoderSoftware, cfg.DecoderBackend)
	require.Equal(t, 1, cfg.WorldSize)
}

func TestParseMissingRequiredFlag(t *testing.T) {
	_, err := Parse([]string{})
	var missing *ErrMissingRequiredFlag
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "video-paths-file", missing.Flag)
}

func TestParseS3BackendRequiresBucket(t *testing.T) {
	_, err := Parse([]string{"--video-paths-file", "v.txt", "--storage-backend", "s3"})
	var missing *ErrMissingRequiredFlag
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "s3-bucket", missing.Flag)
}

func TestParseMultiNodeRequiresMasterAddr(t *testing.T) {
	_, err := Parse([]string{"--video-paths-file", "v.txt", "--world-size", "2"})
	var missing *ErrMissingRequiredFlag
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "master-addr", missing.Flag)
}

func TestParseHelpExitsWithStatusOne(t *testing.T) {
	originalExit := Exit
	defer func() { Exit = originalExit }()

	var exitCode int
	exited := false
	Exit = func(code int) { exited = true; exitCode = code }

	_, _ = Parse([]string{"--help"})
	require.True(t, exited)
	require.Equal(t, 1, exitCode)
}

func TestParseUnknownStorageBackend(t *testing.T) {
	_, err := Parse([]string{"--video-paths-file", "v.txt", "--storage-backend", "nope"})
	require.Error(t, err)
}
