// Package workitem implements the work-item model (spec §3, §4.3): it
// partitions every video into fixed-size frame ranges and defines the
// transient entries that flow through the pipeline's queues.
package workitem

// Sentinel is the in-band value signaling worker termination (spec
// glossary: "the value -1 in a work-entry's index field").
const Sentinel = -1

// WorkItem is an immutable (video_index, start_frame, end_frame) tuple.
// end_frame - start_frame <= FramesPerWorkItem. Globally ordered by the
// master and dispatched by index (spec §3).
type WorkItem struct {
	VideoIndex int
	StartFrame int
	EndFrame   int
}

// Len returns the number of frames this item covers.
func (w WorkItem) Len() int { return w.EndFrame - w.StartFrame }

// LoadWorkEntry names the shape of a load_work entry. The load_work queue
// itself carries the bare work-item index (queue.Queue[int]), so loaders
// pop ints, not this type; an index equal to Sentinel signals loader
// termination.
type LoadWorkEntry struct {
	WorkItemIndex int
}

// LoadBufferEntry identifies one slot in the per-GPU buffer pool.
type LoadBufferEntry struct {
	GPUDeviceID int
	BufferIndex int
}

// EvalWorkEntry tells an evaluator which decoded range lives in which
// buffer. WorkItemIndex == Sentinel is the evaluator sentinel.
type EvalWorkEntry struct {
	WorkItemIndex int
	BufferIndex   int
}

// VideoFrameCount abstracts "how many frames does video i have" so the
// allocator doesn't need the full Metadata type (avoids an import cycle
// with internal/videometa from tests).
type VideoFrameCount func(videoIndex int) int

// BuildWorkItems partitions numVideos videos into WorkItems of exactly
// framesPerItem frames each, with the last range of each video possibly
// shorter (spec §4.3). Output order: videos in input order, frames
// ascending within each video — identical on every node given the same
// (numVideos, frameCount, framesPerItem) inputs, since videos and metadata
// are globally replicated (spec §4.3).
func BuildWorkItems(numVideos int, frameCount VideoFrameCount, framesPerItem int) []WorkItem {
	if framesPerItem <= 0 {
		panic("workitem: framesPerItem must be positive")
	}

	var items []WorkItem
	for v := 0; v < numVideos; v++ {
		total := frameCount(v)
		allocated := 0
		for allocated < total {
			n := framesPerItem
			if remaining := total - allocated; remaining < n {
				n = remaining
			}
			items = append(items, WorkItem{
				VideoIndex: v,
				StartFrame: allocated,
				EndFrame:   allocated + n,
			})
			allocated += n
		}
	}
	return items
}

// FramesPerWorkItem computes FRAMES_PER_WORK_ITEM = GLOBAL_BATCH_SIZE *
// BATCHES_PER_WORK_ITEM (spec §3, §4.3).
func FramesPerWorkItem(globalBatchSize, batchesPerWorkItem int) int {
	return globalBatchSize * batchesPerWorkItem
}
