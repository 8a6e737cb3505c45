// Package bufferpool implements the fixed per-GPU frame-range buffer pool
// (spec §4.2, C2). A buffer is "free" iff its LoadBufferEntry sits in the
// empty_load_buffers queue — the pool deliberately has no separate
// free-list, per spec §9 ("Buffer pool as a semaphore"): popping an entry
// *names* the buffer the loader must use, which is how implicit GPU
// assignment falls out. Preserve this coupling.
package bufferpool

import (
	"fmt"

	"github.com/lumenvid/batchscan/internal/queue"
	"github.com/lumenvid/batchscan/internal/workitem"
)

// Pool owns the fixed arena of per-GPU buffers and the empty_load_buffers
// queue that represents "free" state. Buffers outlive both loaders and
// evaluators; they are owned by the pipeline coordinator and passed between
// workers by index (spec §9 "Cyclic lifetime of buffers") — Pool never
// reference-counts a buffer, it only tracks which index is currently free.
type Pool struct {
	gpusPerNode int
	loadBuffers int
	bufferSize  int

	// arenas[gpu][bufferIndex] is one contiguous region of bufferSize bytes.
	arenas [][][]byte

	// Empty is the empty_load_buffers queue (spec §4.2): a loader acquires
	// a buffer by popping it, an evaluator releases one by pushing it back.
	Empty *queue.Queue[workitem.LoadBufferEntry]
}

// New preallocates gpusPerNode*loadBuffers buffers of bufferSize bytes each
// and seeds Empty with every (gpu, index) pair, exactly as the source does
// at startup (spec §4.2, original_source's gpu_frame_buffers allocation
// loop).
func New(gpusPerNode, loadBuffers, bufferSize int) *Pool {
	if gpusPerNode <= 0 || loadBuffers <= 0 || bufferSize <= 0 {
		panic("bufferpool: gpusPerNode, loadBuffers and bufferSize must be positive")
	}

	p := &Pool{
		gpusPerNode: gpusPerNode,
		loadBuffers: loadBuffers,
		bufferSize:  bufferSize,
		arenas:      make([][][]byte, gpusPerNode),
		Empty:       queue.New[workitem.LoadBufferEntry](0),
	}

	for gpu := 0; gpu < gpusPerNode; gpu++ {
		p.arenas[gpu] = make([][]byte, loadBuffers)
		for i := 0; i < loadBuffers; i++ {
			p.arenas[gpu][i] = make([]byte, bufferSize)
			p.Empty.Push(workitem.LoadBufferEntry{GPUDeviceID: gpu, BufferIndex: i})
		}
	}
	return p
}

// Acquire blocks until a buffer is free and returns its entry plus the
// backing slice. This is the pool's sole backpressure mechanism (spec
// §4.2): when evaluators cannot keep up, buffers accumulate in flight and
// this call stalls every loader.
func (p *Pool) Acquire() (workitem.LoadBufferEntry, []byte) {
	entry := p.Empty.Pop()
	return entry, p.Buffer(entry)
}

// Release returns a buffer to the pool (pushed by the owning evaluator once
// it has finished a work item, spec §4.5).
func (p *Pool) Release(entry workitem.LoadBufferEntry) {
	p.Empty.Push(entry)
}

// Buffer returns the backing slice for a given entry without touching pool
// state — used by a loader/evaluator that already owns the entry.
func (p *Pool) Buffer(entry workitem.LoadBufferEntry) []byte {
	if entry.GPUDeviceID < 0 || entry.GPUDeviceID >= p.gpusPerNode {
		panic(fmt.Sprintf("bufferpool: gpu %d out of range", entry.GPUDeviceID))
	}
	if entry.BufferIndex < 0 || entry.BufferIndex >= p.loadBuffers {
		panic(fmt.Sprintf("bufferpool: buffer index %d out of range", entry.BufferIndex))
	}
	return p.arenas[entry.GPUDeviceID][entry.BufferIndex]
}

// Total returns GPUS_PER_NODE * LOAD_BUFFERS, the invariant buffer count
// (spec §3 "Invariants across the node pipeline").
func (p *Pool) Total() int { return p.gpusPerNode * p.loadBuffers }

// BufferSize returns the fixed per-buffer byte size.
func (p *Pool) BufferSize() int { return p.bufferSize }
