// Package cluster implements the cluster-wide work allocator (spec §4.6,
// C6): rank 0 runs the master loop, every other rank runs the worker loop,
// exchanging one work-item index per request over ZeroMQ ROUTER/DEALER
// sockets. The source uses MPI point-to-point messaging for this; nothing
// in the example pack wires MPI, so this port reaches for the pack's own
// ZeroMQ dependency (go-zeromq/zmq4) as the request-reply transport, with
// explicit --rank/--world-size/--master-addr flags standing in for an
// mpirun-style launcher (documented as a resolved Open Question).
package cluster

import "encoding/binary"

// requestFrame is the single-byte request payload a worker DEALER sends;
// its content carries no information, only its arrival matters.
var requestFrame = []byte{1}

func encodeIndex(i int) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(int64(i)))
	return b
}

func decodeIndex(b []byte) int {
	return int(int64(binary.LittleEndian.Uint64(b)))
}
