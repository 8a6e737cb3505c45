// Package errs centralizes the core's fatal-error policy (spec §7: storage
// transient, decoder, and GPU failures abort the process, since the
// pipeline has no per-item recovery semantics) and the sentinel errors
// workers check for non-fatal control flow (the preprocessing-not-done
// gate, spec §4.7).
package errs

import (
	"errors"
	"fmt"
)

// ErrNotPreprocessed is returned by the pipeline startup check when a
// video's processed artifacts (video, metadata, keyframe index) are
// missing, gating the run into a preprocessing pass (spec §4.7).
var ErrNotPreprocessed = errors.New("pipeline: video not preprocessed")

// Fatal is the core's abort hook. Production code calls it on storage,
// decode, or GPU failures that have no recovery path; it is a package
// variable (not a direct os.Exit/log.Fatal call, as the teacher's
// examples use) so tests can substitute a panic-and-recover or
// record-and-return stub instead of killing the test binary.
var Fatal = func(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
