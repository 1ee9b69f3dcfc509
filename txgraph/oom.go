package txgraph

import "sync/atomic"

// oomFlag is the process-wide OOM sentinel described in SPEC_FULL.md §5 and
// §9. The reference implementation latches a per-thread boolean; Go has no
// cheap ambient thread-local storage, so this port follows the design
// notes' fallback: Node.Commit returns the OOM flag directly as its second
// result, which every caller should prefer. OOM is kept only for code
// ported from APIs that expect an ambient query, and reflects the most
// recent Commit call's outcome across all graphs in the process.
var oomFlag atomic.Bool

func setOOM(v bool) { oomFlag.Store(v) }

// OOM reports whether the most recent call to (*Node).Commit in this
// process failed because the node was NOMEM, as opposed to failing the
// serializability check. It is cleared by any Commit call that gets past
// the NOMEM check. Prefer the oom return value from Commit itself; this
// exists only for parity with the reference C API's ptx_oom().
func OOM() bool { return oomFlag.Load() }
