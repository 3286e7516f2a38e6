package pool

import "errors"

// ErrShutDown is returned by Schedule, Resume, and ResumeAll once Shutdown
// has been called.
var ErrShutDown = errors.New("pool: shut down")

// ErrNilHandle is returned by Resume/ResumeAll for a nil handle.
var ErrNilHandle = errors.New("pool: nil handle")
