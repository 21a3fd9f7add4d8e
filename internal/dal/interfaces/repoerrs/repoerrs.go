package repoerrs

import "errors"

// ErrConcurrentModification is returned when an optimistic-lock version check
// fails at persist time. The caller should re-read the aggregate and retry.
var ErrConcurrentModification = errors.New("aggregate was modified concurrently")
