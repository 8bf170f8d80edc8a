package cache

import "github.com/pkg/errors"

// ErrCacheFull is returned by callers that pre-check capacity before a Set
// when they choose to reject rather than evict (the Cache type itself
// always evicts per its policy rather than refusing writes).
var ErrCacheFull = errors.New("cache: at capacity")
