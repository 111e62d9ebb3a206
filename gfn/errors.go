package gfn

import (
	"github.com/pkg/errors"
)

var (
	ErrStateNotFound  = errors.New("gfn: state not found in index")
	ErrIllegalAction  = errors.New("gfn: action not legal in this state")
	ErrNotTopological = errors.New("gfn: transition batches are not in construction order")
	ErrBadLogitCount  = errors.New("gfn: policy returned wrong number of logits")
	ErrBadSplitRatio  = errors.New("gfn: split ratio outside (0, 1)")
	ErrSplitExhausted = errors.New("gfn: could not assemble a split of the requested size")
	ErrCacheMissing   = errors.New("gfn: no cached object under this key")
	ErrCacheVersion   = errors.New("gfn: cache schema version is incompatible")
)
