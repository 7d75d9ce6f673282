package zset

import "github.com/pkg/errors"

// Sentinel errors returned by ZSet operations. Lookup misses are never
// represented here — they surface as (found=false, _), rank 0, or an
// empty/zero result per the method's own contract.
var (
	ErrMemberEmpty    = errors.New("zset: member must not be empty")
	ErrMemberTooLong  = errors.New("zset: member exceeds max member length")
	ErrBackendOpen    = errors.New("zset: backend open failed")
	ErrAlreadyExists  = errors.New("zset: store already contains data and error_if_exists was set")
	ErrStoreIO        = errors.New("zset: store read/write failed")
	ErrIncompatible   = errors.New("zset: incompatible zset configuration")
	ErrClosed         = errors.New("zset: zset is closed")
)

// wrapf annotates err with a stack trace and a message, matching the
// wrap-don't-swallow posture of pkg/errors call sites across the pack.
func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
