// Package defs holds the error vocabulary and small cross-cutting
// constants shared by every layer of the kernel core.
package defs

/// Err_t is the kernel-wide error code. Zero means success; every
/// failure is a small negative constant so callers can propagate it
/// without allocating.
type Err_t int

// Error kinds, one per row of the error taxonomy. The numeric
// values are private implementation detail; callers compare against the
// named constants.
const (
	ENOENT Err_t = -1 /// NotFound: named object does not exist
	EINVAL Err_t = -2 /// Invalid: caller-supplied input is malformed
	ENOSPC Err_t = -3 /// NoSpace: capacity exhausted
	EIO    Err_t = -4 /// Io: backing device failed
	EBUSY  Err_t = -5 /// Busy: resource temporarily unavailable
	ENOSYS Err_t = -6 /// Unsupported: request outside current implementation
)

/// Kind_t names the taxonomy row an Err_t belongs to.
type Kind_t int

const (
	KindNone Kind_t = iota
	KindNotFound
	KindInvalid
	KindNoSpace
	KindIo
	KindBusy
	KindUnsupported
)

var kindNames = map[Kind_t]string{
	KindNone:        "ok",
	KindNotFound:    "not found",
	KindInvalid:     "invalid",
	KindNoSpace:     "no space",
	KindIo:          "io error",
	KindBusy:        "busy",
	KindUnsupported: "unsupported",
}

/// Kind classifies an Err_t into its taxonomy row.
func (e Err_t) Kind() Kind_t {
	switch e {
	case 0:
		return KindNone
	case ENOENT:
		return KindNotFound
	case EINVAL:
		return KindInvalid
	case ENOSPC:
		return KindNoSpace
	case EIO:
		return KindIo
	case EBUSY:
		return KindBusy
	case ENOSYS:
		return KindUnsupported
	default:
		return KindInvalid
	}
}

/// String renders the error kind for single-line shell diagnostics.
func (e Err_t) String() string {
	return kindNames[e.Kind()]
}

/// Ok reports whether e represents success.
func (e Err_t) Ok() bool {
	return e == 0
}
