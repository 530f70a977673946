package syncer

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/common"
)

// errNoRemoteID is returned when the server accepts a record without naming it.
var errNoRemoteID = errors.New("server returned no resource name")

type errClass int

const (
	classNone errClass = iota
	// classHalt stops the pass without backoff: credentials or host are wrong.
	classHalt
	// classTransient stops the pass and schedules backoff.
	classTransient
	// classItem affects one record or operation only.
	classItem
	classCanceled
	// classFatal is an unexpected pass-level failure; it backs off like
	// a transient one.
	classFatal
)

func classify(err error) errClass {
	switch {
	case err == nil:
		return classNone
	case errors.Is(err, context.Canceled):
		return classCanceled
	case errors.Is(err, client.ErrUnauthenticated), errors.Is(err, client.ErrInvalidServer):
		return classHalt
	case errors.Is(err, client.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return classTransient
	case errors.Is(err, client.ErrRejected),
		errors.Is(err, client.ErrNotFound),
		errors.Is(err, client.ErrConflict),
		errors.Is(err, errNoRemoteID),
		errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrLocalStorageCorruption):
		return classItem
	default:
		return classFatal
	}
}

func (c errClass) String() string {
	switch c {
	case classNone:
		return "ok"
	case classHalt:
		return "halt"
	case classTransient:
		return "transient"
	case classItem:
		return "item"
	case classCanceled:
		return "canceled"
	default:
		return "fatal"
	}
}
