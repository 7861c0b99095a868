package cli

import (
	"errors"
	"fmt"
)

var errNoSeed = errors.New("no identity seed; pass --seed, set TILENOTES_SEED, or run `tilenotes identity init`")

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

// opFailedError reports a dispatcher that ended in a failed status. The cause is in the log.
type opFailedError struct {
	op     string
	status string
}

func (e opFailedError) Error() string {
	return fmt.Sprintf("%s: %s (see log for details)", e.op, e.status)
}

func errOpFailed(op, status string) error {
	return opFailedError{op: op, status: status}
}
