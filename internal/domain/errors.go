package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks problems that must stop the process before it serves traffic.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstream marks a failed call to the embedding or chat service.
	ErrUpstream = errors.New("upstream error")

	// ErrUnavailable marks an upstream call that timed out. It also matches ErrUpstream.
	ErrUnavailable = &unavailableError{}

	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrSchemaVersion     = errors.New("unsupported index schema version")
)

type unavailableError struct{}

func (*unavailableError) Error() string { return "upstream unavailable" }

func (*unavailableError) Is(target error) bool { return target == ErrUpstream }

// UpstreamFailure wraps err from the named upstream operation. Errors caused
// by an expired deadline, on err or on ctx, are classified as ErrUnavailable.
func UpstreamFailure(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
