package counters

import "context"

// Repository holds named monotonic counters. Increment creates the counter at
// zero if it is absent before adding one; Read returns zero for an unknown
// name. Counters are never decremented.
type Repository interface {
	Increment(ctx context.Context, name string) error
	Read(ctx context.Context, name string) (int64, error)
}
