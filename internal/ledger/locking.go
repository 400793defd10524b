package ledger

import (
	"context"
	"errors"
	"sort"
	"time"
)

// DefaultLockTimeout bounds how long a mutation waits for a row lock.
const DefaultLockTimeout = 5 * time.Second

// lockOrder returns the distinct non-empty wallet ids in ascending order.
// Every unit that locks more than one wallet goes through it so that two
// units never wait on each other in a cycle.
func lockOrder(ids ...string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// contextError classifies a context failure observed before commit. A
// deadline means the unit ran out of time waiting on locks and may be
// retried; cancellation means the caller went away.
func contextError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(KindConflict, err, "%s: timed out, retry", op)
	}
	return wrapError(KindPersistence, err, "%s: cancelled before commit", op)
}
