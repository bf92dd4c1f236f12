package ports

import "context"

// Notifier delivers operator-facing alerts — console, chat webhook, or
// messaging bot. The transport is out of scope (spec §1); this interface
// is the boundary every engine talks to.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}
