// internal/core/ports/notifier.go
package ports

import (
	"context"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// ChangeNotifier accepts post-commit events. Notify must not block.
type ChangeNotifier interface {
	Notify(event domain.ChangeEvent)
}

// ChangeSink delivers an event to one downstream observer.
type ChangeSink interface {
	Name() string
	Deliver(ctx context.Context, event domain.ChangeEvent) error
}
