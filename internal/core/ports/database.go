// internal/core/ports/database.go
package ports

import "context"

// Database is the slice of the Postgres adapter that the process edges see:
// readiness probes ping it, the health report shows its pool stats, and
// shutdown closes it. Ledger and catalog code never goes through this port.
type Database interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) map[string]interface{}
	Close()
}
