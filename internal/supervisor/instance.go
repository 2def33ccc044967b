package supervisor

import "context"

// Instance is the restartable unit behind a supervised service.
type Instance interface {
	// Logs returns up to tail recent log lines.
	Logs(ctx context.Context, tail int) ([]byte, error)
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}
