package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const listenRetryDelay = 2 * time.Second

// Listen subscribes to a Postgres NOTIFY channel on a dedicated connection
// and signals the returned channel once per notification burst. The
// connection is re-established after failures until ctx is cancelled.
func Listen(ctx context.Context, databaseURL, channel string, logger *slog.Logger) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			err := listenOnce(ctx, databaseURL, channel, out)
			if ctx.Err() != nil {
				return
			}
			logger.WarnContext(ctx, "outbox listener disconnected",
				"channel", channel,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(listenRetryDelay):
			}
		}
	}()
	return out
}

func listenOnce(ctx context.Context, databaseURL, channel string, out chan<- struct{}) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}
	// Catch up on anything appended while disconnected.
	signal(out)
	for {
		if _, err := conn.WaitForNotification(ctx); err != nil {
			return err
		}
		signal(out)
	}
}

func signal(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}
