package sales

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy intentos y espera fija entre intentos del envío de confirmación.
// Timeout acota cada intento; cero deja solo el límite de ctx.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
}

// DefaultRetryPolicy 3 intentos de hasta 10s con 600ms entre cada uno.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 600 * time.Millisecond, Timeout: 10 * time.Second}
}

// SendWithRetry reintenta sender.Send según la política. Devuelve el último error.
// Un ctx cancelado corta los reintentos.
func SendWithRetry(ctx context.Context, sender NotificationSender, recipient string, data ConfirmationData, p RetryPolicy) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Backoff)
	b = backoff.WithMaxRetries(b, uint64(p.Attempts-1))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		defer cancel()
		return sender.Send(attemptCtx, recipient, data)
	}, b)
}
