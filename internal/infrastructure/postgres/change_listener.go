package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/infrastructure/realtime"
)

// ChangesChannel canal de pg_notify usado por el trigger notify_change.
const ChangesChannel = "erp_changes"

// ChangeListener escucha erp_changes y reenvía cada evento al bus.
type ChangeListener struct {
	pool *pgxpool.Pool
	pub  realtime.Publisher
	log  zerolog.Logger
}

// NewChangeListener construye el listener.
func NewChangeListener(pool *pgxpool.Pool, pub realtime.Publisher, log zerolog.Logger) *ChangeListener {
	return &ChangeListener{pool: pool, pub: pub, log: log}
}

// Run escucha hasta que ctx termine, reconectando con espera exponencial.
func (l *ChangeListener) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	for {
		err := l.listen(ctx, b.Reset)
		if ctx.Err() != nil {
			return
		}
		wait := b.NextBackOff()
		l.log.Warn().Err(err).Dur("retry_in", wait).Msg("realtime: conexión LISTEN perdida")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// listen bloquea recibiendo notificaciones. connected se llama tras el LISTEN.
func (l *ChangeListener) listen(ctx context.Context, connected func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return mapError("acquire listen conn", err)
	}
	// La conexión queda con LISTEN activo: se cierra en vez de volver al pool.
	defer func() {
		_ = conn.Hijack().Close(context.Background())
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangesChannel); err != nil {
		return mapError("listen", err)
	}
	connected()
	l.log.Info().Str("channel", ChangesChannel).Msg("realtime: escuchando cambios")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := decodeChange(n.Payload)
		if err != nil {
			l.log.Warn().Err(err).Str("payload", n.Payload).Msg("realtime: notificación inválida")
			continue
		}
		if err := l.pub.Publish(ctx, ev); err != nil {
			l.log.Warn().Err(err).Str("table", ev.Table).Msg("realtime: no se pudo publicar el evento")
		}
	}
}

func decodeChange(payload string) (domain.ChangeEvent, error) {
	var ev domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("decodificar evento: %w", err)
	}
	if ev.Table == "" || ev.CompanyID == "" {
		return ev, fmt.Errorf("evento sin tabla o empresa")
	}
	return ev, nil
}
