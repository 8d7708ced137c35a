package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/gestion-pyme/internal/domain"
)

var _ Bus = (*RedisBus)(nil)

const channelPrefix = "erp:changes"

// NewRedis crea el cliente go-redis y valida la conexión al arrancar.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// RedisBus reparte eventos entre instancias del API vía Redis Pub/Sub.
type RedisBus struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisBus construye el bus sobre un cliente ya conectado.
func NewRedisBus(rdb *redis.Client, log zerolog.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, log: log}
}

// ChannelName canal Redis de una tabla y empresa.
func ChannelName(table, companyID string) string {
	return channelPrefix + ":" + table + ":" + companyID
}

// Publish serializa ev en JSON y lo publica en su canal.
func (b *RedisBus) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: serializar evento: %w", err)
	}
	if err := b.rdb.Publish(ctx, ChannelName(ev.Table, ev.CompanyID), payload).Err(); err != nil {
		return domain.E(domain.KindUnavailable, "realtime.Publish", err)
	}
	return nil
}

// Subscribe abre una suscripción Redis y llama fn por cada mensaje válido.
func (b *RedisBus) Subscribe(ctx context.Context, table, companyID string, fn Handler) (func(), error) {
	ps := b.rdb.Subscribe(ctx, ChannelName(table, companyID))
	// Receive confirma la suscripción antes de devolver.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, domain.E(domain.KindUnavailable, "realtime.Subscribe", err)
	}

	ch := ps.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = ps.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("realtime: mensaje inválido")
					continue
				}
				fn(ev)
			}
		}
	}()
	return func() { _ = ps.Close() }, nil
}

// Close cierra el cliente Redis.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
