package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/redis/go-redis/v9"
)

// ErrCorruptRecord is returned when a stored bridge record cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt pending payment record")

// PendingPaymentRepository holds at most one bridge record per session. Save
// overwrites any earlier record for the same session.
type PendingPaymentRepository interface {
	// Get returns nil, nil when nothing is pending or the record has expired.
	Get(ctx context.Context, sessionID string) (*models.PendingPayment, error)
	Save(ctx context.Context, p *models.PendingPayment) error
	Delete(ctx context.Context, sessionID string) error
}

type redisPendingPaymentRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPendingPaymentRepository creates a Redis-backed PendingPaymentRepository.
func NewPendingPaymentRepository(client *redis.Client, ttl time.Duration) PendingPaymentRepository {
	return &redisPendingPaymentRepository{client: client, ttl: ttl}
}

func pendingPaymentKey(sessionID string) string {
	return "pending_payment:session:" + sessionID
}

func (r *redisPendingPaymentRepository) Get(ctx context.Context, sessionID string) (*models.PendingPayment, error) {
	data, err := r.client.Get(ctx, pendingPaymentKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p models.PendingPayment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &p, nil
}

func (r *redisPendingPaymentRepository) Save(ctx context.Context, p *models.PendingPayment) error {
	if p.SessionID == "" {
		return errors.New("pending payment has no session id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, pendingPaymentKey(p.SessionID), data, r.ttl).Err()
}

func (r *redisPendingPaymentRepository) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, pendingPaymentKey(sessionID)).Err()
}
