package searchcache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/AzielCF/az-sticker/domains/pinterest"
	"github.com/AzielCF/az-sticker/infrastructure/valkey"
)

const (
	lockSuffix     = ":lock"
	lockTTL        = 10 * time.Second
	lockWaitTime   = 50 * time.Millisecond
	maxLockRetries = 20
)

// Only delete the lock if we still own it.
const releaseLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// ValkeyBackend keeps a namespace's serialized map under a single key, so
// several bot processes can share one rotation state. The whole map is
// replaced with one SET, and read-modify-write cycles are fenced by a
// SET NX lock.
type ValkeyBackend struct {
	client *valkey.Client
	key    string
}

func NewValkeyBackend(client *valkey.Client, ns pinterest.Namespace) *ValkeyBackend {
	return &ValkeyBackend{
		client: client,
		key:    client.Key("pinterest", string(ns)),
	}
}

func (b *ValkeyBackend) Name() string {
	return b.key
}

func (b *ValkeyBackend) inner() valkeylib.Client {
	return b.client.Inner()
}

func (b *ValkeyBackend) Read(ctx context.Context) ([]byte, error) {
	cmd := b.inner().B().Get().Key(b.key).Build()
	data, err := b.inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", b.key, err)
	}
	return data, nil
}

func (b *ValkeyBackend) Write(ctx context.Context, data []byte) error {
	cmd := b.inner().B().Set().Key(b.key).Value(string(data)).Build()
	if err := b.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set %s: %w", b.key, err)
	}
	return nil
}

// Lock spins on SET NX PX with jitter until it owns the namespace lock.
func (b *ValkeyBackend) Lock(ctx context.Context) (func(), error) {
	lockKey := b.key + lockSuffix
	token := uuid.New().String()

	for i := 0; i < maxLockRetries; i++ {
		cmd := b.inner().B().Set().
			Key(lockKey).
			Value(token).
			Nx().
			Px(lockTTL).
			Build()

		err := b.inner().Do(ctx, cmd).Error()
		if err == nil {
			return func() { b.release(lockKey, token) }, nil
		}
		if !valkey.IsNil(err) {
			logrus.Debugf("[SEARCH_CACHE] Lock attempt %d failed for %s: %v", i+1, b.key, err)
		}

		sleep := lockWaitTime + time.Duration(rand.Intn(20))*time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}

	return nil, errors.New("lock acquisition timed out after max retries")
}

func (b *ValkeyBackend) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cmd := b.inner().B().Eval().
		Script(releaseLockScript).
		Numkeys(1).
		Key(lockKey).
		Arg(token).
		Build()
	if err := b.inner().Do(ctx, cmd).Error(); err != nil {
		logrus.Warnf("[SEARCH_CACHE] Failed to release lock for %s: %v", b.key, err)
	}
}
