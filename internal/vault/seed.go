package vault

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/platform"
)

// KV is the slice of the secure store the vault needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// RootSecretSource hands out a copy of the device root secret. The caller
// wipes the returned slice.
type RootSecretSource interface {
	RootSecret(ctx context.Context) ([]byte, error)
}

// DeviceSeed keeps the root secret as random bytes in the secure store.
type DeviceSeed struct {
	kv KV
}

func NewDeviceSeed(kv KV) *DeviceSeed {
	return &DeviceSeed{kv: kv}
}

// Ensure creates the seed on first run. It reports whether a new seed was
// generated.
func (d *DeviceSeed) Ensure(ctx context.Context) (bool, error) {
	seed, err := d.kv.Get(ctx, common.KeyDeviceSeed)
	if err != nil {
		return false, fmt.Errorf("read device seed: %w", err)
	}
	if len(seed) == common.RootSecretSize {
		common.WipeByteArray(seed)
		return false, nil
	}

	seed = common.GenerateRandByteArray(common.RootSecretSize)
	defer common.WipeByteArray(seed)
	if err := d.kv.Set(ctx, common.KeyDeviceSeed, seed); err != nil {
		return false, fmt.Errorf("store device seed: %w", err)
	}
	return true, nil
}

func (d *DeviceSeed) RootSecret(ctx context.Context) ([]byte, error) {
	seed, err := d.kv.Get(ctx, common.KeyDeviceSeed)
	if err != nil {
		return nil, fmt.Errorf("read device seed: %w", err)
	}
	if len(seed) != common.RootSecretSize || bytes.Count(seed, []byte{0}) == len(seed) {
		common.WipeByteArray(seed)
		return nil, fmt.Errorf("device seed missing: %w", common.ErrNotFound)
	}
	_ = platform.LockMemory(seed)
	return seed, nil
}
