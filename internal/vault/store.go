package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/platform"
	"github.com/google/uuid"
)

// blobAAD binds ciphertexts to this blob layout.
var blobAAD = []byte("gophvault/blob/v1")

type Store struct {
	mu      sync.Mutex
	kv      KV
	secrets RootSecretSource
	logger  logging.Logger

	now       func() time.Time
	newID     func() string
	onCorrupt func(error)

	// nil until loaded; never shared with callers.
	records []models.Record
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithCorruptionHandler registers fn to be called, under the store lock,
// whenever a corrupt blob is discarded. fn must not call back into the Store.
func WithCorruptionHandler(fn func(error)) Option {
	return func(s *Store) { s.onCorrupt = fn }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(kv KV, secrets RootSecretSource, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		secrets: secrets,
		logger:  logging.Nop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load reads and decrypts the persisted collection. A missing blob yields an
// empty vault. A corrupt blob is purged and reported with
// common.ErrCorruptData together with the (empty) collection.
func (s *Store) Load(ctx context.Context) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	err := s.ensureLoaded(ctx)
	if err != nil && !errors.Is(err, common.ErrCorruptData) {
		return nil, err
	}
	return cloneRecords(s.records), err
}

// List returns a copy of the collection in storage order.
func (s *Store) List(ctx context.Context) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedHealing(ctx); err != nil {
		return nil, err
	}
	return cloneRecords(s.records), nil
}

// Search matches query case-insensitively against title, username, website
// and notes. Surrounding spaces are part of the query. A blank query returns
// the whole collection.
func (s *Store) Search(ctx context.Context, query string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedHealing(ctx); err != nil {
		return nil, err
	}

	if strings.TrimSpace(query) == "" {
		return cloneRecords(s.records), nil
	}
	q := strings.ToLower(query)

	found := make([]models.Record, 0)
	for i := range s.records {
		if s.records[i].Matches(q) {
			found = append(found, s.records[i])
		}
	}
	return found, nil
}

func (s *Store) Add(ctx context.Context, in models.RecordInput) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedHealing(ctx); err != nil {
		return models.Record{}, err
	}

	now := s.now().UTC()
	rec := models.Record{
		ID:        s.newID(),
		Kind:      in.Kind,
		Title:     in.Title,
		Username:  in.Username,
		Secret:    in.Secret,
		Website:   in.Website,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rec.Normalize(); err != nil {
		return models.Record{}, err
	}
	for s.indexOf(rec.ID) >= 0 {
		rec.ID = s.newID()
	}

	next := append(cloneRecords(s.records), rec)
	if err := s.commit(ctx, next); err != nil {
		return models.Record{}, err
	}
	s.logger.Debug(ctx, "record added", "id", rec.ID, "kind", rec.Kind)
	return rec, nil
}

// Update applies patch to the record with the given id. The id and creation
// time are preserved and UpdatedAt always moves forward.
func (s *Store) Update(ctx context.Context, id string, patch models.RecordPatch) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedHealing(ctx); err != nil {
		return models.Record{}, err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Record{}, fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}

	next := cloneRecords(s.records)
	rec := next[idx]
	patch.Apply(&rec)
	if err := rec.Normalize(); err != nil {
		return models.Record{}, err
	}
	rec.UpdatedAt = s.advance(rec.UpdatedAt)
	next[idx] = rec

	if err := s.commit(ctx, next); err != nil {
		return models.Record{}, err
	}
	s.logger.Debug(ctx, "record updated", "id", id)
	return rec, nil
}

// Delete removes the record. It reports false, without error, when no record
// has that id.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedHealing(ctx); err != nil {
		return false, err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return false, nil
	}

	next := make([]models.Record, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	s.logger.Debug(ctx, "record deleted", "id", id)
	return true, nil
}

// Forget drops the decrypted collection from memory. The next operation
// reloads it from the blob.
func (s *Store) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		s.records[i] = models.Record{}
	}
	s.records = nil
}

// Loaded reports whether the decrypted collection is held in memory.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records != nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

// advance returns now, or prev plus a nanosecond when the clock has not
// moved past prev.
func (s *Store) advance(prev time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

// ensureLoadedHealing is ensureLoaded for operations that continue on an
// emptied vault after corruption; the corruption has already been reported
// through the handler.
func (s *Store) ensureLoadedHealing(ctx context.Context) error {
	err := s.ensureLoaded(ctx)
	if errors.Is(err, common.ErrCorruptData) {
		return nil
	}
	return err
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.records != nil {
		return nil
	}

	raw, err := s.kv.Get(ctx, common.KeyEncryptedSecrets)
	if err != nil {
		return fmt.Errorf("read vault: %w", err)
	}
	if raw == nil {
		s.records = []models.Record{}
		return nil
	}

	records, err := s.decode(ctx, raw)
	if err == nil {
		s.records = records
		return nil
	}
	if !errors.Is(err, common.ErrCorruptData) {
		return err
	}

	s.logger.Warn(ctx, "vault blob is corrupt, resetting to empty", "error", err)
	if derr := s.kv.Delete(ctx, common.KeyEncryptedSecrets); derr != nil {
		return fmt.Errorf("purge corrupt vault: %w", derr)
	}
	s.records = []models.Record{}
	if s.onCorrupt != nil {
		s.onCorrupt(err)
	}
	return err
}

func (s *Store) decode(ctx context.Context, raw []byte) ([]models.Record, error) {
	var blob models.EncryptedBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, fmt.Errorf("decode blob: %w: %w", common.ErrCorruptData, err)
	}
	if len(blob.Salt) == 0 || len(blob.IV) == 0 {
		return nil, fmt.Errorf("blob without salt or iv: %w", common.ErrCorruptData)
	}

	alg := cryptox.Algorithm(blob.Algorithm)
	if alg == "" {
		alg = cryptox.DefaultAlgorithm
	}

	secret, err := s.secrets.RootSecret(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("root secret lost: %w", common.ErrCorruptData)
	}
	if err != nil {
		return nil, err
	}
	defer release(secret)

	key, err := cryptox.DeriveKey(secret, blob.Salt)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w: %w", common.ErrCorruptData, err)
	}
	defer common.WipeByteArray(key)

	plaintext, err := cryptox.Decrypt(alg, blob.Ciphertext, key, blob.IV, blobAAD)
	if err != nil {
		return nil, fmt.Errorf("decrypt blob: %w: %w", common.ErrCorruptData, err)
	}
	defer common.WipeByteArray(plaintext)

	records := make([]models.Record, 0)
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w: %w", common.ErrCorruptData, err)
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, nil
}

// commit persists next and, only if that succeeded, makes it the in-memory
// collection.
func (s *Store) commit(ctx context.Context, next []models.Record) error {
	raw, err := s.encode(ctx, next)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, common.KeyEncryptedSecrets, raw); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	s.records = next
	return nil
}

func (s *Store) encode(ctx context.Context, records []models.Record) ([]byte, error) {
	if records == nil {
		records = []models.Record{}
	}
	plaintext, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	defer common.WipeByteArray(plaintext)

	secret, err := s.secrets.RootSecret(ctx)
	if err != nil {
		return nil, err
	}
	defer release(secret)

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	key, err := cryptox.DeriveKey(secret, salt)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	ciphertext, iv, err := cryptox.Encrypt(cryptox.DefaultAlgorithm, plaintext, key, blobAAD)
	if err != nil {
		return nil, fmt.Errorf("encrypt records: %w", err)
	}

	return json.Marshal(models.EncryptedBlob{
		Version:    models.BlobVersion,
		Algorithm:  string(cryptox.DefaultAlgorithm),
		Ciphertext: ciphertext,
		IV:         iv,
		Salt:       salt,
	})
}

// release wipes a root secret copy and unpins it. The pin is taken by
// DeviceSeed.RootSecret on a best effort basis.
func release(secret []byte) {
	common.WipeByteArray(secret)
	_ = platform.UnlockMemory(secret)
}

func cloneRecords(in []models.Record) []models.Record {
	out := make([]models.Record, len(in))
	copy(out, in)
	return out
}
