package service

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

func (s *Service) GetSecrets(ctx context.Context) ([]models.Record, error) {
	var out []models.Record
	err := s.guarded(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.vault.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) AddSecret(ctx context.Context, in models.RecordInput) (models.Record, error) {
	var out models.Record
	err := s.guarded(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.vault.Add(ctx, in)
		return err
	})
	return out, err
}

// UpdateSecret applies patch to record id; common.ErrNotFound if it does not
// exist.
func (s *Service) UpdateSecret(ctx context.Context, id string, patch models.RecordPatch) (models.Record, error) {
	var out models.Record
	err := s.guarded(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.vault.Update(ctx, id, patch)
		return err
	})
	return out, err
}

func (s *Service) DeleteSecret(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.guarded(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.vault.Delete(ctx, id)
		return err
	})
	return deleted, err
}

func (s *Service) SearchSecrets(ctx context.Context, query string) ([]models.Record, error) {
	var out []models.Record
	err := s.guarded(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.vault.Search(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExportSecrets returns the collection as plaintext JSON.
func (s *Service) ExportSecrets(ctx context.Context) (string, error) {
	var out string
	err := s.guarded(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.vault.Export(ctx)
		return err
	})
	return out, err
}

// ImportSecrets stores a backup document and returns the number of records
// imported. Malformed documents fail with common.ErrImport.
func (s *Service) ImportSecrets(ctx context.Context, data string, mode vault.ImportMode) (int, error) {
	var n int
	err := s.guarded(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.vault.Import(ctx, data, mode)
		return err
	})
	return n, err
}
