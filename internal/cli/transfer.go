package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

// Export writes the plaintext backup to the file named in args, or prints it.
func (a *App) Export(ctx context.Context, args []string) error {
	data, err := a.vault.ExportSecrets(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		a.println(data)
		return nil
	}
	if err := filex.WriteFileAtomic(args[0], []byte(data), 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	a.printf("Exported to %s. The file is NOT encrypted.\n", args[0])
	return nil
}

// Import reads a backup file: import <file> [merge].
func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: import <file> [merge]")
	}
	mode := vault.ImportReplace
	if len(args) == 2 {
		if args[1] != "merge" {
			return errors.New("usage: import <file> [merge]")
		}
		mode = vault.ImportMerge
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}
	n, err := a.vault.ImportSecrets(ctx, string(data), mode)
	if err != nil {
		return err
	}
	a.printf("Imported %d records.\n", n)
	return nil
}
