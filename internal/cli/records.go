package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/passwordx"
)

var errUsageID = errors.New("usage: <command> <id>")

func (a *App) List(ctx context.Context, _ []string) error {
	recs, err := a.vault.GetSecrets(ctx)
	if err != nil {
		return err
	}
	a.printRecords(recs)
	return nil
}

func (a *App) Search(ctx context.Context, args []string) error {
	recs, err := a.vault.SearchSecrets(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.printRecords(recs)
	return nil
}

func (a *App) printRecords(recs []models.Record) {
	if len(recs) == 0 {
		a.println("No records.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTITLE\tUSERNAME\tWEBSITE\tSECRET")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.Title, r.Username, r.Website, passwordx.Mask(r.Secret, 0))
	}
	_ = tw.Flush()
}

// Show prints one record including its secret.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsageID
	}
	recs, err := a.vault.GetSecrets(ctx)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if r.ID != args[0] {
			continue
		}
		a.printf("Title:    %s\nKind:     %s\nUsername: %s\nSecret:   %s\n", r.Title, r.Kind, r.Username, r.Secret)
		if r.Website != "" {
			a.printf("Website:  %s\n", r.Website)
		}
		if r.Notes != "" {
			a.printf("Notes:    %s\n", r.Notes)
		}
		a.printf("Created:  %s\nUpdated:  %s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.UpdatedAt.Local().Format(time.DateTime))
		return nil
	}
	return fmt.Errorf("record %s: %w", args[0], common.ErrNotFound)
}

// Add creates a login record. An empty secret is replaced by a generated one.
func (a *App) Add(ctx context.Context, _ []string) error {
	if !a.isUnlocked() {
		return common.ErrNotAuthenticated
	}

	in := models.RecordInput{Kind: models.KindLogin}
	var err error
	if in.Title, err = a.requireText("Enter title"); err != nil {
		return err
	}
	if in.Username, err = GetSimpleText(a.reader, "Enter username", a.out); err != nil {
		return err
	}
	secret, err := GetSecret(a.reader, "Enter password (empty to generate)", a.out)
	if err != nil {
		return err
	}
	in.Secret = string(secret)
	common.WipeByteArray(secret)
	if in.Secret == "" {
		if in.Secret, err = a.vault.GenerateSecret(cryptox.DefaultCharsetOptions()); err != nil {
			return err
		}
		a.println("Generated a password.")
	}
	if in.Website, err = GetSimpleText(a.reader, "Enter website", a.out); err != nil {
		return err
	}
	if in.Notes, err = GetMultiline(a.reader, "Enter notes", a.out); err != nil {
		return err
	}

	rec, err := a.vault.AddSecret(ctx, in)
	if err != nil {
		return err
	}
	a.printf("Added %s (password strength: %s)\n", rec.ID, a.vault.PasswordStrength(rec.Secret))
	return nil
}

// AddTOTP stores a one-time-code seed.
func (a *App) AddTOTP(ctx context.Context, _ []string) error {
	if !a.isUnlocked() {
		return common.ErrNotAuthenticated
	}

	in := models.RecordInput{Kind: models.KindTOTP}
	var err error
	if in.Title, err = a.requireText("Enter issuer or title"); err != nil {
		return err
	}
	if in.Username, err = GetSimpleText(a.reader, "Enter account name", a.out); err != nil {
		return err
	}
	seed, err := GetSecret(a.reader, "Enter base32 seed", a.out)
	if err != nil {
		return err
	}
	in.Secret = string(seed)
	common.WipeByteArray(seed)

	rec, err := a.vault.AddSecret(ctx, in)
	if err != nil {
		return err
	}
	a.printf("Added %s\n", rec.ID)
	return nil
}

// Update edits a record field by field; empty answers keep the old value.
func (a *App) Update(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsageID
	}
	if !a.isUnlocked() {
		return common.ErrNotAuthenticated
	}

	var (
		patch models.RecordPatch
		err   error
	)
	if patch.Title, err = getOptional(a.reader, "New title", a.out); err != nil {
		return err
	}
	if patch.Username, err = getOptional(a.reader, "New username", a.out); err != nil {
		return err
	}
	if patch.Secret, err = getOptional(a.reader, "New secret", a.out); err != nil {
		return err
	}
	if patch.Website, err = getOptional(a.reader, "New website", a.out); err != nil {
		return err
	}
	if patch.Notes, err = getOptional(a.reader, "New notes", a.out); err != nil {
		return err
	}
	if patch.IsEmpty() {
		a.println("Nothing to change.")
		return nil
	}

	rec, err := a.vault.UpdateSecret(ctx, args[0], patch)
	if err != nil {
		return err
	}
	a.printf("Updated %s\n", rec.ID)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsageID
	}
	ok, err := a.vault.DeleteSecret(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("record %s: %w", args[0], common.ErrNotFound)
	}
	a.println("Deleted.")
	return nil
}

func (a *App) requireText(prompt string) (string, error) {
	s, err := GetSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errors.New("value is required")
	}
	return s, nil
}
