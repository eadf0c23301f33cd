package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/passwordx"
)

// Generate prints a random password: generate [length] [nosymbols].
func (a *App) Generate(_ context.Context, args []string) error {
	opts := cryptox.DefaultCharsetOptions()
	for _, arg := range args {
		if arg == "nosymbols" {
			opts.Symbols = false
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("bad length %q: %w", arg, common.ErrConfig)
		}
		opts.Length = n
	}

	pw, err := a.vault.GenerateSecret(opts)
	if err != nil {
		return err
	}
	a.println(pw)
	return nil
}

// Strength rates a password and lists unmet default requirements.
func (a *App) Strength(_ context.Context, _ []string) error {
	pw, err := GetSecret(a.reader, "Enter password to check", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	a.println("Strength:", a.vault.PasswordStrength(string(pw)))
	for _, p := range a.vault.ValidatePassword(string(pw), passwordx.DefaultRequirements) {
		a.println(" -", p)
	}
	return nil
}

var errSettingsUsage = errors.New("usage: settings [autolock on|off] [timeout <minutes>] [biometric on|off]")

// Settings shows the settings, or updates them from key/value arguments.
func (a *App) Settings(ctx context.Context, args []string) error {
	if len(args) == 0 {
		s, err := a.vault.GetSettings(ctx)
		if err != nil {
			return err
		}
		a.printSettings(s)
		return nil
	}
	if len(args)%2 != 0 {
		return errSettingsUsage
	}

	var patch models.SettingsPatch
	for i := 0; i < len(args); i += 2 {
		key, val := args[i], args[i+1]
		switch key {
		case "autolock":
			b, err := parseOnOff(val)
			if err != nil {
				return err
			}
			patch.AutoLockEnabled = &b
		case "biometric":
			b, err := parseOnOff(val)
			if err != nil {
				return err
			}
			patch.BiometricEnabled = &b
		case "timeout":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("bad timeout %q: %w", val, common.ErrConfig)
			}
			patch.AutoLockTimeoutMinutes = &n
		default:
			return errSettingsUsage
		}
	}

	s, err := a.vault.UpdateSettings(ctx, patch)
	if err != nil {
		return err
	}
	a.printSettings(s)
	return nil
}

func (a *App) printSettings(s models.Settings) {
	a.printf("Auto-lock: %s, timeout %d min, biometric: %s\n",
		onOff(s.AutoLockEnabled), s.AutoLockTimeoutMinutes, onOff(s.BiometricEnabled))
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, errSettingsUsage
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Background and Foreground simulate host lifecycle transitions.
func (a *App) Background(_ context.Context, _ []string) error {
	a.vault.Background()
	return nil
}

func (a *App) Foreground(_ context.Context, _ []string) error {
	a.vault.Foreground()
	return nil
}
