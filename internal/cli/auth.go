package cli

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

const wipeConfirmation = "WIPE"

func (a *App) isUnlocked() bool {
	return !a.vault.IsLocked()
}

// SetupPIN asks for a new PIN twice and stores it.
func (a *App) SetupPIN(ctx context.Context, _ []string) error {
	pin, err := GetSecret(a.reader, "Enter new PIN", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)

	again, err := GetSecret(a.reader, "Repeat new PIN", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)

	if subtle.ConstantTimeCompare(pin, again) != 1 {
		return errors.New("PINs do not match")
	}
	if _, err := a.vault.SetupPIN(ctx, string(pin)); err != nil {
		return err
	}
	a.println("PIN saved.")
	return nil
}

// Unlock runs the authentication policy, asking for the PIN when the
// biometric factor is unavailable or fails.
func (a *App) Unlock(ctx context.Context, _ []string) error {
	if a.isUnlocked() {
		a.println("Already unlocked.")
		return nil
	}

	res, err := a.vault.Authenticate(ctx, "")
	if err != nil {
		return err
	}
	if res.Success {
		a.printf("Unlocked with %s.\n", res.Modality)
		return nil
	}
	if !res.PINRequired {
		a.println("No PIN is set up yet, run 'setup-pin' first.")
		return nil
	}

	pin, err := GetSecret(a.reader, "Enter PIN", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)

	ok, err := a.vault.AuthenticateWithPIN(ctx, string(pin))
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrAuthenticationFailed
	}
	a.println("Unlocked.")
	return nil
}

func (a *App) Lock(_ context.Context, _ []string) error {
	a.vault.Lock()
	a.println("Locked.")
	return nil
}

func (a *App) Status(ctx context.Context, _ []string) error {
	st := a.vault.GetAuthState()
	if st.IsAuthenticated {
		a.println("State: unlocked")
	} else {
		a.println("State: locked")
	}
	if st.Error != "" {
		a.println("Last error:", st.Error)
	}
	if st.DataLost {
		a.println("Stored data was reset after corruption.")
	}

	pinSet, err := a.vault.IsPINSetup(ctx)
	if err != nil {
		return err
	}
	a.println("PIN set up:", yesNo(pinSet))

	if ok, m := a.vault.IsBiometricAvailable(ctx); ok {
		a.println("Biometric:", m)
	} else {
		a.println("Biometric: not available")
	}

	s, err := a.vault.GetSettings(ctx)
	if err != nil {
		return err
	}
	if s.AutoLockEnabled {
		a.printf("Auto-lock: after %d min\n", s.AutoLockTimeoutMinutes)
	} else {
		a.println("Auto-lock: off")
	}
	if last := a.vault.LastSession(); !last.IsZero() {
		a.printf("Last session activity: %s\n", last.Local().Format(time.DateTime))
	}
	return nil
}

// Wipe deletes everything after the user types the confirmation word.
func (a *App) Wipe(ctx context.Context, _ []string) error {
	answer, err := GetSimpleText(a.reader,
		fmt.Sprintf("This deletes all secrets and the PIN. Type %s to confirm", wipeConfirmation), a.out)
	if err != nil {
		return err
	}
	if answer != wipeConfirmation {
		a.println("Cancelled.")
		return nil
	}
	if err := a.vault.WipeAll(ctx); err != nil {
		return err
	}
	a.println("All data wiped.")
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
