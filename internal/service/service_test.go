package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/auth"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/passwordx"
	"github.com/dmitrijs2005/gophvault/internal/platform"
	"github.com/dmitrijs2005/gophvault/internal/securestore"
	"github.com/dmitrijs2005/gophvault/internal/session"
	"github.com/dmitrijs2005/gophvault/internal/testutil"
	"github.com/dmitrijs2005/gophvault/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheapParams = auth.HashParams{Memory: 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func testConfig() config.Config {
	var cfg config.Config
	cfg.LoadDefaults()
	cfg.DatabasePath = ":memory:"
	return cfg
}

type fixture struct {
	svc   *Service
	clock *testutil.FakeClock
	store *securestore.SQLiteStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := securestore.Open(ctx, ":memory:")
	require.NoError(t, err)
	clk := testutil.NewFakeClock()

	opts = append([]Option{WithStore(st), WithClock(clk), WithHashParams(cheapParams)}, opts...)
	svc := New(testConfig(), opts...)
	require.NoError(t, svc.Initialize(ctx))
	t.Cleanup(func() { _ = svc.Close() })
	return &fixture{svc: svc, clock: clk, store: st}
}

func (f *fixture) unlock(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	set, err := f.svc.IsPINSetup(ctx)
	require.NoError(t, err)
	if !set {
		ok, err := f.svc.SetupPIN(ctx, "1234")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := f.svc.AuthenticateWithPIN(ctx, "1234")
	require.NoError(t, err)
	require.True(t, ok)
}

// lockEvents collects lock callback invocations.
func lockEvents(svc *Service) <-chan session.Event {
	ch := make(chan session.Event, 16)
	svc.SetOnLockCallback(func(ev session.Event) { ch <- ev })
	return ch
}

func waitEvent(t *testing.T, ch <-chan session.Event) session.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no lock event")
		return session.Event{}
	}
}

func TestUninitialized(t *testing.T) {
	svc := New(testConfig())
	ctx := context.Background()

	_, err := svc.GetSecrets(ctx)
	assert.ErrorIs(t, err, common.ErrNotInitialized)
	_, err = svc.AuthenticateWithPIN(ctx, "1234")
	assert.ErrorIs(t, err, common.ErrNotInitialized)
	assert.True(t, svc.IsLocked())
	assert.Equal(t, models.AuthState{}, svc.GetAuthState())
	svc.Lock()
}

func TestInitialize_IdempotentAndLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Initialize(ctx))
	assert.True(t, f.svc.IsLocked())

	st := f.svc.GetAuthState()
	assert.True(t, st.IsInitialized)
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.DataLost)

	_, err := f.svc.GetSecrets(ctx)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	_, err = f.svc.AddSecret(ctx, models.RecordInput{Title: "x"})
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	_, err = f.svc.ExportSecrets(ctx)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)

	seed, err := f.store.Get(ctx, common.KeyDeviceSeed)
	require.NoError(t, err)
	assert.Len(t, seed, common.RootSecretSize)
}

func TestInitialize_UnusableStorage(t *testing.T) {
	cfg := testConfig()
	cfg.DatabasePath = t.TempDir()
	svc := New(cfg)
	err := svc.Initialize(context.Background())
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.True(t, svc.IsLocked())
}

func TestPINScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.SetupPIN(ctx, "1234")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.svc.AuthenticateWithPIN(ctx, "0000")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.svc.IsLocked())
	assert.Equal(t, msgInvalidPIN, f.svc.GetAuthState().Error)

	ok, err = f.svc.AuthenticateWithPIN(ctx, "1234")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.svc.IsLocked())

	st := f.svc.GetAuthState()
	assert.True(t, st.IsAuthenticated)
	assert.Empty(t, st.Error)
}

func TestSetupPIN_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.SetupPIN(ctx, "12")
	assert.ErrorIs(t, err, common.ErrConfig)
	assert.False(t, ok)

	f.unlock(t)
	f.svc.Lock()

	_, err = f.svc.SetupPIN(ctx, "9999")
	assert.ErrorIs(t, err, common.ErrNotAuthenticated, "replacing a pin needs an unlocked session")

	f.unlock(t)
	ok, err = f.svc.SetupPIN(ctx, "9999")
	require.NoError(t, err)
	assert.True(t, ok)

	f.svc.Lock()
	ok, err = f.svc.AuthenticateWithPIN(ctx, "9999")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthenticate_Policy(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing configured", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Authenticate(ctx, "")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.True(t, f.svc.IsLocked())
		assert.Equal(t, auth.MsgNoMethod, f.svc.GetAuthState().Error)
	})

	t.Run("pin required", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SetupPIN(ctx, "1234")
		require.NoError(t, err)
		res, err := f.svc.Authenticate(ctx, "")
		require.NoError(t, err)
		assert.True(t, res.PINRequired)
		assert.True(t, f.svc.IsLocked())
	})

	t.Run("biometric unlocks", func(t *testing.T) {
		bio := &fakeBiometric{ok: true}
		f := newFixture(t, WithBiometric(bio))
		f.unlock(t)
		on := true
		_, err := f.svc.UpdateSettings(ctx, models.SettingsPatch{BiometricEnabled: &on})
		require.NoError(t, err)
		f.svc.Lock()

		res, err := f.svc.Authenticate(ctx, "open vault")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, models.ModalityFingerprint, res.Modality)
		assert.False(t, f.svc.IsLocked())
		assert.Equal(t, models.ModalityFingerprint, f.svc.GetAuthState().Modality)
		assert.Equal(t, "open vault", bio.lastPrompt)
	})

	t.Run("biometric rejected falls back to pin", func(t *testing.T) {
		bio := &fakeBiometric{ok: true}
		f := newFixture(t, WithBiometric(bio))
		f.unlock(t)
		on := true
		_, err := f.svc.UpdateSettings(ctx, models.SettingsPatch{BiometricEnabled: &on})
		require.NoError(t, err)
		f.svc.Lock()

		bio.ok = false
		res, err := f.svc.Authenticate(ctx, "")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.True(t, res.PINRequired)
		assert.True(t, f.svc.IsLocked())
	})
}

type fakeBiometric struct {
	ok         bool
	lastPrompt string
}

func (b *fakeBiometric) Capabilities(context.Context) (platform.Capabilities, error) {
	return platform.Capabilities{
		HasHardware: true,
		Enrolled:    true,
		Modalities:  []models.Modality{models.ModalityFacial, models.ModalityFingerprint},
	}, nil
}

func (b *fakeBiometric) Prompt(_ context.Context, msg string) (bool, error) {
	b.lastPrompt = msg
	return b.ok, nil
}

func TestCRUDScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.unlock(t)

	rec, err := f.svc.AddSecret(ctx, models.RecordInput{Title: "Mail", Username: "a@b.com", Secret: "p1"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	list, err := f.svc.GetSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Mail", list[0].Title)
	assert.Equal(t, "a@b.com", list[0].Username)

	p2 := "p2"
	upd, err := f.svc.UpdateSecret(ctx, rec.ID, models.RecordPatch{Secret: &p2})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, upd.ID)
	assert.Equal(t, rec.CreatedAt, upd.CreatedAt)

	list, err = f.svc.GetSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p2", list[0].Secret)
	assert.True(t, list[0].UpdatedAt.After(rec.UpdatedAt))

	_, err = f.svc.UpdateSecret(ctx, "missing", models.RecordPatch{Secret: &p2})
	assert.ErrorIs(t, err, common.ErrNotFound)

	found, err := f.svc.SearchSecrets(ctx, "MAIL")
	require.NoError(t, err)
	assert.Len(t, found, 1)
	found, err = f.svc.SearchSecrets(ctx, "nomatch")
	require.NoError(t, err)
	assert.Empty(t, found)

	deleted, err := f.svc.DeleteSecret(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = f.svc.DeleteSecret(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAutoLock_Timeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := lockEvents(f.svc)
	f.unlock(t)

	f.clock.Advance(4 * time.Minute)
	_, err := f.svc.GetSecrets(ctx)
	require.NoError(t, err, "activity before the timeout")

	f.clock.Advance(4 * time.Minute)
	assert.False(t, f.svc.IsLocked(), "timer restarted by activity")

	f.clock.Advance(time.Minute)
	assert.True(t, f.svc.IsLocked())

	ev := waitEvent(t, events)
	assert.Equal(t, session.ReasonTimeout, ev.Reason)

	_, err = f.svc.GetSecrets(ctx)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestFailedOperationDoesNotTouch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.unlock(t)

	before := f.clock.Now()
	f.clock.Advance(time.Minute)
	_, err := f.svc.ImportSecrets(ctx, `{"not":"an array"}`, vault.ImportReplace)
	assert.ErrorIs(t, err, common.ErrImport)

	f.clock.Advance(4 * time.Minute)
	assert.True(t, f.svc.IsLocked(), "timeout measured from %s", before)
}

func TestLock_IdempotentCallback(t *testing.T) {
	f := newFixture(t)
	events := lockEvents(f.svc)
	f.unlock(t)

	f.svc.Lock()
	f.svc.Lock()

	ev := waitEvent(t, events)
	assert.Equal(t, session.ReasonManual, ev.Reason)
	assert.Never(t, func() bool { return len(events) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.False(t, f.svc.GetAuthState().IsAuthenticated)
}

func TestLock_PersistsLastActivity(t *testing.T) {
	f := newFixture(t)
	events := lockEvents(f.svc)
	f.unlock(t)
	at := f.clock.Now()

	f.svc.Lock()
	waitEvent(t, events)

	raw, err := f.store.Get(context.Background(), common.KeyLastActivity)
	require.NoError(t, err)
	assert.Equal(t, at.UTC().Format(time.RFC3339), string(raw))
	assert.True(t, at.Equal(f.svc.LastSession()))
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ch, cancel, err := f.svc.Subscribe()
	require.NoError(t, err)
	defer cancel()

	f.unlock(t)
	f.svc.Background()

	ev := waitEvent(t, ch)
	assert.Equal(t, session.ReasonBackground, ev.Reason)
	assert.True(t, f.svc.IsLocked())
}

func TestForeground_AfterSuspension(t *testing.T) {
	f := newFixture(t)
	f.unlock(t)

	f.clock.Jump(3 * time.Minute)
	f.svc.Foreground()
	assert.False(t, f.svc.IsLocked())

	f.clock.Jump(3 * time.Minute)
	f.svc.Foreground()
	assert.True(t, f.svc.IsLocked())
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Settings{AutoLockEnabled: true, AutoLockTimeoutMinutes: 5}, got)

	ten := 10
	_, err = f.svc.UpdateSettings(ctx, models.SettingsPatch{AutoLockTimeoutMinutes: &ten})
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)

	f.unlock(t)
	for _, bad := range []int{0, 61, -5} {
		_, err = f.svc.UpdateSettings(ctx, models.SettingsPatch{AutoLockTimeoutMinutes: &bad})
		assert.ErrorIs(t, err, common.ErrConfig, bad)
	}

	got, err = f.svc.UpdateSettings(ctx, models.SettingsPatch{AutoLockTimeoutMinutes: &ten})
	require.NoError(t, err)
	assert.Equal(t, models.Settings{AutoLockEnabled: true, AutoLockTimeoutMinutes: 10}, got)

	on := true
	_, err = f.svc.UpdateSettings(ctx, models.SettingsPatch{BiometricEnabled: &on})
	assert.ErrorIs(t, err, common.ErrConfig, "no biometric hardware")

	raw, err := f.store.Get(ctx, common.KeyAutoLockSettings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"autoLockEnabled":true,"autoLockTimeoutMinutes":10,"biometricEnabled":false}`, string(raw))

	f.clock.Advance(9 * time.Minute)
	assert.False(t, f.svc.IsLocked())
	f.clock.Advance(time.Minute)
	assert.True(t, f.svc.IsLocked())
}

func TestSettings_DisableCancelsTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.unlock(t)

	off := false
	got, err := f.svc.UpdateSettings(ctx, models.SettingsPatch{AutoLockEnabled: &off})
	require.NoError(t, err)
	assert.False(t, got.AutoLockEnabled)
	assert.Equal(t, 5, got.AutoLockTimeoutMinutes)
	assert.Equal(t, 0, f.clock.Pending())

	f.clock.Advance(time.Hour)
	assert.False(t, f.svc.IsLocked())
}

func TestRestart_KeepsDataSettingsAndStartsLocked(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "vault.db")

	clk := testutil.NewFakeClock()
	first := New(cfg, WithClock(clk), WithHashParams(cheapParams))
	require.NoError(t, first.Initialize(ctx))
	_, err := first.SetupPIN(ctx, "1234")
	require.NoError(t, err)
	ok, err := first.AuthenticateWithPIN(ctx, "1234")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = first.AddSecret(ctx, models.RecordInput{Title: "Bank", Secret: "s3cret"})
	require.NoError(t, err)
	twenty := 20
	_, err = first.UpdateSettings(ctx, models.SettingsPatch{AutoLockTimeoutMinutes: &twenty})
	require.NoError(t, err)
	unlockedAt := clk.Now()
	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	second := New(cfg, WithClock(clk), WithHashParams(cheapParams))
	require.NoError(t, second.Initialize(ctx))
	defer second.Close()

	assert.True(t, second.IsLocked())
	assert.True(t, unlockedAt.Equal(second.LastSession()))

	got, err := second.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, got.AutoLockTimeoutMinutes)

	ok, err = second.AuthenticateWithPIN(ctx, "1234")
	require.NoError(t, err)
	require.True(t, ok)
	list, err := second.GetSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s3cret", list[0].Secret)
}

func TestCorruptVault_ReportsDataLost(t *testing.T) {
	ctx := context.Background()
	st, err := securestore.Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, common.KeyEncryptedSecrets, []byte("garbage")))

	svc := New(testConfig(), WithStore(st), WithClock(testutil.NewFakeClock()), WithHashParams(cheapParams))
	require.NoError(t, svc.Initialize(ctx))
	defer svc.Close()

	assert.True(t, svc.GetAuthState().DataLost)

	raw, err := st.Get(ctx, common.KeyEncryptedSecrets)
	require.NoError(t, err)
	assert.Nil(t, raw, "corrupt blob purged")

	_, err = svc.SetupPIN(ctx, "1234")
	require.NoError(t, err)
	ok, err := svc.AuthenticateWithPIN(ctx, "1234")
	require.NoError(t, err)
	require.True(t, ok)

	list, err := svc.GetSecrets(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImportScenario_AssignsIDsAndTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.unlock(t)

	doc := `[
		{"title":"A","username":"u1","secret":"x"},
		{"id":"fixed","title":"B","password":"legacy","createdAt":"2024-01-02T03:04:05Z"},
		{"title":"C","secret":"z","createdAt":"not a time"}
	]`
	n, err := f.svc.ImportSecrets(ctx, doc, vault.ImportReplace)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := f.svc.GetSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	ids := map[string]bool{}
	for _, r := range list {
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
		assert.False(t, r.UpdatedAt.Before(r.CreatedAt))
		ids[r.ID] = true
	}
	assert.Len(t, ids, 3)
	assert.Equal(t, "legacy", list[1].Secret)

	_, err = f.svc.ImportSecrets(ctx, `{"title":"x"}`, vault.ImportReplace)
	assert.ErrorIs(t, err, common.ErrImport)

	list, err = f.svc.GetSecrets(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3, "failed import leaves the vault untouched")
}

func TestExportImport_Merge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.unlock(t)

	_, err := f.svc.AddSecret(ctx, models.RecordInput{Title: "One", Secret: "1"})
	require.NoError(t, err)
	out, err := f.svc.ExportSecrets(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "One"`)

	_, err = f.svc.AddSecret(ctx, models.RecordInput{Title: "Two", Secret: "2"})
	require.NoError(t, err)

	n, err := f.svc.ImportSecrets(ctx, out, vault.ImportMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := f.svc.GetSecrets(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestWipeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.unlock(t)
	_, err := f.svc.AddSecret(ctx, models.RecordInput{Title: "gone", Secret: "x"})
	require.NoError(t, err)
	oldSeed, err := f.store.Get(ctx, common.KeyDeviceSeed)
	require.NoError(t, err)

	require.NoError(t, f.svc.WipeAll(ctx))
	assert.True(t, f.svc.IsLocked())

	set, err := f.svc.IsPINSetup(ctx)
	require.NoError(t, err)
	assert.False(t, set)

	newSeed, err := f.store.Get(ctx, common.KeyDeviceSeed)
	require.NoError(t, err)
	assert.Len(t, newSeed, common.RootSecretSize)
	assert.NotEqual(t, oldSeed, newSeed)

	f.unlock(t)
	list, err := f.svc.GetSecrets(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := lockEvents(f.svc)
	f.unlock(t)

	require.NoError(t, f.svc.Close())
	ev := waitEvent(t, events)
	assert.Equal(t, session.ReasonShutdown, ev.Reason)

	assert.True(t, f.svc.IsLocked())
	_, err := f.svc.GetSecrets(ctx)
	assert.ErrorIs(t, err, common.ErrNotInitialized)
	assert.ErrorIs(t, f.svc.Initialize(ctx), common.ErrNotInitialized)
	assert.Equal(t, 0, f.clock.Pending(), "no timer survives close")
	assert.NoError(t, f.svc.Close())
}

func TestUtilities(t *testing.T) {
	svc := New(testConfig())

	pw, err := svc.GenerateSecret(cryptox.DefaultCharsetOptions())
	require.NoError(t, err)
	assert.Len(t, pw, cryptox.DefaultSecretLength)

	_, err = svc.GenerateSecret(cryptox.CharsetOptions{Length: 12})
	assert.ErrorIs(t, err, common.ErrConfig)

	assert.Equal(t, passwordx.Weak, svc.PasswordStrength("abc"))
	assert.Equal(t, passwordx.VeryStrong, svc.PasswordStrength("Hunter2x!mlkZz9#7Yt8@"))
	assert.NotEmpty(t, svc.ValidatePassword("abc", passwordx.DefaultRequirements))
}
