package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/passwordx"
	"github.com/dmitrijs2005/gophvault/internal/service"
	"github.com/dmitrijs2005/gophvault/internal/session"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

// Vault is the service surface the CLI drives.
type Vault interface {
	Initialize(ctx context.Context) error
	Close() error

	Authenticate(ctx context.Context, reason string) (models.AuthResult, error)
	AuthenticateWithPIN(ctx context.Context, pin string) (bool, error)
	SetupPIN(ctx context.Context, pin string) (bool, error)
	IsPINSetup(ctx context.Context) (bool, error)
	IsBiometricAvailable(ctx context.Context) (bool, models.Modality)

	GetSecrets(ctx context.Context) ([]models.Record, error)
	AddSecret(ctx context.Context, in models.RecordInput) (models.Record, error)
	UpdateSecret(ctx context.Context, id string, patch models.RecordPatch) (models.Record, error)
	DeleteSecret(ctx context.Context, id string) (bool, error)
	SearchSecrets(ctx context.Context, query string) ([]models.Record, error)
	ExportSecrets(ctx context.Context) (string, error)
	ImportSecrets(ctx context.Context, data string, mode vault.ImportMode) (int, error)

	Subscribe() (<-chan session.Event, func(), error)
	Lock()
	IsLocked() bool
	GetAuthState() models.AuthState
	LastSession() time.Time
	Background()
	Foreground()

	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error)
	GenerateSecret(opts cryptox.CharsetOptions) (string, error)
	PasswordStrength(pw string) passwordx.Strength
	ValidatePassword(pw string, req passwordx.Requirements) []string
	WipeAll(ctx context.Context) error
}

var _ Vault = (*service.Service)(nil)

type App struct {
	config *config.Config
	logger logging.Logger
	vault  Vault
	reader *bufio.Reader

	out io.Writer
}

// syncWriter serializes writes from the REPL and the lock watcher.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func NewApp(c *config.Config, logger logging.Logger) *App {
	svc := service.New(*c, service.WithLogger(logger))
	return newApp(c, logger, svc, os.Stdin, os.Stdout)
}

func newApp(c *config.Config, logger logging.Logger, v Vault, in io.Reader, out io.Writer) *App {
	return &App{config: c, logger: logger, vault: v, reader: bufio.NewReader(in), out: &syncWriter{w: out}}
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run initializes the vault, runs the REPL until exit, end of input or a
// termination signal, and closes the vault.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.initSignalHandler(cancel)

	if err := a.vault.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize vault: %w", err)
	}
	defer func() {
		if err := a.vault.Close(); err != nil {
			a.logger.Error(ctx, "close vault", "error", err)
		}
	}()

	stop, err := a.watchLocks()
	if err != nil {
		return err
	}
	defer stop()

	a.println("GophVault CLI (type 'help' for commands)")
	if a.vault.GetAuthState().DataLost {
		a.println("WARNING: stored vault data was unreadable and has been reset.")
	}
	if last := a.vault.LastSession(); !last.IsZero() {
		a.printf("Last session activity: %s\n", last.Local().Format(time.DateTime))
	}

	runREPL(ctx, a, a.status, lineFeed(ctx, a.reader))
	return nil
}

// watchLocks prints a notice for every lock transition.
func (a *App) watchLocks() (func(), error) {
	events, cancel, err := a.vault.Subscribe()
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Reason == session.ReasonManual || ev.Reason == session.ReasonShutdown {
				continue
			}
			a.println(fmt.Sprintf("\n[vault locked: %s]", ev.Reason))
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func (a *App) status() string {
	if a.vault.IsLocked() {
		return "locked"
	}
	return "unlocked"
}
