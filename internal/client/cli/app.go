package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/config"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/memos"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/memosync/internal/client/services"
	"github.com/dmitrijs2005/memosync/internal/client/state"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/client/syncer"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/filex"
	"github.com/dmitrijs2005/memosync/internal/logging"
)

type Mode string

const (
	ModeLocal   Mode = "local"
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// session holds everything bound to the active account.
type session struct {
	account models.Account
	key     string
	remote  client.Client
	memos   services.MemoService
	groups  services.GroupService
	// engine is nil for a local account.
	engine *syncer.Engine
}

func (s *session) close() {
	if s != nil && s.remote != nil {
		_ = s.remote.Close()
	}
}

type App struct {
	config *config.Config
	log    logging.Logger

	db       *sql.DB
	memoRepo *memos.SQLiteRepository
	store    *state.Store
	files    *filex.Reader
	accounts services.AccountService

	mu   sync.RWMutex
	sess *session
	mode Mode

	reader *bufio.Reader
	out    io.Writer

	// bg tracks background goroutines; Run waits for them before the
	// database is closed.
	bg        sync.WaitGroup
	closeOnce sync.Once
}

// NewApp opens the local store and restores the last active account.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	return newApp(ctx, c, log, os.Stdin, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	dir, err := filex.EnsureDir(c.AttachmentsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare attachments dir: %w", err)
	}

	db, err := storage.Open(ctx, c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	meta := metadata.NewSQLiteRepository(db)
	a := &App{
		config:   c,
		log:      log,
		db:       db,
		memoRepo: memos.NewSQLiteRepository(db),
		store:    state.NewStore(meta),
		files:    filex.NewReader(dir),
		reader:   bufio.NewReader(in),
		out:      out,
	}
	a.accounts = services.NewAccountService(meta, a.memoRepo, a.store, a.dial, log)

	acc, err := a.accounts.Current(ctx)
	switch {
	case errors.Is(err, common.ErrNoAccount):
		if c.ServerURL != "" && c.AccessToken != "" {
			if acc, err = a.accounts.SignIn(ctx, c.ServerURL, c.AccessToken); err != nil {
				log.Warn(ctx, "sign in from config failed", "error", err)
				return a, nil
			}
			return a, a.bind(acc)
		}
		return a, nil
	case err != nil:
		_ = db.Close()
		return nil, err
	}
	return a, a.bind(acc)
}

func (a *App) dial(serverURL, token string) (client.Client, error) {
	c, err := client.NewHTTPClient(client.Options{
		BaseURL:     serverURL,
		AccessToken: token,
		Timeout:     a.config.RequestTimeout,
		Logger:      a.log,
		Breaker: client.BreakerSettings{
			Timeout:          a.config.BreakerOpenTimeout,
			MinRequests:      a.config.BreakerMinRequests,
			FailureThreshold: a.config.BreakerFailureRatio,
		},
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *App) policy() syncer.Policy {
	return syncer.Policy{
		IdleSyncInterval:   a.config.IdleSyncInterval,
		PendingCoalesce:    a.config.PendingCoalesce,
		ForegroundCoalesce: a.config.ForegroundCoalesce,
		BaseBackoff:        a.config.BaseBackoff,
		MaxBackoff:         a.config.MaxBackoff,
	}
}

// bind replaces the active session with one for acc.
func (a *App) bind(acc models.Account) error {
	key, err := acc.Key()
	if err != nil {
		return err
	}

	s := &session{account: acc, key: key}
	mode := ModeLocal
	if acc.Remote() {
		if s.remote, err = a.dial(acc.KeerV2.Host, acc.KeerV2.AccessToken); err != nil {
			return err
		}
		s.engine = syncer.NewEngine(syncer.Config{
			AccountKey:       key,
			Policy:           a.policy(),
			PageSize:         a.config.PageSize,
			GroupConcurrency: a.config.GroupConcurrency,
			AliasRetention:   a.config.AliasRetention,
			AliasMaxEntries:  a.config.AliasMaxEntries,
			CacheLimit:       a.config.CacheLimit,
			FullPullInterval: a.config.FullPullInterval,
			Attachments:      a.files,
		}, s.remote, a.memoRepo, a.store, a.log)
		mode = ModeOffline
	}
	s.memos = services.NewMemoService(key, a.memoRepo, a.store, a.files, s.remote, a.log)
	s.groups = services.NewGroupService(key, a.store)

	a.mu.Lock()
	old := a.sess
	a.sess, a.mode = s, mode
	a.mu.Unlock()

	old.close()
	return nil
}

func (a *App) unbind() {
	a.mu.Lock()
	old := a.sess
	a.sess, a.mode = nil, ""
	a.mu.Unlock()

	old.close()
}

func (a *App) session() *session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sess
}

func (a *App) hasAccount() bool {
	return a.session() != nil
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(ctx, "connectivity changed", "mode", string(mode))
	}
}

func (a *App) getStatus() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.sess == nil {
		return "(no account)"
	}
	return fmt.Sprintf("(%s %s)", a.sess.key, a.mode)
}

// Run starts the background workers and blocks in the REPL. On return the
// workers are cancelled and awaited, so an interrupted pass can put its
// drained operations back, and only then is the database closed.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.bg.Wait()
		a.Close()
	}()

	fmt.Fprintln(a.out, "memosync CLI (type 'help' for commands)")

	if a.config.MetricsAddr != "" {
		a.background(func() {
			if err := serveMetrics(ctx, a.config.MetricsAddr); err != nil {
				a.log.Error(ctx, "metrics server stopped", "error", err)
			}
		})
	}

	if s := a.session(); s == nil {
		fmt.Fprintln(a.out, "No account yet: use 'signin' or 'local'.")
	} else if s.engine != nil {
		a.background(func() {
			a.syncInBackground(ctx, s.engine, func(ctx context.Context) (syncer.Result, error) {
				return s.engine.OnAppStart(ctx)
			})
		})
	}

	if a.config.AutoSyncInterval > 0 {
		a.background(func() {
			a.StartAutoSync(ctx, a.config.AutoSyncInterval)
		})
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) background(fn func()) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		fn()
	}()
}

// Close releases the session and the database. Later calls do nothing.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.unbind()
		if err := a.db.Close(); err != nil {
			a.log.Warn(context.Background(), "failed to close database", "error", err)
		}
	})
}
