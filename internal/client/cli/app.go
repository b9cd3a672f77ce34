package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/dmitrijs2005/marinelog/internal/client/client"
	"github.com/dmitrijs2005/marinelog/internal/client/config"
	"github.com/dmitrijs2005/marinelog/internal/client/connectivity"
	"github.com/dmitrijs2005/marinelog/internal/client/notice"
	"github.com/dmitrijs2005/marinelog/internal/client/photo"
	"github.com/dmitrijs2005/marinelog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/marinelog/internal/client/services"
	"github.com/dmitrijs2005/marinelog/internal/logging"
	"github.com/dmitrijs2005/marinelog/internal/retryx"
)

// maxRetryDelay caps a single backoff wait for remote calls.
const maxRetryDelay = 5 * time.Second

// App holds everything a command needs, wired from one Config.
type App struct {
	cfg *config.Config
	in  *bufio.Reader
	out io.Writer

	logger  logging.Logger
	logFile io.Closer

	repos    *client.Repositories
	api      *client.HTTPClient
	sessions *metadata.SessionStore
	auth     services.AuthService
	records  *services.RecordService
	monitor  *connectivity.Monitor

	tr      *notice.Translator
	notices notice.Sink
	now     func() time.Time
}

// NewApp opens the local store and builds the services on top of it.
// A store that cannot be opened is replaced by an in-memory one and the
// user is told so; it never makes NewApp fail.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	logger, logFile := logging.NewFileLogger(logging.FileOptions{Path: cfg.LogPath(), Level: cfg.LogLevel})
	tr := notice.NewTranslator(cfg.Language)
	a := &App{
		cfg:     cfg,
		in:      bufio.NewReader(in),
		out:     out,
		logger:  logger,
		logFile: logFile,
		tr:      tr,
		notices: notice.NewPrinter(out, tr),
		now:     time.Now,
	}

	storeOK := true
	repos, err := client.InitDatabase(ctx, cfg.DatabasePath(), logger)
	if err != nil {
		logger.Error(ctx, "local store unavailable, falling back to memory", "path", cfg.DatabasePath(), "error", err)
		repos = client.MemoryRepositories(logger)
		storeOK = false
		a.notify(ctx, notice.LevelError, notice.StoreDegraded)
	}
	a.repos = repos
	a.sessions = metadata.NewSessionStore(repos.Metadata)

	a.api = client.NewHTTPClient(cfg.ServerURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.OnTokensRefreshed(func(access, refresh string) {
			if err := a.sessions.UpdateTokens(context.Background(), access, refresh); err != nil {
				logger.Warn(context.Background(), "failed to persist refreshed tokens", "error", err)
			}
		}),
	)
	a.auth = services.NewAuthService(a.api, a.sessions)

	a.monitor = connectivity.NewMonitor(a.api,
		connectivity.WithInterval(cfg.OnlineCheckInterval),
		connectivity.WithDebounce(cfg.ConnectivityDebounce),
		connectivity.WithLogger(logger.With("component", "connectivity")),
	)

	store := repos.Records
	if !storeOK {
		store = nil
	}
	a.records = services.NewRecordService(a.api, store, repos.Tombstones, a.sessions, a.monitor,
		services.WithNotices(a.notices),
		services.WithLogger(logger.With("component", "sync")),
		services.WithCodec(photo.NewCodec(cfg.PhotoMaxDimension, cfg.PhotoQuality)),
		services.WithRemotePolicy(retryx.Policy{
			Attempts:  uint64(cfg.RetryAttempts),
			BaseDelay: cfg.RetryBaseDelay,
			MaxDelay:  maxRetryDelay,
		}),
		services.WithPushConcurrency(cfg.PushConcurrency),
	)

	if _, err := a.auth.Restore(ctx); err != nil && !errors.Is(err, metadata.ErrNoSession) {
		logger.Warn(ctx, "failed to restore session", "error", err)
	}
	return a, nil
}

// Close releases the store, the HTTP client and the log file.
func (a *App) Close() error {
	var errs []error
	if a.auth != nil {
		errs = append(errs, a.auth.Close(context.Background()))
	}
	if a.repos != nil {
		errs = append(errs, a.repos.Close())
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	return errors.Join(errs...)
}

// probe samples reachability once so the sync engine knows whether to
// talk to the server.
func (a *App) probe(ctx context.Context) bool {
	a.monitor.Probe(ctx)
	return a.monitor.Online()
}

func (a *App) notify(ctx context.Context, level notice.Level, key notice.Key, args ...any) {
	a.notices.Notify(ctx, notice.New(level, key, args...))
}
