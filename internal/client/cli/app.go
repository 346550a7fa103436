package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/cache"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/client"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/config"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/store"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/fieldkeeper/internal/logging"
	"github.com/dmitrijs2005/fieldkeeper/internal/survey"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const onlineCheckInterval = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	remote client.Client
	coord  *syncer.Coordinator
	store  *store.Store

	surveys  *store.Table[survey.Survey, *survey.Survey]
	elements *store.Table[survey.Element, *survey.Element]
	phrases  *store.Table[survey.Phrase, *survey.Phrase]
	registry *survey.Registry
	tables   map[string]browser

	out io.Writer

	mu   sync.RWMutex
	mode Mode
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	remote, err := client.NewGRPCClient(c.ServerEndpointAddr, c.AccessToken)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return newApp(c, db, remote, logger, os.Stdout), nil
}

// newApp assembles the client stack over an open database and a remote.
func newApp(c *config.Config, db *sql.DB, remote client.Client, logger logging.Logger, out io.Writer) *App {
	repos := client.NewRepositories(db)
	ch := cache.New(repos.Rows, logger)
	coord := syncer.New(remote, ch, repos.Metadata, syncer.WithLogger(logger), syncer.WithOverlap(c.SyncOverlap))
	st := store.New(ch, coord, store.WithLogger(logger))
	st.SetTenant(c.TenantID)

	a := &App{
		config: c,
		logger: logger.With("module", "cli"),
		db:     db,
		remote: remote,
		coord:  coord,
		store:  st,
		out:    out,
		mode:   ModeOffline,
	}

	a.surveys = store.NewTable[survey.Survey](st, survey.SurveysTable)
	a.elements = store.NewTable[survey.Element](st, survey.ElementsTable, store.RequireTenant())
	a.phrases = store.NewTable[survey.Phrase](st, survey.PhrasesTable, store.RequireTenant())
	a.registry = survey.NewRegistry(a.surveys, a.elements, survey.WithLogger(logger))

	a.tables = map[string]browser{}
	a.register(
		newBrowser(a.surveys),
		newBrowser(store.NewTable[survey.Section](st, survey.SectionsTable, store.RequireTenant())),
		newBrowser(a.elements),
		newBrowser(store.NewTable[survey.Component](st, survey.ComponentsTable, store.RequireTenant())),
		newBrowser(a.phrases),
	)
	return a
}

func (a *App) register(bs ...browser) {
	for _, b := range bs {
		a.tables[b.Name()] = b
	}
}

func (a *App) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		a.logger.Info(context.Background(), "Switched mode", "mode", mode)
	}
}

func (a *App) getStatus() string {
	s := string(a.Mode())
	if t := a.store.Tenant(); t != "" {
		s = t + " " + s
	}
	return fmt.Sprintf("(%s)", s)
}

// targets lists the configured tables for the tenant active right now.
func (a *App) targets() []syncer.Target {
	tenant := a.store.Tenant()
	out := make([]syncer.Target, 0, len(a.config.Tables))
	for _, t := range a.config.Tables {
		out = append(out, syncer.Target{Table: t, TenantID: tenant})
	}
	return out
}

// StartOnlineStatusWatcher pings the server every interval and flips the
// mode shown in the prompt.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := a.remote.Ping(pctx); err != nil {
			a.setMode(ModeOffline)
			return
		}
		a.setMode(ModeOnline)
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) Close() error {
	var first error
	if err := a.remote.Close(); err != nil {
		first = err
	}
	if err := a.db.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Run starts the background loops and the REPL, and returns when the user
// exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error(ctx, err.Error())
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.StartOnlineStatusWatcher(ctx, onlineCheckInterval)
	}()

	if a.config.SyncInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.coord.Run(ctx, a.config.SyncInterval, a.targets)
		}()
	}

	fmt.Fprintln(a.out, "fieldkeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin), a.out)

	cancel()
	wg.Wait()
}
