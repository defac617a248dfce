package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"

	"tasklens/internal/config"
	"tasklens/internal/engine"
	"tasklens/internal/events"
	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/prefs"
	"tasklens/internal/remote"
	"tasklens/internal/store"
)

// session is one engine wired to the configured collaborators.
type session struct {
	app *App
	eng *engine.Engine
	bus engine.Bus

	// Exactly one of local and api is set.
	local *store.Store
	api   *remote.Client

	fullyLoaded bool
	closers     []func() error
}

type sessionOpts struct {
	// persistView lets view changes (grouping, sort, columns, expansion) reach the
	// preference store. One-off listing flags leave it off.
	persistView bool
	// interactive keeps the configured save debounce; scripted commands save at once.
	interactive bool
}

// viewOnly loads the saved view but never writes it back.
type viewOnly struct{ engine.PreferenceStore }

func (viewOnly) SaveViewPreference(context.Context, string, []byte) error { return nil }

func openSession(ctx context.Context, app *App, o sessionOpts) (*session, error) {
	cfg := app.cfg
	s := &session{app: app}
	log := app.log.WithField("backend", cfg.Backend)

	var (
		be  engine.Backend
		ps  engine.PreferenceStore
		cat grouping.Catalog
	)
	switch cfg.Backend {
	case config.BackendRemote:
		c, err := remote.New(cfg.APIURL,
			remote.WithLogger(log),
			remote.WithHTTPClient(&http.Client{Timeout: cfg.Timeout.Std()}),
		)
		if err != nil {
			return nil, err
		}
		s.api = c
		be, ps = c, c
	default:
		dir, err := storeDir(cfg)
		if err != nil {
			return nil, err
		}
		st, err := store.Open(ctx, dir, log)
		if err != nil {
			return nil, err
		}
		s.local = st
		s.closers = append(s.closers, st.Close)
		if cat, err = st.Catalog(ctx); err != nil {
			s.close()
			return nil, err
		}
		be, ps = st, st
	}

	if cfg.PrefsDir != "" {
		ps = prefs.FileStore{Dir: cfg.PrefsDir}
	}
	s.bus = events.NewLocalBus()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		s.closers = append(s.closers, rdb.Close)
		s.bus = events.NewRedisBus(rdb, cfg.RedisChannel, log)
		ps = prefs.NewCache(ps, rdb, cfg.PrefsCacheTTL.Std())
	}
	if !o.persistView {
		ps = viewOnly{ps}
	}

	saveDelay := cfg.SaveDelay.Std()
	if !o.interactive {
		saveDelay = 0
	}
	s.eng = engine.New(engine.Options{
		Backend:   be,
		Prefs:     ps,
		Bus:       s.bus,
		ViewKey:   cfg.ViewKey,
		Catalog:   cat,
		Log:       log,
		Timeout:   cfg.Timeout.Std(),
		SaveDelay: saveDelay,
	})
	return s, nil
}

// openStarted opens a session and runs the bootstrap load to completion.
func openStarted(ctx context.Context, app *App, o sessionOpts) (*session, error) {
	s, err := openSession(ctx, app, o)
	if err != nil {
		return nil, err
	}
	if err := s.drive(ctx, s.eng.Init()); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func storeDir(cfg *config.Config) (string, error) {
	if cfg.Dir != "" {
		return cfg.Dir, nil
	}
	return store.DefaultDir()
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.app.log.WithError(err).Debug("close session resource")
		}
	}
	s.closers = nil
}

// drive runs cmd to completion and turns the error notices it produced into an error.
func (s *session) drive(ctx context.Context, cmd tea.Cmd) error {
	if err := s.eng.Drive(ctx, cmd); err != nil {
		return err
	}
	return noticeErr(s.eng.TakeNotices())
}

func noticeErr(ns []engine.Notice) error {
	var errs []error
	for _, n := range ns {
		if n.Level == engine.LevelError {
			errs = append(errs, errors.New(n.String()))
		}
	}
	return errors.Join(errs...)
}

// loadAll brings every task into the engine, not only the roots the bootstrap listed.
func (s *session) loadAll(ctx context.Context) error {
	if s.fullyLoaded {
		return nil
	}
	if s.local != nil {
		all, err := s.local.AllTasks(ctx)
		if err != nil {
			return err
		}
		s.eng.Load(all)
		s.fullyLoaded = true
		return nil
	}

	seen := map[string]bool{}
	var queue []string
	enqueue := func(ts []model.Task) {
		for _, t := range ts {
			if t.SubtaskCount > 0 && !seen[t.ID] {
				seen[t.ID] = true
				queue = append(queue, t.ID)
			}
		}
	}
	enqueue(s.eng.Tasks())
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children, err := s.api.FetchChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch children of %s: %w", id, err)
		}
		s.eng.Load(children)
		enqueue(children)
	}
	s.fullyLoaded = true
	return nil
}

// revealAll loads the whole tree and shows it ungrouped and fully expanded, so any
// task can be selected. It does not persist.
func (s *session) revealAll(ctx context.Context) error {
	if err := s.loadAll(ctx); err != nil {
		return err
	}
	s.eng.SetQuery("")
	if err := s.drive(ctx, s.eng.SetGroupMode(grouping.ModeNone)); err != nil {
		return err
	}
	return s.drive(ctx, s.eng.ExpandAll())
}

// task returns the current engine copy of id.
func (s *session) task(id string) (model.Task, error) {
	t, ok := s.eng.Task(id)
	if !ok {
		return model.Task{}, fmt.Errorf("task %s is no longer present", id)
	}
	return t, nil
}
