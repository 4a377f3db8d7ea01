package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"robopilot/internal/agent"
	"robopilot/internal/budget"
	"robopilot/internal/config"
	"robopilot/internal/db"
	"robopilot/internal/llm"
	"robopilot/internal/metrics"
	"robopilot/internal/models"
	"robopilot/internal/robot"
	"robopilot/internal/sessionlog"
	"robopilot/internal/tools"
	"robopilot/internal/transcript"
)

const closeTimeout = 5 * time.Second

// session is one wired conversation: agent, transcript and every sink it
// logs to.
type session struct {
	settings   *config.Settings
	logger     *zap.Logger
	agent      *agent.Agent
	transcript *transcript.Transcript
	budget     *budget.Controller
	log        sessionlog.Sink
	logFile    *sessionlog.File
	history    *sql.DB
	model      models.AIModel
	backendUp  bool
	welcome    string

	closers []func() error
}

type sessionOptions struct {
	loadContext string
	observer    agent.Observer
	client      llm.Completer // nil = OpenAI from settings
	now         func() time.Time
}

func openSession(ctx context.Context, s *config.Settings, logger *zap.Logger, opts sessionOptions) (sess *session, err error) {
	if opts.now == nil {
		opts.now = time.Now
	}
	sess = &session{settings: s, logger: logger}
	partial := sess
	defer func() {
		if err != nil {
			if partial.logFile != nil {
				_ = partial.logFile.Close(context.Background(), models.Summary{Model: s.Model})
			}
			_ = partial.release()
		}
	}()

	client := opts.client
	if client == nil {
		if err := s.RequireAPIKey(); err != nil {
			return nil, err
		}
		oa, err := llm.NewOpenAI(s.OpenAI.APIKey, s.OpenAI.BaseURL, logger)
		if err != nil {
			return nil, err
		}
		client = oa
	}

	sess.model = models.AIModel{ID: s.Model, Name: s.Model}
	if known, ok := models.FindModel(s.Model); ok {
		sess.model = known
	}

	var m *metrics.Metrics
	if s.Metrics.Addr != "" {
		m = metrics.New()
		sess.serveMetrics(s.Metrics.Addr, m)
	}

	rc := robot.New(s.Robot.URL,
		robot.WithHTTPClient(&http.Client{Timeout: s.Robot.Timeout}),
		robot.WithRate(s.Robot.Rate),
		robot.WithLogger(logger),
	)
	pingCtx, cancel := context.WithTimeout(ctx, s.Robot.Timeout)
	pingErr := rc.Ping(pingCtx)
	cancel()
	sess.backendUp = pingErr == nil
	if pingErr != nil {
		logger.Warn("robot backend unreachable, robot tools disabled", zap.String("url", s.Robot.URL), zap.Error(pingErr))
	}

	reg := tools.NewRegistry()
	defaults := tools.NewDefaults()
	if err := tools.RegisterRobot(reg, rc, defaults); err != nil {
		return nil, err
	}
	if err := tools.RegisterDefaults(reg, defaults); err != nil {
		return nil, err
	}
	if err := tools.RegisterPrograms(reg, tools.ProgramConfig{
		Dir:         s.Tools.WorkspaceDir,
		Interpreter: s.Tools.Interpreter,
		Timeout:     s.Tools.RunTimeout,
	}); err != nil {
		return nil, err
	}
	specs := reg.Publish(sess.backendUp)
	sess.welcome = agent.WelcomeMessage(specs)

	limit := s.Budget.ContextLimit
	if limit == 0 {
		limit = budget.LimitForModel(s.Model)
	}
	sess.budget = budget.New(limit, budget.NewTokenizer(s.Model, logger), logger)

	if opts.loadContext != "" {
		t, used, err := transcript.LoadContext(opts.loadContext)
		if err != nil {
			return nil, err
		}
		sess.transcript = t
		sess.budget.Seed(used)
		logger.Info("loaded context", zap.String("file", opts.loadContext), zap.Int("messages", t.Len()), zap.Int("used_tokens", used))
	} else {
		sess.transcript = transcript.New(agent.SystemPrompt(sess.backendUp))
	}

	if err := sess.openSinks(ctx, opts.now()); err != nil {
		return nil, err
	}

	d := tools.NewDispatcher(reg, sess.log, logger, m)
	agentOpts := []agent.Option{agent.WithLogger(logger), agent.WithMetrics(m)}
	if opts.observer != nil {
		agentOpts = append(agentOpts, agent.WithObserver(opts.observer))
	}
	sess.agent = agent.New(client, d, specs, sess.budget, sess.log, agent.Config{
		Model:             s.Model,
		MaxOutputTokens:   s.Agent.MaxOutputTokens,
		MaxAttempts:       s.Agent.MaxAttempts,
		BackoffUnit:       s.Agent.BackoffUnit,
		OverflowTrimBlock: s.Agent.OverflowTrimBlock,
		MaxToolRounds:     s.Agent.MaxToolRounds,
		MaxMalformedCalls: s.Agent.MaxMalformedCalls,
	}, agentOpts...)
	return sess, nil
}

// openSinks creates the session log file plus the optional SQLite and
// Redis mirrors, and writes the initial transcript to all of them.
func (s *session) openSinks(ctx context.Context, now time.Time) error {
	file, err := sessionlog.Create(s.settings.SessionLog.Dir, now, nil)
	if err != nil {
		return err
	}
	s.logFile = file
	sinks := sessionlog.Multi{file}

	sessionID := uuid.NewString()
	if path := s.settings.SessionLog.SQLitePath; path != config.SQLiteDisabled {
		if path == "" {
			if path, err = db.DefaultPath(); err != nil {
				return err
			}
		}
		conn, err := db.Open(path)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		s.history = conn
		s.closers = append(s.closers, conn.Close)
		store := db.NewStore(conn, s.settings.Model, file.Path())
		sessionID = store.ID()
		sinks = append(sinks, store)
	}

	if addr := s.settings.SessionLog.RedisAddr; addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("connect to redis at %s: %w", addr, err)
		}
		s.closers = append(s.closers, rdb.Close)
		sinks = append(sinks, sessionlog.NewRedis(rdb, sessionID))
	}

	s.log = sinks
	for _, m := range s.transcript.Messages() {
		if err := s.log.Write(ctx, m); err != nil {
			return fmt.Errorf("write session log: %w", err)
		}
	}
	s.logger.Info("session log opened", zap.String("file", file.Path()), zap.String("session", sessionID))
	return nil
}

func (s *session) serveMetrics(addr string, m *metrics.Metrics) {
	srv := &http.Server{Addr: addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	s.closers = append(s.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	s.logger.Info("serving metrics", zap.String("addr", addr))
}

// Close writes the summary to every sink and releases the resources. It
// runs on its own context so an interrupted session still gets closed.
func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if s.log != nil {
		if err := s.log.Close(ctx, s.agent.Summary()); err != nil {
			errs = append(errs, fmt.Errorf("close session log: %w", err))
		}
	}
	if err := s.release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *session) release() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
