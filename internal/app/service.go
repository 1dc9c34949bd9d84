// Package service implements the game: accounts, questions, sessions,
// scoring and the leaderboard, on top of the store and the event pipeline.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/foursigma/foursigma/internal/adapters/mq/publisher"
	eventqueue "github.com/foursigma/foursigma/internal/adapters/mq/queue"
	workerpool "github.com/foursigma/foursigma/internal/adapters/mq/worker"
	"github.com/foursigma/foursigma/internal/adapters/repository"
	"github.com/foursigma/foursigma/internal/auth"
	"github.com/foursigma/foursigma/internal/domain/dedupe"
	"github.com/foursigma/foursigma/internal/domain/model"
	"github.com/foursigma/foursigma/pkg/logger"
	"github.com/foursigma/foursigma/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Store is the persistence the service needs. sqlstore.Store implements it.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u model.User) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)
	TouchSignIn(ctx context.Context, id string) (time.Time, error)
	UpsertOAuthUser(ctx context.Context, identity model.OAuthIdentity, newID, username string) (model.User, error)
	UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (model.User, error)

	Categories(ctx context.Context) ([]model.Category, error)
	ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.Question, error)
	QuestionByID(ctx context.Context, id int64) (model.Question, error)
	QuestionsByIDs(ctx context.Context, ids []int64) ([]model.Question, error)
	QuestionsForDay(ctx context.Context, day time.Time, n int) ([]model.Question, error)
	QuestionsByCreator(ctx context.Context, userID string) ([]model.Question, error)
	CreateQuestion(ctx context.Context, q model.Question, categoryIDs []int64) (model.Question, error)
	UpdateQuestion(ctx context.Context, id int64, draft model.QuestionDraft, editorID string) (model.Question, error)

	CreateSession(ctx context.Context, userID string, mode model.Mode, questionIDs []int64) (model.Session, error)
	SessionByID(ctx context.Context, id int64) (model.Session, error)
	SessionsByUser(ctx context.Context, userID string) ([]model.Session, error)
	InsertSubmission(ctx context.Context, sub model.Submission) (model.Submission, error)
	FinishSession(ctx context.Context, res model.SessionResult) (model.SessionResult, error)
	BestSessionTotals(ctx context.Context) ([]model.BestTotal, error)

	UserScores(ctx context.Context, userID string) ([]float64, error)
	RecentSubmissions(ctx context.Context, userID string, n int) ([]model.RecentScore, error)
}

// Service implements the API dependencies for the game.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       Store
	tokens      *auth.Tokens
	leaderboard repository.Store
	deduper     dedupe.Deduper
	eventQueue  eventqueue.Queue
	publisher   publisher.Publisher
	workerPool  *workerpool.Pool

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	pageSize         int
	dailyCount       int
	maxLeaderboard   int
	recentScoreLimit int
	environment      string

	now     func() time.Time
	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of event workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the idempotency key window.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithQuestionPageSize caps question listings and default session sets.
func WithQuestionPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithDailyQuestionCount sets the size of the daily set.
func WithDailyQuestionCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dailyCount = n
		}
	}
}

// WithMaxLeaderboardLimit caps Leaderboard(limit).
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboard = n
		}
	}
}

// WithRecentScoresLimit sets how many recent scores UserStats returns.
func WithRecentScoresLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentScoreLimit = n
		}
	}
}

// WithPublisher forwards processed events to p.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLeaderboard replaces the in-memory leaderboard.
func WithLeaderboard(l repository.Store) Option {
	return func(s *Service) {
		if l != nil {
			s.leaderboard = l
		}
	}
}

// WithEnvironment sets the name reported by Health.
func WithEnvironment(env string) Option {
	return func(s *Service) {
		if env != "" {
			s.environment = env
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store. Tokens sign and verify sessions.
func New(store Store, tokens *auth.Tokens, opts ...Option) *Service {
	s := &Service{
		store:            store,
		tokens:           tokens,
		publisher:        publisher.Nop{},
		workerCount:      4,
		queueSize:        1024,
		dedupeSize:       100_000,
		pageSize:         10,
		dailyCount:       3,
		maxLeaderboard:   100,
		recentScoreLimit: 10,
		environment:      "development",
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.leaderboard == nil {
		s.leaderboard = repository.NewTreapStore()
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.leaderboard,
		workerpool.WithPublisher(s.publisher),
	)
	return s
}

// Start warms the leaderboard from finished sessions and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting game service...")

	totals, err := s.store.BestSessionTotals(ctx)
	if err != nil {
		return fmt.Errorf("warm leaderboard: %w", err)
	}
	for _, t := range totals {
		if _, err := s.leaderboard.UpdateBest(ctx, t.UserID, t.Total, t.SessionID); err != nil {
			s.logger.Warn(ctx, "skipping leaderboard row",
				logger.String("user_id", t.UserID),
				logger.Int64("session_id", t.SessionID),
				logger.Error(err),
			)
		}
	}

	// Workers outlive the start context.
	s.workerPool.Start(context.WithoutCancel(ctx))
	s.started = true

	s.logger.Info(ctx, "game service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("rankedPlayers", s.leaderboard.Count(ctx)),
	)
	return nil
}

// Stop drains the event queue and stops the workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping game service...")
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "game service stopped")
}

// Started reports whether Start has run.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Health describes the service for the health endpoint.
type Health struct {
	Status      string    `json:"status"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
}

// Health pings the store. The status is "ok" or "degraded".
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Status: "ok", Environment: s.environment, Timestamp: s.now().UTC(), Database: "ok"}
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "database ping failed", logger.Error(err))
		h.Status, h.Database = "degraded", "unreachable"
	}
	return h
}

// Stats returns operational counters for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queueLen := s.eventQueue.Len(ctx)
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.workerPool.Size())

	return map[string]any{
		"started":       s.started,
		"workerCount":   s.workerPool.Size(),
		"queueCapacity": s.eventQueue.Capacity(),
		"queueLength":   queueLen,
		"dedupeSize":    s.deduper.Size(),
		"rankedPlayers": s.leaderboard.Count(ctx),
	}
}

// admit rejects new work while the event queue is full.
func (s *Service) admit(ctx context.Context) error {
	if s.eventQueue.Len(ctx) >= s.eventQueue.Capacity() {
		metrics.RecordErrorByComponent("service", "backpressure")
		return translate("admit", eventqueue.ErrQueueFull)
	}
	return nil
}
