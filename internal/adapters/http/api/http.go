// Package api exposes the game over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/foursigma/foursigma/internal/adapters/http/site"
	"github.com/foursigma/foursigma/internal/adapters/http/swagger"
	service "github.com/foursigma/foursigma/internal/app"
	"github.com/foursigma/foursigma/internal/auth"
	"github.com/foursigma/foursigma/internal/domain/model"
	"github.com/foursigma/foursigma/internal/domain/scoring"
	"github.com/foursigma/foursigma/internal/domain/types"
	"github.com/foursigma/foursigma/pkg/logger"
)

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	Health(ctx context.Context) service.Health
	Stats(ctx context.Context) map[string]any
	Tokens() *auth.Tokens

	SignUp(ctx context.Context, in service.SignUpInput) (service.AuthResult, error)
	SignIn(ctx context.Context, in service.SignInInput) (service.AuthResult, error)
	OAuthCallback(ctx context.Context, id model.OAuthIdentity) (service.AuthResult, error)
	Me(ctx context.Context, userID string) (model.User, error)
	Profile(ctx context.Context, userID string) (model.User, error)
	UpdateProfile(ctx context.Context, callerID, userID string, upd model.ProfileUpdate) (model.User, error)

	Categories(ctx context.Context) ([]model.Category, error)
	ListQuestions(ctx context.Context, category string, includeCreator bool) ([]model.Question, error)
	DailyQuestions(ctx context.Context) ([]model.Question, error)
	QuestionsByCreator(ctx context.Context, userID string) ([]model.Question, error)
	CreateQuestion(ctx context.Context, callerID string, draft model.QuestionDraft) (model.Question, error)
	UpdateQuestion(ctx context.Context, callerID string, id int64, draft model.QuestionDraft) (model.Question, error)

	CreateSession(ctx context.Context, userID string, in service.CreateSessionInput) (model.Session, error)
	Session(ctx context.Context, id int64) (model.Session, error)
	UserSessions(ctx context.Context, userID string) ([]model.Session, error)
	SubmitAnswer(ctx context.Context, userID string, sessionID int64, in service.SubmitInput) (service.SubmitResult, error)
	FinishSession(ctx context.Context, userID string, sessionID int64) (model.SessionResult, error)

	Calculate(in scoring.Input) (scoring.Result, error)
	UserStats(ctx context.Context, userID string) (service.UserStats, error)
	Leaderboard(ctx context.Context, limit int) ([]types.Entry, error)
	Rank(ctx context.Context, userID string) (types.Entry, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Option configures the router.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server holds the handlers for the business API.
type Server struct {
	deps        Dependencies
	corsOrigins []string
	logger      logger.Logger
}

// NewRouter builds the HTTP handler: the /api routes, metrics on /healthz,
// counters on /stats, the API docs and the landing page.
func NewRouter(ctx context.Context, deps Dependencies, opts ...Option) http.Handler {
	s := &Server{deps: deps, corsOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(MetricsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, NewKind("route "+r.URL.Path, ErrNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	r.Get("/healthz", HandleMetrics)
	r.Get("/stats", s.handleStats)
	swagger.Register(ctx, r)
	site.Register(ctx, r)

	requireAuth := auth.Middleware(deps.Tokens(), s.unauthorized)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/signin", s.handleSignIn)
			r.Post("/oauth/callback", s.handleOAuthCallback)
			r.With(requireAuth).Get("/me", s.handleMe)
		})

		r.Route("/questions", func(r chi.Router) {
			r.Get("/", s.handleListQuestions)
			r.Get("/daily", s.handleDailyQuestions)
			r.Get("/categories", s.handleCategories)
			r.Get("/creator/{userId}", s.handleQuestionsByCreator)
			r.With(requireAuth).Post("/", s.handleCreateQuestion)
			r.With(requireAuth).Put("/{questionId}", s.handleUpdateQuestion)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.With(requireAuth).Post("/", s.handleCreateSession)
			r.Get("/user/{userId}", s.handleUserSessions)
			r.Get("/{sessionId}", s.handleGetSession)
			r.With(requireAuth).Post("/{sessionId}/submit", s.handleSubmit)
			r.With(requireAuth).Post("/{sessionId}/finish", s.handleFinish)
		})

		r.Route("/scores", func(r chi.Router) {
			r.Post("/calculate", s.handleCalculate)
			r.Get("/stats/{userId}", s.handleUserStats)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{userId}", s.handleGetProfile)
			r.With(requireAuth).Put("/{userId}", s.handleUpdateProfile)
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", s.handleLeaderboard)
			r.Get("/rank/{userId}", s.handleRank)
		})
	})

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status, body = http.StatusInternalServerError, []byte(encodeFailure)
	} else {
		body = append(body, '\n')
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// encodeFailure replaces a response body that could not be encoded.
const encodeFailure = `{"code":"internal_error","message":"response could not be encoded"}` + "\n"

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status its kind maps to. Server errors are
// logged and their detail is withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	s.fail(w, r, WrapKind("api.auth", ErrUnauthorized, err))
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.fail(w, r, WrapKind(op, ErrBadRequest, err))
}
