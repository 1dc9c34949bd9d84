package playtest

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/foursigma/foursigma/internal/domain/scoring"
	"github.com/foursigma/foursigma/pkg/logger"
)

const (
	playerPassword  = "playtest-secret"
	maxRetries      = 5
	retryBackoff    = 50 * time.Millisecond
	scoreTolerance  = 1e-9
	reportInterval  = time.Second
	channelHeadroom = 2
)

// counters are shared by the player goroutines.
type counters struct {
	signedUp, started, finished   atomic.Int64
	accepted, duplicates, backoff atomic.Int64
	failed, mismatches            atomic.Int64
}

func (c *counters) into(stats *Stats) {
	stats.PlayersSignedUp = int(c.signedUp.Load())
	stats.SessionsStarted = int(c.started.Load())
	stats.SessionsFinished = int(c.finished.Load())
	stats.AnswersAccepted = int(c.accepted.Load())
	stats.Duplicates = int(c.duplicates.Load())
	stats.Backpressured = int(c.backoff.Load())
	stats.Failed = int(c.failed.Load())
	stats.ScoreMismatches = int(c.mismatches.Load())
}

// playAll signs up cfg.Players players and plays their sessions with
// cfg.Workers players in flight. Players that fail to sign up are dropped.
func playAll(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) []*Player {
	log := logger.Get()
	log.Info(ctx, "playing games",
		logger.Int("players", cfg.Players),
		logger.Int("sessionsPerPlayer", cfg.SessionsPerPlayer),
		logger.Int("workers", cfg.Workers))

	var c counters
	results := make([]*Player, cfg.Players)
	indices := make(chan int, cfg.Workers*channelHeadroom)

	var lastReport atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if ctx.Err() != nil {
					return
				}
				results[i] = playOne(ctx, cfg, client, i, &c)

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int64("finished", c.finished.Load()),
						logger.Int64("accepted", c.accepted.Load()),
						logger.Int64("failed", c.failed.Load()))
				}
			}
		}()
	}

	go func() {
		defer close(indices)
		for i := range cfg.Players {
			select {
			case <-ctx.Done():
				return
			case indices <- i:
			}
		}
	}()
	wg.Wait()

	c.into(stats)
	players := make([]*Player, 0, len(results))
	for _, p := range results {
		if p != nil {
			players = append(players, p)
		}
	}
	return players
}

func playOne(ctx context.Context, cfg *Config, client *HTTPClient, index int, c *counters) *Player {
	log := logger.Get()
	gen := newGenerator(cfg.Seed, index)

	p, err := signUp(ctx, client)
	if err != nil {
		c.failed.Add(1)
		log.Warn(ctx, "sign up failed", logger.Int("player", index), logger.Error(err))
		return nil
	}
	c.signedUp.Add(1)

	for s := range cfg.SessionsPerPlayer {
		mode := "practice"
		if s%2 == 1 {
			mode = "daily"
		}
		game, err := playSession(ctx, cfg, client, p, mode, gen, c)
		if err != nil {
			c.failed.Add(1)
			log.Warn(ctx, "session failed",
				logger.String("user_id", p.UserID), logger.String("mode", mode), logger.Error(err))
			continue
		}
		p.Games = append(p.Games, game)
		if cfg.Verbose {
			log.Debug(ctx, "session finished",
				logger.String("user_id", p.UserID),
				logger.Int64("session_id", game.SessionID),
				logger.Float64("total", game.Total))
		}
	}
	return p
}

func signUp(ctx context.Context, client *HTTPClient) (*Player, error) {
	tag := uuid.NewString()[:8]
	body := map[string]string{
		"email":       "playtest-" + tag + "@example.com",
		"password":    playerPassword,
		"username":    "playtest-" + tag,
		"displayName": "Playtest " + tag,
	}
	var res struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
		Token string `json:"token"`
	}
	if err := client.post(ctx, "/api/auth/signup", "", body, &res); err != nil {
		return nil, err
	}
	return &Player{UserID: res.User.ID, Username: res.User.Username, token: res.Token}, nil
}

func playSession(ctx context.Context, cfg *Config, client *HTTPClient, p *Player, mode string, gen *generator, c *counters) (Game, error) {
	var sess struct {
		ID        int64      `json:"id"`
		Questions []Question `json:"questions"`
	}
	if err := client.post(ctx, "/api/sessions", p.token, map[string]string{"mode": mode}, &sess); err != nil {
		return Game{}, fmt.Errorf("create session: %w", err)
	}
	c.started.Add(1)

	game := Game{SessionID: sess.ID}
	base := fmt.Sprintf("/api/sessions/%d", sess.ID)
	for _, q := range sess.Questions {
		strategy := gen.strategy()
		lower, upper := gen.guess(strategy, q.Answer)
		ans, err := submit(ctx, client, p.token, base, q.ID, lower, upper, c)
		if err != nil {
			return Game{}, err
		}
		ans.Strategy = strategy.String()
		if math.Abs(ans.Score-scoring.Score(lower, upper, ans.Correct)) > scoreTolerance {
			c.mismatches.Add(1)
		}
		game.Answers = append(game.Answers, ans)
	}

	if cfg.ProbeDuplicates && len(sess.Questions) > 0 {
		_, err := submit(ctx, client, p.token, base, sess.Questions[0].ID, 1, 2, c)
		if statusOf(err) != http.StatusConflict {
			return Game{}, fmt.Errorf("duplicate submit was not rejected: %w", err)
		}
		c.duplicates.Add(1)
	}

	var result struct {
		TotalScore float64 `json:"total_score"`
	}
	if err := retry(ctx, c, func() error {
		return client.post(ctx, base+"/finish", p.token, nil, &result)
	}); err != nil {
		return Game{}, fmt.Errorf("finish session: %w", err)
	}
	c.finished.Add(1)
	game.Total = result.TotalScore
	return game, nil
}

func submit(ctx context.Context, client *HTTPClient, token, base string, questionID int64, lower, upper float64, c *counters) (Answer, error) {
	body := map[string]any{"questionId": questionID, "lowerBound": lower, "upperBound": upper}
	var res struct {
		Score         float64 `json:"score"`
		Correct       bool    `json:"correct"`
		CorrectAnswer float64 `json:"correctAnswer"`
	}
	err := retry(ctx, c, func() error {
		return client.post(ctx, base+"/submit", token, body, &res)
	})
	if err != nil {
		return Answer{}, err
	}
	c.accepted.Add(1)
	return Answer{
		QuestionID: questionID,
		LowerBound: lower,
		UpperBound: upper,
		Correct:    res.CorrectAnswer,
		Score:      res.Score,
		Captured:   res.Correct,
	}, nil
}

// retry repeats fn while the server reports backpressure.
func retry(ctx context.Context, c *counters, fn func() error) error {
	backoff := retryBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if statusOf(err) != http.StatusTooManyRequests || attempt == maxRetries {
			return err
		}
		c.backoff.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
