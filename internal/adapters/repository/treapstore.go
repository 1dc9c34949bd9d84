package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/foursigma/foursigma/internal/domain/types"
	"github.com/foursigma/foursigma/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then userID ASC (deterministic). "less" means ranks
// earlier, so an in-order traversal yields the leaderboard best to worst.
// Priorities are random, which keeps the expected depth logarithmic.

// scoreScale fixes scores to six decimals so equal totals compare equal.
const scoreScale = 1_000_000

type scoreFP int64

func toFixedPoint(x float64) (scoreFP, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, ErrInvalidScore
	}
	scaled := math.Round(x * scoreScale)
	if scaled >= math.MaxInt64 || scaled <= math.MinInt64 {
		return 0, ErrInvalidScore
	}
	return scoreFP(scaled), nil
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// record is a user's current best.
type record struct {
	score     scoreFP
	sessionID int64
}

type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n, nn *node) *node {
	if n == nil {
		return nn
	}
	if less(nn.score, nn.id, n.score, n.id) {
		n.left = insert(n.left, nn)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, nn)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAhead returns how many entries have a strictly higher score.
func countAhead(n *node, score scoreFP) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, records map[string]record, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		rec := records[n.id]
		*out = append(*out, types.Entry{UserID: n.id, Score: toFloat(rec.score), SessionID: rec.sessionID})
	}
	collectTopN(n.right, limit, records, out)
}

// assignRanks gives tied scores the same rank and skips the following ranks
// accordingly (1, 1, 3).
func assignRanks(entries []types.Entry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// TreapStore is a Store kept in a size-augmented treap. TopN and Rank both
// use competition ranking.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]record
	seed uint64
	rng  *rand.Rand
}

// NewTreapStore constructs an empty leaderboard.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID: make(map[string]record),
		seed: uint64(time.Now().UnixNano()), //nolint:gosec // G115: sign is irrelevant for a seed
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15)) //nolint:gosec // not security sensitive
	return s
}

// UpdateBest implements Store.UpdateBest in O(log n) expected time.
func (s *TreapStore) UpdateBest(_ context.Context, userID string, score float64, sessionID int64) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardUpdateLatency(sinceMs(start))
	}()

	ns, err := toFixedPoint(score)
	if err != nil {
		metrics.RecordErrorByComponent("leaderboard", "invalid_score")
		return false, err
	}

	s.mu.Lock()
	if old, ok := s.byID[userID]; ok {
		if ns <= old.score {
			s.mu.Unlock()
			return false, nil
		}
		s.root = deleteNode(s.root, userID, old.score)
	}
	s.byID[userID] = record{score: ns, sessionID: sessionID}
	s.root = insert(s.root, &node{id: userID, score: ns, prio: s.rng.Uint64(), size: 1})
	count := len(s.byID)
	s.mu.Unlock()

	metrics.RecordLeaderboardUpdate()
	metrics.UpdateLeaderboardPlayers(count)
	return true, nil
}

// Rank returns the user's current rank in O(log n) expected time.
func (s *TreapStore) Rank(_ context.Context, userID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(sinceMs(start))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[userID]
	if !ok {
		metrics.RecordErrorByComponent("leaderboard", "not_found")
		return types.Entry{}, ErrNotFound
	}
	return types.Entry{
		Rank:      countAhead(s.root, rec.score) + 1,
		UserID:    userID,
		Score:     toFloat(rec.score),
		SessionID: rec.sessionID,
	}, nil
}

// TopN returns the top N entries ordered by score desc.
func (s *TreapStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(sinceMs(start))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("leaderboard", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Entry, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, s.byID, &out)
	assignRanks(out)
	return out, nil
}

// Count returns the number of ranked users.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
