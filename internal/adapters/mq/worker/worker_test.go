package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/foursigma/foursigma/internal/adapters/mq/queue"
	worker "github.com/foursigma/foursigma/internal/adapters/mq/worker"
	model "github.com/foursigma/foursigma/internal/domain/model"
	logging "github.com/foursigma/foursigma/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	eventChan chan queue.Event
	closeOnce sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 256)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Event { return mq.eventChan }

func (mq *mockQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.eventChan) })
	return nil
}

func (mq *mockQueue) addEvent(event queue.Event) { //nolint:gocritic // hugeParam
	mq.eventChan <- event
}

type mockUpdater struct {
	mu      sync.Mutex
	updates map[string]float64
	errors  map[string]error
}

func newMockUpdater() *mockUpdater {
	return &mockUpdater{updates: make(map[string]float64), errors: make(map[string]error)}
}

func (m *mockUpdater) UpdateBest(_ context.Context, userID string, score float64, _ int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[userID]; ok {
		return false, err
	}
	if prev, ok := m.updates[userID]; ok && score <= prev {
		return false, nil
	}
	m.updates[userID] = score
	return true, nil
}

func (m *mockUpdater) setError(userID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[userID] = err
}

func (m *mockUpdater) get(userID string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.updates[userID]
	return score, ok
}

func (m *mockUpdater) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, e model.Event) error { //nolint:gocritic // hugeParam
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *mockPublisher) Close() {}

func (p *mockPublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.ID)
	}
	return out
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func finished(id, userID string, total float64) model.Event {
	return model.Event{ID: id, Kind: model.EventSessionFinished, UserID: userID, SessionID: 1, Score: total, TS: time.Now()}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		updater := newMockUpdater()
		pub := &mockPublisher{}
		w := worker.NewInMemoryWorker(q, updater, worker.WithName("test-worker"), worker.WithPublisher(pub))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a session.finished event arrives", func() {
			q.addEvent(finished("evt-1", "ada", 245.5))

			convey.Convey("Then the leaderboard is updated and the event published", func() {
				convey.So(eventually(func() bool { return len(pub.ids()) == 1 }), convey.ShouldBeTrue)
				score, ok := updater.get("ada")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(score, convey.ShouldEqual, 245.5)
			})
		})

		convey.Convey("When an answer.scored event arrives", func() {
			q.addEvent(model.Event{ID: "evt-2", Kind: model.EventAnswerScored, UserID: "bob", Score: 88})

			convey.Convey("Then it is published without touching the leaderboard", func() {
				convey.So(eventually(func() bool { return len(pub.ids()) == 1 }), convey.ShouldBeTrue)
				_, ok := updater.get("bob")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the leaderboard update fails", func() {
			updater.setError("cy", errors.New("update error"))
			q.addEvent(finished("evt-3", "cy", 100))
			q.addEvent(finished("evt-4", "dee", 120))

			convey.Convey("Then the failed event is not published but later ones are", func() {
				convey.So(eventually(func() bool { return len(pub.ids()) == 1 }), convey.ShouldBeTrue)
				convey.So(pub.ids(), convey.ShouldResemble, []string{"evt-4"})
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully and a second call is harmless", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose publisher fails", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		updater := newMockUpdater()
		pub := &mockPublisher{err: errors.New("broker down")}
		w := worker.NewInMemoryWorker(q, updater, worker.WithPublisher(pub))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.addEvent(finished("evt-1", "ada", 10))

		convey.Convey("Then the leaderboard update still applies", func() {
			convey.So(eventually(func() bool { _, ok := updater.get("ada"); return ok }), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a worker whose queue closes", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, newMockUpdater())
		go w.Run(context.Background())

		_ = q.Close()

		convey.Convey("Then Run returns", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		updater := newMockUpdater()
		pub := &mockPublisher{}

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, updater)

			convey.Convey("Then the default size is used", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When many events are processed concurrently", func() {
			pool := worker.NewPool(4, q, updater, worker.WithPublisher(pub))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			const producers, perProducer = 5, 20
			var wg sync.WaitGroup
			for i := 0; i < producers; i++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for j := 0; j < perProducer; j++ {
						q.addEvent(finished(fmt.Sprintf("evt-%d-%d", p, j), fmt.Sprintf("user-%d-%d", p, j), float64(j)+1))
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then shutdown drains every buffered event", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer shutdownCancel()

				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(updater.count(), convey.ShouldEqual, producers*perProducer)
				convey.So(pub.ids(), convey.ShouldHaveLength, producers*perProducer)
			})
		})
	})
}
