package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/foursigma/foursigma/internal/domain/model"
	"github.com/foursigma/foursigma/pkg/logger"
)

const memoryDSN = "file::memory:?_pragma=foreign_keys(1)"

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	_ = logger.Init()
	s, err := Open(context.Background(), DriverSQLite, memoryDSN, WithClock(tickingClock()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s *Store, id, email, username string) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		ID: id, Email: email, Username: username, DisplayName: username, Provider: model.ProviderEmail, PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestOpen(t *testing.T) {
	Convey("Given an unknown driver", t, func() {
		_ = logger.Init()
		_, err := Open(context.Background(), "oracle", "dsn")

		Convey("Then Open fails", func() {
			So(errors.Is(err, ErrUnsupportedDriver), ShouldBeTrue)
		})
	})

	Convey("Given a fresh sqlite database", t, func() {
		s := newTestStore(t)
		ctx := context.Background()

		Convey("Then the seed categories and questions exist", func() {
			cats, err := s.Categories(ctx)
			So(err, ShouldBeNil)
			So(cats, ShouldHaveLength, 5)

			qs, err := s.ListQuestions(ctx, model.QuestionFilter{})
			So(err, ShouldBeNil)
			So(qs, ShouldHaveLength, 12)
			for _, q := range qs {
				So(q.Categories, ShouldHaveLength, 1)
				So(q.Version, ShouldEqual, 1)
			}
		})

		Convey("Then migrating again is a no-op", func() {
			So(s.Migrate(ctx), ShouldBeNil)
			So(s.Ping(ctx), ShouldBeNil)
		})
	})
}

func TestUsers(t *testing.T) {
	Convey("Given a store with one user", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		created := createUser(t, s, "u-1", "Ada@Example.com", "ada")

		Convey("Then it can be read back by id and email", func() {
			byID, err := s.UserByID(ctx, "u-1")
			So(err, ShouldBeNil)
			So(byID.Email, ShouldEqual, "ada@example.com")
			So(byID.ProviderID, ShouldEqual, "u-1")
			So(byID.CreatedAt.Equal(created.CreatedAt), ShouldBeTrue)
			So(byID.LastSignInAt, ShouldBeNil)

			byEmail, err := s.UserByEmail(ctx, " ADA@example.com ")
			So(err, ShouldBeNil)
			So(byEmail.ID, ShouldEqual, "u-1")
			So(byEmail.PasswordHash, ShouldEqual, "hash")
		})

		Convey("Then unknown users are not found", func() {
			_, err := s.UserByID(ctx, "nobody")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = s.TouchSignIn(ctx, "nobody")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Then a taken email or username is a duplicate", func() {
			_, err := s.CreateUser(ctx, model.User{ID: "u-2", Email: "ada@example.com", Username: "other", Provider: model.ProviderEmail})
			So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
			_, err = s.CreateUser(ctx, model.User{ID: "u-3", Email: "x@example.com", Username: "ada", Provider: model.ProviderEmail})
			So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
		})

		Convey("When signing in", func() {
			at, err := s.TouchSignIn(ctx, "u-1")
			So(err, ShouldBeNil)

			Convey("Then the timestamp is stored", func() {
				u, _ := s.UserByID(ctx, "u-1")
				So(u.LastSignInAt, ShouldNotBeNil)
				So(u.LastSignInAt.Equal(at), ShouldBeTrue)
			})
		})

		Convey("When updating the profile", func() {
			name := "Ada L."
			avatar := "https://example.com/a.png"
			u, err := s.UpdateProfile(ctx, "u-1", model.ProfileUpdate{DisplayName: &name, AvatarURL: &avatar})

			Convey("Then only the given fields change", func() {
				So(err, ShouldBeNil)
				So(u.DisplayName, ShouldEqual, "Ada L.")
				So(u.AvatarURL, ShouldEqual, avatar)
				So(u.Username, ShouldEqual, "ada")
			})

			Convey("And an empty update returns the user unchanged", func() {
				same, err := s.UpdateProfile(ctx, "u-1", model.ProfileUpdate{})
				So(err, ShouldBeNil)
				So(same.DisplayName, ShouldEqual, "Ada L.")
			})
		})

		Convey("When an OAuth identity signs in twice", func() {
			identity := model.OAuthIdentity{Email: "gh@example.com", DisplayName: "Octo", Provider: "github", ProviderID: "gh-42"}
			first, err := s.UpsertOAuthUser(ctx, identity, "u-oauth", "octo")
			So(err, ShouldBeNil)
			second, err := s.UpsertOAuthUser(ctx, identity, "u-ignored", "octo2")
			So(err, ShouldBeNil)

			Convey("Then the same account is returned and sign-in refreshed", func() {
				So(first.ID, ShouldEqual, "u-oauth")
				So(second.ID, ShouldEqual, "u-oauth")
				So(second.Username, ShouldEqual, "octo")
				So(second.LastSignInAt.After(*first.LastSignInAt), ShouldBeTrue)
			})
		})
	})
}

func TestQuestions(t *testing.T) {
	Convey("Given a store with an author", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		createUser(t, s, "author", "author@example.com", "author")
		createUser(t, s, "editor", "editor@example.com", "editor")

		cats, err := s.Categories(ctx)
		So(err, ShouldBeNil)
		slugs := map[string]int64{}
		for _, c := range cats {
			slugs[c.Slug] = c.ID
		}

		Convey("When a question is created", func() {
			q, err := s.CreateQuestion(ctx, model.Question{
				Prompt: "How deep is the Mariana Trench?", CorrectAnswer: 10994, Unit: "m", CreatedBy: "author",
			}, []int64{slugs["geography"], slugs["geography"], slugs["science"]})

			Convey("Then it starts at version 1 with its categories and creator", func() {
				So(err, ShouldBeNil)
				So(q.ID, ShouldBeGreaterThan, 0)
				So(q.Version, ShouldEqual, 1)
				So(q.Categories, ShouldHaveLength, 2)
				So(q.Creator, ShouldNotBeNil)
				So(q.Creator.DisplayName, ShouldEqual, "author")
				So(q.CreatedAt.Equal(q.UpdatedAt), ShouldBeTrue)
			})

			Convey("Then it is listed under the creator and category", func() {
				mine, err := s.QuestionsByCreator(ctx, "author")
				So(err, ShouldBeNil)
				So(mine, ShouldHaveLength, 1)

				geo, err := s.ListQuestions(ctx, model.QuestionFilter{CategorySlug: "geography", IncludeCreator: true})
				So(err, ShouldBeNil)
				So(geo, ShouldHaveLength, 3)
				So(geo[2].Creator, ShouldNotBeNil)

				plain, err := s.ListQuestions(ctx, model.QuestionFilter{CategorySlug: "geography"})
				So(err, ShouldBeNil)
				So(plain[2].Creator, ShouldBeNil)
			})

			Convey("And then edited", func() {
				answer := 10935.0
				updated, err := s.UpdateQuestion(ctx, q.ID, model.QuestionDraft{CorrectAnswer: &answer, CategoryIDs: []int64{slugs["general"]}}, "editor")

				Convey("Then the version bumps and the editor is recorded", func() {
					So(err, ShouldBeNil)
					So(updated.Version, ShouldEqual, 2)
					So(updated.CorrectAnswer, ShouldEqual, 10935.0)
					So(updated.Prompt, ShouldEqual, q.Prompt)
					So(updated.LastEditedBy, ShouldEqual, "editor")
					So(updated.LastEditor.DisplayName, ShouldEqual, "editor")
					So(updated.Categories, ShouldHaveLength, 1)
					So(updated.Categories[0].Slug, ShouldEqual, "general")
					So(updated.UpdatedAt.After(q.UpdatedAt), ShouldBeTrue)
				})
			})

			Convey("And edited without categories", func() {
				unit := "meters"
				updated, err := s.UpdateQuestion(ctx, q.ID, model.QuestionDraft{Unit: &unit}, "editor")

				Convey("Then the links are kept", func() {
					So(err, ShouldBeNil)
					So(updated.Unit, ShouldEqual, "meters")
					So(updated.Categories, ShouldHaveLength, 2)
				})
			})
		})

		Convey("When linking a category that does not exist", func() {
			_, err := s.CreateQuestion(ctx, model.Question{Prompt: "x", CorrectAnswer: 1}, []int64{9999})

			Convey("Then the question is not created", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				all, _ := s.ListQuestions(ctx, model.QuestionFilter{})
				So(all, ShouldHaveLength, 12)
			})
		})

		Convey("When editing a missing question", func() {
			_, err := s.UpdateQuestion(ctx, 9999, model.QuestionDraft{}, "editor")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When loading by ids", func() {
			all, _ := s.ListQuestions(ctx, model.QuestionFilter{Limit: 3})
			So(all, ShouldHaveLength, 3)

			got, err := s.QuestionsByIDs(ctx, []int64{all[2].ID, all[0].ID})
			So(err, ShouldBeNil)
			So(got[0].ID, ShouldEqual, all[2].ID)
			So(got[1].ID, ShouldEqual, all[0].ID)

			_, err = s.QuestionsByIDs(ctx, []int64{all[0].ID, 9999})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestQuestionsForDay(t *testing.T) {
	Convey("Given the seeded question bank", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		day := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

		Convey("Then the same day always yields the same set", func() {
			a, err := s.QuestionsForDay(ctx, day, 3)
			So(err, ShouldBeNil)
			b, err := s.QuestionsForDay(ctx, day.Add(10*time.Hour), 3)
			So(err, ShouldBeNil)
			So(a, ShouldHaveLength, 3)
			for i := range a {
				So(a[i].ID, ShouldEqual, b[i].ID)
			}
		})

		Convey("Then the next day rotates to different questions", func() {
			a, _ := s.QuestionsForDay(ctx, day, 3)
			b, _ := s.QuestionsForDay(ctx, day.AddDate(0, 0, 1), 3)
			So(a[0].ID, ShouldNotEqual, b[0].ID)
		})
	})

	Convey("Given the rotation helper", t, func() {
		ids := []int64{1, 2, 3, 4, 5}
		So(rotate(ids, 0, 2), ShouldResemble, []int64{1, 2})
		So(rotate(ids, 1, 2), ShouldResemble, []int64{3, 4})
		So(rotate(ids, 2, 2), ShouldResemble, []int64{5, 1})
		So(rotate(ids, 3, 9), ShouldResemble, []int64{1, 2, 3, 4, 5})
		So(rotate(nil, 3, 2), ShouldBeNil)
	})
}

func TestSessions(t *testing.T) {
	Convey("Given a player and three questions", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		createUser(t, s, "p1", "p1@example.com", "p1")
		createUser(t, s, "p2", "p2@example.com", "p2")

		qs, err := s.ListQuestions(ctx, model.QuestionFilter{Limit: 3})
		So(err, ShouldBeNil)
		ids := []int64{qs[2].ID, qs[0].ID, qs[1].ID}

		sess, err := s.CreateSession(ctx, "p1", model.ModeDaily, ids)
		So(err, ShouldBeNil)

		Convey("Then the session keeps its question order", func() {
			loaded, err := s.SessionByID(ctx, sess.ID)
			So(err, ShouldBeNil)
			So(loaded.UserID, ShouldEqual, "p1")
			So(loaded.Mode, ShouldEqual, model.ModeDaily)
			So(loaded.QuestionIDs, ShouldResemble, ids)
			So(loaded.Result, ShouldBeNil)
		})

		Convey("Then a session for a missing question is rejected", func() {
			_, err := s.CreateSession(ctx, "p1", model.ModePractice, []int64{9999})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When answers are submitted", func() {
			elapsed := int64(4200)
			first, err := s.InsertSubmission(ctx, model.Submission{
				SessionID: sess.ID, QuestionID: ids[0], UserID: "p1", LowerBound: 10, UpperBound: 20, ElapsedMS: &elapsed, Score: 80, Captured: true,
			})
			So(err, ShouldBeNil)
			_, err = s.InsertSubmission(ctx, model.Submission{
				SessionID: sess.ID, QuestionID: ids[1], UserID: "p1", LowerBound: 1, UpperBound: 2, Score: 0.5,
			})
			So(err, ShouldBeNil)

			Convey("Then they are listed in order with their fields", func() {
				subs, err := s.SessionSubmissions(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(subs, ShouldHaveLength, 2)
				So(subs[0].ID, ShouldEqual, first.ID)
				So(*subs[0].ElapsedMS, ShouldEqual, int64(4200))
				So(subs[0].Captured, ShouldBeTrue)
				So(subs[1].ElapsedMS, ShouldBeNil)
				So(subs[1].Captured, ShouldBeFalse)
			})

			Convey("Then answering the same question twice is a duplicate", func() {
				_, err := s.InsertSubmission(ctx, model.Submission{SessionID: sess.ID, QuestionID: ids[0], UserID: "p1", Score: 99})
				So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
			})

			Convey("Then the stats queries see them", func() {
				scores, err := s.UserScores(ctx, "p1")
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 2)

				recent, err := s.RecentSubmissions(ctx, "p1", 1)
				So(err, ShouldBeNil)
				So(recent, ShouldHaveLength, 1)
				So(recent[0].Score, ShouldEqual, 0.5)
				So(recent[0].Question, ShouldEqual, qs[0].Prompt)
				So(recent[0].CorrectAnswer, ShouldEqual, qs[0].CorrectAnswer)
			})

			Convey("And the session is finished", func() {
				duration := int64(60000)
				res, err := s.InsertSessionResult(ctx, model.SessionResult{SessionID: sess.ID, TotalScore: 80.5, QuestionsAnswered: 2, DurationMS: &duration})
				So(err, ShouldBeNil)

				Convey("Then the result is attached to the session", func() {
					loaded, err := s.SessionByID(ctx, sess.ID)
					So(err, ShouldBeNil)
					So(loaded.Result, ShouldNotBeNil)
					So(loaded.Result.TotalScore, ShouldEqual, 80.5)
					So(*loaded.Result.DurationMS, ShouldEqual, int64(60000))
					So(loaded.Result.FinishedAt.Equal(res.FinishedAt), ShouldBeTrue)
				})

				Convey("Then finishing twice is a duplicate", func() {
					_, err := s.InsertSessionResult(ctx, model.SessionResult{SessionID: sess.ID})
					So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
				})

				Convey("Then a late answer is refused and not stored", func() {
					_, err := s.InsertSubmission(ctx, model.Submission{SessionID: sess.ID, QuestionID: ids[2], UserID: "p1", Score: 50})
					So(errors.Is(err, ErrSessionClosed), ShouldBeTrue)

					subs, err := s.SessionSubmissions(ctx, sess.ID)
					So(err, ShouldBeNil)
					So(subs, ShouldHaveLength, 2)
				})
			})

			Convey("And the session is finished from its stored answers", func() {
				duration := int64(1500)
				res, err := s.FinishSession(ctx, model.SessionResult{SessionID: sess.ID, TotalScore: 999, QuestionsAnswered: 9, DurationMS: &duration})
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 80.5)
				So(res.QuestionsAnswered, ShouldEqual, 2)

				loaded, err := s.SessionByID(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(loaded.Result.TotalScore, ShouldEqual, 80.5)
				So(loaded.Result.QuestionsAnswered, ShouldEqual, 2)

				Convey("Then finishing again is a duplicate", func() {
					_, err := s.FinishSession(ctx, model.SessionResult{SessionID: sess.ID})
					So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
				})

				Convey("Then a late answer is refused", func() {
					_, err := s.InsertSubmission(ctx, model.Submission{SessionID: sess.ID, QuestionID: ids[2], UserID: "p1", Score: 50})
					So(errors.Is(err, ErrSessionClosed), ShouldBeTrue)
				})
			})
		})

		Convey("When a session with no answers is finished", func() {
			res, err := s.FinishSession(ctx, model.SessionResult{SessionID: sess.ID})
			So(err, ShouldBeNil)
			So(res.TotalScore, ShouldEqual, 0.0)
			So(res.QuestionsAnswered, ShouldEqual, 0)
			So(res.FinishedAt.IsZero(), ShouldBeFalse)
		})

		Convey("When a missing session is finished or answered", func() {
			_, err := s.FinishSession(ctx, model.SessionResult{SessionID: 9999})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = s.InsertSubmission(ctx, model.Submission{SessionID: 9999, QuestionID: ids[0], UserID: "p1"})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When several sessions finish", func() {
			s2, _ := s.CreateSession(ctx, "p1", model.ModePractice, ids[:1])
			s3, _ := s.CreateSession(ctx, "p2", model.ModeCustom, ids[:1])
			_, _ = s.InsertSessionResult(ctx, model.SessionResult{SessionID: sess.ID, TotalScore: 150})
			_, _ = s.InsertSessionResult(ctx, model.SessionResult{SessionID: s2.ID, TotalScore: 210})
			_, _ = s.InsertSessionResult(ctx, model.SessionResult{SessionID: s3.ID, TotalScore: 90})

			Convey("Then each user's best total is reported once", func() {
				best, err := s.BestSessionTotals(ctx)
				So(err, ShouldBeNil)
				So(best, ShouldResemble, []model.BestTotal{
					{UserID: "p1", SessionID: s2.ID, Total: 210},
					{UserID: "p2", SessionID: s3.ID, Total: 90},
				})
			})

			Convey("Then the history is newest first", func() {
				history, err := s.SessionsByUser(ctx, "p1")
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, 2)
				So(history[0].ID, ShouldEqual, s2.ID)
				So(history[0].Result.TotalScore, ShouldEqual, 210.0)
				So(history[1].ID, ShouldEqual, sess.ID)
			})
		})

		Convey("Then a missing session is not found", func() {
			_, err := s.SessionByID(ctx, 9999)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}
