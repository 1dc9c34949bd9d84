package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/foursigma/foursigma/internal/domain/model"
)

func TestPasswords(t *testing.T) {
	Convey("Given a hashed password", t, func() {
		hash, err := HashPassword("hunter22")
		So(err, ShouldBeNil)
		So(hash, ShouldNotEqual, "hunter22")

		Convey("Then the right password matches", func() {
			So(CheckPassword(hash, "hunter22"), ShouldBeNil)
		})

		Convey("Then a wrong password does not", func() {
			So(errors.Is(CheckPassword(hash, "hunter23"), ErrPasswordMismatch), ShouldBeTrue)
		})

		Convey("Then an account without a hash never matches", func() {
			So(errors.Is(CheckPassword("", ""), ErrPasswordMismatch), ShouldBeTrue)
		})
	})
}

func TestTokens(t *testing.T) {
	user := model.User{ID: "user-1", Email: "ada@example.com", Username: "ada", Provider: model.ProviderEmail}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	Convey("Given a token issuer", t, func() {
		tokens := NewTokens("secret", time.Hour, WithTokenClock(clock))

		Convey("When a token is issued", func() {
			raw, expires, err := tokens.Issue(user)
			So(err, ShouldBeNil)
			So(expires, ShouldEqual, now.Add(time.Hour))

			Convey("Then it parses back to the same identity", func() {
				claims, err := tokens.Parse(raw)
				So(err, ShouldBeNil)
				So(claims.UserID(), ShouldEqual, "user-1")
				So(claims.Email, ShouldEqual, "ada@example.com")
				So(claims.Username, ShouldEqual, "ada")
				So(claims.Provider, ShouldEqual, model.ProviderEmail)
				So(claims.Issuer, ShouldEqual, "foursigma")
			})

			Convey("Then it is rejected after expiry", func() {
				later := NewTokens("secret", time.Hour, WithTokenClock(func() time.Time { return now.Add(2 * time.Hour) }))
				_, err := later.Parse(raw)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})

			Convey("Then another secret rejects it", func() {
				_, err := NewTokens("other", time.Hour, WithTokenClock(clock)).Parse(raw)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})

			Convey("Then another issuer rejects it", func() {
				_, err := NewTokens("secret", time.Hour, WithTokenClock(clock), WithIssuer("elsewhere")).Parse(raw)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When a token uses a different algorithm", func() {
			claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user-1", Issuer: "foursigma", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}}
			raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
			So(err, ShouldBeNil)

			Convey("Then it is rejected", func() {
				_, err := tokens.Parse(raw)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When the token is garbage", func() {
			_, err := tokens.Parse("not.a.token")
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given a protected handler", t, func() {
		tokens := NewTokens("secret", time.Hour)
		var seen string
		handler := Middleware(tokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if ok {
				seen = claims.UserID()
			}
			w.WriteHeader(http.StatusNoContent)
		}))

		serve := func(header string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}

		Convey("Then a request without a token is unauthorized", func() {
			rec := serve("")
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(rec.Body.String(), ShouldContainSubstring, `"code":"unauthorized"`)
		})

		Convey("Then a malformed header is unauthorized", func() {
			So(serve("Token abc").Code, ShouldEqual, http.StatusUnauthorized)
			So(serve("Bearer ").Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then an invalid token is unauthorized", func() {
			rec := serve("Bearer nope")
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(strings.Contains(rec.Body.String(), "invalid token"), ShouldBeTrue)
		})

		Convey("Then a valid token reaches the handler with its claims", func() {
			raw, _, err := tokens.Issue(model.User{ID: "user-9"})
			So(err, ShouldBeNil)
			rec := serve("bearer " + raw)
			So(rec.Code, ShouldEqual, http.StatusNoContent)
			So(seen, ShouldEqual, "user-9")
		})
	})

	Convey("Given a custom error writer", t, func() {
		var got error
		handler := Middleware(NewTokens("s", time.Hour), func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		})(http.NotFoundHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		So(rec.Code, ShouldEqual, http.StatusTeapot)
		So(errors.Is(got, ErrMissingToken), ShouldBeTrue)
	})
}
