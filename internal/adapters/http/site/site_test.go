package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a router with the site registered", t, func() {
		r := chi.NewRouter()
		Register(context.Background(), r)

		serve := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return w
		}

		Convey("Then / serves the landing page", func() {
			w := serve("/")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
			So(w.Body.String(), ShouldContainSubstring, "/api-docs")
		})

		Convey("Then the stylesheet is served with caching", func() {
			w := serve("/assets/site.css")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/css")
			So(w.Header().Get("Cache-Control"), ShouldContainSubstring, "max-age")
		})

		Convey("Then missing assets are 404s", func() {
			So(serve("/assets/missing.js").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then other paths are left to the router", func() {
			So(serve("/elsewhere").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a nil router", t, func() {
		So(func() { Register(context.Background(), nil) }, ShouldPanic)
	})
}
