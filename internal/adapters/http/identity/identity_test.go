package identity

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

var idPattern = regexp.MustCompile(`^u_[0-9a-f]{12}$`)

func TestNewClientID(t *testing.T) {
	Convey("Given the id minter", t, func() {
		Convey("Then ids should be u_ plus twelve hex characters", func() {
			So(idPattern.MatchString(NewClientID()), ShouldBeTrue)
		})

		Convey("Then ids should not repeat", func() {
			seen := make(map[string]bool, 1000)
			for i := 0; i < 1000; i++ {
				id := NewClientID()
				So(seen[id], ShouldBeFalse)
				seen[id] = true
			}
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given a resolver with defaults", t, func() {
		r := NewResolver()

		Convey("When the caller presents a cookie", func() {
			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			req.AddCookie(&http.Cookie{Name: "cid", Value: "u_existing1234"})
			w := httptest.NewRecorder()

			id := r.Resolve(w, req)

			Convey("Then it should be returned unchanged without setting a cookie", func() {
				So(id, ShouldEqual, "u_existing1234")
				So(w.Header().Get("Set-Cookie"), ShouldEqual, "")
			})
		})

		Convey("When the caller has no cookie", func() {
			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			w := httptest.NewRecorder()

			id := r.Resolve(w, req)

			Convey("Then a fresh id should be minted and persisted", func() {
				So(idPattern.MatchString(id), ShouldBeTrue)
				cookie := w.Header().Get("Set-Cookie")
				So(cookie, ShouldStartWith, "cid="+id)
				So(cookie, ShouldContainSubstring, "Path=/")
				So(cookie, ShouldContainSubstring, "Max-Age=31536000")
				So(cookie, ShouldContainSubstring, "SameSite=Lax")
				So(cookie, ShouldContainSubstring, "Secure")
				So(cookie, ShouldContainSubstring, "HttpOnly")
			})

			Convey("And the next request carrying it should resolve to the same id", func() {
				res := w.Result()
				defer res.Body.Close()
				next := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
				for _, c := range res.Cookies() {
					next.AddCookie(c)
				}
				So(r.Resolve(httptest.NewRecorder(), next), ShouldEqual, id)
			})
		})

		Convey("When the cookie is empty", func() {
			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			req.Header.Set("Cookie", "cid=")
			w := httptest.NewRecorder()

			id := r.Resolve(w, req)

			Convey("Then it should be treated as absent", func() {
				So(idPattern.MatchString(id), ShouldBeTrue)
			})
		})
	})

	Convey("Given a resolver with custom options", t, func() {
		r := NewResolver(
			WithCookieName("visitor"),
			WithMaxAge(time.Hour),
			WithSecure(false),
			WithMinter(func() string { return "u_fixed" }),
		)
		w := httptest.NewRecorder()

		id := r.Resolve(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

		Convey("Then the options should shape the cookie", func() {
			cookie := w.Header().Get("Set-Cookie")
			So(id, ShouldEqual, "u_fixed")
			So(cookie, ShouldStartWith, "visitor=u_fixed")
			So(cookie, ShouldContainSubstring, "Max-Age=3600")
			So(strings.Contains(cookie, "Secure"), ShouldBeFalse)
		})
	})
}
