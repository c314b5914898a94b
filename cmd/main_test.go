package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/clickrank/internal/config"
	"github.com/okian/clickrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testConfig(t *testing.T) (*config.Config, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.New()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.CookieSecure = false
	return cfg, mr
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestBuild(t *testing.T) {
	convey.Convey("Given an application built under a base path", t, func() {
		cfg, mr := testConfig(t)
		cfg.BasePath = "/api/"
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		app, err := build(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		convey.So(app.svc.Start(ctx), convey.ShouldBeNil)
		go app.dispatcher.Run(ctx)
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			app.shutdown(sctx)
		}()

		convey.Convey("Then business routes live under the base path", func() {
			w := serve(app.handler, http.MethodPost, "/api/increment")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Set-Cookie"), convey.ShouldStartWith, "cid=")

			var body map[string]int64
			convey.So(json.Unmarshal(w.Body.Bytes(), &body), convey.ShouldBeNil)
			convey.So(body["count"], convey.ShouldEqual, int64(1))

			v, _ := mr.Get("global_count")
			convey.So(v, convey.ShouldEqual, "1")
		})

		convey.Convey("And the API root answers at the bare base path", func() {
			convey.So(serve(app.handler, http.MethodGet, "/api").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(app.handler, http.MethodGet, "/api/").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And operational routes live outside it", func() {
			convey.So(serve(app.handler, http.MethodGet, "/healthz").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(app.handler, http.MethodGet, "/metrics").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(app.handler, http.MethodGet, "/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(app.handler, http.MethodGet, "/api-docs").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And unknown routes are JSON 404s", func() {
			w := serve(app.handler, http.MethodGet, "/api/nope")
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"code":"not_found"`)
		})

		convey.Convey("And the health check follows the store", func() {
			mr.Close()
			convey.So(serve(app.handler, http.MethodGet, "/healthz").Code, convey.ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	convey.Convey("Given a malformed store URL", t, func() {
		cfg := config.New()
		cfg.RedisURL = "http://localhost:6379"

		convey.Convey("Then build fails", func() {
			_, err := build(context.Background(), cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a configuration listening on a free port", t, func() {
		cfg, _ := testConfig(t)
		cfg.Addr = "127.0.0.1:0"
		cfg.LogLevel = "not-a-level"

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				convey.So(run(ctx, cfg), convey.ShouldBeNil)
				convey.So(logger.Level(), convey.ShouldEqual, "info")
			})
		})
	})

	convey.Convey("Given an address that cannot be bound", t, func() {
		cfg, _ := testConfig(t)
		cfg.Addr = "256.0.0.1:99999"

		convey.Convey("Then run returns the listen error", func() {
			err := run(context.Background(), cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestConfigFromEnvironment(t *testing.T) {
	convey.Convey("Given prefixed and legacy environment variables", t, func() {
		t.Setenv("CLICKRANK_ENV_FILE", "does-not-exist.env")
		t.Setenv("PORT", "8080")
		t.Setenv("CLICKRANK_BASE_PATH", "/api")
		t.Setenv("CLICKRANK_LEADERBOARD_LIMIT", "5")

		convey.Convey("Then the loaded configuration reflects them", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.BasePath, convey.ShouldEqual, "/api")
			convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 5)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		convey.Convey("Then a system metrics update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then both updaters stop with their context", func() {
			cfg, _ := testConfig(t)
			app, err := build(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, app.svc)
				close(done)
			}()
			cancel()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("metrics updaters did not stop")
			}
			app.svc.Stop()
		})
	})
}

func TestOpenAPIDocumentsRoutes(t *testing.T) {
	convey.Convey("Given the embedded API document", t, func() {
		cfg, _ := testConfig(t)
		app, err := build(context.Background(), cfg)
		convey.So(err, convey.ShouldBeNil)
		defer app.svc.Stop()

		doc := serve(app.handler, http.MethodGet, "/openapi.yaml").Body.String()

		convey.Convey("Then every served API route is documented", func() {
			for _, p := range []string{"/ping", "/me", "/name", "/count", "/increment", "/leaderboard",
				"/admin/stats", "/admin/set-count", "/admin/add-count", "/admin/user-delta",
				"/admin/ban", "/admin/admin", "/admin/reset", "/events", "/ws", "/healthz"} {
				convey.So(strings.Contains(doc, "  "+p+":"), convey.ShouldBeTrue)
			}
		})
	})
}
