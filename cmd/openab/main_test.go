package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/openab/internal/adapters/http/api"
	"github.com/okian/openab/internal/config"
	"github.com/okian/openab/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestBuild(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When building the handler", func() {
			h, svc, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then the A/B page is served with a request id", func() {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest("GET", "/open-ab", nil))

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get(api.HeaderVariant), convey.ShouldBeIn,
					[]string{"variationA.html", "variationB.html", "variationC.html"})
				convey.So(w.Header().Get(api.HeaderRequestID), convey.ShouldNotBeEmpty)
				convey.So(w.Result().Cookies(), convey.ShouldBeEmpty)
			})

			convey.Convey("And the supporting routes are registered", func() {
				for _, path := range []string{"/", "/experiment", "/stats", "/healthz", "/api-docs", "/openapi.yaml"} {
					w := httptest.NewRecorder()
					h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})
		})

		convey.Convey("When persistence is enabled on a custom route", func() {
			cfg.Route = "/landing"
			cfg.PersistAssignment = true
			h, svc, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer svc.Stop()

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", "/landing", nil))

			convey.Convey("Then the marker cookie is set", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				cookies := w.Result().Cookies()
				convey.So(cookies, convey.ShouldHaveLength, 1)
				convey.So(cookies[0].Name, convey.ShouldEqual, config.DefaultCookieName)
			})
		})
	})

	convey.Convey("Given a variant without a template", t, func() {
		cfg := config.New()
		cfg.Experiment = config.Experiment{Variants: []config.Variant{{Name: "missing.html", Weight: 1}}}

		convey.Convey("Then build fails before serving", func() {
			_, _, err := build(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "missing.html")
		})
	})

	convey.Convey("Given routes that collide with built-in endpoints or are not literal", t, func() {
		convey.Convey("Then build refuses them without panicking", func() {
			for _, route := range []string{"/stats", "/healthz", "/experiment", "/api-docs", "/openapi.yaml", "/open-ab/{x"} {
				cfg := config.New()
				cfg.Route = route
				var err error
				convey.So(func() { _, _, err = build(context.Background(), cfg, logger.Nop()) }, convey.ShouldNotPanic)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})
	})

	convey.Convey("Given an unknown marker policy", t, func() {
		cfg := config.New()
		cfg.MarkerPolicy = "sometimes"

		convey.Convey("Then build fails", func() {
			_, _, err := build(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
