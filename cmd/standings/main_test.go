package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestBuild(t *testing.T) {
	convey.Convey("Given a config with two file competitions", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		convey.So(os.WriteFile(filepath.Join(dir, "a.csv"), []byte("teamName,score\nteamX,0.9\nteamY,0.8\n"), 0o600), convey.ShouldBeNil)
		convey.So(os.WriteFile(filepath.Join(dir, "b.csv"), []byte("teamName,score\nteamY,0.9\nteamX,0.8\n"), 0o600), convey.ShouldBeNil)

		cfg := config.New(ctx)
		cfg.DataDir = dir
		cfg.ScoringMode = "linear"
		cfg.Competitions = map[string]float64{"file:a": 1.0, "file:b": 0.5}

		a, err := build(ctx, cfg, logger.Discard())
		convey.So(err, convey.ShouldBeNil)
		defer a.hub.Close()

		convey.Convey("When one cycle has run", func() {
			a.svc.RunOnce(ctx)
			rec := httptest.NewRecorder()
			a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

			convey.Convey("Then the leaderboard should be served end to end", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				var body struct {
					Data []struct {
						Rank  int     `json:"rank"`
						Team  string  `json:"team"`
						Total float64 `json:"total"`
					} `json:"data"`
				}
				convey.So(json.Unmarshal(rec.Body.Bytes(), &body), convey.ShouldBeNil)
				convey.So(body.Data, convey.ShouldHaveLength, 2)
				convey.So(body.Data[0].Team, convey.ShouldEqual, "teamX")
				convey.So(body.Data[0].Total, convey.ShouldAlmostEqual, 44.5)
				convey.So(body.Data[1].Total, convey.ShouldAlmostEqual, 44.0)
			})

			convey.Convey("Then stats should list the built-in listeners", func() {
				stats := a.svc.GetStats(ctx)
				convey.So(stats["listeners"], convey.ShouldEqual, 3)
				convey.So(stats["cached"], convey.ShouldEqual, 2)
			})
		})
	})

	convey.Convey("Given an unknown scoring mode", t, func() {
		cfg := config.New(context.Background())
		cfg.ScoringMode = "quadratic"

		_, err := build(context.Background(), cfg, logger.Discard())
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("System metrics should update without panicking", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
