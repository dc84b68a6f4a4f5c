package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDecodeLeaderboard(t *testing.T) {
	Convey("Given the response shapes of the leaderboard API", t, func() {
		Convey("When entries are wrapped in submissions", func() {
			rows, err := DecodeLeaderboard([]byte(`{"submissions":[
				{"teamId":101,"teamName":"Alpha","submissionDate":"2024-01-02T03:04:05Z","score":"0.95"},
				{"teamId":"102","teamName":"Beta","score":0.9}
			]}`))

			Convey("Then ids and scores of either type should decode", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].TeamID, ShouldEqual, "101")
				So(rows[0].RawScore, ShouldEqual, 0.95)
				So(rows[0].SubmissionDate, ShouldNotBeNil)
				So(rows[1].TeamID, ShouldEqual, "102")
				So(rows[1].RawScore, ShouldEqual, 0.9)
			})
		})

		Convey("When entries use the entries key", func() {
			rows, err := DecodeLeaderboard([]byte(`{"entries":[{"teamName":"Alpha","score":1}]}`))
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].TeamID, ShouldEqual, SyntheticTeamID("Alpha"))
		})

		Convey("When the body is a bare array", func() {
			rows, err := DecodeLeaderboard([]byte(` [{"teamId":1,"teamName":"A","score":"n/a"},{"teamId":2,"teamName":"B","score":"2"}] `))

			Convey("Then rows with unusable scores should be dropped", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].TeamName, ShouldEqual, "B")
			})
		})

		Convey("When scores are NaN or infinite", func() {
			rows, err := DecodeLeaderboard([]byte(`{"submissions":[{"teamId":1,"teamName":"A","score":"NaN"},{"teamId":2,"teamName":"B","score":"+Inf"},{"teamId":3,"teamName":"C","score":0.7}]}`))

			Convey("Then only finite rows should remain", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].TeamName, ShouldEqual, "C")
				So(rows[0].RawScore, ShouldEqual, 0.7)
			})
		})

		Convey("When the object has neither key", func() {
			_, err := DecodeLeaderboard([]byte(`{"teams":[]}`))
			So(errors.Is(err, ErrParse), ShouldBeTrue)
		})

		Convey("When the body is not JSON", func() {
			_, err := DecodeLeaderboard([]byte(`<html>`))
			So(errors.Is(err, ErrParse), ShouldBeTrue)
		})
	})
}

func TestKaggleClient(t *testing.T) {
	Convey("Given a leaderboard API server", t, func() {
		var gotPath, gotUser, gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotUser, gotKey, _ = r.BasicAuth()
			if r.URL.Path == "/competitions/broken/leaderboard/view" {
				http.Error(w, "nope", http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"submissions":[{"teamId":1,"teamName":"Alpha","score":0.5}]}`))
		}))
		defer srv.Close()

		c := NewKaggleClient("user", "secret",
			WithBaseURL(srv.URL+"/"),
			WithTimeout(2*time.Second),
			WithRateLimit(100, 10),
		)

		Convey("When loading a competition", func() {
			rows, err := c.Load(context.Background(), "titanic")

			Convey("Then it should call the view endpoint with basic auth", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(gotPath, ShouldEqual, "/competitions/titanic/leaderboard/view")
				So(gotUser, ShouldEqual, "user")
				So(gotKey, ShouldEqual, "secret")
			})
		})

		Convey("When the server answers with an error status", func() {
			_, err := c.Load(context.Background(), "broken")

			Convey("Then a fetch error should be returned", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := c.Load(ctx, "titanic")
			So(errors.Is(err, ErrFetch), ShouldBeTrue)
		})
	})
}
