package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseCSV(t *testing.T) {
	Convey("Given a leaderboard CSV", t, func() {
		Convey("When every column is present", func() {
			in := "teamId,teamName,submissionDate,score\n" +
				"7,Alpha,2024-03-01 10:00:00,0.91\n" +
				"9,Beta,2024-03-02,0.88\n"
			rows, err := ParseCSV(strings.NewReader(in))

			Convey("Then rows should keep file order and raw scores", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].TeamID, ShouldEqual, "7")
				So(rows[0].TeamName, ShouldEqual, "Alpha")
				So(rows[0].RawScore, ShouldEqual, 0.91)
				So(rows[0].Score, ShouldEqual, 0)
				So(rows[0].SubmissionDate, ShouldNotBeNil)
				So(rows[0].SubmissionDate.Hour(), ShouldEqual, 10)
				So(rows[1].SubmissionDate.Day(), ShouldEqual, 2)
			})
		})

		Convey("When headers differ in case and teamId is missing", func() {
			in := "\ufeffTEAMNAME,Score\nAlpha,1\nBeta,2\n"
			rows, err := ParseCSV(strings.NewReader(in))

			Convey("Then ids should be synthesized from names", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].TeamID, ShouldEqual, SyntheticTeamID("Alpha"))
				So(rows[1].TeamID, ShouldNotEqual, rows[0].TeamID)
				So(rows[0].SubmissionDate, ShouldBeNil)
			})
		})

		Convey("When some scores do not parse", func() {
			in := "teamName,score\nAlpha,abc\nBeta,\n,3\nGamma,0.5\n"
			rows, err := ParseCSV(strings.NewReader(in))

			Convey("Then those rows should be dropped", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].TeamName, ShouldEqual, "Gamma")
			})
		})

		Convey("When scores are not finite", func() {
			in := "teamName,score\nalpha,0.9\nbeta,NaN\ngamma,Inf\ndelta,-Infinity\n"
			rows, err := ParseCSV(strings.NewReader(in))

			Convey("Then those rows should be dropped", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].TeamName, ShouldEqual, "alpha")
			})
		})

		Convey("When a required column is missing", func() {
			_, err := ParseCSV(strings.NewReader("teamName,points\nAlpha,1\n"))

			Convey("Then a parse error should be returned", func() {
				So(errors.Is(err, ErrParse), ShouldBeTrue)
			})
		})

		Convey("When the file is empty", func() {
			_, err := ParseCSV(strings.NewReader(""))

			Convey("Then a parse error should be returned", func() {
				So(errors.Is(err, ErrParse), ShouldBeTrue)
			})
		})
	})
}

func TestCSVLoader(t *testing.T) {
	Convey("Given a data directory", t, func() {
		dir := t.TempDir()
		err := os.WriteFile(filepath.Join(dir, "local.csv"), []byte("teamName,score\nAlpha,1\n"), 0o600)
		So(err, ShouldBeNil)
		l := NewCSVLoader(dir)

		Convey("When loading an existing competition", func() {
			rows, err := l.Load(context.Background(), "local")

			Convey("Then its rows should be returned", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
			})
		})

		Convey("When the file does not exist", func() {
			_, err := l.Load(context.Background(), "missing")

			Convey("Then a fetch error should be returned", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
			})
		})

		Convey("When the name tries to escape the directory", func() {
			So(l.Path("../../etc/passwd"), ShouldEqual, filepath.Join(dir, "passwd.csv"))
		})
	})
}
