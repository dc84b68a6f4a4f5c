package source

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/standings/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRouter(t *testing.T) {
	Convey("Given a router with both loaders", t, func() {
		file := LoaderFunc(func(context.Context, string) ([]model.Row, error) { return nil, nil })
		api := LoaderFunc(func(context.Context, string) ([]model.Row, error) { return nil, nil })
		r := NewRouter("", file, api)

		Convey("Then prefixed identifiers should route to files", func() {
			kind, name, l, err := r.Route("file:local")
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, KindFile)
			So(name, ShouldEqual, "local")
			So(l, ShouldNotBeNil)
		})

		Convey("Then other identifiers should route to the API", func() {
			kind, name, _, err := r.Route("titanic")
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, KindAPI)
			So(name, ShouldEqual, "titanic")
		})

		Convey("Then a bare prefix should be rejected", func() {
			_, _, _, err := r.Route("file:")
			So(errors.Is(err, ErrUnknownSource), ShouldBeTrue)
		})
	})

	Convey("Given a router without an API loader", t, func() {
		r := NewRouter("csv/", nil, nil)

		Convey("Then API identifiers should be unknown", func() {
			So(r.Kind("csv/x"), ShouldEqual, KindFile)
			_, _, _, err := r.Route("titanic")
			So(errors.Is(err, ErrUnknownSource), ShouldBeTrue)
		})
	})
}

func TestSyntheticTeamID(t *testing.T) {
	Convey("Synthetic ids should be stable and distinct", t, func() {
		So(SyntheticTeamID("Alpha"), ShouldEqual, SyntheticTeamID("Alpha"))
		So(SyntheticTeamID("Alpha"), ShouldNotEqual, SyntheticTeamID("alpha"))
		So(SyntheticTeamID("Alpha"), ShouldHaveLength, 36)
	})
}
