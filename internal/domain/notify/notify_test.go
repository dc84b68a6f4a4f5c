package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/standings/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	name  string
	calls *[]string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnUpdate(_ context.Context, competitionID string, _ model.Snapshot, _ []model.Change) error {
	*r.calls = append(*r.calls, r.name+":"+competitionID)
	return nil
}

func TestNotifierOrder(t *testing.T) {
	Convey("Given three subscribed listeners", t, func() {
		var calls []string
		n := New()
		n.Subscribe(&recorder{name: "a", calls: &calls})
		tokenB := n.Subscribe(&recorder{name: "b", calls: &calls})
		n.Subscribe(&recorder{name: "c", calls: &calls})

		Convey("When notifying", func() {
			failed := n.Notify(context.Background(), "titanic", model.Snapshot{}, nil)

			Convey("Then listeners should run in subscription order", func() {
				So(failed, ShouldEqual, 0)
				So(calls, ShouldResemble, []string{"a:titanic", "b:titanic", "c:titanic"})
			})
		})

		Convey("When one listener is unsubscribed", func() {
			So(n.Unsubscribe(tokenB), ShouldBeTrue)
			So(n.Unsubscribe(tokenB), ShouldBeFalse)
			n.Notify(context.Background(), "x", model.Snapshot{}, nil)

			Convey("Then it should no longer be called", func() {
				So(n.Len(), ShouldEqual, 2)
				So(calls, ShouldResemble, []string{"a:x", "c:x"})
			})
		})
	})
}

func TestNotifierIsolation(t *testing.T) {
	Convey("Given a failing and a panicking listener between healthy ones", t, func() {
		var calls []string
		n := New()
		n.Subscribe(&recorder{name: "first", calls: &calls})
		n.Subscribe(ListenerFunc(func(context.Context, string, model.Snapshot, []model.Change) error {
			return errors.New("sink down")
		}))
		n.Subscribe(ListenerFunc(func(context.Context, string, model.Snapshot, []model.Change) error {
			panic("boom")
		}))
		n.Subscribe(&recorder{name: "last", calls: &calls})

		Convey("When notifying", func() {
			var failed int
			So(func() {
				failed = n.Notify(context.Background(), "c", model.Snapshot{}, []model.Change{{Kind: model.NewEntry}})
			}, ShouldNotPanic)

			Convey("Then both failures should be counted and healthy listeners still run", func() {
				So(failed, ShouldEqual, 2)
				So(calls, ShouldResemble, []string{"first:c", "last:c"})
			})
		})
	})
}

func TestDeliverWrapsPanics(t *testing.T) {
	Convey("Given a panicking listener", t, func() {
		err := deliver(context.Background(), ListenerFunc(func(context.Context, string, model.Snapshot, []model.Change) error {
			panic("kaput")
		}), "c", model.Snapshot{}, nil)

		So(errors.Is(err, ErrListenerPanic), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "kaput")
	})
}

func TestSubscribeNil(t *testing.T) {
	Convey("Given a nil listener", t, func() {
		n := New()
		So(n.Subscribe(nil), ShouldEqual, "")
		So(n.Len(), ShouldEqual, 0)
	})
}
