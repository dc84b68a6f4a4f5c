package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var fetched = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func sample() (model.Snapshot, []model.Change) {
	snap := model.Snapshot{
		CompetitionID: "titanic",
		FetchedAt:     fetched,
		Rows: []model.Row{
			{TeamID: "1", TeamName: "Alpha", Score: 36, RawScore: 0.9},
			{TeamID: "2", TeamName: "Beta", Score: 29.5, RawScore: 0.8},
		},
	}
	changes := []model.Change{
		{Kind: model.NewEntry, TeamID: "1", TeamName: "Alpha", OldPosition: -1, NewPosition: 0, NewScore: 36},
		{Kind: model.PositionChange, TeamID: "2", TeamName: "Beta", OldPosition: 0, NewPosition: 1, OldScore: 36, NewScore: 29.5},
	}
	return snap, changes
}

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestRedisMirror(t *testing.T) {
	Convey("Given a Redis mirror with a key prefix", t, func() {
		kv := &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
		m := NewRedisMirror(kv, WithKeyPrefix("standings:"), WithTTL(time.Hour))
		snap, changes := sample()

		Convey("When an update is delivered", func() {
			err := m.OnUpdate(context.Background(), "titanic", snap, changes)

			Convey("Then the snapshot should be stored with 1-based positions", func() {
				So(err, ShouldBeNil)
				raw, ok := kv.values["standings:snapshot:titanic"]
				So(ok, ShouldBeTrue)
				So(kv.ttls["standings:snapshot:titanic"], ShouldEqual, time.Hour)

				var doc snapshotJSON
				So(json.Unmarshal([]byte(raw), &doc), ShouldBeNil)
				So(doc.Rows, ShouldHaveLength, 2)
				So(doc.Rows[0].Position, ShouldEqual, 1)
				So(doc.Rows[1].TeamName, ShouldEqual, "Beta")
			})

			Convey("And the change batch should be stored next to it", func() {
				var events []ChangeEvent
				So(json.Unmarshal([]byte(kv.values["standings:changes:titanic"]), &events), ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[1].Kind, ShouldEqual, model.PositionChange)
				So(events[1].Competition, ShouldEqual, "titanic")
			})
		})

		Convey("When Redis fails", func() {
			kv.err = errors.New("connection refused")
			err := m.OnUpdate(context.Background(), "titanic", snap, changes)

			Convey("Then a publish error should be returned", func() {
				So(errors.Is(err, ErrPublish), ShouldBeTrue)
			})
		})

		Convey("Then the sink should be named", func() {
			So(m.Name(), ShouldEqual, SinkRedis)
		})
	})
}

func TestKafkaPublisher(t *testing.T) {
	Convey("Given a Kafka publisher", t, func() {
		w := &fakeWriter{}
		p := NewKafkaPublisher(w)
		snap, changes := sample()

		Convey("When changes are delivered", func() {
			err := p.OnUpdate(context.Background(), "titanic", snap, changes)

			Convey("Then one message per change should be keyed by competition", func() {
				So(err, ShouldBeNil)
				So(w.msgs, ShouldHaveLength, 2)
				So(string(w.msgs[0].Key), ShouldEqual, "titanic")
				So(w.msgs[0].Time, ShouldEqual, fetched)

				var e ChangeEvent
				So(json.Unmarshal(w.msgs[0].Value, &e), ShouldBeNil)
				So(e.Kind, ShouldEqual, model.NewEntry)
				So(e.TeamName, ShouldEqual, "Alpha")
			})
		})

		Convey("When there are no changes", func() {
			So(p.OnUpdate(context.Background(), "titanic", snap, nil), ShouldBeNil)
			So(w.msgs, ShouldBeEmpty)
		})

		Convey("When the broker rejects the batch", func() {
			w.err = errors.New("leader not available")
			err := p.OnUpdate(context.Background(), "titanic", snap, changes)
			So(errors.Is(err, ErrPublish), ShouldBeTrue)
		})

		Convey("When closed", func() {
			So(p.Close(), ShouldBeNil)
			So(w.closed, ShouldBeTrue)
		})
	})
}

func TestLogListener(t *testing.T) {
	Convey("Given a log listener writing JSON", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithFormat(logger.FormatJSON), logger.WithOutput(&buf)), ShouldBeNil)
		l := NewLogListener(WithLogger(logger.Get()))
		snap, changes := sample()

		Convey("When changes are delivered", func() {
			So(l.OnUpdate(context.Background(), "titanic", snap, changes), ShouldBeNil)

			Convey("Then one line per change should be logged", func() {
				lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
				So(lines, ShouldHaveLength, 2)
				So(lines[0], ShouldContainSubstring, `"kind":"new_entry"`)
				So(lines[1], ShouldContainSubstring, `"to":2`)
			})
		})
	})
}

func TestMetricsListener(t *testing.T) {
	Convey("The metrics listener should accept any update", t, func() {
		snap, changes := sample()
		l := NewMetricsListener()
		So(l.Name(), ShouldEqual, SinkMetrics)
		So(l.OnUpdate(context.Background(), "titanic", snap, changes), ShouldBeNil)
	})
}
