package model_test

import (
	"errors"
	"testing"

	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/smartystreets/goconvey/convey"
)

func TestRunState(t *testing.T) {
	convey.Convey("Given the run states", t, func() {
		convey.So(model.RunPending.Terminal(), convey.ShouldBeFalse)
		convey.So(model.RunRunning.Terminal(), convey.ShouldBeFalse)
		convey.So(model.RunCompleted.Terminal(), convey.ShouldBeTrue)
		convey.So(model.RunFailed.Terminal(), convey.ShouldBeTrue)
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a run over [1, 5]", t, func() {
		r := &model.Run{
			ID:     "run-1",
			Range:  sweep.Range{Start: 1, Stop: 5},
			Points: []sweep.Point{{Param: 1, Error: 10}, {Param: 2, Error: 8}},
			Failed: 1,
			Recommendation: &sweep.Recommendation{
				Param: 2, Distances: []float64{0, 1},
			},
			Model: &model.ModelHandle{ID: "m"},
		}

		convey.Convey("Then progress counts successes and failures", func() {
			convey.So(r.Total(), convey.ShouldEqual, 5)
			convey.So(r.Done(), convey.ShouldEqual, 3)
		})

		convey.Convey("When it is cloned and the clone is modified", func() {
			c := r.Clone()
			c.Points[0].Error = 99
			c.Recommendation.Distances[0] = 99
			c.Model.ID = "other"

			convey.Convey("Then the original is untouched", func() {
				convey.So(r.Points[0].Error, convey.ShouldEqual, 10)
				convey.So(r.Recommendation.Distances[0], convey.ShouldEqual, 0)
				convey.So(r.Model.ID, convey.ShouldEqual, "m")
			})
		})
	})
}

func TestTrialResult(t *testing.T) {
	convey.Convey("Given a trial result", t, func() {
		res := model.TrialResult{SweepID: "s", Param: 7, Error: 0.25}

		convey.Convey("Then it converts to a sweep point", func() {
			convey.So(res.Point(), convey.ShouldResemble, sweep.Point{Param: 7, Error: 0.25})
		})

		convey.Convey("Then a failed result keeps its cause", func() {
			cause := errors.New("boom")
			res.Err = cause
			convey.So(errors.Is(res.Err, cause), convey.ShouldBeTrue)
		})
	})
}
