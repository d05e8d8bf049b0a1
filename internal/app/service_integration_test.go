package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	service "github.com/okian/elbow/internal/app"
	"github.com/okian/elbow/internal/config"
	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/okian/elbow/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// stepData writes a noiseless step function with an unused column.
func stepData(t *testing.T) string {
	var b strings.Builder
	b.WriteString("x,noise,label\n")
	for i := range 200 {
		x := float64(i%20) / 2
		y := 1.0
		if x >= 5 {
			y = 4
		}
		fmt.Fprintf(&b, "%g,%d,%g\n", x, i%7, y)
	}
	p := filepath.Join(t.TempDir(), "train.csv")
	if err := os.WriteFile(p, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service on the local backend", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		work := t.TempDir()
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(64),
			service.WithBackend(config.BackendLocal),
			service.WithModel("gbt", 0.3),
			service.WithDataset(stepData(t), "label", "x"),
			service.WithSampling(150, 0.25, 7),
			service.WithRetrain(true, "step"),
			service.WithHDFS(nil, "", "/remote"),
			service.WithDirs(work, t.TempDir()),
			service.WithInMemoryRegistryIndex(),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then both splits are published to local storage", func() {
			for _, name := range []string{"train.csv", "validation.csv"} {
				_, err := os.Stat(filepath.Join(work, "store", "remote", "data", name))
				So(err, ShouldBeNil)
			}
		})

		Convey("When a sweep runs synchronously", func() {
			rep, err := svc.Run(ctx, sweep.Range{Start: 1, Stop: 12})

			Convey("Then error falls with the stage count and a model is saved", func() {
				So(err, ShouldBeNil)
				So(rep.Result.Len(), ShouldEqual, 12)
				errs := rep.Result.Errors()
				So(errs[len(errs)-1], ShouldBeLessThan, errs[0])
				So(rep.Recommendation.Param, ShouldBeBetweenOrEqual, 1, 12)
				So(rep.Model, ShouldNotBeNil)
				So(rep.Model.URI, ShouldEqual, "models:/step/1")
			})
		})

		Convey("When a sweep is submitted over HTTP semantics", func() {
			acc, err := svc.Submit(ctx, types.SweepRequest{RequestID: "int-1", Start: 2, Stop: 10, Step: 2})
			So(err, ShouldBeNil)
			st := waitTerminal(ctx, svc, acc.SweepID)

			Convey("Then the run completes over every stepped value", func() {
				So(st.State, ShouldEqual, model.RunCompleted)
				So(st.Points, ShouldHaveLength, 5)
				So(st.Model, ShouldNotBeNil)
			})
		})
	})

	Convey("Given the local backend asked for a random forest", t, func() {
		svc := service.New(
			service.WithModel("rf", 0.1),
			service.WithDataset(stepData(t), "label", "x"),
			service.WithDirs(t.TempDir(), t.TempDir()),
			service.WithInMemoryRegistryIndex(),
		)

		Convey("Then Start refuses it", func() {
			err := svc.Start(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "local backend")
		})
	})

	Convey("Given a missing dataset", t, func() {
		svc := service.New(
			service.WithDataset(filepath.Join(t.TempDir(), "none.csv"), "label", "x"),
			service.WithDirs(t.TempDir(), t.TempDir()),
			service.WithInMemoryRegistryIndex(),
		)

		Convey("Then Start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}
