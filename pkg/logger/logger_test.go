package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a logger writing JSON to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf), WithFormat("json")), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Named("sweep").Info(ctx, "trial done", Int("param", 3), Float64("error", 0.5))
			out := buf.String()

			Convey("Then the fields, component and source are present", func() {
				So(out, ShouldContainSubstring, `"msg":"trial done"`)
				So(out, ShouldContainSubstring, `"param":3`)
				So(out, ShouldContainSubstring, `"component":"sweep"`)
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When names are nested", func() {
			Named("app").Named("worker").Warn(ctx, "slow", Error(errors.New("boom")))
			So(buf.String(), ShouldContainSubstring, `"component":"app.worker"`)
		})

		Convey("When the level is raised to error", func() {
			So(SetLevelString("ERROR"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Error(ctx, "shown")

			Convey("Then lower levels are dropped", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
				So(buf.String(), ShouldContainSubstring, "shown")
			})
			So(SetLevelString("info"), ShouldBeNil)
		})

		Convey("When an unknown level is given", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})

	Convey("Given an unknown format", t, func() {
		So(Init(WithFormat("xml")), ShouldNotBeNil)
	})

	Convey("Given a nop logger", t, func() {
		Nop().Error(context.Background(), "dropped")
		So(Sync(), ShouldBeNil)
	})
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}
	Get().Info(context.Background(), "hello", String("k", "v"))
	if !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}
