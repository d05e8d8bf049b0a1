package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/okian/elbow/internal/adapters/http/api"
	"github.com/okian/elbow/internal/adapters/mq/queue"
	"github.com/okian/elbow/internal/adapters/registry"
	"github.com/okian/elbow/internal/adapters/repository"
	"github.com/okian/elbow/internal/domain/elbow"
	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	submitted []types.SweepRequest
	submitErr error
	sweeps    map[string]types.SweepStatus
	models    []types.Model
	modelsErr error
}

func (m *mockDeps) Submit(_ context.Context, req types.SweepRequest) (types.SweepAccepted, error) {
	if m.submitErr != nil {
		return types.SweepAccepted{}, m.submitErr
	}
	for _, prev := range m.submitted {
		if prev.RequestID == req.RequestID {
			return types.SweepAccepted{SweepID: "sweep-" + prev.RequestID, Duplicate: true}, nil
		}
	}
	m.submitted = append(m.submitted, req)
	return types.SweepAccepted{SweepID: "sweep-" + req.RequestID}, nil
}

func (m *mockDeps) Sweep(_ context.Context, id string) (types.SweepStatus, error) {
	st, ok := m.sweeps[id]
	if !ok {
		return types.SweepStatus{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return st, nil
}

func (m *mockDeps) Select(params []int, errs []float64) (types.ElbowResponse, error) {
	a, err := elbow.Analyze(params, errs)
	if err != nil {
		return types.ElbowResponse{}, err
	}
	return types.ElbowResponse{Param: a.Param, Index: a.Index, Slope: a.Slope, Intercept: a.Intercept, Distances: a.Distances}, nil
}

func (m *mockDeps) Models(context.Context) ([]types.Model, error) {
	return m.models, m.modelsErr
}

func (m *mockDeps) Model(_ context.Context, id string) (types.Model, error) {
	for _, mod := range m.models {
		if mod.ID == id {
			return mod, nil
		}
	}
	return types.Model{}, fmt.Errorf("%w: %s", registry.ErrNotFound, id)
}

func (m *mockDeps) GetStats() types.Stats {
	return types.Stats{QueueCapacity: 10, Workers: 2, Backend: "local"}
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestServer(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{
			sweeps: map[string]types.SweepStatus{
				"s1": {ID: "s1", State: model.RunCompleted, Total: 3, Completed: 3},
			},
			models: []types.Model{{ID: "m1", Name: "elbow-gbt", Version: "1"}},
		}
		h, err := api.NewServer(deps).Handler()
		So(err, ShouldBeNil)

		Convey("When probing health", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("When scraping metrics", func() {
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "elbow_")
		})

		Convey("When reading stats", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			st := decode[types.Stats](w)
			So(st.Workers, ShouldEqual, 2)
			So(st.Backend, ShouldEqual, "local")
		})

		Convey("When submitting a sweep", func() {
			body := `{"request_id":"r1","start":1,"stop":10}`
			w := do(h, http.MethodPost, "/sweeps", body)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				ack := decode[types.SweepAccepted](w)
				So(ack.SweepID, ShouldEqual, "sweep-r1")
				So(ack.Duplicate, ShouldBeFalse)
			})

			Convey("And resubmitting it reports a duplicate", func() {
				w := do(h, http.MethodPost, "/sweeps", body)
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(decode[types.SweepAccepted](w).Duplicate, ShouldBeTrue)
			})
		})

		Convey("When submitting malformed sweeps", func() {
			for _, body := range []string{
				``,
				`not json`,
				`{"start":1,"stop":10}`,
				`{"request_id":"r","start":5,"stop":5}`,
				`{"request_id":"r","start":1,"stop":5,"extra":true}`,
			} {
				w := do(h, http.MethodPost, "/sweeps", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[types.ErrorResponse](w).Code, ShouldEqual, "bad_request")
			}
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("enqueue: %w", queue.ErrFull)
			w := do(h, http.MethodPost, "/sweeps", `{"request_id":"r2","start":1,"stop":3}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode[types.ErrorResponse](w).Code, ShouldEqual, "backpressure")
		})

		Convey("When the service is shutting down", func() {
			deps.submitErr = queue.ErrClosed
			w := do(h, http.MethodPost, "/sweeps", `{"request_id":"r2","start":1,"stop":3}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When an unexpected error occurs", func() {
			deps.submitErr = errors.New("disk on fire")
			w := do(h, http.MethodPost, "/sweeps", `{"request_id":"r2","start":1,"stop":3}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When fetching sweeps", func() {
			w := do(h, http.MethodGet, "/sweeps/s1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[types.SweepStatus](w).State, ShouldEqual, model.RunCompleted)

			w = do(h, http.MethodGet, "/sweeps/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode[types.ErrorResponse](w).Code, ShouldEqual, "not_found")
		})

		Convey("When selecting an elbow directly", func() {
			w := do(h, http.MethodPost, "/elbow", `{"params":[1,2,3,4,5],"errors":[10,8,3,7,9]}`)

			Convey("Then the elbow and its line are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				resp := decode[types.ElbowResponse](w)
				So(resp.Param, ShouldEqual, 3)
				So(resp.Index, ShouldEqual, 2)
				So(resp.Slope, ShouldAlmostEqual, -0.25)
				So(resp.Distances, ShouldHaveLength, 5)
			})
		})

		Convey("When the sweep is too short", func() {
			w := do(h, http.MethodPost, "/elbow", `{"params":[1],"errors":[10]}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decode[types.ErrorResponse](w).Code, ShouldEqual, "invalid_sweep")
		})

		Convey("When the sweep is degenerate", func() {
			w := do(h, http.MethodPost, "/elbow", `{"params":[4,4],"errors":[1,2]}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decode[types.ErrorResponse](w).Code, ShouldEqual, "degenerate_sweep")
		})

		Convey("When the elbow body is missing fields", func() {
			w := do(h, http.MethodPost, "/elbow", `{"params":[1,2]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When listing and fetching models", func() {
			w := do(h, http.MethodGet, "/models", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[[]types.Model](w), ShouldHaveLength, 1)

			w = do(h, http.MethodGet, "/models/m1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[types.Model](w).Name, ShouldEqual, "elbow-gbt")

			w = do(h, http.MethodGet, "/models/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When reading the API description", func() {
			So(do(h, http.MethodGet, "/openapi.yaml", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the route does not exist", func() {
			So(do(h, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodDelete, "/sweeps/s1", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given the error helpers", t, func() {
		cause := errors.New("cause")

		Convey("Then kinds and causes are both matchable", func() {
			err := api.WrapKind("op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "op: bad request: cause")
		})

		Convey("Then NewKind and Wrap format without the missing part", func() {
			So(api.NewKind("op", api.ErrNotFound).Error(), ShouldEqual, "op: not found")
			So(api.Wrap("op", cause).Error(), ShouldEqual, "op: cause")
			So(api.Wrap("op", nil), ShouldBeNil)
		})
	})
}
