package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/leakcoach/internal/adapters/http/api"
	"github.com/okian/leakcoach/internal/adapters/repository"
	service "github.com/okian/leakcoach/internal/app"
	"github.com/okian/leakcoach/internal/domain/batch"
	"github.com/okian/leakcoach/internal/domain/focus"
	"github.com/okian/leakcoach/internal/domain/leaktag"
	"github.com/okian/leakcoach/internal/domain/model"
)

type mockDeps struct {
	summary   batch.Summary
	answer    service.AnswerSummary
	items     []model.QueueItem
	selection focus.Selection
	err       error

	gotUser   string
	gotItem   string
	gotAction string
	gotLimit  int
	gotBody   string
}

func (m *mockDeps) BuildQueue(_ context.Context, userID string) (batch.Summary, error) {
	m.gotUser = userID
	return m.summary, m.err
}

func (m *mockDeps) SubmitAnswer(_ context.Context, userID, itemID, action string) (service.AnswerSummary, error) {
	m.gotUser, m.gotItem, m.gotAction = userID, itemID, action
	return m.answer, m.err
}

func (m *mockDeps) DueItems(_ context.Context, userID string, limit int) ([]model.QueueItem, error) {
	m.gotUser, m.gotLimit = userID, limit
	return m.items, m.err
}

func (m *mockDeps) AttachScenario(_ context.Context, userID, itemID string, payload json.RawMessage) error {
	m.gotUser, m.gotItem, m.gotBody = userID, itemID, string(payload)
	return m.err
}

func (m *mockDeps) WeeklyFocus(_ context.Context, userID string) (focus.Selection, error) {
	m.gotUser = userID
	return m.selection, m.err
}

type mockPinger struct{ err error }

func (p mockPinger) Ping(context.Context) error { return p.err }

func newMux(deps *mockDeps, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(mux)
	return mux
}

func do(mux http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set(api.UserHeader, user)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(rec *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

func TestQueueRoutes(t *testing.T) {
	Convey("Given a server over mocked dependencies", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When a request has no learner header", func() {
			rec := do(mux, http.MethodPost, "/queue/build", "", "")

			Convey("Then it is rejected before reaching the service", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(rec)["code"], ShouldEqual, "invalid_input")
				So(deps.gotUser, ShouldBeEmpty)
			})
		})

		Convey("When a batch is built", func() {
			deps.summary = batch.Summary{BatchID: "b1", FocusTag: leaktag.Overcalling, CreatedCount: 10}
			rec := do(mux, http.MethodPost, "/queue/build", "u1", "")

			Convey("Then it returns 201 with the summary", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(deps.gotUser, ShouldEqual, "u1")
				var sum map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &sum), ShouldBeNil)
				So(sum["focus_tag"], ShouldEqual, "overcalling")
				So(sum["created_count"], ShouldEqual, float64(10))
			})
		})

		Convey("When the learner already has a queue", func() {
			deps.summary = batch.Summary{Skipped: batch.SkipPending}
			rec := do(mux, http.MethodPost, "/queue/build", "u1", "")

			Convey("Then it returns 200", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, batch.SkipPending)
			})
		})

		Convey("When due items are listed with a limit", func() {
			deps.items = []model.QueueItem{{ID: "q1", LeakTag: leaktag.BadSizing, DueAt: time.Unix(0, 0).UTC()}}
			rec := do(mux, http.MethodGet, "/queue?limit=5", "u1", "")

			Convey("Then the limit is passed through", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.gotLimit, ShouldEqual, 5)
				So(rec.Body.String(), ShouldContainSubstring, `"leak_tag":"bad_sizing"`)
			})
		})

		Convey("When there are no due items", func() {
			rec := do(mux, http.MethodGet, "/queue", "u1", "")

			Convey("Then an empty list is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(rec.Body.String()), ShouldEqual, `{"items":[]}`)
			})
		})

		Convey("When the limit is not a number", func() {
			rec := do(mux, http.MethodGet, "/queue?limit=ten", "u1", "")

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an answer is submitted", func() {
			deps.answer = service.AnswerSummary{Correct: true, Repetition: 1}
			rec := do(mux, http.MethodPost, "/queue/q1/answer", "u1", `{"action":"call"}`)

			Convey("Then the path id and action reach the service", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.gotItem, ShouldEqual, "q1")
				So(deps.gotAction, ShouldEqual, "call")
				So(rec.Body.String(), ShouldContainSubstring, `"correct":true`)
			})
		})

		Convey("When the answer body is malformed", func() {
			rec := do(mux, http.MethodPost, "/queue/q1/answer", "u1", `{"action":`)

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the answer body is oversized", func() {
			rec := do(mux, http.MethodPost, "/queue/q1/answer", "u1", `{"action":"`+strings.Repeat("x", 8<<10)+`"}`)

			Convey("Then it is rejected before reaching the service", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.gotAction, ShouldBeEmpty)
			})
		})

		Convey("When a scenario is attached", func() {
			rec := do(mux, http.MethodPut, "/queue/q1/scenario", "u1", `{"correct_action":"fold"}`)

			Convey("Then the raw body is stored", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(deps.gotBody, ShouldEqual, `{"correct_action":"fold"}`)
			})
		})

		Convey("When the scenario is not JSON", func() {
			rec := do(mux, http.MethodPut, "/queue/q1/scenario", "u1", `fold`)

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the focus is read", func() {
			deps.selection = focus.Selection{Primary: leaktag.TiltControl, Secondary: leaktag.Fundamentals}
			rec := do(mux, http.MethodGet, "/focus", "u1", "")

			Convey("Then tags are rendered canonically", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"primary":"tilt_control"`)
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given service failures", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("wrap: %w", service.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
			{service.ErrScenarioMissing, http.StatusBadRequest, "invalid_input"},
			{fmt.Errorf("submit answer: %w", repository.ErrNotFound), http.StatusNotFound, "not_found"},
			{fmt.Errorf("submit answer: %w", repository.ErrConflict), http.StatusConflict, "conflict"},
			{errors.New("database is locked"), http.StatusInternalServerError, "internal_error"},
		}

		for _, tc := range cases {
			deps := &mockDeps{err: tc.err}
			rec := do(newMux(deps), http.MethodPost, "/queue/q1/answer", "u1", `{"action":"fold"}`)

			Convey(fmt.Sprintf("Then %v maps to %d", tc.err, tc.status), func() {
				So(rec.Code, ShouldEqual, tc.status)
				So(decodeError(rec)["code"], ShouldEqual, tc.code)
			})
		}

		Convey("Then server errors do not leak details", func() {
			deps := &mockDeps{err: errors.New("pq: password authentication failed")}
			rec := do(newMux(deps), http.MethodGet, "/focus", "u1", "")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(rec.Body.String(), ShouldNotContainSubstring, "password")
		})
	})
}

func TestHealthRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		Convey("When metrics are scraped", func() {
			rec := do(newMux(&mockDeps{}), http.MethodGet, "/healthz", "", "")

			Convey("Then the registry is exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "leakcoach_scheduler")
			})
		})

		Convey("When the store is down", func() {
			rec := do(newMux(&mockDeps{}, api.WithPinger(mockPinger{err: errors.New("refused")})), http.MethodGet, "/readyz", "", "")

			Convey("Then readiness fails", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the store is up", func() {
			rec := do(newMux(&mockDeps{}, api.WithPinger(mockPinger{})), http.MethodGet, "/readyz", "", "")

			Convey("Then readiness passes", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}
