package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"judgeboard/internal/judge/controller"
	"judgeboard/internal/judge/model"
	"judgeboard/internal/judge/sandbox"
	"judgeboard/internal/judge/service"
	"judgeboard/internal/judge/transform"
	appErr "judgeboard/pkg/errors"

	"github.com/gin-gonic/gin"
)

type stubProblems struct{}

func (stubProblems) Get(_ context.Context, problemID string) (*model.Problem, error) {
	if problemID != "echo" {
		return nil, appErr.Newf(appErr.ProblemNotFound, "Test cases for '%s' not found", problemID)
	}
	return &model.Problem{
		ID:          "echo",
		PublicTests: []model.TestCase{{Input: "hi", ExpectedOutput: "hi"}},
		HiddenTests: []model.TestCase{{Input: "yo", ExpectedOutput: "yo"}},
	}, nil
}

func (stubProblems) List(_ context.Context) ([]string, error) {
	return []string{"echo"}, nil
}

type echoExecutor struct{}

func (echoExecutor) Run(_ context.Context, prog sandbox.Program, _ time.Duration) sandbox.ExecutionResult {
	return sandbox.ExecutionResult{Kind: sandbox.KindSuccess, Stdout: prog.Stdin, Elapsed: time.Millisecond}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := service.NewService(service.Config{
		Problems:    stubProblems{},
		Executor:    echoExecutor{},
		Transformer: transform.New(transform.Config{}, nil),
	})
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	router := gin.New()
	controller.NewJudgeController(svc).Register(router.Group("/api"))
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return rec, env
}

func TestHealthAndList(t *testing.T) {
	router := newRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/api", nil)
	if rec.Code != http.StatusOK || env.Code != int(appErr.Success) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}

	rec, env = doRequest(t, router, http.MethodGet, "/api/problems", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var list controller.ProblemListResponse
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list failed: %v", err)
	}
	if len(list.Problems) != 1 || list.Problems[0] != "echo" {
		t.Fatalf("unexpected problems %v", list.Problems)
	}
}

func TestGetProblem(t *testing.T) {
	router := newRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/api/problem/echo", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var details model.ProblemDetails
	if err := json.Unmarshal(env.Data, &details); err != nil {
		t.Fatalf("decode details failed: %v", err)
	}
	if details.HiddenTestsCount != 1 || details.TotalTests != 2 || len(details.PublicTests) != 1 {
		t.Fatalf("unexpected details %+v", details)
	}

	rec, env = doRequest(t, router, http.MethodGet, "/api/problem/missing", nil)
	if rec.Code != http.StatusNotFound || env.Code != int(appErr.ProblemNotFound) {
		t.Fatalf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}
	if env.Message != "Test cases for 'missing' not found" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestRun(t *testing.T) {
	router := newRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/api/run", controller.RunRequest{ProblemID: "echo", Code: "def solve(): pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var report model.RunReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report failed: %v", err)
	}
	if report.Summary.Total != 1 || report.Summary.Passed != 1 || report.Summary.Percentage != 100 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}

	rec, _ = doRequest(t, router, http.MethodPost, "/api/run", map[string]string{"problem_id": "echo"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing code, got %d", rec.Code)
	}
}
