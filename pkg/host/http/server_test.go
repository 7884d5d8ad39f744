package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/host"
	"github.com/walteh/plantshare/pkg/operation"
	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/status"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Commands() []host.Command {
	return m.Called().Get(0).([]host.Command)
}

func (m *mockRunner) Run(ctx context.Context, name string, sink status.Sink) (*operation.Result, error) {
	args := m.Called(ctx, name, sink)
	res, _ := args.Get(0).(*operation.Result)
	return res, args.Error(1)
}

func serve(t *testing.T, s *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err, "building request")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(&mockRunner{}, ServerOptions{Version: "1.2.3"})

	rr := serve(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code, "health should be ok")

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body should be JSON")
	assert.Equal(t, "healthy", body.Status, "status should be healthy")
	assert.Equal(t, "1.2.3", body.Version, "version should be reported")
}

func TestCommands(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &mockRunner{}
	runner.On("Commands").Return([]host.Command{{Name: host.CommandShare}, {Name: host.CommandShareAsync, Async: true}})
	s := NewServer(runner, ServerOptions{})

	rr := serve(t, s, http.MethodGet, "/commands", nil)
	require.Equal(t, http.StatusOK, rr.Code, "commands should be ok")

	var body []host.Command
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body should be JSON")
	assert.Len(t, body, 2, "both commands should be listed")
	assert.True(t, body[1].Async, "async flag should be serialized")
}

func TestRunCommand(t *testing.T) {
	gin.SetMode(gin.TestMode)

	runID := uuid.New()
	folder := remote.Folder{ID: "f", Name: "Plant"}

	tests := []struct {
		name     string
		path     string
		setup    func(m *mockRunner)
		wantCode int
		check    func(t *testing.T, body []byte)
	}{
		{
			name: "done",
			path: "/commands/CLIPLANT360SHARE",
			setup: func(m *mockRunner) {
				m.On("Run", mock.Anything, "CLIPLANT360SHARE", mock.Anything).Run(func(args mock.Arguments) {
					sink := args.Get(2).(status.Sink)
					sink.WriteLine(context.Background(), host.StartMessage)
				}).Return(&operation.Result{
					RunID:    runID,
					Outcome:  operation.OutcomeDone,
					Phase:    operation.PhaseDone,
					Target:   &remote.Target{Hub: remote.Hub{Name: "hub"}, Project: remote.Project{Name: "proj"}, Folder: &folder},
					Uploaded: &remote.UploadReceipt{Files: 4, Location: "somewhere"},
				}, nil)
			},
			wantCode: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var out RunResponse
				require.NoError(t, json.Unmarshal(body, &out), "body should be JSON")
				assert.Equal(t, RunResponse{
					Command:  "CLIPLANT360SHARE",
					RunID:    runID.String(),
					Outcome:  "done",
					Phase:    "done",
					Lines:    []string{host.StartMessage},
					Target:   "hub/proj/Plant",
					Files:    4,
					Location: "somewhere",
				}, out, "response should describe the run")
			},
		},
		{
			name: "failed_outcome_is_still_ok",
			path: "/commands/CLIPLANT360SHAREASYNC",
			setup: func(m *mockRunner) {
				m.On("Run", mock.Anything, "CLIPLANT360SHAREASYNC", mock.Anything).Return(&operation.Result{
					Outcome: operation.OutcomeFailed,
					Phase:   operation.PhaseUploading,
					Errors:  []error{errors.New("rejected")},
				}, nil)
			},
			wantCode: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var out RunResponse
				require.NoError(t, json.Unmarshal(body, &out), "body should be JSON")
				assert.Equal(t, "failed", out.Outcome, "outcome should be reported")
				assert.Equal(t, []string{"rejected"}, out.Errors, "errors should be reported")
				assert.Empty(t, out.RunID, "nil run id should be omitted")
			},
		},
		{
			name: "unknown_command",
			path: "/commands/NOPE",
			setup: func(m *mockRunner) {
				m.On("Run", mock.Anything, "NOPE", mock.Anything).Return(nil, errors.Errorf("%w %q", host.ErrUnknownCommand, "NOPE"))
			},
			wantCode: http.StatusNotFound,
		},
		{
			name: "host_error",
			path: "/commands/CLIPLANT360SHARE",
			setup: func(m *mockRunner) {
				m.On("Run", mock.Anything, "CLIPLANT360SHARE", mock.Anything).Return(nil, errors.New("no project path configured"))
			},
			wantCode: http.StatusInternalServerError,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "no project path configured", "error should be returned")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			tt.setup(runner)
			s := NewServer(runner, ServerOptions{})

			rr := serve(t, s, http.MethodPost, tt.path, nil)
			assert.Equal(t, tt.wantCode, rr.Code, "status code should match")
			if tt.check != nil {
				tt.check(t, rr.Body.Bytes())
			}
			runner.AssertExpectations(t)
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &mockRunner{}
	runner.On("Commands").Return([]host.Command{})

	s := NewServer(runner, ServerOptions{AllowOrigins: []string{"https://plant.example.com"}})

	rr := serve(t, s, http.MethodGet, "/commands", map[string]string{"Origin": "https://plant.example.com"})
	assert.Equal(t, "https://plant.example.com", rr.Header().Get("Access-Control-Allow-Origin"), "allowed origin should be echoed")

	rr = serve(t, s, http.MethodGet, "/commands", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, rr.Code, "other origins should be rejected")
}

func TestListenAndServeStops(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(&mockRunner{}, ServerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	assert.NoError(t, <-done, "server should stop cleanly")
}
