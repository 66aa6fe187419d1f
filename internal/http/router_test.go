package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"moracollect-api/internal/handlers"
	httpmocks "moracollect-api/internal/http/mocks"
	"moracollect-api/internal/identity"
	"moracollect-api/internal/service"
	"moracollect-api/internal/service/mocks"
)

type routerMocks struct {
	records     *mocks.MockRecordService
	catalog     *mocks.MockCatalogService
	leaderboard *mocks.MockLeaderboardService
	profiles    *mocks.MockProfileService
	verifier    *httpmocks.MockTokenVerifier
}

func newTestRouter(t *testing.T) (http.Handler, routerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := routerMocks{
		records:     mocks.NewMockRecordService(ctrl),
		catalog:     mocks.NewMockCatalogService(ctrl),
		leaderboard: mocks.NewMockLeaderboardService(ctrl),
		profiles:    mocks.NewMockProfileService(ctrl),
		verifier:    httpmocks.NewMockTokenVerifier(ctrl),
	}
	docs, err := handlers.NewDocsHandler()
	if err != nil {
		t.Fatalf("NewDocsHandler() error = %v", err)
	}
	router := NewRouter(&Deps{
		Records:        m.records,
		Catalog:        m.catalog,
		Leaderboard:    m.leaderboard,
		Profiles:       m.profiles,
		Verifier:       m.verifier,
		Docs:           docs,
		ProjectID:      "demo",
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	return router, m
}

func TestNewRouter(t *testing.T) {
	router, _ := newTestRouter(t)

	if router == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		authorized bool
		mockSetup  func(m routerMocks)
		wantStatus int
	}{
		{
			name:       "GET /healthz needs no token",
			method:     http.MethodGet,
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /docs needs no token",
			method:     http.MethodGet,
			path:       "/docs",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /v1/ping without token",
			method:     http.MethodGet,
			path:       "/v1/ping",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "GET /v1/ping",
			method:     http.MethodGet,
			path:       "/v1/ping",
			authorized: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "POST /v1/register exists",
			method:     http.MethodPost,
			path:       "/v1/register",
			authorized: true,
			mockSetup: func(m routerMocks) {
				m.records.EXPECT().Register(gomock.Any(), "u1", gomock.Any()).
					Return(service.RegisterResult{}, &service.ValidationError{Field: "record_id", Message: "is required"})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "DELETE /v1/my-records/{id}",
			method:     http.MethodDelete,
			path:       "/v1/my-records/abc",
			authorized: true,
			mockSetup: func(m routerMocks) {
				m.records.EXPECT().DeleteMine(gomock.Any(), "u1", "abc").Return(service.DeleteResult{RecordID: "abc"}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /v1/leaderboard",
			method:     http.MethodGet,
			path:       "/v1/leaderboard?limit=3",
			authorized: true,
			mockSetup: func(m routerMocks) {
				m.leaderboard.EXPECT().Top(gomock.Any(), "u1", 3).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /v1/scripts",
			method:     http.MethodGet,
			path:       "/v1/scripts",
			authorized: true,
			mockSetup: func(m routerMocks) {
				m.catalog.EXPECT().ListScripts(gomock.Any()).Return(service.ScriptList{Source: service.SourceLive}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /v1/register not allowed",
			method:     http.MethodGet,
			path:       "/v1/register",
			authorized: true,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "preflight skips auth",
			method:     http.MethodOptions,
			path:       "/v1/register",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/nope",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, m := newTestRouter(t)
			if tt.authorized {
				m.verifier.EXPECT().Verify(gomock.Any(), "token").Return(identity.Identity{UID: "u1"}, nil)
			}
			if tt.mockSetup != nil {
				tt.mockSetup(m)
			}

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.authorized {
				req.Header.Set("Authorization", "Bearer token")
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}
