package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/routes"
)

func TestRegisterNestedGroups(t *testing.T) {
	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(name))
		}
	}

	mux := http.NewServeMux()
	routes.Register(mux, routes.Group{
		Prefix: "/api",
		Routes: []routes.Route{
			{Method: http.MethodPost, Pattern: "/classify", Handler: handler("classify")},
		},
		Children: []routes.Group{
			{
				Prefix: "/rules",
				Routes: []routes.Route{
					{Method: http.MethodGet, Pattern: "/status", Handler: handler("status")},
				},
			},
		},
	})

	tests := []struct {
		method string
		path   string
		want   string
		status int
	}{
		{http.MethodPost, "/api/classify", "classify", http.StatusOK},
		{http.MethodGet, "/api/rules/status", "status", http.StatusOK},
		{http.MethodGet, "/api/classify", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/absent", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.want != "" && rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}
