package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

type mockUniversities struct {
	existsFunc func(ctx context.Context, id int64) (bool, error)
}

func (m *mockUniversities) Exists(ctx context.Context, id int64) (bool, error) {
	return m.existsFunc(ctx, id)
}

func TestUniversityContextMiddleware(t *testing.T) {
	universities := &mockUniversities{existsFunc: func(ctx context.Context, id int64) (bool, error) {
		switch id {
		case 1:
			return true, nil
		case 500:
			return false, errors.New("db down")
		default:
			return false, nil
		}
	}}

	router := mux.NewRouter()
	sub := router.PathPrefix("/api/university/{universityId}").Subrouter()
	sub.Use(UniversityContextMiddleware(universities))
	sub.HandleFunc("/rso", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/api/university/1/rso", http.StatusOK, ""},
		{"/api/university/2/rso", http.StatusBadRequest, `"errorCode":300`},
		{"/api/university/abc/rso", http.StatusBadRequest, `"errorCode":100`},
		{"/api/university/500/rso", http.StatusInternalServerError, `"errorCode":1`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			}
		})
	}
}
