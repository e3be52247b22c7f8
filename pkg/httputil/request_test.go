package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONOrError(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Chess"}`))
	w := httptest.NewRecorder()
	assert.True(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, "Chess", dest.Name)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`))
	w = httptest.NewRecorder()
	assert.False(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"errorCode":100`)
}

func TestParsePathInt64OrError(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		want   int64
		wantOK bool
	}{
		{"valid", "42", 42, true},
		{"not a number", "abc", 0, false},
		{"zero", "0", 0, false},
		{"negative", "-3", 0, false},
		{"missing", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.value != "" {
				r = mux.SetURLVars(r, map[string]string{"universityId": tt.value})
			}
			w := httptest.NewRecorder()

			got, ok := ParsePathInt64OrError(w, r, "universityId")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if !ok {
				assert.JSONEq(t, `{"message":"100 | Required parameters missing","errorCode":100,"raw":["universityId"]}`, w.Body.String())
			}
		})
	}
}

func TestParseQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/?rso_id=7&from=2026-03-01T18:00:00Z&active=false&name=chess&bad=x", nil)

	id, err := ParseQueryInt64(r, "rso_id")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(7), *id)

	id, err = ParseQueryInt64(r, "missing")
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = ParseQueryInt64(r, "bad")
	assert.Error(t, err)

	from, err := ParseQueryTime(r, "from")
	require.NoError(t, err)
	assert.True(t, from.Equal(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)))

	_, err = ParseQueryTime(r, "bad")
	assert.Error(t, err)

	active, err := ParseQueryBool(r, "active", true)
	require.NoError(t, err)
	assert.False(t, active)

	assert.Equal(t, "chess", ParseQueryString(r, "name", ""))
	assert.Equal(t, "fallback", ParseQueryString(r, "nope", "fallback"))
}
