package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitBody struct {
	Message       string `json:"message"`
	ApplicationID int64  `json:"applicationId"`
}

func TestUnmarshalResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"ok","applicationId":42}`))
	})

	rr := DoRequest(handler, NewRequest(t, http.MethodPost, "/api/onboard"))

	AssertStatus(t, rr, http.StatusCreated)
	body := UnmarshalResponse[submitBody](t, rr)
	require.NotNil(t, body)
	assert.Equal(t, "ok", body.Message)
	assert.Equal(t, int64(42), body.ApplicationID)
}

func TestGivenWhenThenNamesSubtests(t *testing.T) {
	var names []string
	Given(t, "a scenario", func(t *testing.T) {
		names = append(names, t.Name())
		When(t, "it runs", func(t *testing.T) {
			names = append(names, t.Name())
			Then(t, "each step is named", func(t *testing.T) {
				names = append(names, t.Name())
			})
		})
	})

	require.Len(t, names, 3)
	assert.Contains(t, names[0], "Given_a_scenario")
	assert.Contains(t, names[1], "When_it_runs")
	assert.Contains(t, names[2], "Then_each_step_is_named")
}

func TestReadBodyDrainsRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	_, _ = rr.WriteString("payload")

	assert.Equal(t, []byte("payload"), ReadBody(t, rr))
	assert.Empty(t, ReadBody(t, rr))
}
