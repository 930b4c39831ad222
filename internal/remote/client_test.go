package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/remindme/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(server.URL+"/", 2*time.Second)
	c.SetCredentials("alice", "secret")
	return c
}

func TestFetchAllNormalizesEpochSeconds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/notifications/get", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 3, "title": "seconds", "payload": "p", "fireAt": 1700000000},
			{"id": 4, "title": "millis", "payload": null, "fireAt": 1700000000123}
		]`))
	})

	got, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(3), got[0].RemoteID)
	assert.Equal(t, "p", got[0].Payload)
	assert.Equal(t, int64(1_700_000_000_000), got[0].FireAtMillis())

	assert.Equal(t, int64(4), got[1].RemoteID)
	assert.Empty(t, got[1].Payload)
	assert.Equal(t, int64(1_700_000_000_123), got[1].FireAtMillis())
}

func TestFetchAllUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, "unauthorized", Classify(err))
}

func TestServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "boom", httpErr.Body)
}

func TestClientErrorIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	err := c.Delete(context.Background(), []int64{1}, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "rejected", Classify(err))
}

func TestUnreachableServiceIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(url, time.Second)
	c.SetCredentials("alice", "secret")

	_, err := c.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMissingCredentialsIsUnavailable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)

	_, err := c.FetchAdminStatus(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDeleteChoosesEndpointByPrivilege(t *testing.T) {
	var paths []string
	var bodies [][]map[string]int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body []map[string]int64
		assert.NoError(t, json.Unmarshal(raw, &body))
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Delete(context.Background(), []int64{5, 6}, false))
	require.NoError(t, c.Delete(context.Background(), []int64{7}, true))
	require.NoError(t, c.Delete(context.Background(), nil, true))

	assert.Equal(t, []string{"/notifications/delete/manually", "/notifications/delete/superuser"}, paths)
	assert.Equal(t, []map[string]int64{{"notificationId": 5}, {"notificationId": 6}}, bodies[0])
	assert.Equal(t, []map[string]int64{{"notificationId": 7}}, bodies[1])
}

func TestFetchAdminStatus(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    bool
		wantErr error
	}{
		{name: "admin", body: `{"isAdmin": true}`, want: true},
		{name: "regular", body: `{"isAdmin": false}`, want: false},
		{name: "missing field", body: `{}`, wantErr: ErrUndetermined},
		{name: "malformed", body: `not json`, wantErr: ErrUndetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/users/status", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.FetchAdminStatus(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterIsUnauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/add/manually", r.URL.Path)
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)

		var body userDTO
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, userDTO{Username: "bob", Password: "pw", IsAdmin: 0}, body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	require.NoError(t, c.Register(context.Background(), "bob", "pw"))
}

func TestRegisterUserAsAdmin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/add/superuser", r.URL.Path)
		var body userDTO
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 1, body.IsAdmin)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.RegisterUser(context.Background(), "carol", "pw", true))
}

func TestDeleteUsers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/users/delete/superuser", r.URL.Path)
		var body []deleteUserDTO
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []deleteUserDTO{{Username: "bob"}, {Username: "carol"}}, body)
	})

	require.NoError(t, c.DeleteUsers(context.Background(), []string{"bob", "carol"}))
}

func TestUploadReturnsWebIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/notifications/put", r.URL.Path)

		var body []notificationDTO
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body, 1) {
			assert.Equal(t, "standup", body[0].Title)
			assert.Equal(t, int64(1_700_000_000), body[0].FireAt)
		}

		_, _ = w.Write([]byte(`{"clientId": 1, "webIds": [99], "status": "created"}`))
	})

	result, err := c.Upload(context.Background(), []model.Notification{{
		Title:  "standup",
		FireAt: time.Unix(1_700_000_000, 0),
	}})
	require.NoError(t, err)
	assert.Equal(t, []int64{99}, result.WebIDs)
	assert.Equal(t, []string{"created"}, result.AllStatuses())
}

func TestUploadRejectsMismatchedIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"clientId": 1, "webIds": []}`))
	})

	_, err := c.Upload(context.Background(), []model.Notification{{Title: "x", FireAt: time.Now()}})
	assert.ErrorIs(t, err, ErrUndetermined)
}

func TestValidateCredentials(t *testing.T) {
	ok := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"isAdmin": false}`))
	})
	assert.NoError(t, ok.ValidateCredentials(context.Background()))

	rejected := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.ErrorIs(t, rejected.ValidateCredentials(context.Background()), ErrUnauthorized)
}

func TestForbiddenIsNotUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := c.Delete(context.Background(), []int64{1}, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.False(t, IsAuthError(err))
}
