package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", 2*time.Second)
}

func TestLogin_StoresTokenAndSendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case api.PathLogin:
			var req api.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "alice", req.Username)
			assert.Equal(t, []byte{1, 2, 3}, req.Verifier)
			writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: "tok"})
		case "/api/users/alice/salt":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, api.SaltResponse{Salt: []byte("salty")})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	resp, err := c.Login(context.Background(), "alice", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.AccessToken)
	assert.Equal(t, "tok", c.Token())

	salt, err := c.GetSalt(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("salty"), salt)
}

func TestRecords_RoundTripOverWire(t *testing.T) {
	stored := map[string]api.PutRecordRequest{}
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut:
			var req api.PutRecordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			stored[r.URL.Path[len("/api/records/"):]] = req
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == api.PathRecords:
			assert.Equal(t, "group:team", r.URL.Query().Get("domain"))
			var list api.RecordList
			for id, req := range stored {
				list.Records = append(list.Records, api.Record{
					ID: id, Domain: req.Domain, Ciphertext: req.Ciphertext, Nonce: req.Nonce, UpdatedAt: at,
				})
			}
			writeJSON(w, http.StatusOK, list)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	rec := models.EncryptedRecord{ID: "r1", Domain: cryptox.Group("team"), Ciphertext: []byte("ct"), Nonce: []byte("n")}
	require.NoError(t, c.PutRecord(ctx, rec))

	list, err := c.ListRecords(ctx, cryptox.Group("team"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	rec.UpdatedAt = at
	assert.Equal(t, rec, list[0])

	require.NoError(t, c.DeleteRecord(ctx, "r1"))
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, common.ErrInvalidInput},
		{http.StatusUnauthorized, common.ErrorUnauthorized},
		{http.StatusNotFound, common.ErrorNotFound},
		{http.StatusConflict, common.ErrAlreadyExists},
		{http.StatusServiceUnavailable, common.ErrNetworkFailure},
		{http.StatusInternalServerError, common.ErrorInternal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, api.Error{Error: "nope"})
			})
			_, err := c.GetSalt(context.Background(), "x")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorContains(t, err, "nope")
		})
	}
}

func TestMapStatus_DropsRepeatedSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, api.Error{Error: common.ErrInvalidInput.Error() + ": ttl must be between 1s and 24h0m0s"})
	})
	_, err := c.GetSalt(context.Background(), "x")
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, "invalid input: ttl must be between 1s and 24h0m0s", err.Error())
	assert.Equal(t, 1, strings.Count(err.Error(), common.ErrInvalidInput.Error()))
}

func TestBeginRotation_Conflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, api.Error{Error: common.ErrRotationInProgress.Error()})
	})
	_, err := c.BeginRotation(context.Background(), []byte("old"))
	assert.ErrorIs(t, err, common.ErrRotationInProgress)
}

func TestGetShare_Outcomes(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusGone, common.ErrShareExpired},
		{http.StatusForbidden, common.ErrShareDenied},
		{http.StatusUnauthorized, common.ErrShareDenied},
		{http.StatusNotFound, common.ErrShareInvalid},
		{http.StatusBadRequest, common.ErrShareInvalid},
		{http.StatusInternalServerError, common.ErrNetworkFailure},
		{http.StatusBadGateway, common.ErrNetworkFailure},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, api.Error{Error: "x"})
			})
			_, err := c.GetShare(context.Background(), "abc")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	assert.ErrorIs(t, c.Ping(context.Background()), common.ErrNetworkFailure)

	_, err := c.GetShare(context.Background(), "abc")
	assert.ErrorIs(t, err, common.ErrNetworkFailure)
}

func TestRotationAndRecoveryCalls(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch r.URL.Path {
		case api.PathRotate:
			writeJSON(w, http.StatusOK, api.SaltResponse{Salt: []byte("pending")})
		case api.PathRecovery:
			writeJSON(w, http.StatusOK, api.RecoveryResponse{Ticket: "t", Salt: []byte("s"), RecoveryToken: "new"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	salt, err := c.BeginRotation(ctx, []byte("old"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pending"), salt)
	require.NoError(t, c.CommitRotation(ctx, salt, []byte("new")))

	rr, err := c.StartRecovery(ctx, "alice", "token")
	require.NoError(t, err)
	assert.Equal(t, "t", rr.Ticket)
	require.NoError(t, c.CompleteRecovery(ctx, rr.Ticket, []byte("v")))

	assert.Equal(t, []string{api.PathRotate, api.PathCommit, api.PathRecovery, api.PathRecoveryFinish}, calls)
}

func TestPathEscapesValues(t *testing.T) {
	assert.Equal(t, "/api/users/a%2Fb/salt", path(api.PathUserSalt, "username", "a/b"))
	assert.Equal(t, "/api/salts/group:x", path(api.PathDomainSalt, "domain", "group:x"))
}
