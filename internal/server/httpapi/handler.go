package httpapi

import (
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/dmitrijs2005/sekure/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// pathParam returns the decoded value of a route placeholder.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.svc.Users.Register(r.Context(), req.Username, req.Salt, req.Verifier, req.RecoveryTokenHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "Registered", "user_id", u.ID)
	w.WriteHeader(http.StatusCreated)
}

func (s *HTTPServer) handleGetSalt(w http.ResponseWriter, r *http.Request) {
	salt, err := s.svc.Users.GetSalt(r.Context(), pathParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SaltResponse{Salt: salt})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	tok, err := s.svc.Users.Login(r.Context(), req.Username, req.Verifier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: tok.Token, ExpiresAt: tok.ExpiresAt})
}

func (s *HTTPServer) handleDomainSalt(w http.ResponseWriter, r *http.Request) {
	salt, err := s.svc.Records.DomainSalt(r.Context(), pathParam(r, "domain"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SaltResponse{Salt: salt})
}

func toWire(rec *models.Record) api.Record {
	return api.Record{
		ID:         rec.ID,
		Domain:     rec.Domain,
		Ciphertext: rec.Ciphertext,
		Nonce:      rec.Nonce,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func (s *HTTPServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.Records.List(r.Context(), userID(r.Context()), r.URL.Query().Get("domain"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := api.RecordList{Records: make([]api.Record, 0, len(recs))}
	for _, rec := range recs {
		out.Records = append(out.Records, toWire(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Records.Get(r.Context(), userID(r.Context()), pathParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(rec))
}

func (s *HTTPServer) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	var req api.PutRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	_, err := s.svc.Records.Put(r.Context(), &models.Record{
		ID:         pathParam(r, "id"),
		OwnerID:    userID(r.Context()),
		Domain:     req.Domain,
		Ciphertext: req.Ciphertext,
		Nonce:      req.Nonce,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Records.Delete(r.Context(), userID(r.Context()), pathParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleBeginRotation(w http.ResponseWriter, r *http.Request) {
	var req api.RotateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	salt, err := s.svc.Secrets.BeginRotation(r.Context(), userID(r.Context()), req.Verifier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SaltResponse{Salt: salt})
}

func (s *HTTPServer) handleCommitRotation(w http.ResponseWriter, r *http.Request) {
	var req api.CommitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.Secrets.CommitRotation(r.Context(), userID(r.Context()), req.Salt, req.Verifier); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "Master secret rotated", "user_id", userID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleStartRecovery(w http.ResponseWriter, r *http.Request) {
	var req api.RecoveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.svc.Recovery.StartRecovery(r.Context(), req.Username, req.RecoveryToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RecoveryResponse{Ticket: t.Ticket, Salt: t.Salt, RecoveryToken: t.RecoveryToken})
}

func (s *HTTPServer) handleCompleteRecovery(w http.ResponseWriter, r *http.Request) {
	var req api.RecoveryCompleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.Recovery.CompleteRecovery(r.Context(), req.Ticket, req.Verifier); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ttlOf converts seconds to a duration, mapping values that overflow to a
// negative one so they fail validation.
func ttlOf(seconds int64) time.Duration {
	if seconds > int64(math.MaxInt64/time.Second) {
		return -1
	}
	return time.Duration(seconds) * time.Second
}

func (s *HTTPServer) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req api.CreateShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	share, err := s.svc.Shares.Create(r.Context(), userID(r.Context()), username(r.Context()), services.NewShare{
		Ciphertext: req.Ciphertext,
		Nonce:      req.Nonce,
		TTL:        ttlOf(req.TTLSeconds),
		AccessMode: req.AccessPolicy.Mode,
		Usernames:  req.AccessPolicy.Usernames,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.CreateShareResponse{ID: share.ID, ExpiresAt: share.ExpiresAt})
}

func (s *HTTPServer) handleGetShare(w http.ResponseWriter, r *http.Request) {
	share, err := s.svc.Shares.Get(r.Context(), pathParam(r, "id"), username(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Share{
		Ciphertext:   share.Ciphertext,
		Nonce:        share.Nonce,
		CreatorLabel: share.CreatorLabel,
		ExpiresAt:    share.ExpiresAt,
	})
}
