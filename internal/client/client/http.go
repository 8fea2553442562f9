package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

const maxResponseSize = 16 << 20

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// path fills "{name}" placeholders of an api route with escaped values.
func path(route string, pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		route = strings.ReplaceAll(route, "{"+pairs[i]+"}", url.PathEscape(pairs[i+1]))
	}
	return route
}

func (c *HTTPClient) do(ctx context.Context, method, p string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return mapStatus(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", common.ErrNetworkFailure, method, p, err)
	}
	return nil
}

// mapStatus turns a non-2xx response into a common sentinel, keeping the
// server's message as detail. The server already prefixes most messages
// with the sentinel text, which is not repeated.
func mapStatus(resp *http.Response) error {
	var e api.Error
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
	detail := e.Error
	if detail == "" {
		detail = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = common.ErrInvalidInput
	case http.StatusUnauthorized:
		sentinel = common.ErrorUnauthorized
	case http.StatusForbidden:
		sentinel = common.ErrShareDenied
	case http.StatusNotFound:
		sentinel = common.ErrorNotFound
	case http.StatusConflict:
		sentinel = common.ErrAlreadyExists
	case http.StatusGone:
		sentinel = common.ErrShareExpired
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		sentinel = common.ErrNetworkFailure
	default:
		sentinel = common.ErrorInternal
	}
	detail = strings.TrimPrefix(detail, sentinel.Error()+": ")
	return fmt.Errorf("%w: %s", sentinel, detail)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, api.PathReady, nil, nil)
}

func (c *HTTPClient) Register(ctx context.Context, req api.RegisterRequest) error {
	return c.do(ctx, http.MethodPost, api.PathUsers, req, nil)
}

func (c *HTTPClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	var resp api.SaltResponse
	if err := c.do(ctx, http.MethodGet, path(api.PathUserSalt, "username", username), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Salt, nil
}

func (c *HTTPClient) Login(ctx context.Context, username string, verifier []byte) (api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.do(ctx, http.MethodPost, api.PathLogin, api.LoginRequest{Username: username, Verifier: verifier}, &resp); err != nil {
		return api.TokenResponse{}, err
	}
	c.SetToken(resp.AccessToken)
	return resp, nil
}

func (c *HTTPClient) DomainSalt(ctx context.Context, domain cryptox.KeyDomain) ([]byte, error) {
	var resp api.SaltResponse
	if err := c.do(ctx, http.MethodGet, path(api.PathDomainSalt, "domain", domain.String()), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Salt, nil
}

func (c *HTTPClient) ListRecords(ctx context.Context, domain cryptox.KeyDomain) ([]models.EncryptedRecord, error) {
	var resp api.RecordList
	p := api.PathRecords + "?domain=" + url.QueryEscape(domain.String())
	if err := c.do(ctx, http.MethodGet, p, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]models.EncryptedRecord, 0, len(resp.Records))
	for _, r := range resp.Records {
		rec, err := fromWire(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *HTTPClient) GetRecord(ctx context.Context, id string) (models.EncryptedRecord, error) {
	var resp api.Record
	if err := c.do(ctx, http.MethodGet, path(api.PathRecord, "id", id), nil, &resp); err != nil {
		return models.EncryptedRecord{}, err
	}
	return fromWire(resp)
}

func (c *HTTPClient) PutRecord(ctx context.Context, rec models.EncryptedRecord) error {
	req := api.PutRecordRequest{Domain: rec.Domain.String(), Ciphertext: rec.Ciphertext, Nonce: rec.Nonce}
	return c.do(ctx, http.MethodPut, path(api.PathRecord, "id", rec.ID), req, nil)
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, path(api.PathRecord, "id", id), nil, nil)
}

// BeginRotation fails with common.ErrRotationInProgress while another
// device is changing the same account's secret.
func (c *HTTPClient) BeginRotation(ctx context.Context, oldVerifier []byte) ([]byte, error) {
	var resp api.SaltResponse
	err := c.do(ctx, http.MethodPost, api.PathRotate, api.RotateRequest{Verifier: oldVerifier}, &resp)
	if errors.Is(err, common.ErrAlreadyExists) {
		return nil, fmt.Errorf("%w: %v", common.ErrRotationInProgress, err)
	}
	if err != nil {
		return nil, err
	}
	return resp.Salt, nil
}

func (c *HTTPClient) CommitRotation(ctx context.Context, salt, newVerifier []byte) error {
	return c.do(ctx, http.MethodPost, api.PathCommit, api.CommitRequest{Salt: salt, Verifier: newVerifier}, nil)
}

func (c *HTTPClient) StartRecovery(ctx context.Context, username, recoveryToken string) (api.RecoveryResponse, error) {
	var resp api.RecoveryResponse
	err := c.do(ctx, http.MethodPost, api.PathRecovery,
		api.RecoveryRequest{Username: username, RecoveryToken: recoveryToken}, &resp)
	return resp, err
}

func (c *HTTPClient) CompleteRecovery(ctx context.Context, ticket string, verifier []byte) error {
	return c.do(ctx, http.MethodPost, api.PathRecoveryFinish,
		api.RecoveryCompleteRequest{Ticket: ticket, Verifier: verifier}, nil)
}

func (c *HTTPClient) CreateShare(ctx context.Context, req api.CreateShareRequest) (api.CreateShareResponse, error) {
	var resp api.CreateShareResponse
	err := c.do(ctx, http.MethodPost, api.PathShares, req, &resp)
	return resp, err
}

// GetShare reports only the three share outcomes, plus network failure.
// A server fault counts as a network failure so that a transient 5xx never
// reads as a broken link.
func (c *HTTPClient) GetShare(ctx context.Context, id string) (api.Share, error) {
	var resp api.Share
	err := c.do(ctx, http.MethodGet, path(api.PathShare, "id", id), nil, &resp)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, common.ErrNetworkFailure),
		errors.Is(err, common.ErrShareExpired),
		errors.Is(err, common.ErrShareDenied):
		return api.Share{}, err
	case errors.Is(err, common.ErrorUnauthorized):
		return api.Share{}, fmt.Errorf("%w: %v", common.ErrShareDenied, err)
	case errors.Is(err, common.ErrorInternal):
		return api.Share{}, fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	default:
		return api.Share{}, fmt.Errorf("%w: %v", common.ErrShareInvalid, err)
	}
}

func fromWire(r api.Record) (models.EncryptedRecord, error) {
	d, err := cryptox.ParseKeyDomain(r.Domain)
	if err != nil {
		return models.EncryptedRecord{}, err
	}
	return models.EncryptedRecord{
		ID:         r.ID,
		Domain:     d,
		Ciphertext: r.Ciphertext,
		Nonce:      r.Nonce,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}
