package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/common"
	"github.com/dmitrijs2005/marinelog/internal/cryptox"
)

const DefaultTimeout = 30 * time.Second

// HTTPClient implements Client over the JSON API. Retrying is left to the
// caller, so resty's own retry count stays at zero.
type HTTPClient struct {
	baseURL string
	http    *resty.Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	onRefresh    func(access, refresh string)
}

type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// OnTokensRefreshed registers fn to be called after a transparent token
// refresh so the new pair can be persisted.
func OnTokensRefreshed(fn func(access, refresh string)) Option {
	return func(c *HTTPClient) { c.onRefresh = fn }
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{baseURL: baseURL}
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *HTTPClient) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

func (c *HTTPClient) SetSession(s Session) {
	c.mu.Lock()
	c.accessToken = s.AccessToken
	c.refreshToken = s.RefreshToken
	c.mu.Unlock()
}

func (c *HTTPClient) tokens() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) Register(ctx context.Context, username string, salt []byte, verifier []byte) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(api.RegisterRequest{Username: username, Salt: salt, Verifier: verifier}).
		SetError(&api.ErrorResponse{}).
		Post(api.PathRegister)
	return mapError(resp, err)
}

func (c *HTTPClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	var out api.SaltResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(api.SaltRequest{Username: username}).
		SetResult(&out).
		SetError(&api.ErrorResponse{}).
		Post(api.PathSalt)
	if err := mapError(resp, err); err != nil {
		return nil, err
	}
	return out.Salt, nil
}

func (c *HTTPClient) Login(ctx context.Context, username string, verifier []byte) (Session, error) {
	var out api.TokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(api.LoginRequest{Username: username, Verifier: verifier}).
		SetResult(&out).
		SetError(&api.ErrorResponse{}).
		Post(api.PathLogin)
	if err := mapError(resp, err); err != nil {
		return Session{}, err
	}

	s := Session{UserID: out.UserID, AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	c.SetSession(s)
	return s, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var out api.PingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(api.PathHealth)
	if err := mapError(resp, err); err != nil {
		return err
	}
	if out.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) FetchAll(ctx context.Context, userID string) ([]models.ServiceRecord, error) {
	var rows []api.Record
	resp, err := c.authorized(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("user_id", userID).SetResult(&rows).Get(api.PathRecords)
	})
	if err := mapError(resp, err); err != nil {
		return nil, err
	}

	out := make([]models.ServiceRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromAPI(row))
	}
	models.SortByUpdatedDesc(out)
	return out, nil
}

func (c *HTTPClient) Upsert(ctx context.Context, userID string, r models.ServiceRecord) (models.ServiceRecord, error) {
	body, err := toAPI(userID, r)
	if err != nil {
		return models.ServiceRecord{}, err
	}

	var stored api.Record
	resp, err := c.authorized(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", r.ID).SetBody(body).SetResult(&stored).Put(api.PathRecord)
	})
	if err := mapError(resp, err); err != nil {
		return models.ServiceRecord{}, err
	}
	return fromAPI(stored), nil
}

func (c *HTTPClient) Delete(ctx context.Context, userID string, id string) error {
	resp, err := c.authorized(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", id).SetQueryParam("user_id", userID).Delete(api.PathRecord)
	})
	err = mapError(resp, err)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (c *HTTPClient) UploadPhoto(ctx context.Context, data []byte, contentType string) (string, error) {
	req := api.PhotoUploadRequest{
		SHA256:      cryptox.ContentSHA256(data),
		Size:        int64(len(data)),
		ContentType: contentType,
	}

	var slot api.PhotoUploadResponse
	resp, err := c.authorized(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(req).SetResult(&slot).Post(api.PathPhotos)
	})
	if err := mapError(resp, err); err != nil {
		return "", err
	}
	if slot.Exists {
		return slot.URL, nil
	}
	if slot.UploadURL == "" {
		return "", fmt.Errorf("%w: no upload url for %s", ErrRejected, req.SHA256)
	}

	// presigned URL: no bearer token
	resp, err = c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put(slot.UploadURL)
	if err := mapError(resp, err); err != nil {
		return "", fmt.Errorf("photo upload: %w", err)
	}
	return slot.URL, nil
}

// authorized runs call with the bearer token attached. When the server
// reports an expired access token the pair is refreshed once and the call
// repeated.
func (c *HTTPClient) authorized(ctx context.Context, call func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	access, refresh := c.tokens()

	resp, err := call(c.request(ctx, access))
	if err != nil || !tokenExpired(resp) || refresh == "" {
		return resp, err
	}

	if err := c.refresh(ctx, refresh); err != nil {
		return resp, err
	}
	access, _ = c.tokens()
	return call(c.request(ctx, access))
}

func (c *HTTPClient) request(ctx context.Context, access string) *resty.Request {
	r := c.http.R().SetContext(ctx).SetError(&api.ErrorResponse{})
	if access != "" {
		r.SetHeader(common.AuthorizationHeaderName, common.BearerPrefix+access)
	}
	return r
}

func (c *HTTPClient) refresh(ctx context.Context, refreshToken string) error {
	var out api.TokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(api.RefreshRequest{RefreshToken: refreshToken}).
		SetResult(&out).
		SetError(&api.ErrorResponse{}).
		Post(api.PathRefresh)
	if err := mapError(resp, err); err != nil {
		return fmt.Errorf("token refresh: %w", err)
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.refreshToken = out.RefreshToken
	cb := c.onRefresh
	c.mu.Unlock()

	if cb != nil {
		cb(out.AccessToken, out.RefreshToken)
	}
	return nil
}

// mapped reports whether err already carries a package sentinel, as a
// failed token refresh does.
func mapped(err error) bool {
	for _, target := range []error{ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrRejected} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func tokenExpired(resp *resty.Response) bool {
	if resp == nil || resp.StatusCode() != http.StatusUnauthorized {
		return false
	}
	return serverMessage(resp) == common.ErrTokenExpired.Error()
}

func serverMessage(resp *resty.Response) string {
	if e, ok := resp.Error().(*api.ErrorResponse); ok && e != nil {
		return e.Error
	}
	return ""
}

// mapError turns a transport failure or non-2xx reply into one of the
// package sentinels.
func mapError(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || mapped(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp == nil || resp.IsSuccess() {
		return nil
	}

	var sentinel error
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case code == http.StatusForbidden:
		sentinel = ErrForbidden
	case code == http.StatusNotFound:
		sentinel = ErrNotFound
	case code == http.StatusConflict:
		sentinel = ErrConflict
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		sentinel = ErrRejected
	case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		sentinel = ErrUnavailable
	default:
		sentinel = ErrRejected
	}

	if msg := serverMessage(resp); msg != "" {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return fmt.Errorf("%w: status %d", sentinel, resp.StatusCode())
}
