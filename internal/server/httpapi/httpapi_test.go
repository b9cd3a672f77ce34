package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/common"
	"github.com/dmitrijs2005/marinelog/internal/server/models"
	"github.com/dmitrijs2005/marinelog/internal/server/notifier"
	"github.com/dmitrijs2005/marinelog/internal/server/services"
)

const (
	goodToken    = "good"
	expiredToken = "expired"
	alice        = "user-alice"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeUsers struct {
	registerErr error
	loginErr    error
}

func (f *fakeUsers) Register(_ context.Context, username string, _, _ []byte) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: "id-" + username, UserName: username}, nil
}

func (f *fakeUsers) GetSalt(_ context.Context, username string) ([]byte, error) {
	if username != "alice" {
		return nil, common.ErrorNotFound
	}
	return []byte("salt"), nil
}

func (f *fakeUsers) Login(context.Context, string, []byte) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &services.TokenPair{UserID: alice, AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeUsers) RefreshToken(_ context.Context, token string) (*services.TokenPair, error) {
	if token != "r" {
		return nil, common.ErrorUnauthorized
	}
	return &services.TokenPair{UserID: alice, AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (f *fakeUsers) Authenticate(token string) (string, error) {
	switch token {
	case goodToken:
		return alice, nil
	case expiredToken:
		return "", common.ErrTokenExpired
	default:
		return "", common.ErrInvalidToken
	}
}

type fakeRecords struct {
	stored  map[string]*models.Record
	deleted []string
	err     error
}

func (f *fakeRecords) List(_ context.Context, userID string) ([]*models.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Record
	for _, r := range f.stored {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Upsert(_ context.Context, userID string, rec *models.Record) (*models.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *rec
	cp.UserID = userID
	f.stored[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeRecords) Delete(_ context.Context, _ string, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePhotos struct{}

func (fakePhotos) UploadSlot(_ context.Context, req api.PhotoUploadRequest) (*api.PhotoUploadResponse, error) {
	if req.SHA256 == "" {
		return nil, common.ErrorValidation
	}
	return &api.PhotoUploadResponse{URL: "https://cdn/" + req.SHA256 + ".jpg", UploadURL: "https://s3/put"}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type env struct {
	srv     *httptest.Server
	users   *fakeUsers
	records *fakeRecords
	hub     *notifier.Hub
}

func newEnv(t *testing.T, health Pinger) *env {
	t.Helper()
	e := &env{
		users:   &fakeUsers{},
		records: &fakeRecords{stored: map[string]*models.Record{}},
		hub:     notifier.NewHub(),
	}
	e.srv = httptest.NewServer(NewRouter(Deps{
		Users:    e.users,
		Records:  e.records,
		Photos:   fakePhotos{},
		Notifier: e.hub,
		Health:   health,
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func visit(id string) api.Record {
	return api.Record{
		ID:            id,
		ClientName:    "Acme",
		VesselName:    "Orion",
		StartDateTime: t0,
		PhotoURLs:     []string{},
		CreatedAt:     t0,
		UpdatedAt:     t0.Add(time.Minute),
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t, fakePinger{})
	resp, body := e.do(t, http.MethodGet, api.PathHealth, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"OK"}`, string(body))

	down := newEnv(t, fakePinger{err: errors.New("db gone")})
	resp, body = down.do(t, http.MethodGet, api.PathHealth, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"DOWN"}`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodGet, api.PathHealth, "", nil)

	resp, body := e.do(t, http.MethodGet, api.PathMetrics, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "marinelog_http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t, nil)

	resp, body := e.do(t, http.MethodPost, api.PathRegister, "", api.RegisterRequest{Username: "alice", Salt: []byte("s"), Verifier: []byte("v")})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"user_id":"id-alice"}`, string(body))

	resp, body = e.do(t, http.MethodPost, api.PathSalt, "", api.SaltRequest{Username: "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var salt api.SaltResponse
	require.NoError(t, json.Unmarshal(body, &salt))
	assert.Equal(t, []byte("salt"), salt.Salt)

	resp, _ = e.do(t, http.MethodPost, api.PathSalt, "", api.SaltRequest{Username: "bob"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, api.PathLogin, "", api.LoginRequest{Username: "alice", Verifier: []byte("v")})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"user_id":"user-alice","access_token":"a","refresh_token":"r"}`, string(body))

	resp, body = e.do(t, http.MethodPost, api.PathRefresh, "", api.RefreshRequest{RefreshToken: "r"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"user_id":"user-alice","access_token":"a2","refresh_token":"r2"}`, string(body))

	resp, _ = e.do(t, http.MethodPost, api.PathRefresh, "", api.RefreshRequest{RefreshToken: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthErrors(t *testing.T) {
	e := newEnv(t, nil)

	e.users.registerErr = common.ErrorAlreadyExists
	resp, _ := e.do(t, http.MethodPost, api.PathRegister, "", api.RegisterRequest{Username: "alice"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	e.users.loginErr = common.ErrorUnauthorized
	resp, _ = e.do(t, http.MethodPost, api.PathLogin, "", api.LoginRequest{Username: "alice"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+api.PathLogin, strings.NewReader("{bad"))
	require.NoError(t, err)
	r, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	_ = r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t, nil)

	resp, body := e.do(t, http.MethodGet, api.PathRecords, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"unauthorized"}`, string(body))

	resp, body = e.do(t, http.MethodGet, api.PathRecords, expiredToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"token expired"}`, string(body))

	resp, _ = e.do(t, http.MethodGet, api.PathRecords, "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRecordsLifecycle(t *testing.T) {
	e := newEnv(t, nil)

	resp, body := e.do(t, http.MethodGet, api.PathRecords+"?user_id="+alice, goodToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = e.do(t, http.MethodPut, "/api/v1/records/r1", goodToken, visit("r1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stored api.Record
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, "r1", stored.ID)
	assert.Equal(t, alice, stored.UserID)
	assert.Equal(t, t0, stored.StartDateTime)

	resp, body = e.do(t, http.MethodGet, api.PathRecords, goodToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list []api.Record
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "r1", list[0].ID)

	resp, _ = e.do(t, http.MethodDelete, "/api/v1/records/r1?user_id="+alice, goodToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"r1"}, e.records.deleted)
}

func TestRecords_OwnershipAndValidation(t *testing.T) {
	e := newEnv(t, nil)

	resp, _ := e.do(t, http.MethodGet, api.PathRecords+"?user_id=someone-else", goodToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/api/v1/records/r1?user_id=someone-else", goodToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	foreign := visit("r1")
	foreign.UserID = "someone-else"
	resp, _ = e.do(t, http.MethodPut, "/api/v1/records/r1", goodToken, foreign)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPut, "/api/v1/records/r1", goodToken, visit("r2"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, e.records.stored)
}

func TestRecords_ServiceErrors(t *testing.T) {
	e := newEnv(t, nil)

	e.records.err = common.ErrorValidation
	resp, _ := e.do(t, http.MethodPut, "/api/v1/records/r1", goodToken, visit("r1"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.records.err = errors.New("connection reset")
	resp, body := e.do(t, http.MethodGet, api.PathRecords, goodToken, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "connection reset")
}

func TestPhotoSlot(t *testing.T) {
	e := newEnv(t, nil)

	resp, body := e.do(t, http.MethodPost, api.PathPhotos, goodToken, api.PhotoUploadRequest{SHA256: "abc", Size: 10, ContentType: "image/jpeg"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"url":"https://cdn/abc.jpg","upload_url":"https://s3/put","exists":false}`, string(body))

	resp, _ = e.do(t, http.MethodPost, api.PathPhotos, goodToken, api.PhotoUploadRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, api.PathPhotos, "", api.PhotoUploadRequest{SHA256: "abc"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func dialChanges(t *testing.T, e *env, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + api.PathChanges
	h := http.Header{}
	h.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: h})
}

func TestChanges_StreamsOwnEvents(t *testing.T) {
	e := newEnv(t, nil)

	conn, _, err := dialChanges(t, e, goodToken)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return e.hub.Subscribers(alice) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, e.hub.Publish(context.Background(), api.ChangeEvent{UserID: "someone-else", RecordID: "x", Op: "upsert", At: t0}))
	require.NoError(t, e.hub.Publish(context.Background(), api.ChangeEvent{UserID: alice, RecordID: "r1", Op: "upsert", At: t0}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var ev api.ChangeEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "r1", ev.RecordID)
	assert.Equal(t, alice, ev.UserID)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool { return e.hub.Subscribers(alice) == 0 }, time.Second, 10*time.Millisecond)
}

func TestChanges_RequiresToken(t *testing.T) {
	e := newEnv(t, nil)

	_, resp, err := dialChanges(t, e, expiredToken)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
