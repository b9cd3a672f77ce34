package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/common"
)

const maxEventSize = 16 << 10

// Watch dials the realtime change channel and hands every event to fn.
// Events only signal that something changed; callers refetch.
func (c *HTTPClient) Watch(ctx context.Context, fn func(api.ChangeEvent)) error {
	conn, err := c.dialChanges(ctx)
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxEventSize)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return ctx.Err()
			}
			return fmt.Errorf("%w: change stream: %v", ErrUnavailable, err)
		}
		if typ != websocket.MessageText {
			continue
		}

		var ev api.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		fn(ev)
	}
}

func (c *HTTPClient) dialChanges(ctx context.Context) (*websocket.Conn, error) {
	access, refresh := c.tokens()

	conn, resp, err := c.dial(ctx, access)
	if err == nil {
		return conn, nil
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized || refresh == "" {
		return nil, dialError(resp, err)
	}

	if err := c.refresh(ctx, refresh); err != nil {
		return nil, err
	}
	access, _ = c.tokens()
	conn, resp, err = c.dial(ctx, access)
	if err != nil {
		return nil, dialError(resp, err)
	}
	return conn, nil
}

func (c *HTTPClient) dial(ctx context.Context, access string) (*websocket.Conn, *http.Response, error) {
	h := http.Header{}
	h.Set(common.AuthorizationHeaderName, common.BearerPrefix+access)
	return websocket.Dial(ctx, c.baseURL+api.PathChanges, &websocket.DialOptions{HTTPHeader: h})
}

func dialError(resp *http.Response, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden:
			return ErrForbidden
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
