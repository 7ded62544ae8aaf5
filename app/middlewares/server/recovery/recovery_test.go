package recovery

import (
	"context"
	"testing"

	"github.com/favbox/hostbind/app"
	"github.com/favbox/hostbind/common/ut"
	"github.com/favbox/hostbind/protocol"
	"github.com/favbox/hostbind/protocol/consts"
	"github.com/stretchr/testify/assert"
)

func panicky(ctx context.Context, req *protocol.Request, resp *protocol.Response) {
	resp.Header.Set("X-Partial", "1")
	panic("boom")
}

func TestRecoveryDefault(t *testing.T) {
	var resp protocol.Response
	req := &protocol.Request{Method: "GET", URL: "/"}
	assert.NotPanics(t, func() {
		Recovery()(panicky)(context.Background(), req, &resp)
	})
	assert.Equal(t, consts.StatusInternalServerError, resp.StatusCode())
	assert.Equal(t, "Internal Server Error", string(resp.Body()))
	assert.False(t, resp.Header.Has("X-Partial"))
}

func TestRecoveryCustomHandler(t *testing.T) {
	var got any
	var stack []byte
	h := Recovery(WithRecoveryHandler(func(ctx context.Context, req *protocol.Request, resp *protocol.Response, err any, s []byte) {
		got, stack = err, s
		resp.SetStatusCode(consts.StatusNotImplemented)
	}))(panicky)

	var resp protocol.Response
	h(context.Background(), &protocol.Request{}, &resp)
	assert.Equal(t, "boom", got)
	assert.NotEmpty(t, stack)
	assert.Equal(t, consts.StatusNotImplemented, resp.StatusCode())
}

func TestRecoveryPassThrough(t *testing.T) {
	var resp protocol.Response
	Recovery()(func(ctx context.Context, req *protocol.Request, resp *protocol.Response) {
		resp.SetBodyString("ok")
	})(context.Background(), &protocol.Request{}, &resp)
	assert.Equal(t, consts.StatusOK, resp.StatusCode())
	assert.Equal(t, "ok", string(resp.Body()))
}

func TestRecoveryThroughServer(t *testing.T) {
	w := ut.PerformRequest(app.Chain(panicky, Recovery()), "GET", "/", nil)
	assert.Nil(t, w.Err)
	assert.Equal(t, consts.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", string(w.Body))
	assert.False(t, w.Header.Has("X-Partial"))
}
