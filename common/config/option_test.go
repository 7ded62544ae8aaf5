package config

import (
	"testing"
	"time"

	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/protocol/http1/llhttp"
	"github.com/stretchr/testify/assert"
)

// TestDefaultOptions 使用默认值测试配置项
func TestDefaultOptions(t *testing.T) {
	options := NewOptions([]Option{})

	assert.Equal(t, defaultNetwork, options.Network)
	assert.Equal(t, defaultAddr, options.Addr)
	assert.Equal(t, defaultKeepAliveTimeout, options.KeepAliveTimeout)
	assert.Equal(t, time.Duration(0), options.ReadTimeout)
	assert.Equal(t, time.Duration(0), options.WriteTimeout)
	assert.Equal(t, defaultExitWaitTimeout, options.ExitWaitTimeout)
	assert.Equal(t, defaultReadBufferSize, options.ReadBufferSize)
	assert.Equal(t, DefaultMaxHeaderSize, options.MaxHeaderSize)
	assert.Equal(t, 300*time.Second, options.RequestTimeout)
	assert.Equal(t, 60*time.Second, options.HeadersTimeout)
	assert.Equal(t, 30*time.Second, options.ConnectionsCheckingInterval)
	assert.Equal(t, llhttp.Lenient(0), options.LenientFlags)
	assert.False(t, options.DisableKeepalive)
	assert.Nil(t, options.TransporterNewer)
	assert.Nil(t, options.Validate())
}

// TestApplyCustomOptions 测试自定义配置项
func TestApplyCustomOptions(t *testing.T) {
	options := NewOptions([]Option{
		{F: func(o *Options) { o.Network = "unix" }},
		{F: func(o *Options) { o.LenientFlags = llhttp.LenientHeaders | llhttp.LenientKeepAlive }},
	})
	assert.Equal(t, "unix", options.Network)
	assert.Equal(t, llhttp.LenientHeaders|llhttp.LenientKeepAlive, options.LenientFlags)
}

func TestValidateDerivesHeadersTimeout(t *testing.T) {
	options := NewOptions([]Option{{F: func(o *Options) { o.RequestTimeout = 10 * time.Second }}})
	assert.Nil(t, options.Validate())
	assert.Equal(t, 10*time.Second, options.HeadersTimeout)

	options = NewOptions([]Option{{F: func(o *Options) { o.RequestTimeout = 0 }}})
	assert.Nil(t, options.Validate())
	assert.Equal(t, 60*time.Second, options.HeadersTimeout)

	options = NewOptions([]Option{{F: func(o *Options) {
		o.MaxHeaderSize = 0
		o.ReadBufferSize = -1
	}}})
	assert.Nil(t, options.Validate())
	assert.Equal(t, DefaultMaxHeaderSize, options.MaxHeaderSize)
	assert.Equal(t, defaultReadBufferSize, options.ReadBufferSize)
}

func TestValidateRejectsHeadersTimeoutAboveRequestTimeout(t *testing.T) {
	options := NewOptions([]Option{{F: func(o *Options) {
		o.RequestTimeout = 5 * time.Second
		o.HeadersTimeout = 6 * time.Second
		o.MarkHeadersTimeout()
	}}})
	err := options.Validate()
	assert.NotNil(t, err)
	assert.True(t, errs.Is(err, errs.ErrInvalidTimeouts))
	assert.Equal(t, errs.ErrorTypePrivate, errs.TypeOf(err))
}
