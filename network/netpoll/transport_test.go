package netpoll

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/favbox/hostbind/common/config"
	errs "github.com/favbox/hostbind/common/errors"
	"github.com/favbox/hostbind/network"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func waitAddr(t *testing.T, tr network.Transporter) net.Addr {
	var addr net.Addr
	assert.Eventually(t, func() bool {
		addr = tr.(network.Addresser).Addr()
		return addr != nil
	}, time.Second, 10*time.Millisecond)
	return addr
}

func TestTransport(t *testing.T) {
	t.Run("TestDefault", func(t *testing.T) {
		var onAcceptFlag, onDataFlag int32
		transporter := NewTransporter(&config.Options{
			Addr:    "127.0.0.1:0",
			Network: "tcp",
			OnAccept: func(conn net.Conn) context.Context {
				atomic.StoreInt32(&onAcceptFlag, 1)
				return context.Background()
			},
			WriteTimeout: time.Second,
		})
		go transporter.ListenAndServe(func(ctx context.Context, conn network.Conn) error {
			atomic.StoreInt32(&onDataFlag, 1)
			buf := make([]byte, 3)
			if _, err := io.ReadFull(conn, buf); err != nil {
				return err
			}
			_, err := conn.Write(buf)
			return err
		})
		defer transporter.Close()
		addr := waitAddr(t, transporter)

		conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
		assert.Nil(t, err)
		defer conn.Close()
		_, err = conn.Write([]byte("123"))
		assert.Nil(t, err)
		got := make([]byte, 3)
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, err = io.ReadFull(conn, got)
		assert.Nil(t, err)
		assert.Equal(t, "123", string(got))

		assert.Equal(t, int32(1), atomic.LoadInt32(&onAcceptFlag))
		assert.Equal(t, int32(1), atomic.LoadInt32(&onDataFlag))
	})

	t.Run("TestListenConfig", func(t *testing.T) {
		listenCfg := &net.ListenConfig{Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		}}
		transporter := NewTransporter(&config.Options{
			Addr:         "127.0.0.1:0",
			Network:      "tcp",
			ListenConfig: listenCfg,
		})
		go transporter.ListenAndServe(func(ctx context.Context, conn network.Conn) error {
			return nil
		})
		defer transporter.Close()
		assert.NotNil(t, waitAddr(t, transporter))
	})

	t.Run("TestUnixSocket", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "np.sock")
		transporter := NewTransporter(&config.Options{Addr: path, Network: "unix"})
		go transporter.ListenAndServe(func(ctx context.Context, conn network.Conn) error {
			return nil
		})
		waitAddr(t, transporter)
		conn, err := net.DialTimeout("unix", path, time.Second)
		assert.Nil(t, err)
		_ = conn.Close()
		assert.Nil(t, transporter.Close())
	})

	t.Run("TestExceptionCase", func(t *testing.T) {
		transporter := NewTransporter(&config.Options{
			Network: "未指定网络类型",
		})
		err := transporter.ListenAndServe(func(ctx context.Context, conn network.Conn) error {
			return nil
		})
		assert.NotNil(t, err)
		assert.Equal(t, errs.ErrorTypePrivate, errs.TypeOf(err))
	})
}

func TestShutdownBeforeListen(t *testing.T) {
	transporter := NewTransporter(&config.Options{Network: "tcp", Addr: "127.0.0.1:0"})
	assert.Nil(t, transporter.(network.Addresser).Addr())
	assert.Nil(t, transporter.Close())
	err := transporter.ListenAndServe(func(ctx context.Context, conn network.Conn) error {
		return nil
	})
	assert.ErrorIs(t, err, errs.ErrServerClosed)
}
