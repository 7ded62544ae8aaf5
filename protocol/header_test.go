package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderOrderAndCase(t *testing.T) {
	var h Header
	h.AddRaw([]string{"Host", "example.com", "X-Multi", "1", "x-multi", "2", "dangling"})
	h.Add("Accept", "*/*")

	assert.Equal(t, 4, h.Len())
	assert.Equal(t, "example.com", h.Get("host"))
	assert.Equal(t, []string{"1", "2"}, h.Values("X-MULTI"))
	assert.True(t, h.Has("accept"))
	assert.False(t, h.Has("dangling"))
	assert.Equal(t, "", h.Get("missing"))
	assert.Nil(t, h.Values("missing"))
	assert.Equal(t, []string{"Host", "example.com", "X-Multi", "1", "x-multi", "2", "Accept", "*/*"}, h.Raw())
}

func TestHeaderSetAndDel(t *testing.T) {
	var h Header
	h.AddRaw([]string{"A", "1", "B", "2", "a", "3"})

	h.Set("a", "9")
	assert.Equal(t, []string{"A", "9", "B", "2"}, h.Raw())

	h.Set("C", "new")
	assert.Equal(t, "new", h.Get("c"))

	h.Del("b")
	assert.Equal(t, []string{"A", "9", "C", "new"}, h.Raw())

	var keys []string
	h.VisitAll(func(k, v string) { keys = append(keys, k) })
	assert.Equal(t, []string{"A", "C"}, keys)

	assert.Equal(t, "A: 9\r\nC: new\r\n", string(h.AppendBytes(nil)))

	h.Reset()
	assert.Zero(t, h.Len())
}
