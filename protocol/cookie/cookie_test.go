package cookie

import (
	"testing"
	"time"

	errs "github.com/favbox/hostbind/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCookieDefaults(t *testing.T) {
	c := NewCookie("name", "value")
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "", c.Domain)
	assert.True(t, c.Expires.IsZero())
	assert.False(t, c.Secure)
	assert.Equal(t, SameSiteLax, c.SameSite)
	assert.Equal(t, "name=value; Path=/; SameSite=Lax", c.String())
}

func TestCookieString(t *testing.T) {
	c := &Cookie{Name: "name", Value: "value", Domain: "example.com", Path: "/foo", Secure: true}
	assert.Equal(t, "name=value; Domain=example.com; Path=/foo; Secure; SameSite=Lax", c.String())

	cases := []struct {
		c    Cookie
		want string
	}{
		{Cookie{Name: "foo", Value: "bar"}, "foo=bar; SameSite=Lax"},
		{Cookie{Name: "foo", Value: "bar +baz;"}, "foo=bar%20%2Bbaz%3B; SameSite=Lax"},
		{Cookie{Name: "foo", Value: ""}, "foo=; SameSite=Lax"},
		{Cookie{Name: "foo", Value: "bar", HTTPOnly: true}, "foo=bar; HttpOnly; SameSite=Lax"},
		{Cookie{Name: "foo", Value: "bar", Partitioned: true}, "foo=bar; Partitioned; SameSite=Lax"},
		{Cookie{Name: "foo", Value: "bar", MaxAge: 1000}, "foo=bar; Max-Age=1000; SameSite=Lax"},
		{Cookie{Name: "foo", Value: "bar", MaxAge: -1}, "foo=bar; Max-Age=0; SameSite=Lax"},
		{Cookie{Name: "foo", Value: "bar", SameSite: SameSiteNone}, "foo=bar; SameSite=None"},
		{
			Cookie{Name: "foo", Value: "bar", Expires: time.Date(2000, 12, 25, 10, 30, 59, 900e6, time.UTC)},
			"foo=bar; Expires=Mon, 25 Dec 2000 10:30:59 -0000; SameSite=Lax",
		},
		{
			Cookie{Name: "a", Value: "b", Domain: "d.io", Path: "/p", Expires: time.Unix(0, 0), MaxAge: 5, Secure: true, HTTPOnly: true, Partitioned: true, SameSite: SameSiteStrict},
			"a=b; Domain=d.io; Path=/p; Expires=Thu, 1 Jan 1970 00:00:00 -0000; Max-Age=5; Secure; HttpOnly; Partitioned; SameSite=Strict",
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.c.String())
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"foo", "foo,bar", "foo!bar", "foo#bar", "foo$bar", "foo/bar", "foo:bar", `foo"bar`, `foo\bar`, "foo{bar"} {
		assert.NoError(t, NewCookie(name, "baz").Validate(), name)
	}
	for _, name := range []string{"foo\n", "foo⠊", "foo=bar", "foo;bar", "foo bar", "foo\tbar", ""} {
		err := NewCookie(name, "bar").Validate()
		assert.ErrorIs(t, err, errs.ErrInvalidCookieString, name)
		assert.Equal(t, errs.ErrorTypeCookie, errs.TypeOf(err), name)
	}
}

func TestValidateDomainAndPath(t *testing.T) {
	for _, d := range []string{"example.com", "sub.example.com", ".example.com", "localhost", "my-site.org"} {
		c := NewCookie("foo", "bar")
		c.Domain = d
		assert.NoError(t, c.Validate(), d)
	}
	for _, d := range []string{"example.com\n", "sub.example.com\x00", "my site.org", "example.com; Path=/"} {
		c := NewCookie("foo", "bar")
		c.Domain = d
		assert.Error(t, c.Validate(), d)
	}
	for _, p := range []string{"/login", "/foo=bar?baz", `/foo"bar"`, "../foo/", "./"} {
		c := NewCookie("foo", "bar")
		c.Path = p
		assert.NoError(t, c.Validate(), p)
	}
	for _, p := range []string{"/\n", "/foo\x00", "/path/with\rnewline", "/; Path=/sensitive-data"} {
		c := NewCookie("foo", "bar")
		c.Path = p
		assert.Error(t, c.Validate(), p)
	}
}

func TestParseSetCookie(t *testing.T) {
	c, err := ParseSetCookie("name=value; Domain=example.com; Path=/foo; Secure; SameSite=Lax")
	require.NoError(t, err)
	assert.Equal(t, "name", c.Name)
	assert.Equal(t, "value", c.Value)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, "/foo", c.Path)
	assert.True(t, c.Secure)
	assert.Equal(t, SameSiteLax, c.SameSite)

	c, err = ParseSetCookie("sid=a%20b; httponly; PARTITIONED; samesite=strict; max-age=0; expires=Mon, 25 Dec 2000 10:30:59 -0000")
	require.NoError(t, err)
	assert.Equal(t, "a b", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HTTPOnly)
	assert.True(t, c.Partitioned)
	assert.Equal(t, SameSiteStrict, c.SameSite)
	assert.Equal(t, -1, c.MaxAge)
	assert.Equal(t, time.Date(2000, 12, 25, 10, 30, 59, 0, time.UTC), c.Expires)

	c, err = ParseSetCookie("a=1; Expires=Wed, 21 Oct 2015 07:28:00 GMT")
	require.NoError(t, err)
	assert.Equal(t, 2015, c.Expires.Year())

	_, err = ParseSetCookie("novalue")
	assert.ErrorIs(t, err, errs.ErrInvalidCookieString)
	_, err = ParseSetCookie("a=1; Max-Age=soon")
	assert.ErrorIs(t, err, errs.ErrInvalidCookieString)
	_, err = ParseSetCookie("a b=1")
	assert.ErrorIs(t, err, errs.ErrInvalidCookieString)
}

func TestSameSite(t *testing.T) {
	s, ok := ParseSameSite("NONE")
	assert.True(t, ok)
	assert.Equal(t, SameSiteNone, s)
	_, ok = ParseSameSite("sometimes")
	assert.False(t, ok)
	assert.Equal(t, "Strict", SameSiteStrict.String())
}
