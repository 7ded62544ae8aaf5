package basic_auth

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/favbox/hostbind/app"
	"github.com/favbox/hostbind/internal/bytesconv"
	"github.com/favbox/hostbind/protocol"
	"github.com/favbox/hostbind/protocol/consts"
)

// Accounts 用于构建用户名:密码映射。
type Accounts map[string]string

// 用于构建标头值:用户名的反向映射。
type pairs map[string]string

func (p pairs) findValue(needle string) (v string, ok bool) {
	v, ok = p[needle]
	return
}

func constructPairs(accounts Accounts) pairs {
	p := make(pairs, len(accounts))
	for user, password := range accounts {
		value := "Basic " + base64.StdEncoding.EncodeToString(bytesconv.S2b(user+":"+password))
		p[value] = user
	}
	return p
}

type userKey struct{}

// User 返回通过认证的用户名。
func User(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey{}).(string)
	return user, ok
}

// BasicAuthForRealm 返回指定领域的基本 HTTP 授权中间件。
// accounts 的键是用户名，值是密码。
// realm 是资源所在的领域名称，若为空白字符串则默认使用 "Authorization Required"。
// 认证通过的用户名可在后续处理器中通过 User 取得。
// 详见 http://tools.ietf.org/html/rfc2617#section-1.2
func BasicAuthForRealm(accounts Accounts, realm string) app.Middleware {
	if realm == "" {
		realm = "Authorization Required"
	}
	realm = "Basic realm=" + strconv.Quote(realm)
	p := constructPairs(accounts)
	return func(next app.HandlerFunc) app.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request, resp *protocol.Response) {
			user, found := p.findValue(req.Header.Get("Authorization"))
			if !found {
				// 凭据不匹配，返回 401 且不再调用后续处理器
				resp.Header.Set("WWW-Authenticate", realm)
				resp.SetStatusCode(consts.StatusUnauthorized)
				return
			}
			next(context.WithValue(ctx, userKey{}, user), req, resp)
		}
	}
}

// BasicAuth 用于构造基本 HTTP 授权中间件，领域为 "Authorization Required"。
func BasicAuth(accounts Accounts) app.Middleware {
	return BasicAuthForRealm(accounts, "")
}
