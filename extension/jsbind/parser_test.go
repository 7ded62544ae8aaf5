package jsbind

import (
	"testing"
	"time"

	"github.com/dop251/goja"
	jsrequire "github.com/dop251/goja_nodejs/require"
	"github.com/stretchr/testify/assert"
)

func newRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	registry := jsrequire.NewRegistry()
	registry.RegisterNativeModule("http_parser", RequireHTTPParser())
	registry.RegisterNativeModule("cookies", RequireCookies())
	registry.Enable(vm)
	_, err := vm.RunString(`
		const { HTTPParser, ConnectionsList, methods, allMethods } = require('http_parser');
		const str = (b) => {
			let s = '';
			for (let i = 0; i < b.length; i++) s += String.fromCharCode(b[i]);
			return s;
		};
		const recorder = (p) => {
			const events = [];
			p[HTTPParser.kOnMessageBegin] = () => { events.push('begin'); };
			p[HTTPParser.kOnHeaders] = (headers, url) => { events.push({ headers, url }); };
			p[HTTPParser.kOnHeadersComplete] = (major, minor, headers, method, url, statusCode, statusMessage, upgrade, keepAlive) => {
				events.push({ major, minor, headers, method: allMethods[method], url, statusCode, statusMessage, upgrade, keepAlive });
				return 0;
			};
			p[HTTPParser.kOnBody] = (b) => { events.push(str(b)); };
			p[HTTPParser.kOnMessageComplete] = () => { events.push('complete'); };
			return events;
		};
	`)
	assert.Nil(t, err)
	return vm
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	if !assert.Nil(t, err) {
		t.FailNow()
	}
	return v
}

func TestModuleExports(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const hp = require('http_parser');
		JSON.stringify([
			HTTPParser.REQUEST, HTTPParser.RESPONSE,
			HTTPParser.kOnMessageBegin, HTTPParser.kOnHeaders, HTTPParser.kOnHeadersComplete,
			HTTPParser.kOnBody, HTTPParser.kOnMessageComplete, HTTPParser.kOnExecute, HTTPParser.kOnTimeout,
			hp.kLenientNone, hp.kLenientHeaders, hp.kLenientKeepAlive, hp.kLenientSpacesAfterChunkSize, hp.kLenientAll,
			methods.indexOf('PRI'), methods[0], methods[5],
			allMethods[34], allMethods[46], allMethods[40],
		])
	`)
	assert.JSONEq(t, `[1,2,0,1,2,3,4,5,6,0,1,4,512,1023,-1,"DELETE","CONNECT","PRI","QUERY",null]`, v.String())
}

func TestParseRequest(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		const events = recorder(p);
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		const input = 'POST /a HTTP/1.1\r\nHost: x\r\nContent-Length: 2\r\n\r\nhi';
		const n = p.execute(input);
		JSON.stringify({ consumed: n === input.length, events });
	`)
	assert.JSONEq(t, `{
		"consumed": true,
		"events": [
			"begin",
			{"major":1,"minor":1,"headers":["Host","x","Content-Length","2"],"method":"POST","url":"/a","upgrade":false,"keepAlive":true},
			"hi",
			"complete"
		]
	}`, v.String())
}

func TestParseResponse(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		const events = recorder(p);
		p.initialize(HTTPParser.RESPONSE, {}, 0, 0);
		p.execute('HTTP/1.0 404 Not Found\r\nContent-Length: 0\r\n\r\n');
		JSON.stringify(events);
	`)
	assert.JSONEq(t, `[
		"begin",
		{"major":1,"minor":0,"headers":["Content-Length","0"],"statusCode":404,"statusMessage":"Not Found","upgrade":false,"keepAlive":false},
		"complete"
	]`, v.String())
}

func TestParseChunkedWithTrailers(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		const events = recorder(p);
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		p.execute('PUT /u HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n');
		p.execute('3\r\nabc\r\n0\r\nX-Sum: 1\r\n\r\n');
		JSON.stringify(events.slice(2).map((e) => e.headers || e));
	`)
	assert.JSONEq(t, `["abc",["X-Sum","1"],"complete"]`, v.String())
}

func TestParseError(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		const e = p.execute('FOO / HTTP/1.1\r\n\r\n');
		JSON.stringify({
			isError: e instanceof Error,
			code: e.code,
			bytesParsed: typeof e.bytesParsed,
			message: e.message.startsWith('Parse Error: '),
			reason: typeof e.reason,
		});
	`)
	assert.JSONEq(t, `{"isError":true,"code":"HPE_INVALID_METHOD","bytesParsed":"number","message":true,"reason":"string"}`, v.String())
}

func TestHeaderOverflow(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		p.initialize(HTTPParser.REQUEST, {}, 32, 0);
		p.execute('GET / HTTP/1.1\r\nX-Long: ' + 'a'.repeat(64) + '\r\n\r\n').code;
	`)
	assert.Equal(t, "HPE_HEADER_OVERFLOW", v.String())
}

func TestCallbackExceptionIsRethrown(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		p[HTTPParser.kOnHeadersComplete] = () => { throw new RangeError('boom'); };
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		let caught;
		try {
			p.execute('GET / HTTP/1.1\r\n\r\n');
		} catch (e) {
			caught = e;
		}
		caught instanceof RangeError && caught.message === 'boom';
	`)
	assert.True(t, v.ToBoolean())
}

func TestSlotsAreReadAtInitialize(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		let calls = 0;
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		p[HTTPParser.kOnMessageComplete] = () => { calls++; };
		p.execute('GET / HTTP/1.1\r\n\r\n');
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		p.execute('GET / HTTP/1.1\r\n\r\n');
		calls;
	`)
	assert.Equal(t, int64(1), v.ToInteger())
}

func TestUpgrade(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		const events = recorder(p);
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		const input = 'GET /ws HTTP/1.1\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\nrest';
		const n = p.execute(input);
		JSON.stringify({ head: input.slice(n), upgrade: events[1].upgrade });
	`)
	assert.JSONEq(t, `{"head":"rest","upgrade":true}`, v.String())
}

func TestPauseResume(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		p.pause();
		const paused = p.execute('GET / HTTP/1.1\r\n\r\n');
		p.resume();
		const input = 'GET / HTTP/1.1\r\n\r\n';
		JSON.stringify([paused.code, p.execute(input) === input.length]);
	`)
	assert.JSONEq(t, `["HPE_PAUSED",true]`, v.String())
}

func TestFinish(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		const events = recorder(p);
		p.initialize(HTTPParser.RESPONSE, {}, 0, 0);
		p.execute('HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nbody');
		const ok = p.finish();

		const q = new HTTPParser();
		q.initialize(HTTPParser.REQUEST, {}, 0, 0);
		q.execute('GET / HTTP/1.1\r\nHost');
		const e = q.finish();
		JSON.stringify([ok === undefined, events[events.length - 1], e.code]);
	`)
	assert.JSONEq(t, `[true,"complete","HPE_INVALID_EOF_STATE"]`, v.String())
}

func TestExecuteNullishFinishes(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		const events = recorder(p);
		p.initialize(HTTPParser.RESPONSE, {}, 0, 0);
		p.execute('HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nbody');
		const ok = p.execute(null);

		const q = new HTTPParser();
		q.initialize(HTTPParser.REQUEST, {}, 0, 0);
		q.execute('GET / HTTP/1.1\r\nHost');
		const e = q.execute(undefined);

		const r = new HTTPParser();
		r.initialize(HTTPParser.REQUEST, {}, 0, 0);
		const bare = r.execute();
		JSON.stringify([ok === undefined, events[events.length - 1], e.code, bare === undefined]);
	`)
	assert.JSONEq(t, `[true,"complete","HPE_INVALID_EOF_STATE",true]`, v.String())
}

func TestCurrentBufferAndState(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const p = new HTTPParser();
		let inside;
		let completed;
		p[HTTPParser.kOnHeadersComplete] = function () {
			inside = str(this.getCurrentBuffer());
			completed = this.headersCompleted();
			return 0;
		};
		p.initialize(HTTPParser.REQUEST, {}, 0, 0);
		p.execute('GET / HTTP/1.1\r\n\r\n');
		p.execute('GET /b HTTP/1.1\r\nContent-Length: 5\r\n\r\nab');
		JSON.stringify({
			inside,
			completed,
			outside: p.getCurrentBuffer() === undefined,
			busy: p.duration() >= 0,
		});
	`)
	assert.JSONEq(t, `{"inside":"GET /b HTTP/1.1\r\nContent-Length: 5\r\n\r\nab","completed":true,"outside":true,"busy":true}`, v.String())
}

func TestInvalidArguments(t *testing.T) {
	vm := newRuntime(t)
	for _, src := range []string{
		`new HTTPParser().initialize(5, {}, 0, 0)`,
		`const a = new HTTPParser(); a.initialize(HTTPParser.REQUEST, {}, 0, 0); a.execute(42)`,
		`HTTPParser.prototype.execute.call({}, 'GET')`,
		`new HTTPParser().initialize(HTTPParser.REQUEST, {}, 0, 0, {})`,
	} {
		_, err := vm.RunString(`(() => {` + src + `})()`)
		var ex *goja.Exception
		if assert.ErrorAs(t, err, &ex, src) {
			assert.Contains(t, ex.Value().ToObject(vm).Get("name").String(), "TypeError", src)
		}
	}
}

func TestConnectionsList(t *testing.T) {
	vm := newRuntime(t)
	v := run(t, vm, `
		const list = new ConnectionsList();
		const p = new HTTPParser();
		p.initialize(HTTPParser.REQUEST, {}, 0, 0, list);
		const fresh = [list.all().length, list.active().length, list.idle().length, list.all()[0] === p];
		p.execute('GET / HTTP/1.1\r\n\r\n');
		const done = [list.all().length, list.active().length, list.idle().length, p.duration()];
		p.remove();
		JSON.stringify({ fresh, done, removed: list.all().length });
	`)
	assert.JSONEq(t, `{"fresh":[1,1,0,true],"done":[1,0,1,0],"removed":0}`, v.String())
}

func TestConnectionsListExpired(t *testing.T) {
	vm := newRuntime(t)
	run(t, vm, `
		var list = new ConnectionsList();
		var slow = new HTTPParser();
		slow.initialize(HTTPParser.REQUEST, {}, 0, 0, list);
		slow.execute('GET / HTTP/1.1\r\n');
		var idle = new HTTPParser();
		idle.initialize(HTTPParser.REQUEST, {}, 0, 0, list);
		idle.execute('GET / HTTP/1.1\r\n\r\n');
	`)
	time.Sleep(20 * time.Millisecond)

	v := run(t, vm, `
		const none = list.expired(0, 0).length;
		const expired = list.expired(5, 0);
		JSON.stringify([none, expired.length, expired[0] === slow, list.active().length, list.all().length]);
	`)
	assert.JSONEq(t, `[0,1,true,0,2]`, v.String())
}
