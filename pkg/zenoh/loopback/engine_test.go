package loopback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// construct allocates a block and runs ctor on it, failing the test on error.
func construct(t *testing.T, e *Engine, k bindings.Kind, ctor func(bindings.OwnedPtr) bindings.Result) bindings.OwnedPtr {
	t.Helper()
	p, err := e.Alloc(k)
	require.NoError(t, err)
	require.Equal(t, bindings.OK, ctor(p))
	return p
}

func TestDropAndFreeAccounting(t *testing.T) {
	e := New()
	p := construct(t, e, bindings.KindBytes, func(dst bindings.OwnedPtr) bindings.Result {
		return e.BytesCopyFromBuf(dst, []byte("abc"))
	})
	assert.Equal(t, 1, e.LiveBlocks())
	assert.Equal(t, 1, e.LiveObjects(bindings.KindBytes))
	assert.Equal(t, 3, e.BytesLen(e.Loan(bindings.KindBytes, p)))

	e.Drop(bindings.KindBytes, e.Move(bindings.KindBytes, p))
	e.Drop(bindings.KindBytes, e.Move(bindings.KindBytes, p))
	assert.Equal(t, 1, e.Drops(bindings.KindBytes), "dropping a gravestone is not a destructor call")
	assert.Zero(t, e.LiveObjects(bindings.KindBytes))
	assert.Zero(t, e.BytesLen(e.Loan(bindings.KindBytes, p)))

	e.Free(bindings.KindBytes, p)
	assert.Zero(t, e.LiveBlocks())
	assert.Panics(t, func() { e.Free(bindings.KindBytes, p) }, "double free")
	assert.Panics(t, func() { e.Loan(bindings.KindBytes, p) }, "use after free")
}

func TestConstructIntoLiveBlockPanics(t *testing.T) {
	e := New()
	p := construct(t, e, bindings.KindEncoding, func(dst bindings.OwnedPtr) bindings.Result {
		return e.EncodingFromStr(dst, "")
	})
	assert.Equal(t, defaultEncoding, e.EncodingString(e.Loan(bindings.KindEncoding, p)))
	assert.Panics(t, func() { e.EncodingFromStr(p, "text/plain") })
}

func TestConfigParsing(t *testing.T) {
	e := New()
	cases := []struct {
		text string
		want bindings.Result
	}{
		{`{}`, bindings.OK},
		{``, bindings.OK},
		{`{"mode": "client", "connect": {"endpoints": ["tcp/localhost:7447"]}}`, bindings.OK},
		{"mode: router\n", bindings.OK},
		{`{"mode": "nope"}`, bindings.EInval},
		{`{"mode": 3}`, bindings.EInval},
		{`{"mode": `, bindings.EParse},
		{`[1, 2]`, bindings.EParse},
	}
	for _, tc := range cases {
		p, err := e.Alloc(bindings.KindConfig)
		require.NoError(t, err)
		assert.Equal(t, tc.want, e.ConfigFromStr(p, tc.text), tc.text)
		e.Drop(bindings.KindConfig, e.Move(bindings.KindConfig, p))
		e.Free(bindings.KindConfig, p)
	}
	assert.Zero(t, e.LiveBlocks())
}

func TestFailIsOneShot(t *testing.T) {
	e := New()
	e.Fail(OpKeyExpr, bindings.EGeneric)

	p, err := e.Alloc(bindings.KindKeyExpr)
	require.NoError(t, err)
	assert.Equal(t, bindings.EGeneric, e.KeyExprFromStr(p, "a/b"))
	assert.Equal(t, bindings.OK, e.KeyExprFromStr(p, "a/b"))
	assert.Equal(t, "a/b", e.KeyExprString(e.Loan(bindings.KindKeyExpr, p)))
}

type recorder struct {
	mu      sync.Mutex
	e       *Engine
	samples []string
	dropped chan struct{}
}

func newRecorder(e *Engine) *recorder {
	return &recorder{e: e, dropped: make(chan struct{})}
}

func (r *recorder) call(_ uintptr, s bindings.SamplePtr) {
	ke := r.e.KeyExprString(r.e.SampleKeyExpr(s))
	payload := r.e.BytesCopyOut(r.e.SamplePayload(s), nil)
	r.mu.Lock()
	r.samples = append(r.samples, ke+"="+string(payload))
	r.mu.Unlock()
}

func (r *recorder) drop(uintptr) { close(r.dropped) }

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.samples...)
}

type fixture struct {
	e    *Engine
	sess bindings.OwnedPtr
}

func openFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	e := New(opts...)
	t.Cleanup(func() { _ = e.Shutdown() })
	cfg := construct(t, e, bindings.KindConfig, e.ConfigDefault)
	sess := construct(t, e, bindings.KindSession, func(dst bindings.OwnedPtr) bindings.Result {
		return e.Open(dst, e.Move(bindings.KindConfig, cfg), nil)
	})
	e.Free(bindings.KindConfig, cfg)
	return &fixture{e: e, sess: sess}
}

func (f *fixture) keyExpr(t *testing.T, s string) bindings.OwnedPtr {
	return construct(t, f.e, bindings.KindKeyExpr, func(dst bindings.OwnedPtr) bindings.Result {
		return f.e.KeyExprFromStr(dst, s)
	})
}

func (f *fixture) subscribe(t *testing.T, ke bindings.OwnedPtr, r *recorder) bindings.OwnedPtr {
	e := f.e
	cl := construct(t, e, bindings.KindClosureSample, func(dst bindings.OwnedPtr) bindings.Result {
		return e.ClosureSample(dst, r.call, r.drop, 7)
	})
	sub := construct(t, e, bindings.KindSubscriber, func(dst bindings.OwnedPtr) bindings.Result {
		return e.DeclareSubscriber(e.Loan(bindings.KindSession, f.sess), dst, e.Loan(bindings.KindKeyExpr, ke), e.Move(bindings.KindClosureSample, cl), nil)
	})
	e.Free(bindings.KindClosureSample, cl)
	return sub
}

func (f *fixture) publisher(t *testing.T, ke bindings.OwnedPtr, cc bindings.CongestionControl) bindings.OwnedPtr {
	e := f.e
	return construct(t, e, bindings.KindPublisher, func(dst bindings.OwnedPtr) bindings.Result {
		return e.DeclarePublisher(e.Loan(bindings.KindSession, f.sess), dst, e.Loan(bindings.KindKeyExpr, ke), &bindings.PublisherOptions{CongestionControl: cc})
	})
}

func (f *fixture) put(t *testing.T, pub bindings.OwnedPtr, payload string) bindings.Result {
	e := f.e
	b := construct(t, e, bindings.KindBytes, func(dst bindings.OwnedPtr) bindings.Result {
		return e.BytesCopyFromBuf(dst, []byte(payload))
	})
	defer e.Free(bindings.KindBytes, b)
	return e.PublisherPut(e.Loan(bindings.KindPublisher, pub), e.Move(bindings.KindBytes, b), nil)
}

func TestPutDeliversToMatchingSubscribers(t *testing.T) {
	f := openFixture(t)
	e := f.e

	r := newRecorder(e)
	sub := f.subscribe(t, f.keyExpr(t, "demo/*"), r)
	pub := f.publisher(t, f.keyExpr(t, "demo/x"), bindings.CongestionBlock)
	miss := f.publisher(t, f.keyExpr(t, "other/x"), bindings.CongestionBlock)

	require.Equal(t, bindings.OK, f.put(t, pub, "1"))
	require.Equal(t, bindings.OK, f.put(t, miss, "ignored"))
	require.Equal(t, bindings.OK, f.put(t, pub, "2"))
	require.Eventually(t, func() bool { return len(r.got()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"demo/x=1", "demo/x=2"}, r.got())
	assert.Zero(t, e.LiveObjects(bindings.KindBytes), "put consumes its payload")

	e.Drop(bindings.KindSubscriber, e.Move(bindings.KindSubscriber, sub))
	select {
	case <-r.dropped:
	case <-time.After(time.Second):
		t.Fatal("closure was not dropped after undeclare")
	}
}

func TestFailedDeclareDropsClosureSynchronously(t *testing.T) {
	f := openFixture(t)
	e := f.e
	ke := f.keyExpr(t, "a/b")

	r := newRecorder(e)
	cl := construct(t, e, bindings.KindClosureSample, func(dst bindings.OwnedPtr) bindings.Result {
		return e.ClosureSample(dst, r.call, r.drop, 1)
	})
	e.Fail(OpDeclareSubscriber, bindings.ENetwork)
	sub, err := e.Alloc(bindings.KindSubscriber)
	require.NoError(t, err)
	rc := e.DeclareSubscriber(e.Loan(bindings.KindSession, f.sess), sub, e.Loan(bindings.KindKeyExpr, ke), e.Move(bindings.KindClosureSample, cl), nil)
	assert.Equal(t, bindings.ENetwork, rc)

	select {
	case <-r.dropped:
	default:
		t.Fatal("closure must be dropped before DeclareSubscriber returns")
	}
	assert.Zero(t, e.LiveObjects(bindings.KindClosureSample))
	assert.Zero(t, e.LiveObjects(bindings.KindSubscriber))
}

func TestCongestionDropDiscards(t *testing.T) {
	f := openFixture(t, WithQueueSize(1))
	e := f.e

	block := make(chan struct{})
	entered := make(chan struct{}, 1)
	cl := construct(t, e, bindings.KindClosureSample, func(dst bindings.OwnedPtr) bindings.Result {
		return e.ClosureSample(dst, func(uintptr, bindings.SamplePtr) {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-block
		}, func(uintptr) {}, 1)
	})
	ke := f.keyExpr(t, "q")
	construct(t, e, bindings.KindSubscriber, func(dst bindings.OwnedPtr) bindings.Result {
		return e.DeclareSubscriber(e.Loan(bindings.KindSession, f.sess), dst, e.Loan(bindings.KindKeyExpr, ke), e.Move(bindings.KindClosureSample, cl), nil)
	})
	pub := f.publisher(t, ke, bindings.CongestionDrop)

	require.Equal(t, bindings.OK, f.put(t, pub, "first"))
	<-entered
	require.Equal(t, bindings.OK, f.put(t, pub, "queued"))
	require.Equal(t, bindings.OK, f.put(t, pub, "discarded"))
	assert.Equal(t, uint64(1), e.Discarded())
	close(block)
}

func TestOperationsAfterSessionClose(t *testing.T) {
	f := openFixture(t)
	e := f.e
	ke := f.keyExpr(t, "a/b")
	pub := f.publisher(t, ke, bindings.CongestionDefault)

	require.Equal(t, bindings.OK, e.Close(e.Loan(bindings.KindSession, f.sess), nil))
	assert.Equal(t, bindings.ESessionClosed, f.put(t, pub, "late"))
	assert.Zero(t, e.LiveObjects(bindings.KindBytes), "a failed put still consumes its payload")

	dst, err := e.Alloc(bindings.KindPublisher)
	require.NoError(t, err)
	rc := e.DeclarePublisher(e.Loan(bindings.KindSession, f.sess), dst, e.Loan(bindings.KindKeyExpr, ke), nil)
	assert.Equal(t, bindings.ESessionClosed, rc)
	e.Free(bindings.KindPublisher, dst)

	e.Drop(bindings.KindSession, e.Move(bindings.KindSession, f.sess))
	assert.Equal(t, 1, e.Drops(bindings.KindSession))
	assert.Equal(t, bindings.ZID{}, e.SessionZID(e.Loan(bindings.KindSession, f.sess)), "a dropped session has no id")
}

func TestShutdownClosesSessionsAndDropsClosures(t *testing.T) {
	f := openFixture(t)
	e := f.e
	var abi bindings.ABI = e
	require.NotNil(t, abi)

	ke := f.keyExpr(t, "a/b")
	r := newRecorder(e)
	f.subscribe(t, ke, r)
	pub := f.publisher(t, ke, bindings.CongestionDefault)

	require.NoError(t, e.Shutdown())
	select {
	case <-r.dropped:
	default:
		t.Fatal("Shutdown returned before the subscriber closure was dropped")
	}
	assert.Equal(t, bindings.ESessionClosed, f.put(t, pub, "late"))
	require.NoError(t, e.Shutdown(), "Shutdown is idempotent")
}
