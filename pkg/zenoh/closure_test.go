package zenoh_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/loopback"
)

func TestCloseWhileCallbackInFlight(t *testing.T) {
	lib, _ := newLibrary(t)
	sess := openSession(t, lib)
	ke := keyExpr(t, lib, "race/x")
	base := zenoh.RegisteredClosures()

	entered := make(chan struct{})
	release := make(chan struct{})
	state := []byte("captured")
	var seen atomic.Value

	sub, err := sess.DeclareSubscriber(ke, zenoh.HandlerFunc(func(s *zenoh.Sample) {
		payload := s.Payload()
		close(entered)
		<-release
		seen.Store(string(state) + ":" + string(payload))
	}), nil)
	require.NoError(t, err)

	pub, err := sess.DeclarePublisher(ke, nil)
	require.NoError(t, err)
	require.NoError(t, pub.PutString("one"))
	require.NoError(t, pub.PutString("two"))

	<-entered
	require.NoError(t, sub.Close(), "close must not wait for the running handler")
	select {
	case <-sub.Done():
		t.Fatal("drop fired while a handler call was still running")
	default:
	}

	close(release)
	waitDone(t, sub)
	assert.Equal(t, "captured:one", seen.Load())
	assert.Equal(t, uint64(1), sub.Delivered(), "no call may start after Close")
	assert.Equal(t, base, zenoh.RegisteredClosures())
}

func TestDeclarePublishReleaseStress(t *testing.T) {
	lib, eng := newLibrary(t, loopback.WithQueueSize(16))
	sess := openSession(t, lib)
	ke := keyExpr(t, lib, "stress/**")
	pubKe := keyExpr(t, lib, "stress/data")
	base := zenoh.RegisteredClosures()

	pub, err := sess.DeclarePublisher(pubKe, nil)
	require.NoError(t, err)
	defer pub.Close()

	const rounds, burst = 50, 64
	var calls atomic.Int64
	subs := make([]*zenoh.Subscriber, 0, rounds)
	for i := 0; i < rounds; i++ {
		counter := new(int)
		sub, err := sess.DeclareSubscriber(ke, zenoh.HandlerFunc(func(s *zenoh.Sample) {
			*counter += len(s.Payload())
			calls.Add(1)
		}), nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < burst; j++ {
				_ = pub.PutString("x")
			}
		}()
		require.NoError(t, sub.Close())
		wg.Wait()
		subs = append(subs, sub)
	}

	for _, sub := range subs {
		waitDone(t, sub)
	}
	assert.Equal(t, base, zenoh.RegisteredClosures(), "token table must not leak")
	assert.Zero(t, eng.LiveObjects(bindings.KindSubscriber))
	assert.Zero(t, eng.LiveObjects(bindings.KindClosureSample))
	t.Logf("handler calls: %d, discarded: %d", calls.Load(), eng.Discarded())
}

func TestHandlerPanicIsContained(t *testing.T) {
	lib, _ := newLibrary(t)
	sess := openSession(t, lib)
	ke := keyExpr(t, lib, "panic/x")

	got := make(chan string, 2)
	boom := errors.New("boom")
	sub, err := sess.DeclareSubscriber(ke, zenoh.HandlerFunc(func(s *zenoh.Sample) {
		p := string(s.Payload())
		if p == "bad" {
			panic(boom)
		}
		got <- p
	}), nil)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := sess.DeclarePublisher(ke, &zenoh.PublisherOptions{CongestionControl: zenoh.CongestionBlock})
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.PutString("bad"))
	require.NoError(t, pub.PutString("good"))

	select {
	case p := <-got:
		assert.Equal(t, "good", p)
	case <-time.After(2 * time.Second):
		t.Fatal("delivery stopped after a handler panic")
	}
	err = sub.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, zenoh.ErrCallback)
	assert.ErrorIs(t, err, boom)
}

func TestSampleExpiresAfterCallback(t *testing.T) {
	lib, _ := newLibrary(t)
	sess := openSession(t, lib)
	ke := keyExpr(t, lib, "escape/x")

	escaped := make(chan *zenoh.Sample, 1)
	sub, err := sess.DeclareSubscriber(ke, zenoh.HandlerFunc(func(s *zenoh.Sample) {
		buf := s.PayloadRef().AppendTo(make([]byte, 0, 8))
		assert.Equal(t, "kept", string(buf))
		assert.Equal(t, 4, s.PayloadRef().Len())
		escaped <- s
	}), nil)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := sess.DeclarePublisher(ke, nil)
	require.NoError(t, err)
	defer pub.Close()
	require.NoError(t, pub.PutString("kept"))

	var s *zenoh.Sample
	select {
	case s = <-escaped:
	case <-time.After(2 * time.Second):
		t.Fatal("no sample")
	}
	expired := func() (panicked bool) {
		defer func() { panicked = recover() != nil }()
		_ = s.Encoding()
		return false
	}
	require.Eventually(t, expired, time.Second, time.Millisecond)

	assert.PanicsWithError(t, `zenoh: sample keyexpr: protocol error: sample used after its callback returned`, func() {
		_ = s.KeyExpr()
	})
	func() {
		defer func() {
			r := recover()
			err, ok := r.(error)
			require.True(t, ok)
			assert.ErrorIs(t, err, zenoh.ErrSampleExpired)
		}()
		_ = s.Payload()
	}()
}

func TestCloseFromInsideHandler(t *testing.T) {
	lib, _ := newLibrary(t)
	sess := openSession(t, lib)
	ke := keyExpr(t, lib, "self/close")

	var self atomic.Pointer[zenoh.Subscriber]
	var calls atomic.Int32
	sub, err := sess.DeclareSubscriber(ke, zenoh.HandlerFunc(func(*zenoh.Sample) {
		calls.Add(1)
		_ = self.Load().Close()
	}), nil)
	require.NoError(t, err)
	self.Store(sub)

	pub, err := sess.DeclarePublisher(ke, &zenoh.PublisherOptions{CongestionControl: zenoh.CongestionBlock})
	require.NoError(t, err)
	defer pub.Close()
	for i := 0; i < 5; i++ {
		require.NoError(t, pub.PutString("x"))
	}

	waitDone(t, sub)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFailedDeclarationTearsDownRegistration(t *testing.T) {
	lib, eng := newLibrary(t)
	sess := openSession(t, lib)
	ke := keyExpr(t, lib, "fail/x")
	base := zenoh.RegisteredClosures()

	eng.Fail(loopback.OpDeclareSubscriber, bindings.EGeneric)
	fifo := zenoh.NewFIFO(1)
	_, err := sess.DeclareSubscriber(ke, fifo, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, zenoh.ErrOperation)
	assert.ErrorIs(t, err, zenoh.ResultEGeneric)
	_, open := <-fifo.C()
	assert.False(t, open)
	assert.Equal(t, base, zenoh.RegisteredClosures())

	eng.Fail(loopback.OpClosure, bindings.EGeneric)
	ring := zenoh.NewRing(1)
	_, err = sess.DeclareSubscriber(ke, ring, nil)
	assert.ErrorIs(t, err, zenoh.ErrConstruct)
	_, open = <-ring.C()
	assert.False(t, open)
	assert.Equal(t, base, zenoh.RegisteredClosures())

	_, err = sess.DeclareSubscriber(ke, nil, nil)
	assert.ErrorIs(t, err, zenoh.ErrNilHandler)
	assert.Zero(t, eng.LiveObjects(bindings.KindClosureSample))
}

func TestLeakedSampleFailsFastAcrossExpiry(t *testing.T) {
	lib, _ := newLibrary(t)
	sess := openSession(t, lib)
	ke := keyExpr(t, lib, "race/x")

	var (
		readers sync.WaitGroup
		bad     atomic.Int64
	)
	read := func(s *zenoh.Sample) (expired bool) {
		defer func() {
			if r := recover(); r != nil {
				err, _ := r.(error)
				if !errors.Is(err, zenoh.ErrSampleExpired) {
					bad.Add(1)
				}
				expired = true
			}
		}()
		if s.KeyExpr() != "race/x" {
			bad.Add(1)
		}
		if string(s.Payload()) != "v" {
			bad.Add(1)
		}
		return false
	}

	sub, err := sess.DeclareSubscriber(ke, zenoh.HandlerFunc(func(s *zenoh.Sample) {
		started := make(chan struct{})
		readers.Add(1)
		go func() {
			defer readers.Done()
			var once sync.Once
			for {
				expired := read(s)
				once.Do(func() { close(started) })
				if expired {
					return
				}
			}
		}()
		<-started
	}), nil)
	require.NoError(t, err)

	pub, err := sess.DeclarePublisher(ke, &zenoh.PublisherOptions{CongestionControl: zenoh.CongestionBlock})
	require.NoError(t, err)
	defer pub.Close()

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, pub.PutString("v"))
	}
	require.Eventually(t, func() bool { return sub.Delivered() == n }, 2*time.Second, time.Millisecond)
	require.NoError(t, sub.Close())
	waitDone(t, sub)
	readers.Wait()

	assert.Zero(t, bad.Load(), "a read either saw the live sample or failed with ErrSampleExpired")
}
