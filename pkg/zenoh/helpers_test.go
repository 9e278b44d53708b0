package zenoh_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/loopback"
)

func newLibrary(t *testing.T, opts ...loopback.Option) (*zenoh.Library, *loopback.Engine) {
	t.Helper()
	eng := loopback.New(opts...)
	t.Cleanup(func() { _ = eng.Shutdown() })
	lib, err := zenoh.NewLibrary(zenoh.WithEngine(eng))
	require.NoError(t, err)
	return lib, eng
}

func openSession(t *testing.T, lib *zenoh.Library) *zenoh.Session {
	t.Helper()
	sess, err := lib.Open(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func keyExpr(t *testing.T, lib *zenoh.Library, s string) *zenoh.KeyExpr {
	t.Helper()
	ke, err := lib.KeyExpr(s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ke.Close() })
	return ke
}

func recv(t *testing.T, f *zenoh.FIFO) zenoh.Received {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := f.Recv(ctx)
	require.NoError(t, err)
	return r
}

func waitDone(t *testing.T, sub *zenoh.Subscriber) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber on %q was not dropped", sub.KeyExpr())
	}
}
