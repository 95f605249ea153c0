// Package e2e exercises a sharecoordinator binary from outside the
// process boundary: every test here spawns the real binary with
// test/framework.Process and talks to it exclusively over its Unix
// socket via pkg/rpc, the same path a remote proxy in a sibling
// process would take.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/share/pkg/protocol"
	"github.com/cuemby/share/pkg/rpc"
	"github.com/cuemby/share/pkg/typeregistry"
	"github.com/cuemby/share/test/framework"
)

var coordinatorBinary string

// TestMain builds the sharecoordinator binary once for every test in
// this package, the way a packaged CLI's own e2e suite builds its
// server binary before exercising it as a black box.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "sharecoordinator-e2e")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	coordinatorBinary = filepath.Join(dir, "sharecoordinator")
	build := exec.Command("go", "build", "-o", coordinatorBinary, "../../cmd/sharecoordinator")
	build.Stdout = os.Stderr
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "build sharecoordinator:", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func startCoordinator(t *testing.T, socketPath string, metricsAddr string) *framework.Process {
	t.Helper()
	p := framework.NewProcess(coordinatorBinary)
	p.Args = []string{
		"run",
		"--log-level", "debug",
		"--log-json=false",
		"--metrics-addr", metricsAddr,
		"--socket", socketPath,
	}
	require.NoError(t, p.Start())
	require.NoError(t, p.WaitForLog("listening for proxies", 5*time.Second))
	t.Cleanup(func() {
		if p.IsRunning() {
			_ = p.Stop()
		}
	})
	return p
}

// intTypeName is the registered type name a SET command must carry so
// the coordinator knows how to decode later GETs of that entry - the
// same requirement pkg/share's primitive fast path satisfies in
// process, done by hand here since these tests speak raw protocol
// frames instead of going through pkg/share.
func intTypeName() string {
	return typeregistry.NameFor(reflect.TypeOf(int(0)))
}

// dial blocks until the coordinator's socket accepts a connection,
// since the process may still be binding it when the caller is ready
// to connect. t is used only for registering cleanup; assertions
// happen in the caller's own goroutine.
func dial(t *testing.T, socketPath string) (*rpc.RemoteChannel, error) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		rc, err := rpc.Dial(socketPath)
		if err == nil {
			t.Cleanup(func() { _ = rc.Close() })
			return rc, nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, fmt.Errorf("dial %s: %w", socketPath, lastErr)
}

func setInt(rc *rpc.RemoteChannel, name string, value int) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = rc.SendAndWait(context.Background(), &protocol.Command{
		Tag:         protocol.TagSet,
		Name:        name,
		MethodName:  intTypeName(),
		EncodedArgs: encoded,
	}, 5*time.Second)
	return err
}

func getInt(rc *rpc.RemoteChannel, name string) (int, error) {
	reply, err := rc.SendAndWait(context.Background(), &protocol.Command{
		Tag:  protocol.TagGet,
		Name: name,
	}, 5*time.Second)
	if err != nil {
		return 0, err
	}
	if reply.Kind != protocol.ReplyOK {
		return 0, fmt.Errorf("get %s: unexpected reply kind %s (marker %s)", name, reply.Kind, reply.Marker)
	}
	var v int
	if err := json.Unmarshal(reply.Payload, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// counter is the shared object S2 increments concurrently. It carries
// no ShareMeta, so the coordinator falls back to metaspec's
// conservative "writes the whole entry" default for Increment - the
// same default pkg/share's own sharedCounter test type relies on.
type counter struct {
	Value int
}

func (c *counter) Increment() error {
	c.Value++
	return nil
}

func callIncrement(rc *rpc.RemoteChannel, name string) error {
	_, err := rc.SendAndWait(context.Background(), &protocol.Command{
		Tag:        protocol.TagCall,
		Name:       name,
		MethodName: "Increment",
	}, 5*time.Second)
	return err
}

func getCounterValue(rc *rpc.RemoteChannel, name string) (int, error) {
	reply, err := rc.SendAndWait(context.Background(), &protocol.Command{
		Tag:  protocol.TagGet,
		Name: name,
	}, 5*time.Second)
	if err != nil {
		return 0, err
	}
	if reply.Kind != protocol.ReplyOK {
		return 0, fmt.Errorf("get %s: unexpected reply kind %s (marker %s)", name, reply.Kind, reply.Marker)
	}
	var c counter
	if err := json.Unmarshal(reply.Payload, &c); err != nil {
		return 0, err
	}
	return c.Value, nil
}

// TestMultipleProcessesIncrementSharedCounter spawns one real
// sharecoordinator process and four independent client connections,
// each standing in for a separate sibling process, each calling
// Increment on the same shared counter entry ten times concurrently.
// It asserts the final value is exactly 40: no interleaving may cause
// a lost update, backed by the coordinator being the entry's single
// writer regardless of how many connections reach it.
func TestMultipleProcessesIncrementSharedCounter(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "coordinator.sock")
	startCoordinator(t, socketPath, "127.0.0.1:0")

	owner, err := dial(t, socketPath)
	require.NoError(t, err)
	encoded, err := json.Marshal(counter{Value: 0})
	require.NoError(t, err)
	_, err = owner.SendAndWait(context.Background(), &protocol.Command{
		Tag:         protocol.TagSet,
		Name:        "counter",
		MethodName:  typeregistry.NameFor(reflect.TypeOf(counter{})),
		EncodedArgs: encoded,
	}, 5*time.Second)
	require.NoError(t, err)

	const processes = 4
	const increments = 10

	errs := make(chan error, processes)
	var wg sync.WaitGroup
	for i := 0; i < processes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc, err := dial(t, socketPath)
			if err != nil {
				errs <- err
				return
			}
			for n := 0; n < increments; n++ {
				if err := callIncrement(rc, "counter"); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := getCounterValue(owner, "counter")
	require.NoError(t, err)
	require.Equal(t, processes*increments, got)
}

// TestCoordinatorCrashLosesUnpersistedState kills the coordinator
// process outright and starts a replacement on the same socket path:
// the Source of Truth is in-memory only, so a crashed coordinator's
// replacement starts empty rather than salvaging in-flight state.
func TestCoordinatorCrashLosesUnpersistedState(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "coordinator.sock")
	first := startCoordinator(t, socketPath, "127.0.0.1:0")

	rc, err := dial(t, socketPath)
	require.NoError(t, err)
	require.NoError(t, setInt(rc, "n", 42))
	got, err := getInt(rc, "n")
	require.NoError(t, err)
	require.Equal(t, 42, got)

	require.NoError(t, first.Kill())
	_ = rc.Close()

	startCoordinator(t, socketPath, "127.0.0.1:0")

	rc2, err := dial(t, socketPath)
	require.NoError(t, err)
	reply, err := rc2.SendAndWait(context.Background(), &protocol.Command{
		Tag:  protocol.TagGet,
		Name: "n",
	}, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, protocol.ReplyMarker, reply.Kind)
	require.Equal(t, protocol.MarkerMissingEntry, reply.Marker)
}
