package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/legvotes/internal/legdata"
	"github.com/onnwee/legvotes/internal/page"
)

func setTestEnv(t *testing.T, dataDir string) {
	t.Helper()
	t.Setenv("LEGVOTES_ENV", "test")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("TRACING_ENABLED", "false")
	t.Setenv("S3_BUCKET", "")
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-help"}, &out); err != nil {
		t.Fatalf("run(-help) error = %v", err)
	}
	for _, want := range []string{"legvotes API Server", "-build", "-config"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_Build(t *testing.T) {
	dir := t.TempDir()
	setTestEnv(t, dir)

	if err := run(context.Background(), []string{"-build"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("run(-build) error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, legdata.LayoutFile))
	if err != nil {
		t.Fatalf("layout snapshot not written: %v", err)
	}
	var layout page.LayoutData
	if err := json.Unmarshal(data, &layout); err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	if _, err := time.Parse(page.TimeLayout, layout.CurrentTime); err != nil {
		t.Errorf("currentTime %q is not in TimeLayout: %v", layout.CurrentTime, err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	setTestEnv(t, t.TempDir())
	t.Setenv("SEARCH_MATCHER", "soundex")

	if err := run(context.Background(), nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown matcher")
	}
}

// TestRun_GracefulShutdown starts the server, waits for it to answer and
// checks that cancelling the context stops it cleanly.
func TestRun_GracefulShutdown(t *testing.T) {
	setTestEnv(t, t.TempDir())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"-addr", addr}, &bytes.Buffer{})
	}()

	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("health status = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
