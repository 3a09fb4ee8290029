package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
)

// LogsEnv enables dumping captured logs at the end of each test.
const LogsEnv = "DATAFLOW_TEST_LOGS"

// Context returns a context carrying a debug logger that writes into the
// returned buffer. When DATAFLOW_TEST_LOGS=true the buffer is dumped on
// cleanup.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()

	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))

	t.Cleanup(func() {
		cancel()
		if os.Getenv(LogsEnv) == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
		}
	})
	return ctx, buf
}
