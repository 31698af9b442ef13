package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"pagedoc/internal/config"
	mcpserver "pagedoc/internal/mcp"
	"pagedoc/internal/pager"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Pagination.MaxBlocksPerPage = 2
	cfg.Pagination.PageInitDelay = 0
	cfg.Pagination.FocusDelay = 0
	cfg.Inbox.Settle = 20 * time.Millisecond
	cfg.ResolvePaths(t.TempDir())
	return cfg
}

func startApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a := New(cfg, zap.NewNop(), opts...)
	require.NoError(t, a.Startup(context.Background()))
	return a
}

func TestApp_PagerOptionsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	off := false
	cfg.Pagination.AutoCreatePages = &off
	cfg.Pagination.ErrorPolicy = "strict"
	confirm := TerminalConfirmer{AssumeYes: true}

	opts := New(cfg, nil, WithConfirmer(confirm)).PagerOptions()
	assert.Equal(t, 2, opts.MaxBlocksPerPage)
	assert.False(t, opts.AutoCreatePages)
	assert.Equal(t, pager.Strict, opts.ErrorPolicy)
	assert.Equal(t, confirm, opts.Confirmer)
}

func TestApp_ShutdownSavesOpenDocuments(t *testing.T) {
	cfg := testConfig(t)
	a := startApp(t, cfg)
	ctx := context.Background()

	d, err := a.Documents().CreateDocument("Notes")
	require.NoError(t, err)
	_, err = a.Documents().InsertContent(ctx, d.ID, "one\ntwo\nthree")
	require.NoError(t, err)
	require.NoError(t, a.Shutdown(ctx))

	b := startApp(t, cfg)
	defer b.Shutdown(ctx)
	st, err := b.Documents().Open(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalPages)
	assert.Equal(t, "three", st.Pages[1].Blocks[0].Text())
}

func TestApp_Watch(t *testing.T) {
	cfg := testConfig(t)
	a := startApp(t, cfg)
	defer a.Shutdown(context.Background())

	d, err := a.Documents().CreateDocument("Inbox")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	processed := make(chan error, 1)
	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, d.ID, func(_ string, _ pager.InsertReport, err error) { processed <- err })
	}()

	require.NoError(t, os.MkdirAll(cfg.Inbox.Dir, 0755))
	tmp := filepath.Join(t.TempDir(), "drop.txt")
	require.NoError(t, os.WriteFile(tmp, []byte("HELLO\nworld"), 0644))
	require.NoError(t, os.Rename(tmp, filepath.Join(cfg.Inbox.Dir, "drop.txt")))

	select {
	case err := <-processed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("inbox file not processed")
	}
	cancel()
	require.NoError(t, <-done)

	st, err := a.Documents().State(context.Background(), d.ID)
	require.NoError(t, err)
	require.Len(t, st.Pages[0].Blocks, 2)
	assert.Equal(t, "HELLO", st.Pages[0].Blocks[0].Text())
}

func TestApp_WatchApprovals(t *testing.T) {
	cfg := testConfig(t)
	a := startApp(t, cfg)
	defer a.Shutdown(context.Background())

	q := mcpserver.NewApprovalQueue(NewLogEmitter(zap.NewNop()))
	q.SetDB(a.DB().Conn())
	q.SetTimeout(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var handled []string
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- a.WatchApprovals(ctx, 10*time.Millisecond, func(_ context.Context, p mcpserver.PendingAction) {
			handled = append(handled, p.Tool)
			assert.NoError(t, mcpserver.ResolveDB(a.DB().Conn(), p.ID, true))
		})
	}()

	ok, err := q.Request(context.Background(), "remove_current_page", "Delete page 2 of 2?")
	require.NoError(t, err)
	assert.True(t, ok)

	cancel()
	require.NoError(t, <-watchDone)
	assert.Equal(t, []string{"remove_current_page"}, handled)
}

func TestTerminalConfirmer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		yes   bool
		want  bool
	}{
		{"yes", "y\n", false, true},
		{"full yes", "YES\n", false, true},
		{"no", "n\n", false, false},
		{"empty answer", "\n", false, false},
		{"eof", "", false, false},
		{"assume yes", "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := TerminalConfirmer{In: strings.NewReader(tt.input), Out: &out, AssumeYes: tt.yes}
			got, err := c.Confirm(context.Background(), "Delete page 1 of 2?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if !tt.yes {
				assert.Contains(t, out.String(), "[y/N]")
			}
		})
	}
}
