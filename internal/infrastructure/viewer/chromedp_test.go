package viewer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromeViewer_OpenFailsWithoutBrowser(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	v := NewChromeViewer(config.ViewerConfig{Headless: true, Timeout: 5 * time.Second},
		WithExecPath(filepath.Join(tmp, "no-such-chrome")))
	defer v.Close()

	w, err := v.Open(context.Background(), "receipt-5.pdf", []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.Nil(t, w)

	leftovers, err := filepath.Glob(filepath.Join(tmp, "campusfin-view-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp view directory is removed on failure")
}

func TestChromeViewer_Close(t *testing.T) {
	v := &ChromeViewer{}
	assert.NoError(t, v.Close())
}

func TestChromeViewer_PrintsWithRealBrowser(t *testing.T) {
	if os.Getenv("CAMPUSFIN_TEST_CHROME") == "" {
		t.Skip("CAMPUSFIN_TEST_CHROME not set")
	}

	v := NewChromeViewer(config.ViewerConfig{Headless: true, NoSandbox: true, Timeout: 20 * time.Second})
	defer v.Close()

	ctx := context.Background()
	w, err := v.Open(ctx, "receipt.html", []byte("<html><body>receipt</body></html>"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WaitLoaded(ctx))
	require.NoError(t, w.Print(ctx))
}
