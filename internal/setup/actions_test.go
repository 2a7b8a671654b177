package setup

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/ragebait-block/pkg/kv"
	"github.com/dtnitsch/ragebait-block/pkg/permission"
	"github.com/dtnitsch/ragebait-block/pkg/settings"
)

func TestInstall(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, settings.StorageKey, []byte(`{"debugMode":true}`)))
	perms := permission.NewManager(backend)

	var out bytes.Buffer
	require.NoError(t, install(ctx, &out, settings.NewStore(backend, nil), perms))

	assert.Contains(t, out.String(), "Settings initialized (4 sites, 2 thresholds)")
	assert.Contains(t, out.String(), "ragebait setup --grant")

	raw, err := backend.Get(ctx, settings.StorageKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"reddit.com":true`)
	assert.Contains(t, string(raw), `"debugMode":true`)
}

func TestInstallAlreadyGranted(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	perms := permission.NewManager(backend)
	_, err := perms.Request(ctx, permission.TrialML)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, install(ctx, &out, settings.NewStore(backend, nil), perms))
	assert.NotContains(t, out.String(), "setup --grant")
}

func TestSetup(t *testing.T) {
	ctx := context.Background()
	perms := permission.NewManager(kv.NewMemory())

	var out bytes.Buffer
	require.NoError(t, setup(ctx, &out, perms, false))
	assert.Contains(t, out.String(), "--grant")
	ok, err := perms.Contains(ctx, permission.TrialML)
	require.NoError(t, err)
	assert.False(t, ok)

	out.Reset()
	require.NoError(t, setup(ctx, &out, perms, true))
	assert.Contains(t, out.String(), `"trialML" granted`)

	out.Reset()
	require.NoError(t, setup(ctx, &out, perms, true))
	assert.Contains(t, out.String(), "already granted")
}
