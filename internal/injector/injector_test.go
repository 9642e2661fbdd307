package injector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/gridkit/internal/config"
)

const appConfig = `
world:
  width: 10
  height: 10
layers:
  count: 2
  multi_item: [1]
simulation:
  entities: 12
  ticks: 3
  tick_rate: 0s
logging:
  level: silent
metrics:
  enabled: false
`

func TestInitializeApp(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		app, err := InitializeApp("")
		require.NoError(t, err)
		defer app.Close()
		require.Equal(t, config.Default(), app.Config)
		require.Zero(t, app.Sim.Tick())
	})

	t.Run("From File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.yaml")
		require.NoError(t, os.WriteFile(path, []byte(appConfig), 0o600))

		app, err := InitializeApp(ConfigPath(path))
		require.NoError(t, err)
		defer app.Close()

		require.NoError(t, app.Sim.Run(context.Background()))
		require.Equal(t, 3, app.Sim.Tick())

		n, err := testutil.GatherAndCount(app.Registry, "gridkit_items")
		require.NoError(t, err)
		require.Equal(t, 1, n)
		n, err = testutil.GatherAndCount(app.Registry, "gridkit_items_added_total")
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("Bad File", func(t *testing.T) {
		_, err := InitializeApp(ConfigPath(filepath.Join(t.TempDir(), "nope.toml")))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
