package cmd

import (
	"testing"

	"github.com/catalystcommunity/enginecore/internal/config"
	"github.com/catalystcommunity/enginecore/internal/sysgraph"
	"github.com/stretchr/testify/require"
)

func TestAssembleServeGraphReachesReadyPhase(t *testing.T) {
	prevType, prevBase := config.ObjectStoreType, config.ObjectStoreBasePath
	config.ObjectStoreType = "memory"
	config.HotReloadEnabled = false
	defer func() {
		config.ObjectStoreType, config.ObjectStoreBasePath = prevType, prevBase
		config.HotReloadEnabled = true
	}()

	graph, server, err := assembleServeGraph(0)
	require.NoError(t, err)
	require.NotNil(t, server)
	require.Equal(t, sysgraph.PhaseReady, graph.Phase())

	graph.Shutdown()
	require.Equal(t, sysgraph.PhaseDestroyed, graph.Phase())
}
