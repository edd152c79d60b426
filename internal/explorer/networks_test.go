package explorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFallsBackToAPIURL(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{APIURL: "https://example.org/api"})
	require.NoError(t, err)

	network, err := registry.Default()
	require.NoError(t, err)
	assert.Equal(t, "neox-testnet", network.Name)
	assert.Equal(t, "GAS", network.Symbol)
	assert.Equal(t, 18, network.Decimals)
	assert.Equal(t, "https://example.org/api", network.Client.BaseURL())
}

func TestRegistryLoadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default: neox-mainnet
networks:
  neox-mainnet:
    api_url: https://xexplorer.neo.org/api
    symbol: GAS
    description: Neo X mainnet
  neox-testnet:
    api_url: https://xt4scan.ngd.network:8877/api
    symbol: tGAS
    decimals: 18
`), 0o644))

	registry, err := NewRegistry(RegistryConfig{NetworksFile: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"neox-mainnet", "neox-testnet"}, registry.Networks())

	def, err := registry.Network("")
	require.NoError(t, err)
	assert.Equal(t, "neox-mainnet", def.Name)

	testnet, err := registry.Network("neox-testnet")
	require.NoError(t, err)
	assert.Equal(t, "tGAS", testnet.Symbol)

	_, err = registry.Network("unknown")
	assert.Error(t, err)

	_, err = NewRegistry(RegistryConfig{NetworksFile: path, DefaultNetwork: "missing"})
	assert.Error(t, err)
}

func TestRegistryRejectsNetworkWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("networks:\n  broken:\n    symbol: GAS\n"), 0o644))

	_, err := NewRegistry(RegistryConfig{NetworksFile: path})
	assert.Error(t, err)
}
