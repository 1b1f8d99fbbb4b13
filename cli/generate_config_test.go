package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildNodeConfig(t *testing.T) {
	networkName = "holesky"
	consensusClient = "http://localhost:5052"
	shareFile = "./shares/share-1.json"
	passwordFile = "./password"
	p2pPeers = "/ip4/10.0.0.2/tcp/13001/p2p/a,/ip4/10.0.0.3/tcp/13001/p2p/b"
	coValidatorPeers = "2:a,3:b"
	apiPort = 16000
	t.Cleanup(func() {
		networkName, consensusClient, shareFile, passwordFile, p2pPeers, coValidatorPeers, apiPort = defaultNetwork, "", "", "", "", "", 0
	})

	config, err := buildNodeConfig()
	require.NoError(t, err)
	require.Len(t, config.P2P.Peers, 2)
	require.Equal(t, map[uint64]string{2: "a", 3: "b"}, config.P2P.CoValidatorPeers)

	data, err := yaml.Marshal(config)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Equal(t, "holesky", decoded["Network"])
	require.Equal(t, "http://localhost:5052", decoded["eth2"].(map[string]any)["BeaconNodeAddr"])
	require.Equal(t, "./shares/share-1.json", decoded["validator"].(map[string]any)["ShareFile"])
	require.Equal(t, 16000, decoded["APIPort"])
	require.NotContains(t, decoded, "RoundBudget")
}

func TestBuildNodeConfigRejectsUnknownNetwork(t *testing.T) {
	networkName = "olympus"
	t.Cleanup(func() { networkName = defaultNetwork })

	_, err := buildNodeConfig()
	require.ErrorContains(t, err, "network not supported")
}

func TestParseCoValidatorPeers(t *testing.T) {
	_, err := parseCoValidatorPeers("2")
	require.Error(t, err)
	_, err = parseCoValidatorPeers("0:a")
	require.Error(t, err)
	_, err = parseCoValidatorPeers("x:a")
	require.Error(t, err)
}
