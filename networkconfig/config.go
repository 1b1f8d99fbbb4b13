package networkconfig

import (
	"fmt"
	"sort"
)

var SupportedConfigs = map[string]*BeaconConfig{
	Mainnet.networkName: Mainnet,
	Holesky.networkName: Holesky,
	Hoodi.networkName:   Hoodi,
	Sepolia.networkName: Sepolia,
}

func GetBeaconConfigByName(name string) (*BeaconConfig, error) {
	if cfg, ok := SupportedConfigs[name]; ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("network not supported: %v", name)
}

// SupportedNames lists the preset network names, sorted.
func SupportedNames() []string {
	names := make([]string, 0, len(SupportedConfigs))
	for name := range SupportedConfigs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
