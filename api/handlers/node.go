package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/ssvlabs/dvnode/api"
)

// HealthChecker reports whether a dependency of the node is usable.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// PeerLister lists the connected gossip peers.
type PeerLister interface {
	Peers() []peer.ID
}

type healthStatus struct {
	err error
}

func (h healthStatus) MarshalJSON() ([]byte, error) {
	if h.err == nil {
		return json.Marshal("good")
	}
	return json.Marshal(fmt.Sprintf("bad: %s", h.err.Error()))
}

type healthCheckJSON struct {
	P2P        healthStatus `json:"p2p"`
	BeaconNode healthStatus `json:"beacon_node"`
	Advanced   struct {
		Peers           int      `json:"peers"`
		CoValidators    int      `json:"co_validators"`
		ListenAddresses []string `json:"p2p_listen_addresses"`
	} `json:"advanced"`
}

func (hc healthCheckJSON) String() string {
	b, err := json.MarshalIndent(hc, "", "  ")
	if err != nil {
		return fmt.Sprintf("error marshaling healthCheckJSON: %s", err.Error())
	}
	return string(b)
}

type Node struct {
	BeaconNode HealthChecker
	// Network is nil when co-validators run in one process.
	Network         PeerLister
	CoValidators    int
	ListenAddresses []string
}

func (h *Node) Health(w http.ResponseWriter, r *http.Request) error {
	var resp healthCheckJSON
	resp.Advanced.CoValidators = h.CoValidators
	resp.Advanced.ListenAddresses = h.ListenAddresses

	if h.Network != nil {
		resp.Advanced.Peers = len(h.Network.Peers())
		switch {
		case resp.Advanced.Peers == 0:
			resp.P2P = healthStatus{errors.New("no peers are connected")}
		case resp.Advanced.Peers < h.CoValidators-1:
			resp.P2P = healthStatus{errors.New("not connected to every co-validator")}
		}
	}
	resp.BeaconNode = healthStatus{h.BeaconNode.Healthy(r.Context())}

	return api.Render(w, r, resp)
}
