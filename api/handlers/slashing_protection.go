package handlers

import (
	"fmt"
	"net/http"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/api"
	"github.com/ssvlabs/dvnode/slashingprotection"
)

// SlashingHistory exports signing history as EIP-3076 interchange documents.
type SlashingHistory interface {
	Export(genesisValidatorsRoot phase0.Root, pubKeys ...phase0.BLSPubKey) (*slashingprotection.Interchange, error)
}

type SlashingProtection struct {
	Store                 SlashingHistory
	GenesisValidatorsRoot phase0.Root
}

// Export renders the history of the validators in the pubkeys query parameter, or of
// every validator when it is absent.
func (h *SlashingProtection) Export(w http.ResponseWriter, r *http.Request) error {
	var requested api.HexSlice
	if err := requested.Bind(r.URL.Query().Get("pubkeys")); err != nil {
		return api.BadRequestError(fmt.Errorf("invalid pubkeys: %w", err))
	}
	pubKeys := make([]phase0.BLSPubKey, 0, len(requested))
	for _, pk := range requested {
		if len(pk) != len(phase0.BLSPubKey{}) {
			return api.BadRequestError(fmt.Errorf("invalid pubkey length %d", len(pk)))
		}
		pubKeys = append(pubKeys, phase0.BLSPubKey(pk))
	}

	ic, err := h.Store.Export(h.GenesisValidatorsRoot, pubKeys...)
	if err != nil {
		return api.Error(fmt.Errorf("could not export slashing protection history: %w", err))
	}
	return api.Render(w, r, ic)
}
