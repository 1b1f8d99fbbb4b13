package api

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hex is a byte string rendered as 0x-prefixed hex.
type Hex []byte

func (h Hex) MarshalJSON() ([]byte, error) {
	return []byte("\"" + hexutil.Encode(h) + "\""), nil
}

func (h *Hex) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("invalid hex string")
	}
	return h.Bind(string(data[1 : len(data)-1]))
}

// Bind parses a query value. The 0x prefix is optional.
func (h *Hex) Bind(value string) error {
	if value == "" {
		return nil
	}
	if !strings.HasPrefix(value, "0x") {
		value = "0x" + value
	}
	b, err := hexutil.Decode(value)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// HexSlice binds a comma separated list of hex values.
type HexSlice []Hex

func (hs *HexSlice) Bind(value string) error {
	if value == "" {
		return nil
	}
	for _, s := range strings.Split(value, ",") {
		var h Hex
		if err := h.Bind(s); err != nil {
			return err
		}
		*hs = append(*hs, h)
	}
	return nil
}
