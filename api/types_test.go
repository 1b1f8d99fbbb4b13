package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHexJSON(t *testing.T) {
	data, err := json.Marshal(Hex{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	require.Equal(t, `"0xdeadbeef"`, string(data))

	var h Hex
	require.NoError(t, json.Unmarshal(data, &h))
	require.Equal(t, Hex{0xde, 0xad, 0xbe, 0xef}, h)

	require.Error(t, json.Unmarshal([]byte(`deadbeef`), &h))
	require.Error(t, json.Unmarshal([]byte(`"0xzz"`), &h))
}

func TestHexSliceBind(t *testing.T) {
	var hs HexSlice
	require.NoError(t, hs.Bind("0x0102,0304"))
	require.Equal(t, HexSlice{{0x01, 0x02}, {0x03, 0x04}}, hs)

	var empty HexSlice
	require.NoError(t, empty.Bind(""))
	require.Empty(t, empty)

	var bad HexSlice
	require.Error(t, bad.Bind("0x01,nothex"))
}
