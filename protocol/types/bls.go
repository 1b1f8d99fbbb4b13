package types

import (
	"sync"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/herumi/bls-eth-go-binary/bls"
)

var (
	blsInitOnce       sync.Once
	blsPublicKeyCache *lru.Cache[string, bls.PublicKey]
)

func init() {
	var err error
	blsPublicKeyCache, err = lru.New[string, bls.PublicKey](4096)
	if err != nil {
		panic(err)
	}
}

// InitBLS initializes the BLS library for Ethereum. Safe to call repeatedly.
func InitBLS() {
	blsInitOnce.Do(func() {
		if err := bls.Init(bls.BLS12_381); err != nil {
			panic(err)
		}
		if err := bls.SetETHmode(bls.EthModeDraft07); err != nil {
			panic(err)
		}
	})
}

// DeserializeBLSPublicKey deserializes a bls.PublicKey from bytes,
// caching the result to avoid repeated deserialization.
func DeserializeBLSPublicKey(b []byte) (bls.PublicKey, error) {
	pkStr := string(b)
	if pk, ok := blsPublicKeyCache.Get(pkStr); ok {
		return pk, nil
	}

	// This copy is required to avoid the "cgo argument has Go pointer to Go pointer" panic.
	pkCpy := make([]byte, len(b))
	copy(pkCpy, b)

	pk := bls.PublicKey{}
	if err := pk.Deserialize(pkCpy); err != nil {
		return bls.PublicKey{}, err
	}
	blsPublicKeyCache.Add(pkStr, pk)

	return pk, nil
}

// DeserializeBLSSignature deserializes a signature from its own copy of sig, so callers
// may pass a field of a struct holding Go pointers.
func DeserializeBLSSignature(sig phase0.BLSSignature) (*bls.Sign, error) {
	sigBytes := make([]byte, len(sig))
	copy(sigBytes, sig[:])

	out := &bls.Sign{}
	if err := out.Deserialize(sigBytes); err != nil {
		return nil, err
	}
	return out, nil
}
