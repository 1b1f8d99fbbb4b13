// Package keystore persists a co-validator's key share together with the shape of its
// distributed validator.
package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/herumi/bls-eth-go-binary/bls"
	keystorev4 "github.com/wealdtech/go-eth2-wallet-encryptor-keystorev4"

	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/utils/threshold"
)

const shareFileVersion = 1

// ShareFile is the on-disk form of one co-validator's share. The secret is kept in an
// EIP-2335 keystore.
type ShareFile struct {
	Version         int                   `json:"version"`
	ValidatorPubKey hexutil.Bytes         `json:"validator_pubkey"`
	ValidatorIndex  phase0.ValidatorIndex `json:"validator_index"`
	Threshold       uint64                `json:"threshold"`
	Index           uint64                `json:"index"`
	Keystore        Keystore              `json:"keystore"`
	CoValidators    []CoValidatorEntry    `json:"co_validators"`
}

type CoValidatorEntry struct {
	Index       uint64        `json:"index"`
	SharePubKey hexutil.Bytes `json:"share_pubkey"`
}

type Keystore map[string]any

// EncryptShare wraps a share secret in a version 4 keystore.
func EncryptShare(sk *bls.SecretKey, password string) (Keystore, error) {
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("password required for encrypting keystore")
	}
	crypto, err := keystorev4.New().Encrypt(sk.Serialize(), password)
	if err != nil {
		return nil, fmt.Errorf("encrypt share: %w", err)
	}
	return Keystore{
		"crypto":  crypto,
		"pubkey":  hexutil.Encode(sk.GetPublicKey().Serialize()),
		"version": 4,
		"uuid":    uuid.New().String(),
	}, nil
}

// DecryptShare opens a keystore created by EncryptShare.
func DecryptShare(ks Keystore, password string) (*bls.SecretKey, error) {
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("password required for decrypting keystore")
	}
	crypto, ok := ks["crypto"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("keystore has no crypto section")
	}
	secret, err := keystorev4.New().Decrypt(crypto, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt share: %w", err)
	}

	types.InitBLS()
	sk := &bls.SecretKey{}
	if err := sk.Deserialize(secret); err != nil {
		return nil, fmt.Errorf("deserialize share: %w", err)
	}
	return sk, nil
}

// FromKeySet builds the share file of the co-validator at selfIndex.
func FromKeySet(ks *threshold.KeySet, validatorIndex phase0.ValidatorIndex, selfIndex uint64, password string) (*ShareFile, error) {
	share, ok := ks.Shares[selfIndex]
	if !ok {
		return nil, fmt.Errorf("no share with index %d", selfIndex)
	}
	encrypted, err := EncryptShare(share, password)
	if err != nil {
		return nil, err
	}

	dv := ks.DistributedValidator(validatorIndex, selfIndex)
	f := &ShareFile{
		Version:         shareFileVersion,
		ValidatorPubKey: dv.Identity.PubKey[:],
		ValidatorIndex:  validatorIndex,
		Threshold:       dv.Threshold,
		Index:           selfIndex,
		Keystore:        encrypted,
	}
	for _, cv := range dv.CoValidators {
		f.CoValidators = append(f.CoValidators, CoValidatorEntry{
			Index:       cv.Index,
			SharePubKey: cv.SharePubKey[:],
		})
	}
	return f, nil
}

// Save writes the file readable by the owner only.
func (f *ShareFile) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode share file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("could not create share file directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("could not write share file: %w", err)
	}
	return nil
}

// Open decrypts the share and checks it against the recorded co-validator set.
func (f *ShareFile) Open(password string) (*types.DistributedValidator, *bls.SecretKey, error) {
	if f.Version != shareFileVersion {
		return nil, nil, fmt.Errorf("unsupported share file version %d", f.Version)
	}
	var validatorPubKey phase0.BLSPubKey
	if len(f.ValidatorPubKey) != len(validatorPubKey) {
		return nil, nil, fmt.Errorf("invalid validator pubkey length %d", len(f.ValidatorPubKey))
	}
	copy(validatorPubKey[:], f.ValidatorPubKey)

	dv := &types.DistributedValidator{
		Identity:  types.ValidatorIdentity{PubKey: validatorPubKey, Index: f.ValidatorIndex},
		Threshold: f.Threshold,
		SelfIndex: f.Index,
	}
	for _, entry := range f.CoValidators {
		var sharePubKey phase0.BLSPubKey
		if len(entry.SharePubKey) != len(sharePubKey) {
			return nil, nil, fmt.Errorf("invalid share pubkey length %d for co-validator %d", len(entry.SharePubKey), entry.Index)
		}
		copy(sharePubKey[:], entry.SharePubKey)
		dv.CoValidators = append(dv.CoValidators, &types.CoValidator{
			ValidatorPubKey: validatorPubKey,
			SharePubKey:     sharePubKey,
			Index:           entry.Index,
		})
	}
	if err := dv.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid distributed validator: %w", err)
	}

	sk, err := DecryptShare(f.Keystore, password)
	if err != nil {
		return nil, nil, err
	}
	self := dv.Self()
	if hexutil.Encode(sk.GetPublicKey().Serialize()) != hexutil.Encode(self.SharePubKey[:]) {
		return nil, nil, fmt.Errorf("share does not match co-validator %d", dv.SelfIndex)
	}
	return dv, sk, nil
}

// Load reads and opens a share file. The password is read from passwordFile.
func Load(path, passwordFile string) (*types.DistributedValidator, *bls.SecretKey, error) {
	// nolint: gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read share file: %w", err)
	}
	// nolint: gosec
	password, err := os.ReadFile(passwordFile)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read password file: %w", err)
	}

	var f ShareFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("could not parse share file: %w", err)
	}
	return f.Open(strings.TrimSpace(string(password)))
}
