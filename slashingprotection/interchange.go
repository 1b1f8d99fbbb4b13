package slashingprotection

import (
	"fmt"
	"strconv"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// InterchangeFormatVersion is the EIP-3076 interchange version this package reads and writes.
const InterchangeFormatVersion = "5"

// Interchange is the EIP-3076 slashing protection interchange document.
type Interchange struct {
	Metadata InterchangeMetadata `json:"metadata"`
	Data     []*InterchangeData  `json:"data"`
}

type InterchangeMetadata struct {
	InterchangeFormatVersion string `json:"interchange_format_version"`
	GenesisValidatorsRoot    string `json:"genesis_validators_root"`
}

// InterchangeData is the history of one validator. It is also the on-disk encoding of a Record.
type InterchangeData struct {
	Pubkey             string                    `json:"pubkey"`
	SignedBlocks       []*InterchangeBlock       `json:"signed_blocks"`
	SignedAttestations []*InterchangeAttestation `json:"signed_attestations"`
}

type InterchangeBlock struct {
	Slot        string `json:"slot"`
	SigningRoot string `json:"signing_root,omitempty"`
}

type InterchangeAttestation struct {
	SourceEpoch string `json:"source_epoch"`
	TargetEpoch string `json:"target_epoch"`
	SigningRoot string `json:"signing_root,omitempty"`
}

func (r *Record) toInterchange() *InterchangeData {
	data := &InterchangeData{
		Pubkey:             hexutil.Encode(r.PubKey[:]),
		SignedBlocks:       make([]*InterchangeBlock, 0, len(r.SignedBlocks)),
		SignedAttestations: make([]*InterchangeAttestation, 0, len(r.SignedAttestations)),
	}
	for _, b := range r.SignedBlocks {
		data.SignedBlocks = append(data.SignedBlocks, &InterchangeBlock{
			Slot:        strconv.FormatUint(uint64(b.Slot), 10),
			SigningRoot: rootToHex(b.SigningRoot),
		})
	}
	for _, a := range r.SignedAttestations {
		data.SignedAttestations = append(data.SignedAttestations, &InterchangeAttestation{
			SourceEpoch: strconv.FormatUint(uint64(a.SourceEpoch), 10),
			TargetEpoch: strconv.FormatUint(uint64(a.TargetEpoch), 10),
			SigningRoot: rootToHex(a.SigningRoot),
		})
	}
	return data
}

func recordFromInterchange(data *InterchangeData) (*Record, error) {
	pubKey, err := PubKeyFromHex(data.Pubkey)
	if err != nil {
		return nil, err
	}
	record := newRecord(pubKey)
	for _, b := range data.SignedBlocks {
		slot, err := uint64FromString(b.Slot)
		if err != nil {
			return nil, fmt.Errorf("invalid block slot: %w", err)
		}
		root, err := rootFromHex(b.SigningRoot)
		if err != nil {
			return nil, fmt.Errorf("invalid block signing root: %w", err)
		}
		record.SignedBlocks = append(record.SignedBlocks, SignedBlock{Slot: phase0.Slot(slot), SigningRoot: root})
	}
	for _, a := range data.SignedAttestations {
		source, err := uint64FromString(a.SourceEpoch)
		if err != nil {
			return nil, fmt.Errorf("invalid source epoch: %w", err)
		}
		target, err := uint64FromString(a.TargetEpoch)
		if err != nil {
			return nil, fmt.Errorf("invalid target epoch: %w", err)
		}
		root, err := rootFromHex(a.SigningRoot)
		if err != nil {
			return nil, fmt.Errorf("invalid attestation signing root: %w", err)
		}
		record.SignedAttestations = append(record.SignedAttestations, SignedAttestation{
			SourceEpoch: phase0.Epoch(source),
			TargetEpoch: phase0.Epoch(target),
			SigningRoot: root,
		})
	}
	return record, nil
}

func uint64FromString(str string) (uint64, error) {
	return strconv.ParseUint(str, 10, 64)
}

// PubKeyFromHex parses a 0x-prefixed 48 byte BLS public key.
func PubKeyFromHex(str string) (phase0.BLSPubKey, error) {
	var pubKey phase0.BLSPubKey
	b, err := hexutil.Decode(str)
	if err != nil {
		return pubKey, fmt.Errorf("invalid pubkey %q: %w", str, err)
	}
	if len(b) != len(pubKey) {
		return pubKey, fmt.Errorf("pubkey %q has length %d, expected %d", str, len(b), len(pubKey))
	}
	copy(pubKey[:], b)
	return pubKey, nil
}

// RootFromHex parses a 0x-prefixed 32 byte root.
func RootFromHex(str string) (phase0.Root, error) {
	var root phase0.Root
	b, err := hexutil.Decode(str)
	if err != nil {
		return root, err
	}
	if len(b) != len(root) {
		return root, fmt.Errorf("root has length %d, expected %d", len(b), len(root))
	}
	copy(root[:], b)
	return root, nil
}

// rootFromHex allows an empty string for a missing signing root.
func rootFromHex(str string) (*phase0.Root, error) {
	if str == "" {
		return nil, nil
	}
	root, err := RootFromHex(str)
	if err != nil {
		return nil, err
	}
	return &root, nil
}

func rootToHex(root *phase0.Root) string {
	if root == nil {
		return ""
	}
	return hexutil.Encode(root[:])
}
