package slashingprotection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common/hexutil"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/storage/basedb"
)

var recordPrefix = []byte("slashing-protection/")

type validatorEntry struct {
	// mu serializes check-then-append for one validator.
	mu sync.Mutex
	// record is nil until loaded from the database.
	record *Record
}

// Store is the durable signing history of every validator this node signs for.
// It is the only writer of slashing protection records.
type Store struct {
	logger *zap.Logger
	db     basedb.Database

	mu      sync.Mutex
	entries map[phase0.BLSPubKey]*validatorEntry
}

func New(logger *zap.Logger, db basedb.Database) *Store {
	return &Store{
		logger:  logger.Named(logging.NameSlashingProtection),
		db:      db,
		entries: make(map[phase0.BLSPubKey]*validatorEntry),
	}
}

func (s *Store) entry(pubKey phase0.BLSPubKey) *validatorEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[pubKey]
	if !ok {
		e = &validatorEntry{}
		s.entries[pubKey] = e
	}
	return e
}

// load returns the cached record, reading it from the database on first use.
// The caller must hold e.mu.
func (s *Store) load(pubKey phase0.BLSPubKey, e *validatorEntry) (*Record, error) {
	if e.record != nil {
		return e.record, nil
	}

	obj, found, err := s.db.Get(s.prefix(), pubKey[:])
	if err != nil {
		return nil, pkgerrors.Wrap(err, "could not read slashing protection record")
	}
	if !found {
		e.record = newRecord(pubKey)
		return e.record, nil
	}

	record, err := decodeRecord(obj.Value)
	if err != nil {
		return nil, err
	}
	if record.PubKey != pubKey {
		return nil, fmt.Errorf("stored record belongs to %x", record.PubKey)
	}
	e.record = record
	return record, nil
}

func (s *Store) prefix() []byte {
	p := make([]byte, len(recordPrefix))
	copy(p, recordPrefix)
	return p
}

// persist writes the record and only then makes it visible to readers.
// The caller must hold e.mu.
func (s *Store) persist(e *validatorEntry, record *Record) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn basedb.Txn) error {
		return txn.Set(s.prefix(), record.PubKey[:], data)
	})
	if err != nil {
		return pkgerrors.Wrap(err, "could not save slashing protection record")
	}
	e.record = record
	return nil
}

// Record returns a copy of the signing history of the given validator. An unknown
// validator has an empty history.
func (s *Store) Record(pubKey phase0.BLSPubKey) (*Record, error) {
	e := s.entry(pubKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	record, err := s.load(pubKey, e)
	if err != nil {
		return nil, err
	}
	return record.Copy(), nil
}

// IsSlashableAttestation returns a *SlashableAttestationError if signing the attestation
// would violate the recorded history, or another error if the history could not be read.
func (s *Store) IsSlashableAttestation(pubKey phase0.BLSPubKey, data *phase0.AttestationData, signingRoot phase0.Root) error {
	if err := validateAttestationData(data); err != nil {
		return err
	}

	e := s.entry(pubKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	record, err := s.load(pubKey, e)
	if err != nil {
		return err
	}
	_, err = record.CheckAttestation(data.Source.Epoch, data.Target.Epoch, &signingRoot)
	if err != nil {
		s.observeViolation(pubKey, types.KindAttestation, stageCheck, err)
	}
	return err
}

// IsSlashableBlock returns a *SlashableProposalError if signing a block at the slot
// would violate the recorded history.
func (s *Store) IsSlashableBlock(pubKey phase0.BLSPubKey, slot phase0.Slot, signingRoot phase0.Root) error {
	e := s.entry(pubKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	record, err := s.load(pubKey, e)
	if err != nil {
		return err
	}
	_, err = record.CheckBlock(slot, &signingRoot)
	if err != nil {
		s.observeViolation(pubKey, types.KindProposal, stageCheck, err)
	}
	return err
}

// RecordAttestation re-checks the attestation and appends it to the history in one
// critical section. Recording an identical attestation again is a no-op.
func (s *Store) RecordAttestation(pubKey phase0.BLSPubKey, data *phase0.AttestationData, signingRoot phase0.Root) error {
	if err := validateAttestationData(data); err != nil {
		return err
	}

	e := s.entry(pubKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	record, err := s.load(pubKey, e)
	if err != nil {
		return err
	}

	duplicate, err := record.CheckAttestation(data.Source.Epoch, data.Target.Epoch, &signingRoot)
	if err != nil {
		s.observeViolation(pubKey, types.KindAttestation, stageRecord, err)
		return err
	}
	if duplicate {
		return nil
	}

	updated := record.Copy()
	updated.SignedAttestations = append(updated.SignedAttestations, SignedAttestation{
		SourceEpoch: data.Source.Epoch,
		TargetEpoch: data.Target.Epoch,
		SigningRoot: &signingRoot,
	})
	if err := s.persist(e, updated); err != nil {
		return err
	}

	s.logger.Debug("recorded attestation",
		fields.Validator(pubKey),
		fields.Root(signingRoot),
		zap.Uint64("source_epoch", uint64(data.Source.Epoch)),
		zap.Uint64("target_epoch", uint64(data.Target.Epoch)))
	return nil
}

// RecordBlock re-checks the block and appends it to the history in one critical section.
// Recording the same slot and signing root again is a no-op.
func (s *Store) RecordBlock(pubKey phase0.BLSPubKey, slot phase0.Slot, signingRoot phase0.Root) error {
	e := s.entry(pubKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	record, err := s.load(pubKey, e)
	if err != nil {
		return err
	}

	duplicate, err := record.CheckBlock(slot, &signingRoot)
	if err != nil {
		s.observeViolation(pubKey, types.KindProposal, stageRecord, err)
		return err
	}
	if duplicate {
		return nil
	}

	updated := record.Copy()
	updated.SignedBlocks = append(updated.SignedBlocks, SignedBlock{Slot: slot, SigningRoot: &signingRoot})
	if err := s.persist(e, updated); err != nil {
		return err
	}

	s.logger.Debug("recorded block", fields.Validator(pubKey), fields.Slot(slot), fields.Root(signingRoot))
	return nil
}

// PubKeys lists every validator with a stored history, sorted.
func (s *Store) PubKeys() ([]phase0.BLSPubKey, error) {
	var pubKeys []phase0.BLSPubKey
	err := s.db.GetAll(s.prefix(), func(i int, obj basedb.Obj) error {
		if len(obj.Key) != len(phase0.BLSPubKey{}) {
			return fmt.Errorf("unexpected key length %d", len(obj.Key))
		}
		var pubKey phase0.BLSPubKey
		copy(pubKey[:], obj.Key)
		pubKeys = append(pubKeys, pubKey)
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "could not list slashing protection records")
	}
	sort.Slice(pubKeys, func(i, j int) bool {
		return bytes.Compare(pubKeys[i][:], pubKeys[j][:]) < 0
	})
	return pubKeys, nil
}

// Export builds an interchange document for the given validators, or for every stored
// validator when none are given.
func (s *Store) Export(genesisValidatorsRoot phase0.Root, pubKeys ...phase0.BLSPubKey) (*Interchange, error) {
	if len(pubKeys) == 0 {
		var err error
		if pubKeys, err = s.PubKeys(); err != nil {
			return nil, err
		}
	}

	ic := &Interchange{
		Metadata: InterchangeMetadata{
			InterchangeFormatVersion: InterchangeFormatVersion,
			GenesisValidatorsRoot:    hexutil.Encode(genesisValidatorsRoot[:]),
		},
		Data: make([]*InterchangeData, 0, len(pubKeys)),
	}
	for _, pubKey := range pubKeys {
		record, err := s.Record(pubKey)
		if err != nil {
			return nil, err
		}
		ic.Data = append(ic.Data, record.toInterchange())
	}
	return ic, nil
}

// ImportSummary reports what an import did per category of entry.
type ImportSummary struct {
	Validators   int
	Imported     int
	Duplicates   int
	BelowMinimum int
}

// Import merges an interchange document into the store. Entries already covered by the
// recorded minimums are skipped. An entry that conflicts with the recorded history aborts
// the import of that validator and is reported.
func (s *Store) Import(ic *Interchange, genesisValidatorsRoot phase0.Root) (*ImportSummary, error) {
	if ic.Metadata.InterchangeFormatVersion != InterchangeFormatVersion {
		return nil, fmt.Errorf("unsupported interchange format version %q", ic.Metadata.InterchangeFormatVersion)
	}
	icRoot, err := RootFromHex(ic.Metadata.GenesisValidatorsRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis validators root: %w", err)
	}
	if icRoot != genesisValidatorsRoot {
		return nil, fmt.Errorf("genesis validators root mismatch: interchange has %s, node has %s",
			ic.Metadata.GenesisValidatorsRoot, hexutil.Encode(genesisValidatorsRoot[:]))
	}

	// Several entries for the same key are merged, as EIP-3076 allows.
	incoming := make(map[phase0.BLSPubKey]*Record)
	var order []phase0.BLSPubKey
	for _, data := range ic.Data {
		record, err := recordFromInterchange(data)
		if err != nil {
			return nil, err
		}
		existing, ok := incoming[record.PubKey]
		if !ok {
			incoming[record.PubKey] = record
			order = append(order, record.PubKey)
			continue
		}
		existing.SignedBlocks = append(existing.SignedBlocks, record.SignedBlocks...)
		existing.SignedAttestations = append(existing.SignedAttestations, record.SignedAttestations...)
	}

	summary := &ImportSummary{}
	var errs []error
	for _, pubKey := range order {
		if err := s.importRecord(incoming[pubKey], summary); err != nil {
			errs = append(errs, fmt.Errorf("validator %s: %w", hexutil.Encode(pubKey[:]), err))
			continue
		}
		summary.Validators++
	}
	return summary, errors.Join(errs...)
}

func (s *Store) importRecord(incoming *Record, summary *ImportSummary) error {
	e := s.entry(incoming.PubKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	record, err := s.load(incoming.PubKey, e)
	if err != nil {
		return err
	}
	updated := record.Copy()

	// Ascending order makes the minimum rules reject only entries that truly conflict
	// or that the existing history already covers.
	blocks := append([]SignedBlock(nil), incoming.SignedBlocks...)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Slot < blocks[j].Slot })
	var imported, duplicates, belowMinimum int
	for _, b := range blocks {
		if updated.importDuplicateBlock(b.Slot, b.SigningRoot) {
			duplicates++
			continue
		}
		duplicate, err := updated.CheckBlock(b.Slot, b.SigningRoot)
		var slashable *SlashableProposalError
		switch {
		case err == nil && duplicate:
			duplicates++
		case err == nil:
			updated.SignedBlocks = append(updated.SignedBlocks, b)
			imported++
		case errors.As(err, &slashable) && slashable.BelowWatermark():
			belowMinimum++
		default:
			return fmt.Errorf("block at slot %d: %w", b.Slot, err)
		}
	}

	attestations := append([]SignedAttestation(nil), incoming.SignedAttestations...)
	sort.SliceStable(attestations, func(i, j int) bool {
		if attestations[i].TargetEpoch != attestations[j].TargetEpoch {
			return attestations[i].TargetEpoch < attestations[j].TargetEpoch
		}
		return attestations[i].SourceEpoch < attestations[j].SourceEpoch
	})
	for _, a := range attestations {
		if updated.importDuplicateAttestation(a.SourceEpoch, a.TargetEpoch, a.SigningRoot) {
			duplicates++
			continue
		}
		duplicate, err := updated.CheckAttestation(a.SourceEpoch, a.TargetEpoch, a.SigningRoot)
		var slashable *SlashableAttestationError
		switch {
		case err == nil && duplicate:
			duplicates++
		case err == nil:
			updated.SignedAttestations = append(updated.SignedAttestations, a)
			imported++
		case errors.As(err, &slashable) && slashable.BelowWatermark():
			belowMinimum++
		default:
			return fmt.Errorf("attestation %d->%d: %w", a.SourceEpoch, a.TargetEpoch, err)
		}
	}

	if imported > 0 {
		if err := s.persist(e, updated); err != nil {
			return err
		}
	}
	summary.Imported += imported
	summary.Duplicates += duplicates
	summary.BelowMinimum += belowMinimum
	return nil
}

func (s *Store) observeViolation(pubKey phase0.BLSPubKey, kind types.DutyKind, stage string, err error) {
	if !errors.Is(err, types.ErrSlashingViolation) {
		return
	}
	recordViolation(context.Background(), kind, stage)
	s.logger.Warn("refusing slashable signing",
		fields.Validator(pubKey),
		fields.DutyKind(kind),
		zap.String("stage", stage),
		fields.SlashingViolation(err))
}

func validateAttestationData(data *phase0.AttestationData) error {
	if data == nil || data.Source == nil || data.Target == nil {
		return fmt.Errorf("incomplete attestation data")
	}
	return nil
}

func encodeRecord(record *Record) ([]byte, error) {
	data, err := json.Marshal(record.toInterchange())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "could not encode slashing protection record")
	}
	return data, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var icData InterchangeData
	if err := json.Unmarshal(data, &icData); err != nil {
		return nil, pkgerrors.Wrap(err, "could not decode slashing protection record")
	}
	return recordFromInterchange(&icData)
}
