package qbft

import (
	"context"
	"errors"
	"fmt"
	"sync"

	specqbft "github.com/ssvlabs/ssv-spec/qbft"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/protocol/qbft/roundtimer"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const inboxSize = 1024

var errRoundBudgetExhausted = errors.New("round budget exhausted")

var _ Consensus = (*Instance)(nil)

// Instance runs QBFT for a single height. Leaders rotate over the co-validators sorted by
// index, starting at (height + round) mod N.
type Instance struct {
	logger *zap.Logger
	id     types.InstanceID
	dv     *types.DistributedValidator

	committee []uint64
	quorum    uint64
	budget    specqbft.Round

	broadcaster  Broadcaster
	validate     func(ctx context.Context, value []byte) error
	candidate    func(ctx context.Context) ([]byte, error)
	roundTimeout roundtimer.RoundTimeoutFunc

	inbox    chan *Message
	timeouts chan specqbft.Round
	timer    *roundtimer.RoundTimer

	mu            sync.Mutex
	round         specqbft.Round
	msgs          *messageContainer
	values        map[[32]byte][]byte
	accepted      map[specqbft.Round][32]byte
	proposed      map[specqbft.Round]bool
	committed     map[specqbft.Round]bool
	preparedRound specqbft.Round
	preparedValue []byte
	preparedProof []*Message
	decidedValue  []byte
	decidedRound  specqbft.Round
	decided       bool
}

type instanceParams struct {
	logger       *zap.Logger
	id           types.InstanceID
	dv           *types.DistributedValidator
	budget       uint64
	broadcaster  Broadcaster
	validate     func(ctx context.Context, value []byte) error
	candidate    func(ctx context.Context) ([]byte, error)
	roundTimeout roundtimer.RoundTimeoutFunc
}

func newInstance(p instanceParams) *Instance {
	if p.budget == 0 {
		p.budget = DefaultRoundBudget
	}
	if p.roundTimeout == nil {
		p.roundTimeout = roundtimer.RoundTimeout
	}
	return &Instance{
		logger:       p.logger.With(fields.DutyKind(p.id.Kind), fields.Height(p.id.Height)),
		id:           p.id,
		dv:           p.dv,
		committee:    p.dv.SortedIndices(),
		quorum:       p.dv.ConsensusQuorum(),
		budget:       specqbft.Round(p.budget),
		broadcaster:  p.broadcaster,
		validate:     p.validate,
		candidate:    p.candidate,
		roundTimeout: p.roundTimeout,
		inbox:        make(chan *Message, inboxSize),
		timeouts:     make(chan specqbft.Round, 8),
		msgs:         newMessageContainer(),
		values:       make(map[[32]byte][]byte),
		accepted:     make(map[specqbft.Round][32]byte),
		proposed:     make(map[specqbft.Round]bool),
		committed:    make(map[specqbft.Round]bool),
	}
}

// Run drives the instance until it decides, the round budget is exhausted or ctx is done.
// A resumed instance moves to the round after the one it stopped in.
func (i *Instance) Run(ctx context.Context) ([]byte, error) {
	i.timer = roundtimer.NewWithTimeout(ctx, i.onTimeout, i.roundTimeout)
	defer i.timer.Kill()

	i.mu.Lock()
	if i.round == specqbft.NoRound {
		i.startRound(ctx, specqbft.FirstRound)
	} else if err := i.changeRound(ctx, i.round+1); err != nil {
		i.logger.Debug("could not resume", fields.Round(i.round), zap.Error(err))
	}
	i.mu.Unlock()

	for {
		if value, ok := i.Decided(); ok {
			return value, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", types.ErrConsensusTimeout, ctx.Err())
		case round := <-i.timeouts:
			if err := i.uponTimeout(ctx, round); err != nil {
				return nil, fmt.Errorf("%w: %w", types.ErrConsensusTimeout, err)
			}
		case msg := <-i.inbox:
			if err := i.OnMessage(ctx, msg); err != nil {
				i.logger.Debug("rejected consensus message",
					fields.QBFTMessageType(msg.MsgType),
					fields.Round(msg.Round),
					fields.Signer(msg.Signer),
					zap.Error(err))
			}
		}
	}
}

// resume gives an instance that ran out of rounds another budget of rounds. The next Run
// carries on from the round after the current one, keeping the prepared round and value.
func (i *Instance) resume(p instanceParams) {
	if p.budget == 0 {
		p.budget = DefaultRoundBudget
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.budget = i.round + specqbft.Round(p.budget)
	i.validate = p.validate
	i.candidate = p.candidate
}

// enqueue hands a message to the run loop. It never blocks.
func (i *Instance) enqueue(msg *Message) {
	select {
	case i.inbox <- msg:
	default:
		i.logger.Warn("consensus inbox full, dropping message", fields.Signer(msg.Signer))
	}
}

func (i *Instance) onTimeout(round specqbft.Round) {
	select {
	case i.timeouts <- round:
	default:
	}
}

func (i *Instance) Decided() ([]byte, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.decidedValue, i.decided
}

func (i *Instance) leader(round specqbft.Round) uint64 {
	return i.committee[(uint64(i.id.Height)+uint64(round))%uint64(len(i.committee))]
}

func (i *Instance) isLeader(round specqbft.Round) bool {
	return i.leader(round) == i.dv.SelfIndex
}

func (i *Instance) setRound(round specqbft.Round) {
	i.round = round
	i.timer.TimeoutForRound(round)
}

func (i *Instance) startRound(ctx context.Context, round specqbft.Round) {
	i.setRound(round)
	if !i.isLeader(round) {
		return
	}
	value, err := i.candidate(ctx)
	if err != nil {
		i.logger.Warn("could not get candidate", fields.Round(round), zap.Error(err))
		return
	}
	if err := i.propose(ctx, value, nil); err != nil {
		i.logger.Warn("could not propose", fields.Round(round), zap.Error(err))
	}
}

func (i *Instance) Propose(ctx context.Context, value []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.isLeader(i.round) {
		return fmt.Errorf("not the leader of round %d", i.round)
	}
	if i.round != specqbft.FirstRound {
		return fmt.Errorf("round %d proposals need a round change justification", i.round)
	}
	return i.propose(ctx, value, nil)
}

func (i *Instance) propose(ctx context.Context, value []byte, justification []*Message) error {
	if i.proposed[i.round] {
		return nil
	}
	if err := i.validate(ctx, value); err != nil {
		return fmt.Errorf("invalid own candidate: %w", err)
	}
	i.proposed[i.round] = true
	i.logger.Debug("proposing", fields.Round(i.round))
	return i.broadcast(ctx, &Message{
		MsgType:                  specqbft.ProposalMsgType,
		Round:                    i.round,
		Root:                     ValueRoot(value),
		Value:                    value,
		RoundChangeJustification: justification,
	})
}

func (i *Instance) broadcast(ctx context.Context, msg *Message) error {
	msg.ValidatorPubKey = i.id.ValidatorPubKey
	msg.Kind = i.id.Kind
	msg.Height = i.id.Height
	msg.Signer = i.dv.SelfIndex
	return i.broadcaster.BroadcastConsensus(ctx, msg)
}

func (i *Instance) OnMessage(ctx context.Context, msg *Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.decided {
		return nil
	}
	if err := i.checkMessage(msg); err != nil {
		return err
	}

	switch msg.MsgType {
	case specqbft.ProposalMsgType:
		return i.uponProposal(ctx, msg)
	case specqbft.PrepareMsgType:
		if !i.msgs.add(msg) {
			return nil
		}
		return i.checkPrepareQuorum(ctx, msg.Round)
	case specqbft.CommitMsgType:
		if !i.msgs.add(msg) {
			return nil
		}
		i.checkCommitQuorum(msg.Round, msg.Root)
		return nil
	case specqbft.RoundChangeMsgType:
		if msg.PreparedRound != specqbft.NoRound {
			if err := i.justifyPrepared(msg); err != nil {
				return err
			}
		}
		if !i.msgs.add(msg) {
			return nil
		}
		return i.uponRoundChange(ctx, msg)
	default:
		return fmt.Errorf("unknown message type %d", msg.MsgType)
	}
}

func (i *Instance) checkMessage(msg *Message) error {
	if msg.InstanceID() != i.id {
		return fmt.Errorf("message of instance %s", msg.InstanceID())
	}
	if _, ok := i.dv.CoValidator(msg.Signer); !ok {
		return fmt.Errorf("signer %d is not a co-validator", msg.Signer)
	}
	return msg.Validate()
}

func (i *Instance) uponProposal(ctx context.Context, msg *Message) error {
	round := msg.Round
	if round < i.round {
		return fmt.Errorf("proposal of past round %d", round)
	}
	if msg.Signer != i.leader(round) {
		return fmt.Errorf("proposal of round %d from %d, leader is %d", round, msg.Signer, i.leader(round))
	}
	if ValueRoot(msg.Value) != msg.Root {
		return fmt.Errorf("proposal root does not match its value")
	}
	if _, ok := i.accepted[round]; ok {
		return nil
	}
	if round > specqbft.FirstRound {
		if err := i.justifyProposal(msg); err != nil {
			return fmt.Errorf("unjustified proposal: %w", err)
		}
	}
	if err := i.validate(ctx, msg.Value); err != nil {
		i.logger.Warn("refusing invalid proposal", fields.Round(round), fields.Signer(msg.Signer), zap.Error(err))
		return err
	}
	i.msgs.add(msg)

	i.values[msg.Root] = msg.Value
	i.accepted[round] = msg.Root
	if round > i.round {
		i.setRound(round)
	}
	if err := i.broadcast(ctx, &Message{MsgType: specqbft.PrepareMsgType, Round: round, Root: msg.Root}); err != nil {
		return fmt.Errorf("could not broadcast prepare: %w", err)
	}
	if err := i.checkPrepareQuorum(ctx, round); err != nil {
		return err
	}
	// Commits may have arrived before the value was known.
	i.checkCommitQuorum(round, msg.Root)
	return nil
}

// justifyProposal checks a later round proposal carries a round change quorum and, if
// any of those reported a prepared value, proposes the highest prepared one.
func (i *Instance) justifyProposal(msg *Message) error {
	signers := make(map[uint64]struct{})
	var highest *Message
	for _, rc := range msg.RoundChangeJustification {
		if rc.MsgType != specqbft.RoundChangeMsgType || rc.Round != msg.Round || rc.InstanceID() != i.id {
			return fmt.Errorf("foreign round change in justification")
		}
		if _, ok := i.dv.CoValidator(rc.Signer); !ok {
			return fmt.Errorf("round change of non co-validator %d", rc.Signer)
		}
		signers[rc.Signer] = struct{}{}
		if rc.PreparedRound == specqbft.NoRound {
			continue
		}
		if err := i.justifyPrepared(rc); err != nil {
			return err
		}
		if highest == nil || rc.PreparedRound > highest.PreparedRound {
			highest = rc
		}
	}
	if uint64(len(signers)) < i.quorum {
		return fmt.Errorf("%d round changes, need %d", len(signers), i.quorum)
	}
	if highest != nil && highest.Root != msg.Root {
		return fmt.Errorf("proposal ignores value prepared in round %d", highest.PreparedRound)
	}
	return nil
}

// justifyPrepared checks a round change's prepared value is backed by a prepare quorum.
func (i *Instance) justifyPrepared(rc *Message) error {
	if ValueRoot(rc.Value) != rc.Root {
		return fmt.Errorf("prepared value does not match its root")
	}
	signers := make(map[uint64]struct{})
	for _, p := range rc.PrepareJustification {
		if p.MsgType != specqbft.PrepareMsgType || p.Round != rc.PreparedRound || p.Root != rc.Root || p.InstanceID() != i.id {
			continue
		}
		if _, ok := i.dv.CoValidator(p.Signer); ok {
			signers[p.Signer] = struct{}{}
		}
	}
	if uint64(len(signers)) < i.quorum {
		return fmt.Errorf("prepared round %d backed by %d prepares, need %d", rc.PreparedRound, len(signers), i.quorum)
	}
	return nil
}

func (i *Instance) checkPrepareQuorum(ctx context.Context, round specqbft.Round) error {
	root, ok := i.accepted[round]
	if !ok || i.committed[round] {
		return nil
	}
	prepares := i.msgs.matching(specqbft.PrepareMsgType, round, root)
	if uint64(len(prepares)) < i.quorum {
		return nil
	}

	i.committed[round] = true
	i.preparedRound = round
	i.preparedValue = i.values[root]
	i.preparedProof = prepares
	i.logger.Debug("prepared", fields.Round(round))

	if err := i.broadcast(ctx, &Message{MsgType: specqbft.CommitMsgType, Round: round, Root: root}); err != nil {
		return fmt.Errorf("could not broadcast commit: %w", err)
	}
	return nil
}

func (i *Instance) checkCommitQuorum(round specqbft.Round, root [32]byte) {
	if i.decided {
		return
	}
	value, ok := i.values[root]
	if !ok {
		return
	}
	commits := i.msgs.matching(specqbft.CommitMsgType, round, root)
	if uint64(len(commits)) < i.quorum {
		return
	}

	i.decided = true
	i.decidedValue = value
	i.decidedRound = round
	signers := make([]uint64, 0, len(commits))
	for _, c := range commits {
		signers = append(signers, c.Signer)
	}
	i.logger.Info("decided", fields.Round(round), fields.Signers(signers))
}

func (i *Instance) uponTimeout(ctx context.Context, round specqbft.Round) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.decided || round != i.round {
		return nil
	}
	recordRoundTimeout(ctx, i.id.Kind)
	if round >= i.budget {
		return fmt.Errorf("%w after round %d", errRoundBudgetExhausted, round)
	}
	i.logger.Debug("round timed out", fields.Round(round))
	return i.changeRound(ctx, round+1)
}

// changeRound moves to round and announces it with the highest prepared value, if any.
func (i *Instance) changeRound(ctx context.Context, round specqbft.Round) error {
	i.setRound(round)

	rc := &Message{MsgType: specqbft.RoundChangeMsgType, Round: round}
	if i.preparedRound != specqbft.NoRound {
		rc.PreparedRound = i.preparedRound
		rc.Value = i.preparedValue
		rc.Root = ValueRoot(i.preparedValue)
		rc.PrepareJustification = i.preparedProof
	}
	if err := i.broadcast(ctx, rc); err != nil {
		return fmt.Errorf("could not broadcast round change: %w", err)
	}
	return i.uponRoundChangeQuorum(ctx, round)
}

func (i *Instance) uponRoundChange(ctx context.Context, msg *Message) error {
	// Enough co-validators moved on that at least one honest one did: follow them.
	if msg.Round > i.round {
		ahead := i.msgs.roundChangesAbove(i.round)
		if uint64(len(ahead)) >= uint64(len(i.committee))-i.quorum+1 {
			next := msg.Round
			for _, r := range ahead {
				next = min(next, r)
			}
			return i.changeRound(ctx, next)
		}
	}
	return i.uponRoundChangeQuorum(ctx, i.round)
}

// uponRoundChangeQuorum lets the leader of a later round propose once a quorum asked for it.
func (i *Instance) uponRoundChangeQuorum(ctx context.Context, round specqbft.Round) error {
	if round == specqbft.FirstRound || !i.isLeader(round) || i.proposed[round] {
		return nil
	}
	rcs := i.msgs.all(specqbft.RoundChangeMsgType, round)
	if uint64(len(rcs)) < i.quorum {
		return nil
	}

	var value []byte
	var highest specqbft.Round
	for _, rc := range rcs {
		if rc.PreparedRound > highest {
			highest, value = rc.PreparedRound, rc.Value
		}
	}
	if value == nil {
		candidate, err := i.candidate(ctx)
		if err != nil {
			return fmt.Errorf("could not get candidate: %w", err)
		}
		value = candidate
	}
	return i.propose(ctx, value, rcs)
}

// DecidedRound is the round the instance decided in, or NoRound.
func (i *Instance) DecidedRound() specqbft.Round {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.decidedRound
}
