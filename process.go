package synod

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/sanity-io/litter"
)

// Decision states for proposeResult, per the data model: undecided,
// aborted, or a decided value (>= 0).
const (
	Undecided = -2
	Aborted   = -1
)

// crashProbability is alpha from the configuration constants: the
// chance, on every crash-eligible message, that an armed process
// stops responding for good.
const crashProbability = 0.1

// gatherRecord is the per-peer (estimate, imposeBallot) pair a
// proposer collects during a Read round. A flat named struct replaces
// the source's nested Pair class and the two-parallel-arrays
// alternative alike.
type gatherRecord struct {
	estimate     int
	imposeBallot Ballot
}

// Process is one peer's full protocol state machine: proposer and
// acceptor in one, per the data model. A Process is never called
// directly by more than one goroutine at a time — it is only ever
// driven through Handle by the single-threaded mailbox loop that owns
// it (see InmemMailbox.Run) — so, unlike the teacher lineage's
// mutex-guarded Node, it needs no lock of its own.
type Process struct {
	id    int
	n     int
	peers []PeerHandle

	ballot       Ballot
	proposal     int
	readBallot   Ballot
	imposeBallot Ballot
	estimate     int

	states              []gatherRecord
	receivedStates      int
	gatherQuorumReached bool

	ackCount         int
	ackQuorumReached bool

	launched    bool
	shouldCrash bool
	crashed     bool
	hold        bool

	// proposeResult is read from outside the owning mailbox goroutine
	// by GetProposeResult (tests, cmd/demo), so unlike every other
	// field it is accessed atomically rather than relying on
	// run-to-completion ownership.
	proposeResult atomic.Int32

	startTime time.Time

	rand    RandSource
	log     *log.Logger
	verbose bool
}

// NewProcess constructs a process identified by id. Its peer table and
// the rest of its protocol state stay at their zero values until
// ActorInfo arrives, per the lifecycle in the data model. rnd supplies
// the initial-proposal draw and the crash coin; logger receives the
// decide-latency and divergence lines. A nil logger falls back to the
// standard logger.
func NewProcess(id int, rnd RandSource, logger *log.Logger) *Process {
	if logger == nil {
		logger = log.Default()
	}
	p := &Process{
		id:   id,
		rand: rnd,
		log:  logger,
	}
	p.proposeResult.Store(Undecided)
	return p
}

// ID returns this process's id.
func (p *Process) ID() int {
	return p.id
}

// GetProposeResult returns the current decision state: Undecided
// (-2), Aborted (-1), or the decided value (0 or 1).
func (p *Process) GetProposeResult() int {
	return int(p.proposeResult.Load())
}

// SetVerbose toggles per-message state dumps via litter, for tracing a
// run during development.
func (p *Process) SetVerbose(v bool) {
	p.verbose = v
}

// Handle dispatches msg to its handler. It is the only entry point
// into a Process's state and must only ever be called by the single
// goroutine that owns this process's mailbox.
func (p *Process) Handle(msg Message) {
	if p.verbose {
		litter.Dump(struct {
			Process *Process
			Handling Message
		}{p, msg})
	}
	switch m := msg.(type) {
	case ActorInfo:
		p.onActorInfo(m)
	case Launch:
		p.onLaunch()
	case Crash:
		p.onCrash()
	case Hold:
		p.onHold()
	case Read:
		p.onRead(m)
	case Abort:
		p.onAbort(m)
	case Gather:
		p.onGather(m)
	case Impose:
		p.onImpose(m)
	case Ack:
		p.onAck(m)
	case Decide:
		p.onDecide(m)
	default:
		p.log.Printf("synod: process %d: unhandled message type %T", p.id, msg)
	}
}

// commonGuard implements the guard shared by every handler except
// ActorInfo/Launch/Crash/Hold: a crashed process drops everything; a
// decided process drops stale Read/Gather/Impose/Ack (decided is
// passed as checkDecided); and an armed process rolls the crash coin
// last, so the very message that would have advanced the round can
// also be the one that crashes it.
func (p *Process) commonGuard(checkDecided bool) (drop bool) {
	if p.crashed {
		return true
	}
	if checkDecided && p.proposeResult.Load() >= 0 {
		return true
	}
	if p.shouldCrash && p.rand.Float64() < crashProbability {
		p.crashed = true
		return true
	}
	return false
}

// propose starts a new round trying to impose v: it bumps the ballot
// by N (keeping it unique to this process), resets the round-local
// Gather/Ack bookkeeping for the new ballot, and broadcasts Read. Like
// the guard every other handler goes through, an armed process rolls
// its own independent crash coin here too — on the abort-retry path
// this is a second roll on top of the one commonGuard already made
// for the incoming Abort itself, which is intentional: propose begins
// a new round, and that round gets its own chance to crash.
func (p *Process) propose(v int) {
	if p.crashed {
		return
	}
	if p.shouldCrash && p.rand.Float64() < crashProbability {
		p.crashed = true
		return
	}

	p.proposal = v
	p.ballot += Ballot(p.n)

	for i := range p.states {
		p.states[i] = gatherRecord{}
	}
	p.receivedStates = 0
	p.gatherQuorumReached = false
	p.ackCount = 0
	p.ackQuorumReached = false

	p.broadcast(Read{Ballot: int(p.ballot), From: p.id})
}

func (p *Process) onActorInfo(m ActorInfo) {
	p.peers = m.Peers
	p.n = m.N

	p.ballot = initialBallot(p.id, p.n)
	p.proposal = 0
	p.readBallot = 0
	p.imposeBallot = initialBallot(p.id, p.n)
	p.estimate = 0

	p.states = make([]gatherRecord, p.n)
	p.receivedStates = 0
	p.gatherQuorumReached = false

	p.ackCount = 0
	p.ackQuorumReached = false

	p.launched = false
	p.shouldCrash = false
	p.crashed = false
	p.hold = false
	p.proposeResult.Store(Undecided)
	p.startTime = time.Time{}
}

func (p *Process) onLaunch() {
	if p.launched {
		return
	}
	p.launched = true
	p.startTime = time.Now()
	p.propose(p.rand.Intn(2))
}

func (p *Process) onCrash() {
	p.shouldCrash = true
}

func (p *Process) onHold() {
	p.hold = true
}

func (p *Process) onRead(m Read) {
	if p.commonGuard(true) {
		return
	}
	b := Ballot(m.Ballot)
	if p.readBallot > b || p.imposeBallot > b {
		p.reply(m.From, Abort{Ballot: m.Ballot, From: p.id})
		return
	}
	p.readBallot = b
	p.reply(m.From, Gather{Ballot: m.Ballot, ImposeBallot: int(p.imposeBallot), Estimate: p.estimate, From: p.id})
}

func (p *Process) onAbort(m Abort) {
	if p.commonGuard(false) {
		return
	}
	p.proposeResult.Store(Aborted)
	if !p.hold {
		p.propose(p.proposal)
	}
}

// onGather collects Read replies for the ballot currently in flight.
// Replies for any other ballot are stale and ignored outright — this,
// together with indexing states by the sender's own id rather than by
// (ballot+N)%N, closes the two related issues the source leaves open:
// a late reply can no longer be mistaken for a different sender's
// slot, and it can no longer re-arm a quorum that has already fired
// for this ballot, because the quorum latch now only clears in
// propose(), when a new ballot starts.
func (p *Process) onGather(m Gather) {
	if p.commonGuard(true) {
		return
	}
	if Ballot(m.Ballot) != p.ballot {
		return
	}

	p.states[m.From] = gatherRecord{estimate: m.Estimate, imposeBallot: Ballot(m.ImposeBallot)}
	p.receivedStates++

	if p.receivedStates > p.n/2 && !p.gatherQuorumReached {
		p.gatherQuorumReached = true

		maxIdx := -1
		for i, s := range p.states {
			if s.imposeBallot <= 0 {
				continue
			}
			if maxIdx == -1 || s.imposeBallot > p.states[maxIdx].imposeBallot {
				maxIdx = i
			}
		}
		if maxIdx != -1 {
			p.proposal = p.states[maxIdx].estimate
		}

		p.broadcast(Impose{Ballot: int(p.ballot), Proposal: p.proposal, From: p.id})
	}
}

func (p *Process) onImpose(m Impose) {
	if p.commonGuard(true) {
		return
	}
	b := Ballot(m.Ballot)
	if p.readBallot > b || p.imposeBallot > b {
		p.reply(m.From, Abort{Ballot: m.Ballot, From: p.id})
		return
	}
	p.estimate = m.Proposal
	p.imposeBallot = b
	p.reply(m.From, Ack{Ballot: m.Ballot, From: p.id})
}

// onAck counts Acks toward the ballot currently in flight; an Ack for
// any other ballot is stale and ignored, closing the same
// late-quorum-crossing issue as onGather.
func (p *Process) onAck(m Ack) {
	if p.commonGuard(true) {
		return
	}
	if Ballot(m.Ballot) != p.ballot {
		return
	}

	p.ackCount++
	if p.ackCount > p.n/2 && !p.ackQuorumReached {
		p.ackQuorumReached = true
		p.log.Printf("synod: process %d: decided %d after %v", p.id, p.proposal, time.Since(p.startTime))
		p.broadcast(Decide{Proposal: p.proposal, From: p.id})
	}
}

// onDecide deliberately does not check proposeResult >= 0 before
// overwriting it, preserving the source's last-writer-wins behavior so
// a late Decide can still land on an already-aborted process (see
// end-to-end scenario S4). A contradicting Decide should never occur
// if the protocol is implemented correctly elsewhere, so one is logged
// as a divergence rather than silently accepted.
func (p *Process) onDecide(m Decide) {
	if p.commonGuard(false) {
		return
	}
	if prev := p.proposeResult.Load(); prev >= 0 && int(prev) != m.Proposal {
		p.log.Printf("synod: process %d: DIVERGENCE: already decided %d, got Decide(%d) from %d",
			p.id, prev, m.Proposal, m.From)
	}
	p.proposeResult.Store(int32(m.Proposal))
}

func (p *Process) broadcast(msg Message) {
	for _, peer := range p.peers {
		peer.Tell(msg)
	}
}

func (p *Process) reply(to int, msg Message) {
	p.peers[to].Tell(msg)
}
