package synod

import (
	"context"
	"io"
	"log"
	"testing"
	"time"
)

// fakeRand is a deterministic RandSource for tests. intns is consumed
// in order by Intn; once exhausted it repeats the last value. floats
// works the same way for Float64, defaulting to 1.0 (never crash) when
// empty.
type fakeRand struct {
	intns  []int
	floats []float64
	ni, nf int
}

func (f *fakeRand) Intn(n int) int {
	if len(f.intns) == 0 {
		return 0
	}
	v := f.intns[f.ni]
	if f.ni < len(f.intns)-1 {
		f.ni++
	}
	return v % n
}

func (f *fakeRand) Float64() float64 {
	if len(f.floats) == 0 {
		return 1.0
	}
	v := f.floats[f.nf]
	if f.nf < len(f.floats)-1 {
		f.nf++
	}
	return v
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestOnReadAbortsStaleBallot(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent)}, N: 3})

	p.readBallot = 10
	p.onRead(Read{Ballot: 5, From: 0})

	if len(sent) != 1 {
		t.Fatalf("got %d replies, want 1", len(sent))
	}
	if _, ok := sent[0].(Abort); !ok {
		t.Fatalf("got %T, want Abort", sent[0])
	}
}

func TestOnReadGathersWhenBallotIsFresh(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent)}, N: 3})
	p.estimate = 1
	p.imposeBallot = 2

	p.onRead(Read{Ballot: 5, From: 0})

	if len(sent) != 1 {
		t.Fatalf("got %d replies, want 1", len(sent))
	}
	g, ok := sent[0].(Gather)
	if !ok {
		t.Fatalf("got %T, want Gather", sent[0])
	}
	if g.Estimate != 1 || g.ImposeBallot != 2 {
		t.Fatalf("got %+v, want estimate=1 imposeBallot=2", g)
	}
	if p.readBallot != 5 {
		t.Fatalf("readBallot = %d, want 5", p.readBallot)
	}
}

func TestOnGatherReachesQuorumOnce(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent), recordingPeer(&sent), recordingPeer(&sent)}, N: 3})
	p.propose(1)
	sent = nil // drop the Read broadcast

	p.onGather(Gather{Ballot: int(p.ballot), Estimate: 0, ImposeBallot: 0, From: 1})
	if len(sent) != 0 {
		t.Fatalf("quorum reached after 1 of 3 replies: %v", sent)
	}

	p.onGather(Gather{Ballot: int(p.ballot), Estimate: 0, ImposeBallot: 0, From: 2})
	imposes := countType[Impose](sent)
	if imposes != 3 {
		t.Fatalf("got %d Impose broadcasts, want 3 (one per peer)", imposes)
	}

	sent = nil
	p.onGather(Gather{Ballot: int(p.ballot), Estimate: 0, ImposeBallot: 0, From: 0})
	if len(sent) != 0 {
		t.Fatalf("onGather broadcast a second Impose for the same ballot: %v", sent)
	}
}

func TestOnGatherIgnoresStaleBallot(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent), recordingPeer(&sent), recordingPeer(&sent)}, N: 3})
	p.propose(1)
	staleBallot := int(p.ballot) - 100
	sent = nil

	p.onGather(Gather{Ballot: staleBallot, From: 1})
	if p.receivedStates != 0 {
		t.Fatalf("stale Gather counted toward quorum: receivedStates = %d", p.receivedStates)
	}
}

func TestOnAckReachesQuorumAndDecides(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent), recordingPeer(&sent), recordingPeer(&sent)}, N: 3})
	p.propose(1)
	sent = nil

	p.onAck(Ack{Ballot: int(p.ballot), From: 1})
	p.onAck(Ack{Ballot: int(p.ballot), From: 2})

	if d := countType[Decide](sent); d != 3 {
		t.Fatalf("got %d Decide broadcasts, want 3", d)
	}
}

func TestOnAbortReproposesUnlessHeld(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent), recordingPeer(&sent), recordingPeer(&sent)}, N: 3})
	p.propose(1)
	firstBallot := p.ballot
	sent = nil

	p.onAbort(Abort{Ballot: int(firstBallot), From: 1})

	if p.GetProposeResult() != Aborted {
		t.Fatalf("proposeResult = %d, want Aborted", p.GetProposeResult())
	}
	if p.ballot <= firstBallot {
		t.Fatalf("ballot did not advance after Abort: %d -> %d", firstBallot, p.ballot)
	}
	if countType[Read](sent) != 3 {
		t.Fatalf("did not re-broadcast Read after Abort: %v", sent)
	}
}

func TestOnAbortHeldDoesNotRepropose(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent), recordingPeer(&sent), recordingPeer(&sent)}, N: 3})
	p.onHold()
	p.propose(1)
	firstBallot := p.ballot
	sent = nil

	p.onAbort(Abort{Ballot: int(firstBallot), From: 1})

	if p.ballot != firstBallot {
		t.Fatalf("ballot advanced despite Hold: %d -> %d", firstBallot, p.ballot)
	}
	if len(sent) != 0 {
		t.Fatalf("held process re-broadcast after Abort: %v", sent)
	}
}

func TestCrashedProcessDropsEverything(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent), recordingPeer(&sent), recordingPeer(&sent)}, N: 3})
	p.crashed = true

	p.onRead(Read{Ballot: 1, From: 1})
	p.onGather(Gather{Ballot: 1, From: 1})
	p.onImpose(Impose{Ballot: 1, Proposal: 1, From: 1})
	p.onAck(Ack{Ballot: 1, From: 1})

	if len(sent) != 0 {
		t.Fatalf("crashed process replied: %v", sent)
	}
}

func TestDecidedProcessIgnoresStaleRoundMessages(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent), recordingPeer(&sent), recordingPeer(&sent)}, N: 3})
	p.proposeResult.Store(1)

	p.onRead(Read{Ballot: 1, From: 1})
	if len(sent) != 0 {
		t.Fatalf("decided process answered Read: %v", sent)
	}
}

func TestOnDecideLastWriterWinsOverAbort(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	var sent []Message
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{recordingPeer(&sent)}, N: 1})

	p.onAbort(Abort{Ballot: int(p.ballot), From: 0})
	if p.GetProposeResult() != Aborted {
		t.Fatalf("proposeResult = %d, want Aborted", p.GetProposeResult())
	}

	p.onDecide(Decide{Proposal: 1, From: 0})
	if p.GetProposeResult() != 1 {
		t.Fatalf("a late Decide did not overwrite Aborted: proposeResult = %d", p.GetProposeResult())
	}
}

func TestOnDecideDuplicateIsNoOp(t *testing.T) {
	p := NewProcess(0, &fakeRand{}, quietLogger())
	p.onActorInfo(ActorInfo{Peers: []PeerHandle{}, N: 0})

	p.onDecide(Decide{Proposal: 1, From: 1})
	if p.GetProposeResult() != 1 {
		t.Fatalf("proposeResult = %d, want 1", p.GetProposeResult())
	}

	p.onDecide(Decide{Proposal: 1, From: 1})
	if p.GetProposeResult() != 1 {
		t.Fatalf("duplicate Decide changed proposeResult to %d", p.GetProposeResult())
	}
}

// TestEndToEndSingleRoundDecides wires a full quorum of processes over
// InmemMailbox and Bootstrap and checks every process converges on the
// same decided value with no crashes in play.
func TestEndToEndSingleRoundDecides(t *testing.T) {
	const n = 5

	procs := make([]*Process, n)
	mailboxes := make([]*InmemMailbox, n)
	peers := make([]PeerHandle, n)
	for i := range procs {
		// Each process's goroutine draws from its own RandSource:
		// math/rand.Rand is not safe for concurrent use, and every
		// process here runs its own mailbox loop.
		procs[i] = NewProcess(i, NewRandSource(int64(42+i)), quietLogger())
		mailboxes[i] = NewInmemMailbox(procs[i], 64)
		peers[i] = mailboxes[i]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := range mailboxes {
		go mailboxes[i].Run(ctx)
	}

	Bootstrap(peers, BootstrapOptions{})

	deadline := time.Now().Add(2 * time.Second)
	for {
		allDecided := true
		for _, p := range procs {
			if p.GetProposeResult() < 0 {
				allDecided = false
			}
		}
		if allDecided || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := procs[0].GetProposeResult()
	if want < 0 {
		t.Fatalf("process 0 never decided")
	}
	for _, p := range procs {
		if got := p.GetProposeResult(); got != want {
			t.Fatalf("process %d decided %d, want %d (same as process 0)", p.ID(), got, want)
		}
	}
}

func countType[T Message](msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if _, ok := m.(T); ok {
			n++
		}
	}
	return n
}

type testPeer struct {
	sent *[]Message
}

func (t testPeer) Tell(msg Message) {
	*t.sent = append(*t.sent, msg)
}

func recordingPeer(sent *[]Message) PeerHandle {
	return testPeer{sent: sent}
}
