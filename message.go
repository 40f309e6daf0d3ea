package synod

// Message is the closed set of messages a Process can receive. Go has
// no actor framework to carry an implicit sender alongside a message,
// so messages that need a reply destination carry their sender's id
// explicitly as a From field.
type Message interface {
	isMessage()
}

// ActorInfo is sent by the bootstrapper exactly once, before any other
// message, to populate a process's peer table and reset its protocol
// state to the values in the data model.
type ActorInfo struct {
	Peers []PeerHandle
	N     int
}

// Launch is sent by the bootstrapper exactly once, to start a process
// proposing its initial, randomly drawn value.
type Launch struct{}

// Crash arms the probabilistic crash behavior; it does not crash the
// process immediately.
type Crash struct{}

// Hold suppresses re-proposal after an Abort, for testing liveness
// boundaries.
type Hold struct{}

// Read is broadcast by a proposer soliciting each acceptor's
// last-accepted (estimate, imposeBallot) under a new ballot.
type Read struct {
	Ballot int
	From   int
}

// Abort is an acceptor's rejection of a stale ballot, sent back to the
// proposer that issued the Read or Impose.
type Abort struct {
	Ballot int
	From   int
}

// Gather is an acceptor's reply to a Read, carrying its last-accepted
// estimate and the ballot it was accepted under.
type Gather struct {
	Ballot       int
	ImposeBallot int
	Estimate     int
	From         int
}

// Impose is broadcast by a proposer asking every acceptor to accept
// its chosen value under its ballot.
type Impose struct {
	Ballot   int
	Proposal int
	From     int
}

// Ack is an acceptor's confirmation that it accepted an Impose.
type Ack struct {
	Ballot int
	From   int
}

// Decide is broadcast by a proposer once it has a quorum of Acks; it
// carries the decided value itself, not a ballot.
type Decide struct {
	Proposal int
	From     int
}

func (ActorInfo) isMessage() {}
func (Launch) isMessage()    {}
func (Crash) isMessage()     {}
func (Hold) isMessage()      {}
func (Read) isMessage()      {}
func (Abort) isMessage()     {}
func (Gather) isMessage()    {}
func (Impose) isMessage()    {}
func (Ack) isMessage()       {}
func (Decide) isMessage()    {}
