/*
Package synod is a pure Go implementation of a leaderless, Paxos-synod
binary consensus protocol.

Each of N fully-connected peer processes proposes a value in {0,1};
every process plays both proposer and acceptor, and ballots are
partitioned by process id (ballot mod N == id mod N) so two processes
can never pick the same ballot. A process decides once it has
collected a quorum (a strict majority) of ACKs for a value it has
imposed; a process whose ballot is found stale aborts and, unless held,
retries with a fresh, higher ballot.

Example usage, wiring three processes over an in-memory transport:

	procs := make([]*synod.Process, 3)
	mailboxes := make([]synod.PeerHandle, 3)
	for i := range procs {
		procs[i] = synod.NewProcess(i, synod.NewRandSource(int64(i)), nil)
		mailboxes[i] = synod.NewInmemMailbox(procs[i], 64)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := range procs {
		go mailboxes[i].(*synod.InmemMailbox).Run(ctx)
	}
	synod.Bootstrap(mailboxes, synod.BootstrapOptions{})
	// ... wait, then inspect procs[i].GetProposeResult()

The package is organized the way a small, symmetric consensus library
tends to be:

  - message.go: the closed set of messages a Process exchanges.
  - ballot.go: the ballot type and its id-partitioning scheme.
  - process.go: the protocol state machine itself — the only part of
    this package whose correctness actually matters.
  - transport.go / inmem_transport.go / rpc_transport.go: PeerHandle
    and its two concrete transports.
  - bootstrap.go: peer-table wiring and launch/crash/hold orchestration.
  - rand.go: the injectable randomness a Process needs.
*/
package synod
