package synod

// BootstrapOptions controls which control messages Bootstrap sends
// after wiring the peer table, and to which processes.
type BootstrapOptions struct {
	// Launch lists the ids to send Launch to. A nil slice launches
	// every process.
	Launch []int
	// Crash lists the ids to arm with Crash before launching.
	Crash []int
	// Hold lists the ids to send Hold to before launching.
	Hold []int
}

// Bootstrap sends ActorInfo to every peer so each learns its full peer
// table and N, then applies Crash and Hold, then Launch, in that
// order, per the lifecycle in the data model: a process must learn
// its peers before it can be told to crash, hold, or propose.
func Bootstrap(peers []PeerHandle, opts BootstrapOptions) {
	n := len(peers)
	for _, peer := range peers {
		peer.Tell(ActorInfo{Peers: peers, N: n})
	}

	for _, id := range opts.Crash {
		peers[id].Tell(Crash{})
	}
	for _, id := range opts.Hold {
		peers[id].Tell(Hold{})
	}

	launch := opts.Launch
	if launch == nil {
		launch = make([]int, n)
		for i := range launch {
			launch[i] = i
		}
	}
	for _, id := range launch {
		peers[id].Tell(Launch{})
	}
}
