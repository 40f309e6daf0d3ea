// Command node runs a single synod process, reachable over net/rpc by
// its peers. Start one instance per address in -addrs. ActorInfo,
// Crash, Hold and Launch never cross the wire (see rpc_transport.go),
// so there is no separate bootstrapper binary: every node dials every
// peer itself, builds its own local peer table, and delivers its own
// control messages to its own mailbox once it can reach everyone.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/waweru/synod"
)

func main() {
	id := flag.Int("id", 0, "this process's id")
	addrsFlag := flag.String("addrs", "", "comma-separated host:port for every process, ordered by id")
	seed := flag.Int64("seed", 1, "random seed")
	crash := flag.Bool("crash", false, "arm this process with Crash before launch")
	hold := flag.Bool("hold", false, "send this process Hold before launch")
	flag.Parse()

	addrs := strings.Split(*addrsFlag, ",")
	n := len(addrs)
	if *id < 0 || *id >= n {
		log.Fatalf("synod: id %d out of range for %d addresses", *id, n)
	}

	proc := synod.NewProcess(*id, synod.NewRandSource(*seed+int64(*id)), log.Default())
	mailbox := synod.NewInmemMailbox(proc, 64)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mailbox.Run(ctx)

	ln, err := synod.ServeRPC(mailbox, addrs[*id])
	if err != nil {
		log.Fatalf("synod: serving on %s: %v", addrs[*id], err)
	}
	defer ln.Close()
	log.Printf("synod: process %d listening on %s", *id, addrs[*id])

	// Build this node's own peer table: its own slot is the local
	// mailbox, every other slot is a dialed RPC handle. Each node
	// does this independently, so no single node ever needs to ship
	// its peer table to anyone else.
	peers := make([]synod.PeerHandle, n)
	peers[*id] = mailbox
	for i, addr := range addrs {
		if i == *id {
			continue
		}
		peer, err := dialWithRetry(addr, 20, 300*time.Millisecond)
		if err != nil {
			log.Fatalf("synod: dialing peer %d at %s: %v", i, addr, err)
		}
		peers[i] = peer
	}

	mailbox.Tell(synod.ActorInfo{Peers: peers, N: n})
	if *crash {
		mailbox.Tell(synod.Crash{})
	}
	if *hold {
		mailbox.Tell(synod.Hold{})
	}
	mailbox.Tell(synod.Launch{})
	log.Printf("synod: process %d bootstrapped", *id)

	select {}
}

func dialWithRetry(addr string, attempts int, delay time.Duration) (*synod.RPCPeerHandle, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		peer, err := synod.DialRPCPeer(addr)
		if err == nil {
			return peer, nil
		}
		lastErr = err
		time.Sleep(delay)
	}
	return nil, lastErr
}
