// Command demo runs a small in-memory synod cluster and prints each
// process's decision once the run settles.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/waweru/synod"
)

// scenario presets the handful of runnable configurations from the
// end-to-end test matrix that are expressible purely through
// Bootstrap's Crash/Hold injection. S2, S4 and S6 need control over
// initial proposals or individual handler calls and have no preset;
// process_test.go exercises the S4 and S6 handler rules directly.
var scenarios = map[string]synod.BootstrapOptions{
	"s1": {},                 // plain launch, no injections
	"s3": {Crash: []int{2}},  // p2 armed with Crash (probabilistic) before launch
	"s5": {Hold: []int{0}},   // hold suppresses retry on p0
}

func main() {
	n := flag.Int("n", 5, "number of processes")
	seed := flag.Int64("seed", 1, "random seed")
	settle := flag.Duration("settle", 500*time.Millisecond, "time to let the cluster settle before reading results")
	crash := flag.String("crash", "", "comma-separated ids to arm with Crash before launch, e.g. 0,2")
	hold := flag.String("hold", "", "comma-separated ids to send Hold before launch")
	scenario := flag.String("scenario", "", "named preset overriding -crash/-hold: s1, s3, s5")
	verbose := flag.Bool("v", false, "dump full process state on every handled message")
	flag.Parse()

	opts := synod.BootstrapOptions{Crash: parseIDs(*crash), Hold: parseIDs(*hold)}
	if *scenario != "" {
		preset, ok := scenarios[*scenario]
		if !ok {
			log.Fatalf("synod: unknown scenario %q (known: s1, s3, s5)", *scenario)
		}
		opts = preset
	}

	procs := make([]*synod.Process, *n)
	mailboxes := make([]*synod.InmemMailbox, *n)
	peers := make([]synod.PeerHandle, *n)
	for i := range procs {
		// Each process's mailbox runs in its own goroutine, and
		// math/rand.Rand is not safe for concurrent use, so every
		// process gets its own seeded source rather than sharing one.
		procs[i] = synod.NewProcess(i, synod.NewRandSource(*seed+int64(i)), log.Default())
		procs[i].SetVerbose(*verbose)
		mailboxes[i] = synod.NewInmemMailbox(procs[i], 64)
		peers[i] = mailboxes[i]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := range mailboxes {
		go mailboxes[i].Run(ctx)
	}

	synod.Bootstrap(peers, opts)

	time.Sleep(*settle)

	for _, p := range procs {
		fmt.Printf("process %d: result=%d\n", p.ID(), p.GetProposeResult())
	}
}

func parseIDs(s string) []int {
	if s == "" {
		return nil
	}
	var ids []int
	var cur int
	var started bool
	flush := func() {
		if started {
			ids = append(ids, cur)
		}
		cur, started = 0, false
	}
	for _, c := range s {
		if c == ',' {
			flush()
			continue
		}
		if c < '0' || c > '9' {
			continue
		}
		cur = cur*10 + int(c-'0')
		started = true
	}
	flush()
	return ids
}
