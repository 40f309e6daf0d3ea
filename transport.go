package synod

// PeerHandle is how a Process reaches one of its peers: a local
// mailbox when both processes live in the same run, or a stub backed
// by net/rpc when they live in different ones. Tell does not wait for
// the remote process to handle msg — it only gets msg delivered (or
// queued) before returning. An InmemMailbox's Tell does block while
// that mailbox's buffer is full, until its Run loop takes a message out.
type PeerHandle interface {
	Tell(msg Message)
}
