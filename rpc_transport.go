package synod

import (
	"encoding/gob"
	"log"
	"net"
	"net/rpc"

	"github.com/pkg/errors"
)

func init() {
	// Only the wire-crossing protocol messages need registering.
	// ActorInfo, Launch, Crash and Hold are control messages the
	// bootstrapper always delivers locally, and ActorInfo in
	// particular carries live PeerHandle values that have no
	// meaningful remote encoding.
	gob.Register(Read{})
	gob.Register(Abort{})
	gob.Register(Gather{})
	gob.Register(Impose{})
	gob.Register(Ack{})
	gob.Register(Decide{})
}

// Envelope carries a Message across net/rpc, which dispatches on
// concrete argument types and cannot take the Message interface
// directly.
type Envelope struct {
	Msg Message
}

// rpcGateway is the net/rpc-shaped front door onto a local mailbox. It
// is kept separate from InmemMailbox itself because net/rpc requires
// a method of exactly the shape func(Args, *Reply) error, which is not
// a shape PeerHandle.Tell can share.
type rpcGateway struct {
	mailbox *InmemMailbox
}

// Deliver is the exported, net/rpc-callable method backing every
// remote Tell.
func (g *rpcGateway) Deliver(env Envelope, _ *struct{}) error {
	g.mailbox.Tell(env.Msg)
	return nil
}

// ServeRPC registers mailbox's gateway on its own *rpc.Server and
// starts accepting connections on addr in a background goroutine. The
// returned listener's Close stops the server.
func ServeRPC(mailbox *InmemMailbox, addr string) (net.Listener, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("rpcGateway", &rpcGateway{mailbox: mailbox}); err != nil {
		return nil, errors.Wrap(err, "synod: registering rpc gateway")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "synod: listening on %s", addr)
	}
	go srv.Accept(ln)
	return ln, nil
}

// RPCPeerHandle is a PeerHandle that delivers to a process hosted in a
// different process (OS process, that is) over net/rpc.
type RPCPeerHandle struct {
	client *rpc.Client
	addr   string
}

// DialRPCPeer connects to a peer previously exposed with ServeRPC.
func DialRPCPeer(addr string) (*RPCPeerHandle, error) {
	client, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "synod: dialing peer at %s", addr)
	}
	return &RPCPeerHandle{client: client, addr: addr}, nil
}

// Tell delivers msg asynchronously: Tell must not block on the
// remote's handling of msg, and a single slow or dead peer must not
// stall the broadcaster.
func (h *RPCPeerHandle) Tell(msg Message) {
	go func() {
		var reply struct{}
		if err := h.client.Call("rpcGateway.Deliver", Envelope{Msg: msg}, &reply); err != nil {
			log.Printf("synod: delivering to %s: %v", h.addr, err)
		}
	}()
}

// Close closes the underlying connection.
func (h *RPCPeerHandle) Close() error {
	return h.client.Close()
}
