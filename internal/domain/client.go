package domain

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

var clientSeq uint64

// Client identifies one open WebSocket connection. Equality is by pointer
// identity, never by any client-supplied field — two Clients with the same
// PeerAddr are still distinct subscribers.
type Client struct {
	ID       uuid.UUID
	seq      uint64
	PeerAddr string
}

// NewClient allocates a Client handle for a freshly accepted connection.
func NewClient(peerAddr string) *Client {
	return &Client{
		ID:       uuid.New(),
		seq:      atomic.AddUint64(&clientSeq, 1),
		PeerAddr: peerAddr,
	}
}

// Label renders a human-readable identifier for logs: a process-unique
// sequence number paired with the peer address.
func (c *Client) Label() string {
	if c == nil {
		return "ws#?"
	}
	return fmt.Sprintf("ws#%d@%s", c.seq, c.PeerAddr)
}
