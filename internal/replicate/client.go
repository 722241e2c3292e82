package replicate

import (
	"context"

	"github.com/sirkon/errors"
	"github.com/vskvj3/linkd/internal/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client talks to the replication service of another node.
type Client struct {
	addr string
	conn *grpc.ClientConn
}

// NewClient prepares a connection to the node at addr. The connection is
// established lazily on the first call.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create replication client").Str("address", addr)
	}
	return &Client{addr: addr, conn: conn}, nil
}

// Address returns the node address the client talks to.
func (c *Client) Address() string {
	return c.addr
}

// Replicate applies cmd on the remote follower.
func (c *Client) Replicate(ctx context.Context, cmd *Command) (*Ack, error) {
	out := new(Ack)
	if err := c.conn.Invoke(ctx, replicateMethod, cmd, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Forward hands a client write over to the leader.
func (c *Client) Forward(ctx context.Context, cmd *Command) (*utils.Response, error) {
	out := new(utils.Response)
	if err := c.conn.Invoke(ctx, forwardMethod, cmd, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sync fetches the leader's write history.
func (c *Client) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	out := new(SyncResponse)
	if err := c.conn.Invoke(ctx, syncMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close tears the connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}
