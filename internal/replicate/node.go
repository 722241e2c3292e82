package replicate

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirkon/errors"
	"github.com/vskvj3/linkd/internal/core"
	"github.com/vskvj3/linkd/internal/datastructures"
	"github.com/vskvj3/linkd/internal/utils"
	"google.golang.org/grpc"
)

const (
	forwardTimeout = 5 * time.Second
	syncTimeout    = 10 * time.Second

	// number of replicated command ids a follower remembers
	seenLimit = 4096
)

// ErrNotLeader is returned by leader-only calls made on another node.
const ErrNotLeader errors.Const = "this node is not the leader"

// Node runs commands on behalf of clients according to its cluster role.
//
// A standalone node executes everything locally. A leader executes locally
// and ships successful writes to its followers. A follower serves reads
// locally and forwards writes to the leader, which replicates them back.
type Node struct {
	id        int32
	handler   *core.CommandHandler
	leader    *Client
	followers *Replicator

	seenMu sync.Mutex
	seen   map[string]struct{}
	order  *datastructures.SimpleQueue[string]

	// closed once the node may apply replicated commands
	synced     chan struct{}
	syncedOnce sync.Once

	grpcServer *grpc.Server
	stopOnce   sync.Once
}

// NewNode creates a node. leader is set on followers, followers on the
// leader; both are nil for a standalone node.
func NewNode(id int32, handler *core.CommandHandler, leader *Client, followers *Replicator) *Node {
	n := &Node{
		id:         id,
		handler:    handler,
		leader:     leader,
		followers:  followers,
		seen:       make(map[string]struct{}),
		order:      datastructures.NewQueue[string](),
		synced:     make(chan struct{}),
		grpcServer: grpc.NewServer(),
	}
	if leader == nil {
		n.markSynced()
	}
	RegisterReplicationService(n.grpcServer, n)
	return n
}

// FromConfig builds the node described by config.
func FromConfig(config *utils.Config, handler *core.CommandHandler, opts ...grpc.DialOption) (*Node, error) {
	var leader *Client
	var followers *Replicator

	switch {
	case config.IsLeader && len(config.Followers) > 0:
		var clients []*Client
		for _, addr := range config.Followers {
			c, err := NewClient(addr, opts...)
			if err != nil {
				for _, c := range clients {
					_ = c.Close()
				}
				return nil, err
			}
			clients = append(clients, c)
		}
		followers = NewReplicator(clients...)

	case config.IsFollower():
		c, err := NewClient(config.LeaderAddress, opts...)
		if err != nil {
			return nil, err
		}
		leader = c
	}

	return NewNode(int32(config.NodeID), handler, leader, followers), nil
}

// IsFollower checks if the node forwards writes to a leader.
func (n *Node) IsFollower() bool {
	return n.leader != nil
}

// Execute runs a client request.
func (n *Node) Execute(ctx context.Context, req *utils.Request) (*utils.Response, error) {
	req.Command = strings.ToUpper(req.Command)
	req.ID = ""
	if !core.IsWriteCommand(req.Command) {
		return n.handler.HandleCommand(req)
	}

	if n.leader != nil {
		utils.GetLogger().Debug("Forwarding write request to leader node: " + n.leader.Address())

		ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
		defer cancel()

		resp, err := n.leader.Forward(ctx, ConvertRequestToCommand(n.id, req))
		if err != nil {
			return nil, errors.Wrap(err, "forward request to leader").Str("leader", n.leader.Address())
		}
		return resp, nil
	}

	return n.apply(req)
}

// apply executes a write locally and schedules it for the followers. The
// write keeps the id it came with, so it is logged and replicated under the
// same one.
func (n *Node) apply(req *utils.Request) (*utils.Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	resp, err := n.handler.HandleCommandFunc(req, func(applied *utils.Request) {
		if n.followers != nil {
			n.followers.Replicate(ConvertRequestToCommand(n.id, applied))
		}
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Replicate applies a command shipped by the leader. A follower holds the
// call until it has synced with the leader.
func (n *Node) Replicate(ctx context.Context, cmd *Command) (*Ack, error) {
	select {
	case <-n.synced:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !n.markSeen(cmd.ID) {
		return &Ack{Success: true}, nil
	}

	if _, err := n.handler.Replay(ConvertCommandToRequest(cmd)); err != nil {
		utils.GetLogger().Warnf("Replicated command %s (%s) failed: %v", cmd.ID, cmd.Request.Command, err)
		return &Ack{Success: false}, nil
	}
	return &Ack{Success: true}, nil
}

// Forward executes a write handed over by a follower.
func (n *Node) Forward(ctx context.Context, cmd *Command) (*utils.Response, error) {
	if n.leader != nil {
		return nil, ErrNotLeader
	}

	resp, err := n.apply(ConvertCommandToRequest(cmd))
	if err != nil {
		return utils.ErrorResponse(err.Error()), nil
	}
	return resp, nil
}

// Sync returns the write history of this node.
func (n *Node) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	if n.leader != nil {
		return nil, ErrNotLeader
	}

	requests, err := n.handler.Persistence.LoadRequests()
	if err != nil {
		return nil, errors.Wrap(err, "load binlog for sync")
	}

	resp := &SyncResponse{Commands: make([]*Command, 0, len(requests))}
	for _, r := range requests {
		resp.Commands = append(resp.Commands, ConvertRequestToCommand(n.id, r))
	}
	utils.GetLogger().Infof("Sending %d commands to node %d", len(requests), req.NodeID)
	return resp, nil
}

// SyncFromLeader replays the leader's write history into the local database
// and then lets replicated commands in. Commands of the history that the
// leader replicates again later are skipped.
func (n *Node) SyncFromLeader(ctx context.Context) (int, error) {
	if n.leader == nil {
		return 0, errors.New("node has no leader to sync from")
	}

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	resp, err := n.leader.Sync(ctx, &SyncRequest{NodeID: n.id})
	if err != nil {
		return 0, errors.Wrap(err, "sync request").Str("leader", n.leader.Address())
	}

	logger := utils.GetLogger()
	n.seenMu.Lock()
	for _, cmd := range resp.Commands {
		if !n.remember(cmd.ID, false) {
			continue
		}
		if _, err := n.handler.Replay(ConvertCommandToRequest(cmd)); err != nil {
			logger.Warnf("Error applying command during sync: %v", err)
		}
	}
	n.seenMu.Unlock()

	n.markSynced()
	return len(resp.Commands), nil
}

func (n *Node) markSynced() {
	n.syncedOnce.Do(func() {
		close(n.synced)
	})
}

// Serve runs the replication service on lis until Stop is called.
func (n *Node) Serve(lis net.Listener) error {
	utils.GetLogger().Infof("Node %d serving replication on %s", n.id, lis.Addr())
	if err := n.grpcServer.Serve(lis); err != nil {
		return errors.Wrap(err, "serve replication")
	}
	return nil
}

// Stop shuts the replication service and the outgoing connections down.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.grpcServer.GracefulStop()
		if n.followers != nil {
			if err := n.followers.Close(); err != nil {
				utils.GetLogger().Warn("Closing follower connections: " + err.Error())
			}
		}
		if n.leader != nil {
			if err := n.leader.Close(); err != nil {
				utils.GetLogger().Warn("Closing leader connection: " + err.Error())
			}
		}
	})
}

// markSeen records id and reports whether it is new. Only the latest
// seenLimit ids are kept.
func (n *Node) markSeen(id string) bool {
	n.seenMu.Lock()
	defer n.seenMu.Unlock()

	return n.remember(id, true)
}

// remember is markSeen without locking. Ids from a sync are not trimmed,
// the leader may still resend any of them ahead of newer commands.
func (n *Node) remember(id string, trim bool) bool {
	if id == "" {
		return true
	}

	if _, ok := n.seen[id]; ok {
		return false
	}
	n.seen[id] = struct{}{}
	n.order.Enqueue(id)
	for trim && n.order.Size() > seenLimit {
		old, _ := n.order.Dequeue()
		delete(n.seen, old)
	}
	return true
}
