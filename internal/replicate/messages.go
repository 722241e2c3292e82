package replicate

import (
	"github.com/google/uuid"
	"github.com/vskvj3/linkd/internal/utils"
)

// Command is a write request travelling between nodes.
type Command struct {
	ID      string        `msgpack:"id"`
	NodeID  int32         `msgpack:"node_id"`
	Request utils.Request `msgpack:"request"`
}

// Ack acknowledges a replicated command.
type Ack struct {
	Success bool `msgpack:"success"`
}

// SyncRequest asks the leader for its write history.
type SyncRequest struct {
	NodeID int32 `msgpack:"node_id"`
}

// SyncResponse carries the leader's write history in apply order.
type SyncResponse struct {
	Commands []*Command `msgpack:"commands"`
}

// ConvertRequestToCommand wraps req into a Command. The command keeps the id
// of req and gets a fresh one when req has none.
func ConvertRequestToCommand(nodeID int32, req *utils.Request) *Command {
	cmd := &Command{
		ID:      req.ID,
		NodeID:  nodeID,
		Request: *req,
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	cmd.Request.ID = cmd.ID
	return cmd
}

// ConvertCommandToRequest returns a copy of the request carried by cmd.
func ConvertCommandToRequest(cmd *Command) *utils.Request {
	req := cmd.Request
	req.ID = cmd.ID
	return &req
}
