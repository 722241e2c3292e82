package replicate

import (
	"context"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirkon/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vskvj3/linkd/internal/core"
	"github.com/vskvj3/linkd/internal/persistence"
	"github.com/vskvj3/linkd/internal/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/test/bufconn"
)

func bufClient(t *testing.T, lis *bufconn.Listener) *Client {
	t.Helper()

	c, err := NewClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	return c
}

func serve(t *testing.T, n *Node) *bufconn.Listener {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = n.Serve(lis)
	}()
	t.Cleanup(n.Stop)
	return lis
}

type cluster struct {
	leader     *Node
	follower   *Node
	leaderDB   *core.Database
	followerDB *core.Database
	leaderDisk *persistence.Persistence
}

func newCluster(t *testing.T) *cluster {
	t.Helper()

	disk, err := persistence.NewPersistence(utils.PersistenceWriteThrough, filepath.Join(t.TempDir(), "binlog.dat"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = disk.Close() })

	followerDB := core.NewDatabase()
	followerLis := bufconn.Listen(1 << 20)

	leaderDB := core.NewDatabase()
	leader := NewNode(1, core.NewCommandHandler(leaderDB, disk), nil, NewReplicator(bufClient(t, followerLis)))
	leaderLis := serve(t, leader)

	follower := NewNode(2, core.NewCommandHandler(followerDB, nil), bufClient(t, leaderLis), nil)
	go func() {
		_ = follower.Serve(followerLis)
	}()
	t.Cleanup(follower.Stop)

	_, err = follower.SyncFromLeader(context.Background())
	require.NoError(t, err)

	return &cluster{
		leader:     leader,
		follower:   follower,
		leaderDB:   leaderDB,
		followerDB: followerDB,
		leaderDisk: disk,
	}
}

func TestNodeStandalone(t *testing.T) {
	n := NewNode(1, core.NewCommandHandler(core.NewDatabase(), nil), nil, nil)
	assert.False(t, n.IsFollower())

	resp, err := n.Execute(context.Background(), &utils.Request{Command: "push", Key: "s", Value: "1"})
	require.NoError(t, err)
	assert.Equal(t, utils.StatusOK, resp.Status)

	resp, err = n.Execute(context.Background(), &utils.Request{Command: "POP", Key: "s"})
	require.NoError(t, err)
	assert.Equal(t, "1", resp.Value)

	_, err = n.SyncFromLeader(context.Background())
	require.Error(t, err)
}

func TestNodeLeaderReplicates(t *testing.T) {
	c := newCluster(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		_, err := c.leader.Execute(ctx, &utils.Request{Command: "ENQUEUE", Key: "q", Value: v})
		require.NoError(t, err)
	}
	_, err := c.leader.Execute(ctx, &utils.Request{Command: "DEQUEUE", Key: "q"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := c.followerDB.Snapshot("q")
		return err == nil && assert.ObjectsAreEqual([]string{"b", "c"}, snap.Values)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNodeFollowerForwardsWrites(t *testing.T) {
	c := newCluster(t)
	ctx := context.Background()
	require.True(t, c.follower.IsFollower())

	resp, err := c.follower.Execute(ctx, &utils.Request{Command: "LADD", Key: "l", Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, utils.StatusOK, resp.Status)

	render, err := c.leaderDB.ListString("l")
	require.NoError(t, err)
	assert.Equal(t, "[x, ]", render)

	require.Eventually(t, func() bool {
		render, err := c.followerDB.ListString("l")
		return err == nil && render == "[x, ]"
	}, 5*time.Second, 10*time.Millisecond)

	// errors of forwarded commands come back as ERROR responses
	resp, err = c.follower.Execute(ctx, &utils.Request{Command: "PUSH", Key: "l", Value: "y"})
	require.NoError(t, err)
	assert.Equal(t, utils.StatusError, resp.Status)

	// reads stay local
	resp, err = c.follower.Execute(ctx, &utils.Request{Command: "TYPE", Key: "l"})
	require.NoError(t, err)
	assert.Equal(t, core.KindList, resp.Value)
}

func TestNodeSyncFromLeader(t *testing.T) {
	c := newCluster(t)
	ctx := context.Background()

	for _, v := range []string{"1", "2", "3"} {
		_, err := c.leader.Execute(ctx, &utils.Request{Command: "PUSH", Key: "s", Value: v})
		require.NoError(t, err)
	}

	fresh := core.NewDatabase()
	leaderLis := serve(t, NewNode(1, core.NewCommandHandler(c.leaderDB, c.leaderDisk), nil, nil))
	late := NewNode(3, core.NewCommandHandler(fresh, nil), bufClient(t, leaderLis), nil)
	t.Cleanup(late.Stop)

	n, err := late.SyncFromLeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	v, err := fresh.StackPeek("s")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	_, err = late.Sync(ctx, &SyncRequest{NodeID: 4})
	require.ErrorIs(t, err, ErrNotLeader)
}

func TestNodeReplicateDeduplicates(t *testing.T) {
	db := core.NewDatabase()
	n := NewNode(2, core.NewCommandHandler(db, nil), nil, nil)

	cmd := ConvertRequestToCommand(1, &utils.Request{Command: "PUSH", Key: "s", Value: "v"})
	for i := 0; i < 3; i++ {
		ack, err := n.Replicate(context.Background(), cmd)
		require.NoError(t, err)
		assert.True(t, ack.Success)
	}

	size, err := db.Len("s")
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestNodeSeenLimit(t *testing.T) {
	n := NewNode(2, core.NewCommandHandler(core.NewDatabase(), nil), nil, nil)
	for i := 0; i < seenLimit+10; i++ {
		require.True(t, n.markSeen(ConvertRequestToCommand(1, &utils.Request{}).ID))
	}
	assert.Len(t, n.seen, seenLimit)
	assert.Equal(t, seenLimit, n.order.Size())
}

func TestNodeFollowerCatchesUpAfterOutage(t *testing.T) {
	followerDB := core.NewDatabase()
	follower := NewNode(2, core.NewCommandHandler(followerDB, nil), nil, nil)
	followerLis := serve(t, follower)

	var down atomic.Bool
	down.Store(true)
	client, err := NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			if down.Load() {
				return nil, errors.New("follower is down")
			}
			return followerLis.DialContext(ctx)
		}),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  20 * time.Millisecond,
				Multiplier: 1.6,
				MaxDelay:   200 * time.Millisecond,
			},
			MinConnectTimeout: time.Second,
		}),
	)
	require.NoError(t, err)

	replicator := NewReplicator(client)
	leaderDB := core.NewDatabase()
	leader := NewNode(1, core.NewCommandHandler(leaderDB, nil), nil, replicator)
	t.Cleanup(leader.Stop)

	ctx := context.Background()
	_, err = leader.Execute(ctx, &utils.Request{Command: "PUSH", Key: "s", Value: "first"})
	require.NoError(t, err)

	// the write waits for the follower however long it is away
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, 1, replicator.Pending())
	_, err = followerDB.Len("s")
	require.ErrorIs(t, err, core.ErrNotFound)

	down.Store(false)
	_, err = leader.Execute(ctx, &utils.Request{Command: "PUSH", Key: "s", Value: "second"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := followerDB.Snapshot("s")
		return err == nil && assert.ObjectsAreEqual([]string{"second", "first"}, snap.Values)
	}, 10*time.Second, 20*time.Millisecond)
	assert.Zero(t, replicator.Pending())
}

func TestNodeSyncSkipsResentCommands(t *testing.T) {
	disk, err := persistence.NewPersistence(utils.PersistenceWriteThrough, filepath.Join(t.TempDir(), "binlog.dat"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = disk.Close() })

	ctx := context.Background()
	leaderDB := core.NewDatabase()
	leader := NewNode(1, core.NewCommandHandler(leaderDB, disk), nil, nil)
	leaderLis := serve(t, leader)

	for _, v := range []string{"1", "2"} {
		_, err := leader.Execute(ctx, &utils.Request{Command: "PUSH", Key: "s", Value: v})
		require.NoError(t, err)
	}

	logged, err := disk.LoadRequests()
	require.NoError(t, err)
	require.Len(t, logged, 2)
	require.NotEmpty(t, logged[0].ID)
	require.NotEqual(t, logged[0].ID, logged[1].ID)

	followerDB := core.NewDatabase()
	follower := NewNode(2, core.NewCommandHandler(followerDB, nil), bufClient(t, leaderLis), nil)
	t.Cleanup(follower.Stop)

	n, err := follower.SyncFromLeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a late retry of a synced write is not applied twice
	ack, err := follower.Replicate(ctx, ConvertRequestToCommand(1, logged[1]))
	require.NoError(t, err)
	assert.True(t, ack.Success)

	snap, err := followerDB.Snapshot("s")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, snap.Values)
}

func TestNodeFollowerWaitsForSync(t *testing.T) {
	leaderLis := serve(t, NewNode(1, core.NewCommandHandler(core.NewDatabase(), nil), nil, nil))
	followerDB := core.NewDatabase()
	follower := NewNode(2, core.NewCommandHandler(followerDB, nil), bufClient(t, leaderLis), nil)
	t.Cleanup(follower.Stop)

	cmd := ConvertRequestToCommand(1, &utils.Request{Command: "PUSH", Key: "s", Value: "v"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := follower.Replicate(ctx, cmd)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = follower.SyncFromLeader(context.Background())
	require.NoError(t, err)

	ack, err := follower.Replicate(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, ack.Success)
	size, err := followerDB.Len("s")
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}
