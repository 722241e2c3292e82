package replicate

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vskvj3/linkd/internal/datastructures"
	"github.com/vskvj3/linkd/internal/utils"
)

const (
	replicateTimeout = 5 * time.Second
	retryBase        = 100 * time.Millisecond
	retryCap         = 2 * time.Second
)

// Replicator ships leader writes to followers. Each follower gets its own
// backlog drained by a dedicated goroutine, so commands arrive in the order
// they were applied on the leader. A command leaves the backlog only once
// the follower has received it.
type Replicator struct {
	followers []*follower
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type follower struct {
	client *Client

	mu      sync.Mutex
	backlog *datastructures.SimpleQueue[*Command]
	wake    chan struct{}
}

// NewReplicator starts delivery to clients.
func NewReplicator(clients ...*Client) *Replicator {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Replicator{cancel: cancel}

	for _, c := range clients {
		f := &follower{
			client:  c,
			backlog: datastructures.NewQueue[*Command](),
			wake:    make(chan struct{}, 1),
		}
		r.followers = append(r.followers, f)

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			f.run(ctx)
		}()
	}
	return r
}

// Replicate schedules cmd for every follower.
func (r *Replicator) Replicate(cmd *Command) {
	for _, f := range r.followers {
		f.push(cmd)
	}
}

// Pending returns the number of commands not yet delivered to all followers.
func (r *Replicator) Pending() int {
	var n int
	for _, f := range r.followers {
		f.mu.Lock()
		n += f.backlog.Size()
		f.mu.Unlock()
	}
	return n
}

// Close stops delivery and closes the follower connections.
func (r *Replicator) Close() error {
	r.cancel()
	r.wg.Wait()

	var err error
	for _, f := range r.followers {
		if cerr := f.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (f *follower) push(cmd *Command) {
	f.mu.Lock()
	f.backlog.Enqueue(cmd)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *follower) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.wake:
		}

		for {
			f.mu.Lock()
			cmd, err := f.backlog.Peek()
			f.mu.Unlock()
			if err != nil {
				break
			}

			if err := f.deliver(ctx, cmd); err != nil {
				return
			}

			f.mu.Lock()
			_, _ = f.backlog.Dequeue()
			f.mu.Unlock()
		}
	}
}

// deliver retries cmd until the follower answers. It fails only when ctx is
// done.
func (f *follower) deliver(ctx context.Context, cmd *Command) error {
	logger := utils.GetLogger()

	var attempts int
	b := retry.WithCappedDuration(retryCap, retry.NewExponential(retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, replicateTimeout)
		defer cancel()

		ack, err := f.client.Replicate(callCtx, cmd)
		if err != nil {
			attempts++
			if attempts == 1 {
				logger.Warnf("Follower %s unreachable, holding %s until it is back: %v", f.client.Address(), cmd.ID, err)
			}
			return retry.RetryableError(err)
		}
		if !ack.Success {
			logger.Errorf("Follower %s failed to apply %s %s", f.client.Address(), cmd.Request.Command, cmd.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if attempts > 0 {
		logger.Infof("Follower %s is back after %d failed attempts", f.client.Address(), attempts)
	}
	logger.Debugf("Replicated %s %s to %s", cmd.Request.Command, cmd.ID, f.client.Address())
	return nil
}
