package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vskvj3/linkd/internal/persistence"
	"github.com/vskvj3/linkd/internal/utils"
)

func run(t *testing.T, h *CommandHandler, req utils.Request) *utils.Response {
	t.Helper()

	resp, err := h.HandleCommand(&req)
	require.NoError(t, err, req.Command)
	return resp
}

func TestHandlePingEcho(t *testing.T) {
	h := NewCommandHandler(NewDatabase(), nil)

	resp := run(t, h, utils.Request{Command: "ping"})
	assert.Equal(t, "PONG", resp.Message)

	resp = run(t, h, utils.Request{Command: "ECHO", Message: "hello"})
	assert.Equal(t, "hello", resp.Message)

	_, err := h.HandleCommand(&utils.Request{Command: "ECHO"})
	require.Error(t, err)

	_, err = h.HandleCommand(&utils.Request{Command: "FLY"})
	require.Error(t, err)
}

func TestHandleStackQueue(t *testing.T) {
	h := NewCommandHandler(NewDatabase(), nil)

	run(t, h, utils.Request{Command: "PUSH", Key: "s", Value: "1"})
	run(t, h, utils.Request{Command: "PUSH", Key: "s", Value: "2"})
	resp := run(t, h, utils.Request{Command: "POP", Key: "s"})
	assert.Equal(t, utils.OK("2"), resp)

	run(t, h, utils.Request{Command: "ENQUEUE", Key: "q", Value: "a"})
	run(t, h, utils.Request{Command: "ENQUEUE", Key: "q", Value: "b"})
	resp = run(t, h, utils.Request{Command: "DEQUEUE", Key: "q"})
	assert.Equal(t, utils.OK("a"), resp)
	resp = run(t, h, utils.Request{Command: "DEQUEUE", Key: "q"})
	assert.Equal(t, utils.OK("b"), resp)

	_, err := h.HandleCommand(&utils.Request{Command: "DEQUEUE", Key: "q"})
	require.Error(t, err)
	assert.True(t, IsUnderflow(err))

	resp = run(t, h, utils.Request{Command: "POP", Key: "missing"})
	assert.Equal(t, utils.StatusNotFound, resp.Status)

	_, err = h.HandleCommand(&utils.Request{Command: "LADD", Key: "s", Value: "x"})
	require.ErrorIs(t, err, ErrWrongType)
}

func TestHandleList(t *testing.T) {
	h := NewCommandHandler(NewDatabase(), nil)

	for _, v := range []string{"1", "2", "3"} {
		run(t, h, utils.Request{Command: "LADD", Key: "l", Value: v})
	}
	resp := run(t, h, utils.Request{Command: "LSHOW", Key: "l"})
	assert.Equal(t, "[1, 2, 3, ]", resp.Value)

	run(t, h, utils.Request{Command: "LRESET", Key: "l"})
	run(t, h, utils.Request{Command: "LGET", Key: "l"})
	run(t, h, utils.Request{Command: "LGET", Key: "l"})

	resp = run(t, h, utils.Request{Command: "LREMOVE", Key: "l", Count: 5})
	assert.Equal(t, false, resp.Value)
	resp = run(t, h, utils.Request{Command: "LREMOVE", Key: "l", Count: 1})
	assert.Equal(t, true, resp.Value)

	resp = run(t, h, utils.Request{Command: "LSHOW", Key: "l"})
	assert.Equal(t, "[1, 3, ]", resp.Value)

	resp = run(t, h, utils.Request{Command: "LREFER", Key: "l"})
	assert.Equal(t, "3", resp.Value)
	run(t, h, utils.Request{Command: "LGET", Key: "l"})

	resp = run(t, h, utils.Request{Command: "LHASNEXT", Key: "l"})
	assert.Equal(t, false, resp.Value)
	resp = run(t, h, utils.Request{Command: "LREFER", Key: "l"})
	assert.Equal(t, utils.StatusNotFound, resp.Status)

	resp = run(t, h, utils.Request{Command: "TYPE", Key: "l"})
	assert.Equal(t, KindList, resp.Value)
	resp = run(t, h, utils.Request{Command: "LEN", Key: "l"})
	assert.Equal(t, 2, resp.Value)
	resp = run(t, h, utils.Request{Command: "KEYS"})
	assert.Equal(t, []string{"l"}, resp.Value)
	run(t, h, utils.Request{Command: "DEL", Key: "l"})
	resp = run(t, h, utils.Request{Command: "DEL", Key: "l"})
	assert.Equal(t, utils.StatusNotFound, resp.Status)
}

func TestHandleRebuildFromDamagedPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binlog.dat")
	disk, err := persistence.NewPersistence(utils.PersistenceWriteThrough, path)
	require.NoError(t, err)
	defer disk.Close()

	h := NewCommandHandler(NewDatabase(), disk)
	for _, v := range []string{"a", "b", "c"} {
		run(t, h, utils.Request{Command: "PUSH", Key: "s", Value: v})
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xc1})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	restored := NewCommandHandler(NewDatabase(), disk)
	n, err := restored.RebuildFromPersistence()
	require.Error(t, err)
	assert.Equal(t, 3, n)

	top, err := restored.Database.StackPeek("s")
	require.NoError(t, err)
	assert.Equal(t, "c", top)
}

func TestHandleRebuildFromPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binlog.dat")
	disk, err := persistence.NewPersistence(utils.PersistenceWriteThrough, path)
	require.NoError(t, err)

	h := NewCommandHandler(NewDatabase(), disk)
	for _, v := range []string{"a", "b", "c", "d"} {
		run(t, h, utils.Request{Command: "LADD", Key: "l", Value: v})
	}
	run(t, h, utils.Request{Command: "LRESET", Key: "l"})
	run(t, h, utils.Request{Command: "LGET", Key: "l"})
	run(t, h, utils.Request{Command: "LGET", Key: "l"})
	run(t, h, utils.Request{Command: "PUSH", Key: "s", Value: "x"})
	run(t, h, utils.Request{Command: "SCLONE", Key: "s", Dest: "t"})
	run(t, h, utils.Request{Command: "POP", Key: "s"})
	// failed and read-only commands stay out of the binlog
	_, err = h.HandleCommand(&utils.Request{Command: "POP", Key: "s"})
	require.Error(t, err)
	run(t, h, utils.Request{Command: "LSHOW", Key: "l"})
	require.NoError(t, disk.Close())

	disk, err = persistence.NewPersistence(utils.PersistenceWriteThrough, path)
	require.NoError(t, err)
	defer disk.Close()

	restored := NewCommandHandler(NewDatabase(), disk)
	n, err := restored.RebuildFromPersistence()
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	want, err := h.Database.Snapshot("l")
	require.NoError(t, err)
	got, err := restored.Database.Snapshot("l")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	resp := run(t, restored, utils.Request{Command: "LREFER", Key: "l"})
	assert.Equal(t, "c", resp.Value)
	resp = run(t, restored, utils.Request{Command: "LEN", Key: "t"})
	assert.Equal(t, 1, resp.Value)
	resp = run(t, restored, utils.Request{Command: "LEN", Key: "s"})
	assert.Equal(t, 0, resp.Value)
}
