package core

import (
	"strings"
	"sync"

	"github.com/sirkon/errors"
	"github.com/vskvj3/linkd/internal/datastructures"
	"github.com/vskvj3/linkd/internal/persistence"
	"github.com/vskvj3/linkd/internal/utils"
)

var writeCommands = map[string]bool{
	"PUSH":    true,
	"POP":     true,
	"SCLONE":  true,
	"ENQUEUE": true,
	"DEQUEUE": true,
	"LADD":    true,
	"LGET":    true,
	"LREMOVE": true,
	"LRESET":  true,
	"DEL":     true,
}

// IsWriteCommand reports whether command changes the keyspace. LGET counts
// as a write since it moves the list cursor.
func IsWriteCommand(command string) bool {
	return writeCommands[strings.ToUpper(command)]
}

type CommandHandler struct {
	Database    *Database
	Persistence *persistence.Persistence

	// serializes writes so the binlog order matches the apply order
	writeMu sync.Mutex
}

// Create a new CommandHandler instance. disk may be nil.
func NewCommandHandler(db *Database, disk *persistence.Persistence) *CommandHandler {
	return &CommandHandler{Database: db, Persistence: disk}
}

// HandleCommand executes req and logs it to the binlog when it is a
// successful write. A failed command yields an error, an absent key yields a
// NOT_FOUND response.
func (h *CommandHandler) HandleCommand(req *utils.Request) (*utils.Response, error) {
	return h.HandleCommandFunc(req, nil)
}

// HandleCommandFunc is HandleCommand calling onWrite after every successful
// write. Writes are serialized, so onWrite observes them in apply order.
func (h *CommandHandler) HandleCommandFunc(req *utils.Request, onWrite func(*utils.Request)) (*utils.Response, error) {
	req.Command = strings.ToUpper(req.Command)
	if !writeCommands[req.Command] {
		return h.execute(req)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	response, err := h.execute(req)
	if err != nil {
		return nil, err
	}
	if response.Status != utils.StatusOK {
		return response, nil
	}

	if err := h.Persistence.LogRequest(req); err != nil {
		utils.GetLogger().Error("Request logging to disk failed: " + err.Error())
	}
	if onWrite != nil {
		onWrite(req)
	}
	return response, nil
}

// Replay executes req without logging it.
func (h *CommandHandler) Replay(req *utils.Request) (*utils.Response, error) {
	req.Command = strings.ToUpper(req.Command)
	return h.execute(req)
}

// RebuildFromPersistence replays the binlog into the database. When the
// binlog is damaged the records read before the damage are still replayed
// and the error is returned together with their count.
func (h *CommandHandler) RebuildFromPersistence() (int, error) {
	requests, loadErr := h.Persistence.LoadRequests()

	logger := utils.GetLogger()
	for i, req := range requests {
		if _, err := h.Replay(req); err != nil {
			logger.Warnf("Binlog record %d (%s %s) failed on replay: %v", i, req.Command, req.Key, err)
		}
	}
	if loadErr != nil {
		return len(requests), errors.Wrap(loadErr, "load binlog")
	}
	return len(requests), nil
}

func (h *CommandHandler) execute(req *utils.Request) (*utils.Response, error) {
	db := h.Database

	switch req.Command {
	case "PING":
		return &utils.Response{Status: utils.StatusOK, Message: "PONG"}, nil

	case "ECHO":
		if req.Message == "" {
			return nil, errors.New("ECHO requires a 'message' field")
		}
		return &utils.Response{Status: utils.StatusOK, Message: req.Message}, nil

	case "PUSH":
		if req.Key == "" || req.Value == "" {
			return nil, errors.New("PUSH requires 'key', 'value' fields")
		}
		return okOrError(nil, db.Push(req.Key, req.Value))

	case "POP":
		return valueOrError(db.Pop(req.Key))

	case "SPEEK":
		return valueOrError(db.StackPeek(req.Key))

	case "SCLONE":
		if req.Dest == "" {
			return nil, errors.New("SCLONE requires 'key', 'dest' fields")
		}
		return okOrError(nil, db.CloneStack(req.Key, req.Dest))

	case "ENQUEUE":
		if req.Key == "" || req.Value == "" {
			return nil, errors.New("ENQUEUE requires 'key', 'value' fields")
		}
		return okOrError(nil, db.Enqueue(req.Key, req.Value))

	case "DEQUEUE":
		return valueOrError(db.Dequeue(req.Key))

	case "QPEEK":
		return valueOrError(db.QueuePeek(req.Key))

	case "LADD":
		if req.Key == "" || req.Value == "" {
			return nil, errors.New("LADD requires 'key', 'value' fields")
		}
		return okOrError(nil, db.ListAdd(req.Key, req.Value))

	case "LGET":
		return valueOrError(db.ListGet(req.Key))

	case "LREFER":
		value, ok, err := db.ListRefer(req.Key)
		if err == nil && !ok {
			return utils.NotFound(), nil
		}
		return valueOrError(value, err)

	case "LREMOVE":
		removed, err := db.ListRemove(req.Key, int(req.Count))
		return okOrError(removed, err)

	case "LRESET":
		return okOrError(nil, db.ListReset(req.Key))

	case "LHASNEXT":
		return okOrError(db.ListHasNext(req.Key))

	case "LSHOW":
		return valueOrError(db.ListString(req.Key))

	case "LEN":
		return okOrError(db.Len(req.Key))

	case "TYPE":
		return valueOrError(db.Type(req.Key))

	case "DEL":
		if req.Key == "" {
			return nil, ErrKeyEmpty
		}
		if !db.Del(req.Key) {
			return utils.NotFound(), nil
		}
		return utils.OK(nil), nil

	case "KEYS":
		return utils.OK(db.Keys()), nil

	default:
		return nil, errors.New("unknown command").Str("command", req.Command)
	}
}

func okOrError(value interface{}, err error) (*utils.Response, error) {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return utils.NotFound(), nil
		}
		return nil, err
	}
	return utils.OK(value), nil
}

func valueOrError(value string, err error) (*utils.Response, error) {
	if err != nil {
		return okOrError(nil, err)
	}
	return utils.OK(value), nil
}

// IsUnderflow reports whether err came from reading an empty or exhausted
// container.
func IsUnderflow(err error) bool {
	return datastructures.IsUnderflow(err)
}
