package persistence

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirkon/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vskvj3/linkd/internal/utils"
)

const flushInterval = time.Second

// Persistence manages the append-only binlog of applied write requests.
type Persistence struct {
	mu   sync.Mutex
	mode string
	path string
	file *os.File
	buf  *bufio.Writer
	enc  *msgpack.Encoder

	stop chan struct{}
	done chan struct{}
}

// NewPersistence opens (or creates) the binlog at path. Mode is one of the
// utils.Persistence* constants. PersistenceNone returns a nil *Persistence,
// which is a valid no-op log.
func NewPersistence(mode, path string) (*Persistence, error) {
	if mode == utils.PersistenceNone {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create binlog directory").Str("path", path)
	}
	if err := repair(path); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open binlog").Str("path", path)
	}

	p := &Persistence{
		mode: mode,
		path: path,
		file: file,
	}
	if mode == utils.PersistenceBuffered {
		p.buf = bufio.NewWriter(file)
		p.enc = msgpack.NewEncoder(p.buf)
		p.stop = make(chan struct{})
		p.done = make(chan struct{})
		go p.flushLoop()
	} else {
		p.enc = msgpack.NewEncoder(file)
	}

	return p, nil
}

// FromConfig opens the binlog described by config.
func FromConfig(config *utils.Config) (*Persistence, error) {
	return NewPersistence(config.Persistence, config.PersistencePath)
}

// LogRequest appends req to the binlog.
func (p *Persistence) LogRequest(req *utils.Request) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enc.Encode(req); err != nil {
		return errors.Wrap(err, "encode request").Str("command", req.Command)
	}
	if p.buf != nil {
		return nil
	}
	if err := p.file.Sync(); err != nil {
		return errors.Wrap(err, "sync binlog")
	}
	return nil
}

// repair cuts the binlog at path after its last complete record, so new
// records are never appended behind a torn one.
func repair(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read binlog").Str("path", path)
	}

	requests, good, err := readRequests(data)
	if good == int64(len(data)) {
		return nil
	}
	if err != nil {
		utils.GetLogger().Warn("Binlog is corrupt: " + err.Error())
	}
	utils.GetLogger().Warnf("Truncating binlog %s to %d records, dropping %d bytes", path, len(requests), int64(len(data))-good)
	if err := os.Truncate(path, good); err != nil {
		return errors.Wrap(err, "truncate binlog").Str("path", path).Int64("offset", good)
	}
	return nil
}

// LoadRequests reads every request stored in the binlog. A truncated record
// at the tail is dropped. On a decode error the records read before it are
// returned along with the error.
func (p *Persistence) LoadRequests() ([]*utils.Request, error) {
	if p == nil {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buf != nil {
		if err := p.buf.Flush(); err != nil {
			return nil, errors.Wrap(err, "flush binlog")
		}
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, errors.Wrap(err, "read binlog").Str("path", p.path)
	}

	requests, _, err := readRequests(data)
	return requests, err
}

// readRequests decodes the records in data. It also returns the offset right
// after the last complete record.
func readRequests(data []byte) ([]*utils.Request, int64, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	var requests []*utils.Request
	var good int64
	for {
		var req utils.Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) && good == int64(len(data)) {
				return requests, good, nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				utils.GetLogger().Warnf("Dropping truncated binlog record after %d requests", len(requests))
				return requests, good, nil
			}
			return requests, good, errors.Wrap(err, "decode binlog record").Int("record", len(requests))
		}
		requests = append(requests, &req)
		good = int64(len(data) - r.Len())
	}
}

// Close flushes pending records and closes the binlog.
func (p *Persistence) Close() error {
	if p == nil {
		return nil
	}

	if p.stop != nil {
		close(p.stop)
		<-p.done
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buf != nil {
		if err := p.buf.Flush(); err != nil {
			return errors.Wrap(err, "flush binlog")
		}
	}
	return p.file.Close()
}

func (p *Persistence) flushLoop() {
	defer close(p.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			if err := p.buf.Flush(); err != nil {
				utils.GetLogger().Error("Binlog flush failed: " + err.Error())
			}
			p.mu.Unlock()
		}
	}
}
