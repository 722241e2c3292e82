package network

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/vskvj3/linkd/internal/core"
	"github.com/vskvj3/linkd/internal/utils"
)

// Executor runs a decoded client request.
type Executor interface {
	Execute(ctx context.Context, req *utils.Request) (*utils.Response, error)
}

type Server struct {
	executor Executor

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewServer(executor Executor) *Server {
	return &Server{
		executor: executor,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen binds addr, falling back to a random port when it is taken.
func Listen(addr string) (net.Listener, error) {
	logger := utils.GetLogger()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Warn("Address " + addr + " unavailable. Selecting a random port...")
		listener, err = net.Listen("tcp", ":0")
		if err != nil {
			return nil, err
		}
	}
	return listener, nil
}

// Serve accepts client connections on listener until Close is called.
func (s *Server) Serve(listener net.Listener) error {
	logger := utils.GetLogger()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return net.ErrClosed
	}
	s.listener = listener
	s.mu.Unlock()

	logger.Info("Server is listening on " + listener.Addr().String())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			logger.Error("Error accepting connection: " + err.Error())
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		logger.Info("Accepted client: " + conn.RemoteAddr().String())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.HandleConnection(conn)
		}()
	}
}

// Close stops accepting connections, drops the open ones and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// Handle an incoming client connection
func (s *Server) HandleConnection(conn net.Conn) {
	logger := utils.GetLogger()
	defer func() {
		s.untrack(conn)
		conn.Close()
		logger.Info("Client disconnected: " + conn.RemoteAddr().String())
	}()

	dec := utils.NewDecoder(conn)
	enc := utils.NewEncoder(conn)
	ctx := context.Background()

	for {
		var request utils.Request
		if err := dec.Decode(&request); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Info("Client closed the connection: " + conn.RemoteAddr().String())
			} else {
				logger.Error("Error reading from client: " + err.Error())
			}
			return
		}
		logger.Debug("Received " + request.Command + " from client: " + conn.RemoteAddr().String())

		response, err := s.executor.Execute(ctx, &request)
		if err != nil {
			if core.IsUnderflow(err) {
				logger.Debug("Underflow on " + request.Command + " " + request.Key)
			} else {
				logger.Warn("Command " + request.Command + " failed: " + err.Error())
			}
			response = utils.ErrorResponse(err.Error())
		}

		if err := enc.Encode(response); err != nil {
			logger.Error("Failed to send response: " + err.Error())
			return
		}
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}
