// Package httpapi serves a read-only HTTP view of the keyspace.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirkon/errors"
	"github.com/vskvj3/linkd/internal/core"
	"github.com/vskvj3/linkd/internal/utils"
)

const shutdownTimeout = 5 * time.Second

// NewRouter wires the inspection routes for db.
func NewRouter(db *core.Database) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": utils.StatusOK})
		})
		v1.GET("/keys", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"keys": db.Keys()})
		})
		v1.GET("/keys/:key", getKey(db))
	}
	return router
}

func getKey(db *core.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := db.Snapshot(c.Param("key"))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, snap)
		case errors.Is(err, core.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": utils.StatusNotFound})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"status": utils.StatusError, "message": err.Error()})
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		utils.GetLogger().Debugf("HTTP %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Serve runs the inspection API on listener until ctx is done.
func Serve(ctx context.Context, listener net.Listener, db *core.Database) error {
	srv := &http.Server{
		Handler:           NewRouter(db),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.GetLogger().Info("HTTP inspection API listening on " + listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve http")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown http")
		}
		return nil
	}
}
