package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/vskvj3/linkd/internal/core"
	"github.com/vskvj3/linkd/internal/httpapi"
	"github.com/vskvj3/linkd/internal/network"
	"github.com/vskvj3/linkd/internal/persistence"
	"github.com/vskvj3/linkd/internal/replicate"
	"github.com/vskvj3/linkd/internal/utils"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Parse command-line arguments
	configPtr := flag.String("config", utils.DefaultConfigPath(), "Path to the YAML configuration file")
	nodeIDPtr := flag.String("node_id", "", "Node ID of the current node")
	portPtr := flag.String("port", "", "Port of server")
	httpPortPtr := flag.Int("http_port", -1, "Port of the HTTP inspection API, 0 disables it")
	debugPtr := flag.Bool("debug", false, "Print debug messages")
	flag.Parse()

	// Load configurations
	config, err := utils.LoadConfig(*configPtr)
	if err != nil {
		utils.GetLogger().Error("Error loading configuration: " + err.Error())
		os.Exit(1)
	}

	logger, err := utils.NewLogger(config.LogFile, config.Debug || *debugPtr)
	if err != nil {
		utils.GetLogger().Error("Failed to open log file: " + err.Error())
		os.Exit(1)
	}
	defer logger.Close()
	logger.Info("Loaded configurations from " + *configPtr)

	if *nodeIDPtr != "" {
		config.NodeID, err = strconv.Atoi(*nodeIDPtr)
		if err != nil {
			logger.Error("Invalid node_id: must be an integer")
			os.Exit(1)
		}
	}
	if *portPtr != "" {
		port, err := strconv.Atoi(*portPtr)
		if err != nil {
			logger.Error("Port must be an integer: " + err.Error())
			os.Exit(1)
		}
		config.SetPort(port)
	}
	if *httpPortPtr >= 0 {
		config.HTTPPort = *httpPortPtr
	}
	logger.Infof("Node ID assigned: %d, port assigned: %d", config.NodeID, config.Port)

	if err := run(config); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(config *utils.Config) error {
	logger := utils.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	disk, err := persistence.FromConfig(config)
	if err != nil {
		return err
	}
	defer disk.Close()

	db := core.NewDatabase()
	handler := core.NewCommandHandler(db, disk)

	node, err := replicate.FromConfig(config, handler)
	if err != nil {
		return err
	}
	defer node.Stop()

	g, ctx := errgroup.WithContext(ctx)

	// Followers take replicated commands from here on, Replicate waits for
	// the sync below
	if config.IsLeader || node.IsFollower() {
		grpcListener, err := net.Listen("tcp", config.GRPCAddress())
		if err != nil {
			return err
		}
		g.Go(func() error {
			return node.Serve(grpcListener)
		})
	} else {
		logger.Info("Starting standalone node...")
	}

	// Rebuild from persistence if standalone or leader, else sync from leader
	if node.IsFollower() {
		logger.Info("Re-syncing from leader at " + config.LeaderAddress)
		n, err := node.SyncFromLeader(ctx)
		if err != nil {
			node.Stop()
			_ = g.Wait()
			return err
		}
		logger.Infof("Applied %d commands from leader", n)
	} else {
		n, err := handler.RebuildFromPersistence()
		if err != nil {
			logger.Warnf("Could not read all of persistence, loaded %d commands: %v", n, err)
		} else {
			logger.Infof("Loaded %d commands from persistence", n)
		}
	}

	listener, err := network.Listen(":" + strconv.Itoa(config.Port))
	if err != nil {
		node.Stop()
		_ = g.Wait()
		return err
	}
	server := network.NewServer(node)
	g.Go(func() error {
		return server.Serve(listener)
	})

	if config.HTTPPort > 0 {
		httpListener, err := net.Listen("tcp", ":"+strconv.Itoa(config.HTTPPort))
		if err != nil {
			node.Stop()
			_ = server.Close()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return httpapi.Serve(ctx, httpListener, db)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		node.Stop()
		return server.Close()
	})

	return g.Wait()
}
