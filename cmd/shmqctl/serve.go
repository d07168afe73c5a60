// File: cmd/shmqctl/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/momentics/shmqueue/facade"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveFlags struct {
	path       string
	capacity   string
	codec      string
	handleFile string
	numWorkers int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Create (or attach to) a region and log every record it receives",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.path, "path", "", "backing region path (required)")
	f.StringVar(&serveFlags.capacity, "capacity", "1MB", "ring capacity, e.g. 64MB")
	f.StringVar(&serveFlags.codec, "codec", "json", "registered codec name")
	f.StringVar(&serveFlags.handleFile, "handle-file", "", "where to write the attachment descriptor for producers (required)")
	f.IntVar(&serveFlags.numWorkers, "workers", 1, "number of consumer workers")
	serveCmd.MarkFlagRequired("path")
	serveCmd.MarkFlagRequired("handle-file")
}

func runServe(_ *cobra.Command, _ []string) error {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level.SetLevel(zap.InfoLevel)
	logger, err := logConfig.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	var capacity datasize.ByteSize
	if err := capacity.UnmarshalText([]byte(serveFlags.capacity)); err != nil {
		return fmt.Errorf("parse --capacity: %w", err)
	}

	var cpuSet []int
	if serveFlags.numWorkers > 1 {
		cpuSet = make([]int, serveFlags.numWorkers)
		for i := range cpuSet {
			cpuSet[i] = i
		}
	}

	q, err := facade.New(facade.Config{
		Path:       serveFlags.path,
		Capacity:   capacity,
		Codec:      serveFlags.codec,
		PutTimeout: 5 * time.Second,
		GetTimeout: 2 * time.Second,
		CPUSet:     cpuSet,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer q.Close()

	if err := writeHandleFile(serveFlags.handleFile, q.Handle()); err != nil {
		return fmt.Errorf("write handle file: %w", err)
	}
	logger.Info("queue ready", zap.String("path", serveFlags.path), zap.String("handle_file", serveFlags.handleFile))

	ctx, stopSignal := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignal()

	stopConsumers, err := q.RunConsumers(ctx, 16, func(v any) {
		logger.Info("received record", zap.Any("value", v))
	})
	if err != nil {
		return fmt.Errorf("start consumers: %w", err)
	}
	defer stopConsumers()

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
