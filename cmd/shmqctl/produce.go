// File: cmd/shmqctl/produce.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/momentics/shmqueue/api"
	"github.com/momentics/shmqueue/facade"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var produceFlags struct {
	handleFile string
	value      string
	count      int
	maxRetry   time.Duration
}

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Attach to a queue via a handle file and put records, retrying on Full",
	RunE:  runProduce,
}

func init() {
	f := produceCmd.Flags()
	f.StringVar(&produceFlags.handleFile, "handle-file", "", "attachment descriptor written by shmqctl serve (required)")
	f.StringVar(&produceFlags.value, "value", "hello", "value to put, JSON-decoded if it looks like JSON, else a string")
	f.IntVar(&produceFlags.count, "count", 1, "number of times to put the value")
	f.DurationVar(&produceFlags.maxRetry, "max-retry", 30*time.Second, "total time to keep retrying a Full queue before giving up")
	produceCmd.MarkFlagRequired("handle-file")
}

func runProduce(_ *cobra.Command, _ []string) error {
	logConfig := zap.NewDevelopmentConfig()
	logger, err := logConfig.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	h, err := readHandleFile(produceFlags.handleFile)
	if err != nil {
		return err
	}

	q, err := facade.Open(h)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer q.Detach()

	var value any = produceFlags.value
	if json.Valid([]byte(produceFlags.value)) {
		var decoded any
		if err := json.Unmarshal([]byte(produceFlags.value), &decoded); err != nil {
			return fmt.Errorf("decode --value: %w", err)
		}
		value = decoded
	}

	for i := 0; i < produceFlags.count; i++ {
		_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
			// Non-blocking put: a Full queue returns at once and the
			// backoff loop does the waiting, bounded by --max-retry.
			putErr := q.PutNowait(value)
			if putErr == nil {
				return struct{}{}, nil
			}
			if errors.Is(putErr, api.ErrFull) {
				return struct{}{}, putErr
			}
			return struct{}{}, backoff.Permanent(putErr)
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(produceFlags.maxRetry))
		if err != nil {
			return fmt.Errorf("put record %d/%d: %w", i+1, produceFlags.count, err)
		}
		logger.Info("put record", zap.Int("index", i), zap.String("value", produceFlags.value))
	}
	return nil
}
