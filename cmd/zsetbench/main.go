// Command zsetbench drives a disk-backed ZSet from the command line:
// loading synthetic members, timing read/write throughput, and
// exercising the cold-open recovery path against an existing store.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/coldcola/zsetgo/zset"
)

type rootFlags struct {
	storeDir      string
	bucket        string
	maxMemberLen  int
	maxLevel      int
	skiplistP     float64
	bulkWriteSize int
	verbose       int
}

func main() {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "zsetbench",
		Short: "Load, benchmark, and recover a disk-backed ZSet",
	}
	root.PersistentFlags().StringVar(&flags.storeDir, "store-dir", "./zsetbench-data", "nutsdb data directory")
	root.PersistentFlags().StringVar(&flags.bucket, "bucket", "zsetbench", "nutsdb bucket name")
	root.PersistentFlags().IntVar(&flags.maxMemberLen, "max-member-len", 10, "maximum member length")
	root.PersistentFlags().IntVar(&flags.maxLevel, "max-level", 15, "skiplist maximum tower height")
	root.PersistentFlags().Float64Var(&flags.skiplistP, "skiplist-p", 0.25, "skiplist level-growth probability")
	root.PersistentFlags().IntVar(&flags.bulkWriteSize, "bulk-write-size", 128, "write-buffer flush threshold")
	root.PersistentFlags().CountVarP(&flags.verbose, "verbose", "v", "enable verbose logging (multi allowed v, vv)")

	root.AddCommand(newLoadCommand(flags))
	root.AddCommand(newBenchCommand(flags))
	root.AddCommand(newRecoverCommand(flags))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f *rootFlags) logger() hclog.Logger {
	level := hclog.Warn
	switch {
	case f.verbose >= 2:
		level = hclog.Trace
	case f.verbose == 1:
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{Name: "zsetbench", Level: level})
}

func (f *rootFlags) open(ctx context.Context, errorIfExists bool) (*zset.ZSet[zset.Float64], error) {
	store, err := zset.OpenNutsStore(f.storeDir, f.bucket)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return zset.New[zset.Float64](ctx,
		zset.WithStore(store),
		zset.WithName("bench"),
		zset.WithMaxMemberLen(f.maxMemberLen),
		zset.WithMaxLevel(f.maxLevel),
		zset.WithSkiplistP(f.skiplistP),
		zset.WithBulkWriteSize(f.bulkWriteSize),
		zset.WithErrorIfExists(errorIfExists),
		zset.WithLogger(f.logger()),
		zset.WithMetrics(prometheus.DefaultRegisterer),
	)
}

func newLoadCommand(flags *rootFlags) *cobra.Command {
	var count int
	var fresh bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Insert synthetic members into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			z, err := flags.open(ctx, fresh)
			if err != nil {
				return err
			}
			defer z.Close(ctx)

			start := time.Now()
			for i := 0; i < count; i++ {
				member := randomMember(flags.maxMemberLen)
				if _, err := z.Zadd(ctx, member, zset.Float64(rand.Float64()*1000)); err != nil {
					return fmt.Errorf("zadd %q: %w", member, err)
				}
			}
			fmt.Printf("loaded %d members in %s (cardinality now %d)\n", count, time.Since(start), z.Zcard())
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10000, "number of members to insert")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "fail instead of recovering if the store already has data")
	return cmd
}

func newBenchCommand(flags *rootFlags) *cobra.Command {
	var reads, writes int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time a mix of reads and writes against the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			z, err := flags.open(ctx, false)
			if err != nil {
				return err
			}
			defer z.Close(ctx)

			members := make([]string, 0, writes)
			writeStart := time.Now()
			for i := 0; i < writes; i++ {
				member := randomMember(flags.maxMemberLen)
				if _, err := z.Zadd(ctx, member, zset.Float64(rand.Float64()*1000)); err != nil {
					return fmt.Errorf("zadd %q: %w", member, err)
				}
				members = append(members, member)
			}
			writeElapsed := time.Since(writeStart)

			readStart := time.Now()
			var hits int
			for i := 0; i < reads; i++ {
				if len(members) == 0 {
					break
				}
				member := members[rand.Intn(len(members))]
				if _, found, err := z.Zscore(ctx, member); err != nil {
					return fmt.Errorf("zscore %q: %w", member, err)
				} else if found {
					hits++
				}
			}
			readElapsed := time.Since(readStart)

			fmt.Printf("writes: %d in %s (%.0f/s)\n", writes, writeElapsed, float64(writes)/writeElapsed.Seconds())
			fmt.Printf("reads:  %d in %s (%.0f/s), %d hits\n", reads, readElapsed, float64(reads)/readElapsed.Seconds(), hits)
			fmt.Printf("cardinality: %d\n", z.Zcard())
			return nil
		},
	}
	cmd.Flags().IntVar(&writes, "writes", 5000, "number of Zadd calls to perform")
	cmd.Flags().IntVar(&reads, "reads", 20000, "number of Zscore calls to perform")
	return cmd
}

func newRecoverCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Open an existing store and report the recovered state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start := time.Now()
			z, err := flags.open(ctx, false)
			if err != nil {
				return err
			}
			defer z.Close(ctx)
			fmt.Printf("recovered cardinality %d in %s\n", z.Zcard(), time.Since(start))
			return nil
		},
	}
}

func randomMember(maxLen int) string {
	id := uuid.NewString()
	if len(id) > maxLen {
		return id[:maxLen]
	}
	return id
}
