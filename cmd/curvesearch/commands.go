package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"curveindex/pkg/bench"
	"curveindex/pkg/common"
	"curveindex/pkg/datagen"
	"curveindex/pkg/storage"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	truncateStore bool
	diagPoints    int
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "generate a sorted key dataset into the SQLite key store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		if e.cfg.Data.StorePath == "" {
			return errors.New("gen needs a key store (data.store_path or --store)")
		}
		keys, err := e.generate()
		if err != nil {
			return err
		}
		ks, err := storage.OpenKeyStore(e.cfg.Data.StorePath)
		if err != nil {
			return err
		}
		defer ks.Close()
		if truncateStore {
			if err := ks.Truncate(); err != nil {
				return err
			}
		}
		if err := ks.Save(keys); err != nil {
			return err
		}
		n, err := ks.Count()
		if err != nil {
			return err
		}
		fmt.Printf("Stored %s keys (%s total) in %s\n",
			humanize.Comma(int64(len(keys))), humanize.Comma(int64(n)), e.cfg.Data.StorePath)
		return nil
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "time the learned index against binary search and a b-tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		keys, err := e.loadKeys()
		if err != nil {
			return err
		}
		idx, err := e.buildIndex(keys)
		if err != nil {
			return err
		}
		count := int(float64(len(keys)) * e.cfg.Bench.SampleFraction)
		queries := datagen.Sample(keys, max(count, 1), datagen.NewRand(e.cfg.Data.Seed+1))

		res, err := bench.New(idx, e.logger).Run(context.Background(), queries, e.cfg.Bench.Rounds)
		if err != nil {
			return err
		}
		res.Report(os.Stdout)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <value>...",
	Short: "look up values in the learned index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make([]common.KeyType, len(args))
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return errors.Wrapf(err, "parse value %q", a)
			}
			values[i] = common.KeyType(v)
		}
		e, err := setup()
		if err != nil {
			return err
		}
		keys, err := e.loadKeys()
		if err != nil {
			return err
		}
		idx, err := e.buildIndex(keys)
		if err != nil {
			return err
		}
		for _, v := range values {
			pr := idx.Probe(v)
			if pr.Found {
				fmt.Printf("%g -> %d (predicted %d, window [%d,%d))\n", float64(v), pr.Position, pr.Predicted, pr.Start, pr.End)
			} else {
				fmt.Printf("%g -> not found\n", float64(v))
			}
		}
		return nil
	},
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "print model quality and sampled prediction errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		keys, err := e.loadKeys()
		if err != nil {
			return err
		}
		idx, err := e.buildIndex(keys)
		if err != nil {
			return err
		}
		s := idx.Stats()
		fmt.Printf("Model:            %s\n", s.Model)
		fmt.Printf("Params:           %v\n", s.Params)
		fmt.Printf("Keys:             %s\n", humanize.Comma(int64(s.Keys)))
		fmt.Printf("Slots hit:        %s\n", humanize.Comma(int64(s.HitSlots)))
		fmt.Printf("Exact hits:       %s\n", humanize.Comma(int64(s.ExactPredictions)))
		fmt.Printf("Max deviation:    +%d / -%d\n", s.MaxPositiveDeviation, s.MaxNegativeDeviation)
		fmt.Printf("Mean abs error:   %.2f\n", s.MeanAbsError)
		fmt.Printf("Mean window:      %.2f\n", s.MeanWindow)
		if s.BloomFilter {
			bs := idx.BloomStats()
			fmt.Printf("Bloom filter:     %v bits, %v hashes, %v keys\n",
				bs["bloom_bits_size"], bs["bloom_hashes"], bs["bloom_count"])
		}

		points := diagPoints
		if points <= 0 {
			points = e.cfg.Build.DiagnosticPoints
		}
		fmt.Println("key\treal\tpredicted\terror")
		for _, p := range idx.Diagnostics(points) {
			fmt.Printf("%g\t%d\t%d\t%d\n", float64(p.Key), p.RealPos, p.PredictedPos, p.Error)
		}
		return nil
	},
}

func init() {
	genCmd.Flags().BoolVar(&truncateStore, "truncate", false, "clear the key store before writing")
	diagCmd.Flags().IntVarP(&diagPoints, "points", "n", 0, "number of sampled diagnostic points")
}
