package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lazaratan/gflownet-generalization/cache"
	"github.com/lazaratan/gflownet-generalization/env"
	"github.com/lazaratan/gflownet-generalization/gfn"
	"github.com/lazaratan/gflownet-generalization/mdp"
	"github.com/lazaratan/gflownet-generalization/reward"
	"github.com/lazaratan/gflownet-generalization/split"
	"github.com/lazaratan/gflownet-generalization/universe"
)

// RunConfig is the yaml run configuration shared by all commands.
type RunConfig struct {
	MaxNodes  int    `yaml:"max_nodes"`
	NumColors int    `yaml:"num_colors"`
	Reward    string `yaml:"reward"`
	BatchSize int    `yaml:"batch_size"`
	CachePath string `yaml:"cache_path"`

	// When set, verification scores a policy of independent uniform
	// draws instead of the exact flows.
	LogitsShuffle bool  `yaml:"logits_shuffle"`
	ShuffleSeed   int64 `yaml:"shuffle_seed"`

	Split struct {
		Kind  string  `yaml:"kind"` // "backward" or "subtree"
		Ratio float64 `yaml:"ratio"`
		Seed  int64   `yaml:"seed"`
	} `yaml:"split"`
}

func defaultConfig() RunConfig {
	cfg := RunConfig{
		MaxNodes:    7,
		NumColors:   2,
		Reward:      "const",
		BatchSize:   128,
		ShuffleSeed: 142857,
	}
	cfg.Split.Ratio = 0.9
	cfg.Split.Seed = 142857
	return cfg
}

func loadConfig(path string) (RunConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

func rootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "gfnexact",
		Short:         "Exact verification of sequential graph samplers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "yaml run configuration")

	root.AddCommand(recomputeCmd(&cfgPath))
	root.AddCommand(verifyCmd(&cfgPath))
	root.AddCommand(splitCmd(&cfgPath))
	return root
}

// prepare builds (or loads from cache) the transition graph and the flow
// assignment for the configured reward.
func prepare(cfg RunConfig) (*mdp.MDP, *mdp.FlowAssignment, []float64, error) {
	var store *cache.Store
	if cfg.CachePath != "" {
		var err error
		store, err = cache.Open(cfg.CachePath)
		if err != nil {
			return nil, nil, nil, err
		}
		defer store.Close()

		// Flows are cheap to re-solve and depend on the configured
		// reward, so only the expanded graph is trusted from the cache.
		m, _, err := store.LoadMDP()
		if err == nil {
			klog.Infof("loaded %d states, %d edges from %s", m.NumStates(), m.NumEdges, cfg.CachePath)
			logR := reward.LogRewards(m.Index, mustReward(cfg.Reward))
			flow, err := m.RecomputeFlow(logR)
			if err != nil {
				return nil, nil, nil, err
			}
			return m, flow, logR, nil
		}
		if !errors.Is(err, gfn.ErrCacheMissing) {
			return nil, nil, nil, err
		}
	}

	e, err := env.New(cfg.MaxNodes, cfg.NumColors)
	if err != nil {
		return nil, nil, nil, err
	}
	klog.Infof("enumerating states up to %d nodes, %d colors", cfg.MaxNodes, cfg.NumColors)
	idx, err := universe.Enumerate(e)
	if err != nil {
		return nil, nil, nil, err
	}
	klog.Infof("%d isomorphism classes", idx.Len())

	m, err := mdp.Build(e, idx, cfg.BatchSize)
	if err != nil {
		return nil, nil, nil, err
	}
	klog.Infof("expanded %d transition edges in %d batches", m.NumEdges, len(m.Batches))

	logR := reward.LogRewards(idx, mustReward(cfg.Reward))
	flow, err := m.RecomputeFlow(logR)
	if err != nil {
		return nil, nil, nil, err
	}

	if store != nil {
		if err := store.SaveMDP(m, nil); err != nil {
			return nil, nil, nil, err
		}
		klog.Infof("cached to %s", cfg.CachePath)
	}
	return m, flow, logR, nil
}

func mustReward(name string) reward.Func {
	fn, err := reward.ByName(name)
	if err != nil {
		klog.Fatalf("%v", err)
	}
	return fn
}

func recomputeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Enumerate the universe, expand the transition graph, and solve the exact flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			m, flow, _, err := prepare(cfg)
			if err != nil {
				return err
			}
			klog.Infof("root log flow %.6f", flow.NodeF[0])
			klog.Infof("done: %d states, %d edges", m.NumStates(), m.NumEdges)
			return nil
		},
	}
}

func verifyCmd(cfgPath *string) *cobra.Command {
	var splitKind string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Propagate exact terminal probabilities and report distribution metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			m, flow, logR, err := prepare(cfg)
			if err != nil {
				return err
			}

			if cfg.LogitsShuffle {
				klog.Infof("scoring shuffled logits, seed %d", cfg.ShuffleSeed)
				flow = m.ShuffledFlow(cfg.ShuffleSeed)
			}

			res, err := m.ComputeProb(mdp.NewFlowPolicy(m, flow))
			if err != nil {
				return err
			}

			var testIDs []int32
			if splitKind != "" {
				sp, err := loadOrMakeSplit(cfg, m, splitKind)
				if err != nil {
					return err
				}
				testIDs = sp.Test
				klog.Infof("split %s: %d train / %d test", splitKind, len(sp.Train), len(sp.Test))
			}

			mt, err := mdp.ComputeMetrics(res, logR, testIDs)
			if err != nil {
				return err
			}
			klog.Infof("L1 logpx error   %.8f", mt.MAELogProbs)
			klog.Infof("JS divergence    %.8f", mt.JSDivergence)
			klog.Infof("Jeffreys         %.8f", mt.Jeffreys)
			klog.Infof("L1 logR error    %.8f", mt.MAELogRewards)
			if testIDs != nil {
				klog.Infof("test L1 logpx    %.8f", mt.TestMAELogProbs)
				klog.Infof("test L1 logR     %.8f", mt.TestMAELogRewards)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&splitKind, "split", "", "report held-out metrics for a split: backward or subtree")
	return cmd
}

func splitCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "split [backward|subtree]",
		Short: "Generate and cache a train/test split of the state universe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			m, _, _, err := prepare(cfg)
			if err != nil {
				return err
			}
			sp, err := loadOrMakeSplit(cfg, m, args[0])
			if err != nil {
				return err
			}
			klog.Infof("%s split: %d train / %d test", args[0], len(sp.Train), len(sp.Test))
			return nil
		},
	}
}

// loadOrMakeSplit reuses a cached split when one was generated under the
// same parameters, generating and caching it otherwise.
func loadOrMakeSplit(cfg RunConfig, m *mdp.MDP, kind string) (*split.Split, error) {
	if cfg.CachePath == "" {
		return makeSplit(m, kind, cfg.Split.Ratio, cfg.Split.Seed)
	}
	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	sp, err := store.LoadSplit(kind, cfg.Split.Ratio, cfg.Split.Seed)
	if err == nil {
		return sp, nil
	}
	if !errors.Is(err, gfn.ErrCacheMissing) {
		return nil, err
	}
	sp, err = makeSplit(m, kind, cfg.Split.Ratio, cfg.Split.Seed)
	if err != nil {
		return nil, err
	}
	if err := store.SaveSplit(kind, cfg.Split.Ratio, cfg.Split.Seed, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func makeSplit(m *mdp.MDP, kind string, ratio float64, seed int64) (*split.Split, error) {
	gen := split.NewGenerator(m.Env, m.Index)
	switch kind {
	case "backward":
		return gen.BackwardTrajectory(ratio, seed)
	case "subtree":
		return gen.Subtree(ratio, seed)
	}
	return nil, errors.Errorf("unknown split kind %q", kind)
}
