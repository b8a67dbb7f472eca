package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uvdose/uvdose/internal/app"
	"github.com/uvdose/uvdose/internal/calc"
	"github.com/uvdose/uvdose/internal/config"
	"github.com/uvdose/uvdose/pkg/types"
)

// querier is the calculation surface the commands use.
type querier interface {
	CalculateRED(req calc.REDRequest) types.Outcome
	CalculatePressureDrop(system string, flow float64) types.Outcome
	SupportedSystemsGrouped() map[string][]string
	LampCount(system string) (types.LampInfo, error)
	ParameterRanges(system string) (types.ParameterRanges, bool)
}

// opener builds a querier from the configuration; the returned func releases it.
type opener func(ctx context.Context, cfg *config.Config) (querier, func(), error)

// errFailedOutcome makes the process exit non-zero after a failure outcome
// has been printed.
var errFailedOutcome = errors.New("calculation failed")

func openEngine(ctx context.Context, cfg *config.Config) (querier, func(), error) {
	eng, err := app.Start(ctx, cfg, nil, app.Deps{})
	if err != nil {
		return nil, nil, err
	}
	return eng.Calculator, func() { _ = eng.Close() }, nil
}

type cli struct {
	open       opener
	out        io.Writer
	configPath string
	libDir     string
	specSource string
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	c := &cli{open: open, out: out}

	root := &cobra.Command{
		Use:          "redcalc",
		Short:        "Query the UV reactor RED library",
		Long:         `Loads the native RED library and its system specification, runs one query and prints JSON.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file (defaults when empty)")
	root.PersistentFlags().StringVar(&c.libDir, "library-dir", "", "override library.dir")
	root.PersistentFlags().StringVar(&c.specSource, "spec", "", "override specification.source (path or s3://bucket/key)")

	root.AddCommand(
		c.systemsCmd(),
		c.lampsCmd(),
		c.rangesCmd(),
		c.redCmd(),
		c.pressureDropCmd(),
	)
	return root
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg := config.Defaults()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}
	if c.libDir != "" {
		cfg.Library.Dir = c.libDir
	}
	if c.specSource != "" {
		cfg.Specification.Source = c.specSource
	}
	return cfg, nil
}

// run opens the engine, hands it to fn and prints what fn returns.
func (c *cli) run(cmd *cobra.Command, fn func(q querier) (interface{}, error)) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	q, release, err := c.open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer release()

	v, err := fn(q)
	if v != nil {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(v); encErr != nil {
			return encErr
		}
	}
	return err
}

func outcomeErr(o types.Outcome) error {
	if o.OK() {
		return nil
	}
	return errFailedOutcome
}

func (c *cli) systemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "List supported systems grouped by series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(q querier) (interface{}, error) {
				return q.SupportedSystemsGrouped(), nil
			})
		},
	}
}

func (c *cli) lampsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lamps SYSTEM",
		Short: "Print the lamp count of a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(q querier) (interface{}, error) {
				info, err := q.LampCount(args[0])
				if err != nil {
					return nil, err
				}
				return info, nil
			})
		},
	}
}

func (c *cli) rangesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ranges SYSTEM",
		Short: "Print the operating limits of a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(q querier) (interface{}, error) {
				r, ok := q.ParameterRanges(args[0])
				if !ok {
					return nil, fmt.Errorf("System type '%s' not found", args[0])
				}
				return r, nil
			})
		},
	}
}

func (c *cli) redCmd() *cobra.Command {
	var (
		flow, uvt, uvt215, d1Log float64
		power, efficiency        []string
	)
	cmd := &cobra.Command{
		Use:   "red SYSTEM",
		Short: "Calculate the reduction equivalent dose",
		Long: `Calculates RED for SYSTEM. Lamp settings take "all=V" to set every lamp
and "K=V" to set lamp K (1-based); both flags repeat.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := calc.REDRequest{System: args[0], Flow: flow, UVT: uvt}
			if cmd.Flags().Changed("uvt215") {
				req.UVT215 = &uvt215
			}
			if cmd.Flags().Changed("d1-log") {
				req.D1Log = &d1Log
			}
			var err error
			if req.Power, err = parseLampSettings(power); err != nil {
				return fmt.Errorf("--power: %w", err)
			}
			if req.Efficiency, err = parseLampSettings(efficiency); err != nil {
				return fmt.Errorf("--efficiency: %w", err)
			}
			return c.run(cmd, func(q querier) (interface{}, error) {
				out := q.CalculateRED(req)
				return out, outcomeErr(out)
			})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&flow, "flow", 0, "flow rate [m3/h]")
	f.Float64Var(&uvt, "uvt", 0, "UV transmittance at 254nm [%-1cm]")
	f.Float64Var(&uvt215, "uvt215", config.DefaultUVT215, "UV transmittance at 215nm; unset means not supplied")
	f.Float64Var(&d1Log, "d1-log", config.DefaultD1Log, "D-1Log dose")
	f.StringArrayVar(&power, "power", nil, "lamp power setting: all=V or K=V")
	f.StringArrayVar(&efficiency, "efficiency", nil, "lamp efficiency setting: all=V or K=V")
	_ = cmd.MarkFlagRequired("flow")
	_ = cmd.MarkFlagRequired("uvt")
	return cmd
}

func (c *cli) pressureDropCmd() *cobra.Command {
	var flow float64
	cmd := &cobra.Command{
		Use:   "pressure-drop SYSTEM",
		Short: "Calculate the pressure drop across a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(q querier) (interface{}, error) {
				out := q.CalculatePressureDrop(args[0], flow)
				return out, outcomeErr(out)
			})
		},
	}
	cmd.Flags().Float64Var(&flow, "flow", 0, "flow rate [m3/h]")
	_ = cmd.MarkFlagRequired("flow")
	return cmd
}

// parseLampSettings turns repeated "all=V" / "K=V" flags into LampSettings.
// Lamp keys are passed through unchecked; the builder validates them.
func parseLampSettings(items []string) (*types.LampSettings, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s := &types.LampSettings{}
	for _, item := range items {
		key, val, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("%q: want all=V or K=V", item)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", item, err)
		}
		key = strings.TrimSpace(key)
		if strings.EqualFold(key, "all") {
			s.AllLamps = &v
			continue
		}
		if s.SpecificLamps == nil {
			s.SpecificLamps = make(map[string]float64)
		}
		s.SpecificLamps[key] = v
	}
	return s, nil
}
