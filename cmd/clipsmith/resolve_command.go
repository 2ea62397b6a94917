package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/renderplan"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
	"github.com/clipsmith/clipsmith-agent/internal/timeline"
)

func newResolveCommand() *cobra.Command {
	var edlPath string
	var durationFlag string
	var sourcePath string
	var strict bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an EDL into a render plan",
		Long: "Parse a CSV edit decision list, apply it against the media duration, " +
			"and print the resulting render plan as JSON on stdout. Rejected rows " +
			"are reported on stderr and skipped unless --strict is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, err := timecode.Parse(durationFlag)
			if err != nil {
				return fmt.Errorf("invalid --duration: %w", err)
			}

			f, err := os.Open(edlPath)
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := edl.Parse(f, duration)
			if err != nil {
				return err
			}

			for _, re := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "row %d (%s): %v\n", re.Row, re.Action, re.Err)
			}
			if strict && result.HasErrors() {
				return fmt.Errorf("%d row(s) rejected", len(result.Errors))
			}

			res, err := timeline.Resolve(result.Operations, duration)
			if err != nil {
				return err
			}

			graph, err := audioplan.Build(res.FinalDuration(), res.MutedFinal(), audioplan.Options{
				Mode:   audioplan.ModeKeep,
				Volume: 1.0,
			})
			if err != nil {
				return err
			}

			plan, err := renderplan.Emit(res, nil, graph, sourcePath)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "resolved %d operation(s): %s -> %s, %d segment(s)\n",
				len(result.Operations), plan.OriginalDuration, plan.FinalDuration, len(plan.Segments))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(plan)
		},
	}

	cmd.Flags().StringVar(&edlPath, "edl", "", "Path to the CSV edit decision list")
	cmd.Flags().StringVar(&durationFlag, "duration", "", "Media duration, e.g. 1:32:04 or 5:00.250")
	cmd.Flags().StringVar(&sourcePath, "source", "", "Source media path recorded in the plan")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any EDL row is rejected")
	cmd.MarkFlagRequired("edl")
	cmd.MarkFlagRequired("duration")

	return cmd
}
