package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
	"github.com/clipsmith/clipsmith-agent/internal/timeline"
)

func newExportCommand() *cobra.Command {
	var edlPath string
	var durationFlag string
	var mediaPath string
	var outputDir string
	var title string
	var frameRate float64

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a resolved cut list as a CMX 3600 EDL",
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, err := timecode.Parse(durationFlag)
			if err != nil {
				return fmt.Errorf("invalid --duration: %w", err)
			}
			if err := edl.ValidateOutputDir(outputDir); err != nil {
				return err
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

			res, err := timeline.Resolve(result.Operations, duration)
			if err != nil {
				return err
			}

			name := edl.SanitizeName(title, 120)
			if name == "" {
				name = "clipsmith_export"
			}

			content := edl.Generate(res.KeptSegments(), name, mediaPath, frameRate)
			outputPath := filepath.Join(outputDir, name+".edl")
			if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&edlPath, "edl", "", "Path to the CSV edit decision list")
	cmd.Flags().StringVar(&durationFlag, "duration", "", "Media duration, e.g. 1:32:04")
	cmd.Flags().StringVar(&mediaPath, "media", "", "Source media path recorded in the EDL comments")
	cmd.Flags().StringVar(&outputDir, "out", ".", "Directory the .edl file is written to")
	cmd.Flags().StringVar(&title, "title", "", "EDL title, sanitized for use as the filename")
	cmd.Flags().Float64Var(&frameRate, "frame-rate", 30.0, "Frame rate for EDL timecodes")
	cmd.MarkFlagRequired("edl")
	cmd.MarkFlagRequired("duration")

	return cmd
}
