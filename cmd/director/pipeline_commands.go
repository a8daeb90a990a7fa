package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/fileutil"
	"github.com/bozzyboy/nano-director-5/internal/grid"
	"github.com/bozzyboy/nano-director-5/internal/project"
)

func newPipelineCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newGenerateCommand(ctx),
		newSelectCommand(ctx),
		newDirectCommand(ctx),
		newRestoreCommand(ctx),
		newExtractCommand(ctx),
		newSendCommand(ctx),
		newEditCommand(ctx),
	}
}

// progressPrinter echoes orchestrator status messages while a long
// operation runs.
func progressPrinter(cmd *cobra.Command, a *app) func() {
	out := cmd.ErrOrStderr()
	p := newPainter(out)
	return a.director.Subscribe(func(evt director.Event) {
		switch evt.Type {
		case director.EventStatus:
			if strings.TrimSpace(evt.Message) != "" {
				fmt.Fprintln(out, p.paint(toneInfo, evt.Message))
			}
		case director.EventFailed:
			fmt.Fprintln(out, p.paint(toneError, evt.Message))
		}
	})
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the script if needed and generate composite candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				stop := progressPrinter(cmd, a)
				err := a.director.Generate(c)
				stop()
				if err != nil {
					return err
				}
				state := a.director.Snapshot()
				out := cmd.OutOrStdout()
				if state.Script != nil {
					fmt.Fprintf(out, "Script: %s\n", state.Script.Title)
				}
				fmt.Fprintf(out, "%d candidate(s) ready; pick one with `director select <n>`\n", len(state.GridCandidates))
				if outDir != "" {
					paths, err := writeImages(outDir, "candidate", state.GridCandidates)
					if err != nil {
						return err
					}
					for _, path := range paths {
						fmt.Fprintln(out, path)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Write candidate PNGs to this directory")
	return cmd
}

func newSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select <candidate number>",
		Short: "Choose the candidate composite to direct",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseNumber(args[0], "candidate")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				if err := a.director.Select(number - 1); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Candidate %d selected\n", number)
				return nil
			})
		},
	}
}

func newDirectCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "direct",
		Short: "Split the selected composite and remaster every panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				stop := progressPrinter(cmd, a)
				result, err := a.director.Direct(c)
				stop()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				p := newPainter(out)
				fmt.Fprintln(out, p.statusLine("Panels", toneOK, fmt.Sprintf("%d", len(result.Panels))))
				if len(result.Failed) > 0 {
					numbers := make([]string, len(result.Failed))
					for i, idx := range result.Failed {
						numbers[i] = fmt.Sprintf("%d", idx+1)
					}
					fmt.Fprintln(out, p.statusLine("Kept raw", toneWarn, strings.Join(numbers, ", ")))
				}
				fmt.Fprintln(out, p.statusLine("History", toneInfo, result.HistoryID))
				if result.BatchID != "" {
					fmt.Fprintln(out, p.statusLine("Batch", toneInfo, result.BatchID))
				}
				if outDir != "" {
					paths, err := writeImages(outDir, "panel", result.Panels)
					if err != nil {
						return err
					}
					for _, path := range paths {
						fmt.Fprintln(out, path)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Write panel PNGs to this directory")
	return cmd
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <history id>",
		Short: "Bring back a previous remaster batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				if err := a.director.Restore(strings.TrimSpace(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", args[0])
				return nil
			})
		},
	}
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <panel number>",
		Short: "Print the standalone prompt for one panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseNumber(args[0], "panel")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				prompt, err := a.director.ExtractPrompt(c, number-1)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), prompt)
				return nil
			})
		},
	}
}

func newSendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send <panel number>",
		Short: "Emit the editor hand-off for one panel as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseNumber(args[0], "panel")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				transfer, err := a.director.SendToEditor(c, number-1)
				if err != nil {
					return err
				}
				return writeJSON(cmd, transfer)
			})
		},
	}
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	var (
		prompt     string
		shots      []string
		refPaths   []string
		aspect     string
		resolution string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "edit [panel number]",
		Short: "Render a new image from a prompt and references",
		Long: "Render one image from a prompt and reference images. Given a panel number, the\n" +
			"panel's extracted prompt and image seed the render; --prompt replaces the prompt.\n" +
			"Renders are kept in the project folder's user_generated/ directory when one is set.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := director.EditRequest{Prompt: prompt}
			if len(args) == 1 {
				number, err := parseNumber(args[0], "panel")
				if err != nil {
					return err
				}
				index := number - 1
				req.Panel = &index
			}
			for _, value := range shots {
				shot, err := project.ParseCameraShot(value)
				if err != nil {
					return err
				}
				req.CameraShots = append(req.CameraShots, shot)
			}
			if aspect != "" {
				parsed, err := project.ParseAspectRatio(aspect)
				if err != nil {
					return err
				}
				req.AspectRatio = parsed
			}
			if resolution != "" {
				parsed, err := project.ParseResolution(resolution)
				if err != nil {
					return err
				}
				req.Resolution = parsed
			}
			refs, err := readRefImages(refPaths)
			if err != nil {
				return err
			}
			req.RefImages = refs

			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				result, err := a.director.RenderEdit(c, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				p := newPainter(out)
				fmt.Fprintln(out, p.statusLine("Prompt", toneInfo, result.Prompt))
				if result.Saved != "" {
					fmt.Fprintln(out, p.statusLine("Saved", toneOK, result.Saved))
				}
				if outPath == "" {
					return nil
				}
				path, err := config.ExpandPath(outPath)
				if err != nil {
					return err
				}
				data, err := grid.DecodeBytes(result.Image)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
				if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintln(out, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt text (defaults to the panel's extracted prompt)")
	cmd.Flags().StringArrayVar(&shots, "shot", nil, "Camera technique to apply (repeatable)")
	cmd.Flags().StringArrayVar(&refPaths, "ref", nil, "Extra reference image file (repeatable)")
	cmd.Flags().StringVar(&aspect, "aspect", "", "Aspect ratio override")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Resolution override (1K, 2K, 4K)")
	cmd.Flags().StringVar(&outPath, "out", "", "Also write the render to this PNG file")
	return cmd
}

// writeImages decodes base64 images into numbered PNG files under dir.
func writeImages(dir, prefix string, images []string) ([]string, error) {
	dir, err := config.ExpandPath(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	paths := make([]string, 0, len(images))
	for i, encoded := range images {
		data, err := grid.DecodeBytes(encoded)
		if err != nil {
			return paths, fmt.Errorf("%s %d: %w", prefix, i+1, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%02d.png", prefix, i+1))
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
