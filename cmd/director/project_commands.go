package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/project"
)

func newProjectCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newInitCommand(ctx),
		newIdeaCommand(ctx),
		newSettingsCommand(ctx),
		newStyleCommand(ctx),
		newStylesCommand(),
		newEditShotCommand(ctx),
	}
}

func newInitCommand(ctx *commandContext) *cobra.Command {
	var name string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Start a new project in the working copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				if a.director.Snapshot().HasContent() && !force {
					return errors.New("the working copy holds a project; save it first or pass --force")
				}
				state := project.New()
				state.ProjectName = strings.TrimSpace(name)
				a.detach()
				a.director.Load(state)
				fmt.Fprintln(cmd.OutOrStdout(), "Started a new project")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().BoolVar(&force, "force", false, "Discard the current working copy")
	return cmd
}

func newIdeaCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "idea <story idea...>",
		Short: "Set the story idea",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				if err := a.director.SetIdea(strings.Join(args, " ")); err != nil {
					return err
				}
				if cmd.Flags().Changed("name") {
					if err := a.director.SetProjectName(name); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Story idea updated")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	return cmd
}

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	var (
		gridSize       int
		candidates     int
		aspect         string
		resolution     string
		gridResolution string
		camera         []string
		refs           []string
		clearRefs      bool
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change generation settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				var apply []func() error
				if flags.Changed("grid") {
					if err := project.ValidateGridSize(gridSize); err != nil {
						return err
					}
					apply = append(apply, func() error { return a.director.SetGridSize(gridSize) })
				}
				if flags.Changed("candidates") {
					if err := project.ValidateCandidateCount(candidates); err != nil {
						return err
					}
					apply = append(apply, func() error { return a.director.SetCandidateCount(candidates) })
				}
				if flags.Changed("aspect") {
					ratio, err := project.ParseAspectRatio(aspect)
					if err != nil {
						return err
					}
					apply = append(apply, func() error { return a.director.SetAspectRatio(ratio) })
				}
				if flags.Changed("resolution") {
					res, err := project.ParseResolution(resolution)
					if err != nil {
						return err
					}
					apply = append(apply, func() error { return a.director.SetResolution(res) })
				}
				if flags.Changed("grid-resolution") {
					res, err := project.ParseResolution(gridResolution)
					if err != nil {
						return err
					}
					apply = append(apply, func() error { return a.director.SetGridResolution(res) })
				}
				if flags.Changed("camera") {
					shots := make([]project.CameraShot, 0, len(camera))
					for _, value := range camera {
						if strings.TrimSpace(value) == "" {
							continue
						}
						shot, err := project.ParseCameraShot(value)
						if err != nil {
							return err
						}
						shots = append(shots, shot)
					}
					apply = append(apply, func() error { return a.director.SetCameraShots(shots) })
				}
				if clearRefs || flags.Changed("ref") {
					images, err := readRefImages(refs)
					if err != nil {
						return err
					}
					apply = append(apply, func() error { return a.director.SetRefImages(images) })
				}
				for _, fn := range apply {
					if err := fn(); err != nil {
						return err
					}
				}

				state := a.director.Snapshot()
				if jsonOutput {
					return writeJSON(cmd, settingsView(state))
				}
				printSettings(cmd, state)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&gridSize, "grid", 0, "Panels per side of the composite (2-4)")
	cmd.Flags().IntVar(&candidates, "candidates", 0, "Composite candidates per generation (1-4)")
	cmd.Flags().StringVar(&aspect, "aspect", "", "Aspect ratio (1:1, 16:9, 9:16, 4:3, 3:4, 21:9)")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Panel resolution (1K, 2K, 4K)")
	cmd.Flags().StringVar(&gridResolution, "grid-resolution", "", "Composite resolution (1K, 2K, 4K)")
	cmd.Flags().StringSliceVar(&camera, "camera", nil, "Camera shots to force, comma separated (empty clears)")
	cmd.Flags().StringSliceVar(&refs, "ref", nil, "Reference image files, replacing the current set")
	cmd.Flags().BoolVar(&clearRefs, "clear-refs", false, "Remove all reference images")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// readRefImages loads image files as base64 strings.
func readRefImages(paths []string) ([]string, error) {
	images := make([]string, 0, len(paths))
	for _, raw := range paths {
		path, err := config.ExpandPath(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read reference image: %w", err)
		}
		images = append(images, base64.StdEncoding.EncodeToString(data))
	}
	return images, nil
}

type settingsSummary struct {
	ProjectName    string               `json:"projectName,omitempty"`
	GridSize       int                  `json:"gridSize"`
	CandidateCount int                  `json:"candidateCount"`
	AspectRatio    project.AspectRatio  `json:"aspectRatio"`
	Resolution     project.Resolution   `json:"resolution"`
	GridResolution project.Resolution   `json:"gridResolution"`
	CameraShots    []project.CameraShot `json:"cameraShots"`
	RefImages      int                  `json:"refImages"`
}

func settingsView(state project.State) settingsSummary {
	shots := state.CameraShots
	if shots == nil {
		shots = []project.CameraShot{}
	}
	return settingsSummary{
		ProjectName:    state.ProjectName,
		GridSize:       state.GridSize,
		CandidateCount: state.CandidateCount,
		AspectRatio:    state.AspectRatio,
		Resolution:     state.Resolution,
		GridResolution: state.GridResolution,
		CameraShots:    shots,
		RefImages:      len(state.RefImages),
	}
}

func printSettings(cmd *cobra.Command, state project.State) {
	out := cmd.OutOrStdout()
	p := newPainter(out)
	camera := "none"
	if len(state.CameraShots) > 0 {
		parts := make([]string, len(state.CameraShots))
		for i, shot := range state.CameraShots {
			parts[i] = string(shot)
		}
		camera = strings.Join(parts, ", ")
	}
	fmt.Fprintln(out, p.statusLine("Grid", toneInfo, fmt.Sprintf("%dx%d", state.GridSize, state.GridSize)))
	fmt.Fprintln(out, p.statusLine("Candidates", toneInfo, strconv.Itoa(state.CandidateCount)))
	fmt.Fprintln(out, p.statusLine("Aspect ratio", toneInfo, string(state.AspectRatio)))
	fmt.Fprintln(out, p.statusLine("Resolution", toneInfo, fmt.Sprintf("%s (composite %s)", state.Resolution, state.GridResolution)))
	fmt.Fprintln(out, p.statusLine("Camera", toneInfo, camera))
	fmt.Fprintln(out, p.statusLine("References", toneInfo, strconv.Itoa(len(state.RefImages))))
}

func newStyleCommand(ctx *commandContext) *cobra.Command {
	var (
		mode       string
		appendText string
		override   string
		negative   string
		custom     string
	)

	cmd := &cobra.Command{
		Use:   "style",
		Short: "Show or change the visual style",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				if flags.Changed("mode") {
					parsed, err := project.ParseStyleMode(mode)
					if err != nil {
						return err
					}
					if err := a.director.SetStyleMode(parsed); err != nil {
						return err
					}
				}

				type step struct {
					flag  string
					value string
					set   func(string) error
				}
				steps := []step{
					{"custom", custom, a.director.SetCustomPositive},
					{"negative", negative, a.director.SetStyleNegative},
					{"append", appendText, a.director.SetStyleAppend},
					{"override", override, a.director.SetStyleOverride},
				}
				// Clearing runs first so one invocation can swap append for
				// override.
				for _, clearing := range []bool{true, false} {
					for _, st := range steps {
						if !flags.Changed(st.flag) || (strings.TrimSpace(st.value) == "") != clearing {
							continue
						}
						if err := st.set(st.value); err != nil {
							return err
						}
					}
				}

				prefs := a.director.Snapshot().StylePrefs
				out := cmd.OutOrStdout()
				p := newPainter(out)
				fmt.Fprintln(out, p.statusLine("Mode", toneInfo, string(prefs.Mode)))
				if prefs.CustomAppend != "" {
					fmt.Fprintln(out, p.statusLine("Append", toneInfo, prefs.CustomAppend))
				}
				if prefs.CustomOverride != "" {
					fmt.Fprintln(out, p.statusLine("Override", toneWarn, prefs.CustomOverride))
				}
				fmt.Fprintln(out, p.statusLine("Negative", toneInfo, project.ResolveNegative(prefs)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Style preset (see `director styles`)")
	cmd.Flags().StringVar(&appendText, "append", "", "Extra style text appended to the preset (empty clears)")
	cmd.Flags().StringVar(&override, "override", "", "Style text replacing the preset (empty clears)")
	cmd.Flags().StringVar(&negative, "negative", "", "Negative prompt (empty restores the default)")
	cmd.Flags().StringVar(&custom, "custom", "", "Style text for the CUSTOM preset")
	return cmd
}

func newStylesCommand() *cobra.Command {
	var camera bool

	cmd := &cobra.Command{
		Use:         "styles",
		Short:       "List style presets or camera shots",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if camera {
				var rows [][]string
				for _, category := range []project.ShotCategory{project.CategoryDistance, project.CategoryVertical, project.CategoryHorizontal, project.CategoryOptics} {
					for _, shot := range project.CameraShots(category) {
						rows = append(rows, []string{string(category), string(shot), truncate(shot.Description(), 70)})
					}
				}
				fmt.Fprintln(out, renderTable([]string{"Category", "Shot", "Description"}, rows, nil))
				return nil
			}
			rows := make([][]string, 0, len(project.StyleModes()))
			for _, mode := range project.StyleModes() {
				modifier := "(your --custom text)"
				if mode != project.StyleCustom {
					modifier = truncate(strings.Join(strings.Fields(mode.Modifier()), " "), 70)
				}
				rows = append(rows, []string{string(mode), modifier})
			}
			fmt.Fprintln(out, renderTable([]string{"Mode", "Preset"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&camera, "camera", false, "List camera shots instead of style presets")
	return cmd
}

func newEditShotCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit-shot <shot number> <description...>",
		Short: "Rewrite one shot of the script",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseNumber(args[0], "shot")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				if err := a.director.EditShot(number-1, strings.Join(args[1:], " ")); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Shot %d updated; the next generate recompiles the composite prompt\n", number)
				return nil
			})
		},
	}
}

// parseNumber parses a 1-based position typed by the user.
func parseNumber(raw, what string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s number %q", what, raw)
	}
	return n, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
