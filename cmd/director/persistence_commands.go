package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

func newPersistenceCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSaveCommand(ctx),
		newLoadCommand(ctx),
		newCloudListCommand(ctx),
		newExportCommand(ctx),
	}
}

func newSaveCommand(ctx *commandContext) *cobra.Command {
	var (
		to     string
		folder string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the project to a folder, the cloud, or a download file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := persistence.ParseDestination(to)
			if err != nil {
				return err
			}
			if dest == persistence.DestinationNone {
				return services.Wrap(services.ErrMissingInput, "persistence", "save", "--to is required (local, cloud, download)", nil)
			}
			return ctx.withApp(cmd, appOptions{folder: folder}, func(c context.Context, a *app) error {
				if dest == persistence.DestinationLocal && strings.TrimSpace(folder) != "" {
					dir, err := config.ExpandPath(folder)
					if err != nil {
						return err
					}
					if err := a.local.Grant(c, dir); err != nil {
						return err
					}
				}
				result, err := a.router.Save(c, a.director.Snapshot(), dest)
				if err != nil {
					return err
				}
				a.adoptDestination(dest)
				p := newPainter(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), p.statusLine("Saved", toneOK, fmt.Sprintf("%s (%s)", result.Location, result.Destination)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Destination: local, cloud, or download")
	cmd.Flags().StringVar(&folder, "folder", "", "Project folder for local saves")
	return cmd
}

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var (
		folder  string
		file    string
		cloudID string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Replace the working copy with a saved project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, v := range []string{folder, file, cloudID} {
				if strings.TrimSpace(v) != "" {
					sources++
				}
			}
			if sources != 1 {
				return services.Wrap(services.ErrMissingInput, "persistence", "load", "pass exactly one of --folder, --file, or --cloud", nil)
			}
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				var (
					state project.State
					dest  persistence.Destination
				)
				switch {
				case strings.TrimSpace(folder) != "":
					dir, err := config.ExpandPath(folder)
					if err != nil {
						return err
					}
					loaded, found, err := a.router.OpenLocal(c, dir)
					if err != nil {
						return err
					}
					a.adoptDestination(persistence.DestinationLocal)
					if !found {
						fmt.Fprintf(cmd.OutOrStdout(), "No project in %s; the folder will receive saves from now on\n", dir)
						return nil
					}
					state, dest = loaded, persistence.DestinationLocal
				case strings.TrimSpace(file) != "":
					path, err := config.ExpandPath(file)
					if err != nil {
						return err
					}
					loaded, err := a.router.Import(c, path)
					if err != nil {
						return err
					}
					state = loaded
				default:
					loaded, err := a.router.LoadCloud(c, strings.TrimSpace(cloudID))
					if err != nil {
						return err
					}
					a.adoptDestination(persistence.DestinationCloud)
					state, dest = loaded, persistence.DestinationCloud
				}
				a.director.Load(state)
				a.touch()

				name := state.ProjectName
				if name == "" {
					name = "project"
				}
				msg := fmt.Sprintf("Loaded %s", name)
				if dest != persistence.DestinationNone {
					msg += fmt.Sprintf("; autosave goes to %s", dest)
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Project folder to open")
	cmd.Flags().StringVar(&file, "file", "", "Manifest file to import (.json or .yaml)")
	cmd.Flags().StringVar(&cloudID, "cloud", "", "Cloud file ID (see `director cloud-list`)")
	return cmd
}

func newCloudListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "cloud-list",
		Short: "List projects saved in the cloud folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				files, err := a.router.ListCloud(c)
				if err != nil {
					if errors.Is(err, services.ErrLoginRequired) {
						return fmt.Errorf("%w (set drive.access_token in the config)", err)
					}
					return err
				}
				if files == nil {
					files = []persistence.CloudFile{}
				}
				if jsonOutput {
					return writeJSON(cmd, files)
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cloud projects")
					return nil
				}
				rows := make([][]string, 0, len(files))
				for _, f := range files {
					modified := ""
					if !f.Modified.IsZero() {
						modified = f.Modified.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{f.ID, f.Name, modified})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Modified"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Write the project manifest to a .json or .yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				result, err := a.router.Export(c, a.director.Snapshot(), path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", result.Location)
				return nil
			})
		},
	}
}
