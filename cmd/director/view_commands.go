package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bozzyboy/nano-director-5/internal/catalog"
	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/project"
)

func newViewCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newScriptCommand(ctx),
		newHistoryCommand(ctx),
		newBatchesCommand(ctx),
	}
}

type statusSummary struct {
	director.Status
	StoryIdea   string `json:"storyIdea"`
	StyleMode   string `json:"styleMode"`
	Destination string `json:"destination"`
	Folder      string `json:"folder,omitempty"`
	Autosave    bool   `json:"autosave"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the project stands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				state := a.director.Snapshot()
				summary := statusSummary{
					Status:      a.director.Status(),
					StoryIdea:   state.StoryIdea,
					StyleMode:   string(state.StylePrefs.Mode),
					Destination: string(a.autosave.Destination()),
					Folder:      a.local.Root(),
					Autosave:    a.autosave.Enabled(),
				}
				if jsonOutput {
					return writeJSON(cmd, summary)
				}
				printStatus(cmd, summary)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, s statusSummary) {
	out := cmd.OutOrStdout()
	p := newPainter(out)

	name := s.ProjectName
	if name == "" {
		name = "(untitled)"
	}
	idea := s.StoryIdea
	if idea == "" {
		idea = "(none)"
	}
	fmt.Fprintln(out, p.statusLine("Project", toneInfo, name))
	fmt.Fprintln(out, p.statusLine("Idea", toneInfo, truncate(strings.Join(strings.Fields(idea), " "), 70)))
	fmt.Fprintln(out, p.statusLine("Phase", phaseTone(s.Phase), string(s.Phase)))
	fmt.Fprintln(out, p.statusLine("Showing", toneInfo, displayLabel(s.Display)))

	script := "none"
	scriptTone := toneWarn
	if s.HasScript {
		script, scriptTone = "ready", toneOK
		if s.ScriptDirty {
			script, scriptTone = "edited, recompiles on generate", toneWarn
		}
	}
	fmt.Fprintln(out, p.statusLine("Script", scriptTone, script))

	candidates := strconv.Itoa(s.Candidates)
	if s.Selected != nil {
		candidates += fmt.Sprintf(" (selected %d)", *s.Selected+1)
	}
	fmt.Fprintln(out, p.statusLine("Candidates", toneInfo, candidates))
	fmt.Fprintln(out, p.statusLine("Panels", toneInfo, strconv.Itoa(s.Panels)))
	fmt.Fprintln(out, p.statusLine("History", toneInfo, strconv.Itoa(s.History)))
	fmt.Fprintln(out, p.statusLine("Style", toneInfo, s.StyleMode))

	dest := s.Destination
	destTone := toneOK
	switch {
	case dest == "":
		dest, destTone = "none (run director save --to local|cloud)", toneWarn
	case s.Folder != "":
		dest = fmt.Sprintf("%s (%s)", dest, s.Folder)
	}
	if !s.Autosave {
		dest += ", autosave off"
		destTone = toneWarn
	}
	fmt.Fprintln(out, p.statusLine("Saving to", destTone, dest))
}

func phaseTone(phase director.Phase) tone {
	switch {
	case phase.Busy():
		return toneWarn
	case phase == director.PhasePanelsReady || phase == director.PhaseCandidatesReady:
		return toneOK
	default:
		return toneInfo
	}
}

func displayLabel(d director.Display) string {
	switch d {
	case director.ShowPanels:
		return "remastered panels"
	case director.PromptDirect:
		return "candidate selected, ready to direct"
	default:
		return "candidates, waiting for a selection"
	}
}

func newScriptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "script",
		Short: "Print the current script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				state := a.director.Snapshot()
				if state.Script == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No script yet; run director generate")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(cmd.OutOrStdout(), scriptMarkdown(state)))
				return nil
			})
		},
	}
}

func scriptMarkdown(state project.State) string {
	s := state.Script
	var b strings.Builder
	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.Logline != "" {
		fmt.Fprintf(&b, "_%s_\n\n", strings.TrimSpace(s.Logline))
	}
	for _, shot := range s.Shots {
		fmt.Fprintf(&b, "## Shot %d\n\n%s\n\n", shot.ShotNumber, strings.TrimSpace(shot.Description))
		var meta []string
		if shot.CameraAngle != "" {
			meta = append(meta, "**Camera:** "+shot.CameraAngle)
		}
		if shot.Lighting != "" {
			meta = append(meta, "**Lighting:** "+shot.Lighting)
		}
		if len(meta) > 0 {
			b.WriteString(strings.Join(meta, "  \n"))
			b.WriteString("\n\n")
		}
	}
	if s.GridPrompt != "" {
		b.WriteString("## Composite prompt\n\n")
		if state.IsScriptDirty {
			b.WriteString("_Shots were edited; this prompt is recompiled on the next generate._\n\n")
		}
		fmt.Fprintf(&b, "%s\n", strings.TrimSpace(s.GridPrompt))
	}
	return b.String()
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List remaster batches in the project history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
				items := a.director.History()
				if jsonOutput {
					entries := make([]historyRow, 0, len(items))
					for _, item := range items {
						entries = append(entries, newHistoryRow(item))
					}
					return writeJSON(cmd, entries)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No history yet")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					r := newHistoryRow(item)
					rows = append(rows, []string{
						r.ID,
						time.UnixMilli(r.Timestamp).Local().Format("2006-01-02 15:04"),
						truncate(r.Title, 40),
						strconv.Itoa(r.Panels),
						r.StyleMode,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "When", "Title", "Panels", "Style"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type historyRow struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Title     string `json:"title"`
	Panels    int    `json:"panels"`
	GridSize  int    `json:"gridSize,omitempty"`
	StyleMode string `json:"styleMode,omitempty"`
	BatchID   string `json:"batchId,omitempty"`
}

func newHistoryRow(item project.HistoryItem) historyRow {
	row := historyRow{
		ID:        item.ID,
		Timestamp: item.Timestamp,
		Panels:    len(item.FinalImages),
		GridSize:  item.GridSize,
		BatchID:   item.BatchID,
	}
	if item.Script != nil {
		row.Title = item.Script.Title
	}
	if item.StylePrefs != nil {
		row.StyleMode = string(item.StylePrefs.Mode)
	}
	return row
}

func newBatchesCommand(ctx *commandContext) *cobra.Command {
	var (
		projectName string
		limit       int
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List remaster batches saved to project folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				batches, err := a.catalog.List(c, projectName, limit)
				if err != nil {
					return err
				}
				if batches == nil {
					batches = []catalog.Batch{}
				}
				if jsonOutput {
					return writeJSON(cmd, batches)
				}
				if len(batches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved batches")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, b := range batches {
					rows = append(rows, []string{
						b.ID,
						b.Project,
						strconv.Itoa(b.PanelCount),
						b.CreatedAt.Local().Format("2006-01-02 15:04"),
						b.Folder,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Batch", "Project", "Panels", "Saved", "Folder"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectName, "project", "", "Only batches saved for this project")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum batches to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
