package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/linecart/pkg/record"
)

type HistoryCommand struct {
	Record string `long:"record" default:"runs.db" description:"History database"`
	Run    string `long:"run" description:"Run id to show (latest by default)"`
	List   bool   `short:"l" long:"list" description:"List runs instead of transitions"`
}

var (
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	faultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
)

func (c *HistoryCommand) Execute(args []string) error {
	rec, err := record.Open(c.Record)
	if err != nil {
		return err
	}
	defer rec.Close()

	ctx := context.Background()
	if c.List {
		return c.listRuns(ctx, rec)
	}

	runID := c.Run
	if runID == "" {
		runID, err = rec.LatestRun(ctx)
		if errors.Is(err, record.ErrNoRuns) {
			fmt.Println("No runs recorded yet. Use " + headerStyle.Render("linecart run --record "+c.Record))
			return nil
		}
		if err != nil {
			return err
		}
	}

	rows, err := rec.Transitions(ctx, runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s not found", runID)
	}

	fmt.Println(headerStyle.Render("Run " + runID))
	fmt.Println()

	start := rows[0].Time
	data := make([][]string, 0, len(rows))
	faults := make([]bool, 0, len(rows))
	for _, r := range rows {
		mission := r.Mission
		if r.Suspended {
			mission += " (turning)"
		}
		dist := "-"
		if r.Distance.Valid {
			dist = fmt.Sprintf("%.1f", r.Distance.Float64)
		}
		data = append(data, []string{
			fmt.Sprintf("%8.2fs", r.Time.Sub(start).Seconds()),
			mission,
			r.Navigation,
			r.Turn,
			r.Junction,
			strconv.Itoa(r.Zone),
			strconv.Itoa(r.ColorCounter),
			strconv.Itoa(r.Blocks),
			r.Color,
			dist,
			r.Fault,
		})
		faults = append(faults, r.Fault != "none")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("T", "Mission", "Nav", "Turn", "Junction", "Zone", "Count", "Blocks", "Color", "cm", "Fault").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row >= 0 && row < len(faults) && faults[row] {
				return faultStyle
			}
			return cellStyle
		})
	fmt.Println(t.Render())
	return nil
}

func (c *HistoryCommand) listRuns(ctx context.Context, rec *record.Recorder) error {
	runs, err := rec.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	data := make([][]string, 0, len(runs))
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Ended.Sub(r.Started).Round(100 * time.Millisecond).String(),
			strconv.Itoa(r.Rows),
			strconv.Itoa(r.Delivered),
			r.Final,
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Run", "Started", "Duration", "Transitions", "Delivered", "Final").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return cellStyle
		})
	fmt.Println(t.Render())
	return nil
}
