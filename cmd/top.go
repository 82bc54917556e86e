package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

func topCmd() *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Live hub dashboard over /internal/stats",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Base URL of a running server",
				Value: "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:     "token",
				Usage:    "Service or owner token for the stats endpoint",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Poll interval",
				Value: 2 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			return runTop(c.String("addr"), c.String("token"), c.Duration("interval"))
		},
	}
}

func fetchStats(addr, token string) (*model.HubStats, error) {
	req, err := http.NewRequest(http.MethodGet, addr+"/internal/stats", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats endpoint returned %s", resp.Status)
	}
	var stats model.HubStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func runTop(addr, token string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init terminal ui: %w", err)
	}
	defer ui.Close()

	summary := widgets.NewParagraph()
	summary.Title = " " + ServiceName + " "

	counters := widgets.NewParagraph()
	counters.Title = " counters "

	spark := widgets.NewSparkline()
	spark.Data = []float64{0}
	sparkGroup := widgets.NewSparklineGroup(spark)
	sparkGroup.Title = " updates/s "

	grid := ui.NewGrid()
	w, h := ui.TerminalDimensions()
	grid.SetRect(0, 0, w, h)
	grid.Set(
		ui.NewRow(0.35,
			ui.NewCol(0.5, summary),
			ui.NewCol(0.5, counters),
		),
		ui.NewRow(0.65, sparkGroup),
	)

	var lastEnqueued uint64
	render := func() {
		stats, err := fetchStats(addr, token)
		if err != nil {
			summary.Text = fmt.Sprintf("unreachable: %v", err)
			ui.Render(grid)
			return
		}
		summary.Text = fmt.Sprintf(
			"sessions     %d\nauthed       %d\nusers online %d\nwatchers     %d\nuptime       %s",
			stats.Sessions, stats.Authenticated, stats.Users,
			stats.StatusWatchers, stats.Uptime.Round(time.Second))
		counters.Text = fmt.Sprintf(
			"enqueued  %d\ndeduped   %d\nflushed   %d\ndropped   %d\nconflicts %d",
			stats.UpdatesEnqueued, stats.UpdatesDeduped, stats.BatchesFlushed,
			stats.FramesDropped, stats.SequenceConflicts)

		rate := float64(stats.UpdatesEnqueued-lastEnqueued) / interval.Seconds()
		if lastEnqueued == 0 {
			rate = 0
		}
		lastEnqueued = stats.UpdatesEnqueued
		spark.Data = append(spark.Data, rate)
		if len(spark.Data) > 120 {
			spark.Data = spark.Data[len(spark.Data)-120:]
		}
		ui.Render(grid)
	}
	render()

	events := ui.PollEvents()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Render(grid)
			}
		case <-ticker.C:
			render()
		}
	}
}
