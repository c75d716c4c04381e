// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/models"
	"github.com/tomtom215/agvmonitor/internal/store"
)

const clearScreen = "\033[H\033[2J"

type showOptions struct {
	interval     time.Duration
	once         bool
	abnormalOnly bool
}

func runShow(args []string) error {
	var flags commonFlags
	var opts showOptions
	fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
	flags.register(fs)
	fs.DurationVarP(&opts.interval, "interval", "i", time.Second, "refresh interval")
	fs.BoolVar(&opts.once, "once", false, "print one table and exit")
	fs.BoolVarP(&opts.abnormalOnly, "abnormal", "a", false, "list abnormal robots only")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if opts.interval <= 0 {
		return fmt.Errorf("%w: --interval must be positive", errUsage)
	}

	cfg, err := flags.load("show")
	if err != nil {
		return err
	}
	st := newStore(cfg)
	defer st.Close() //nolint:errcheck
	key := store.NewKeyspace(store.ClusterTag(cfg.Controller.Host)).RobotStatus()

	ctx, cancel := signalContext()
	defer cancel()

	if opts.once {
		return showOnce(ctx, os.Stdout, st, key, opts.abnormalOnly)
	}

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	for {
		fmt.Fprint(os.Stdout, clearScreen)
		if err := showOnce(ctx, os.Stdout, st, key, opts.abnormalOnly); err != nil {
			logging.Warn().Err(err).Msg("Failed to read robot status")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func showOnce(ctx context.Context, w io.Writer, st store.Store, key string, abnormalOnly bool) error {
	readCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	raw, err := st.GetAllHash(readCtx, key)
	if err != nil {
		return err
	}
	renderStatuses(w, raw, abnormalOnly, time.Now())
	return nil
}

// renderStatuses writes one row per robot ordered by id, abnormal robots
// marked with '!'. Undecodable values are skipped. It returns the number of
// abnormal robots.
func renderStatuses(w io.Writer, raw map[string]string, abnormalOnly bool, now time.Time) int {
	records := make([]models.RobotStatus, 0, len(raw))
	for _, v := range raw {
		var rs models.RobotStatus
		if err := json.Unmarshal([]byte(v), &rs); err != nil {
			continue
		}
		records = append(records, rs)
	}
	sort.Slice(records, func(i, j int) bool {
		return lessRobotID(records[i].RobotID, records[j].RobotID)
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tROBOT\tSTATUS\tBATTERY\tSPEED\tPOSITION\tALARM\tAGE")

	abnormal := 0
	for i := range records {
		rs := &records[i]
		if rs.Abnormal {
			abnormal++
		} else if abnormalOnly {
			continue
		}
		mark := ""
		if rs.Abnormal {
			mark = "!"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s (%d)\t%d%%\t%d\t%.0f,%.0f\t%s\t%s\n",
			mark, rs.RobotID, rs.Status, rs.StatusCode, rs.Battery, rs.Speed,
			rs.Position.X, rs.Position.Y, alarmText(rs.Alarm), age(now, rs.IngestTime.Time))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%d robots, %d abnormal, %s\n", len(records), abnormal, now.Format("2006-01-02 15:04:05"))
	return abnormal
}

func alarmText(a models.Alarm) string {
	if !a.Active() {
		return "-"
	}
	name := a.MainName
	if a.SubName != "" {
		name += " / " + a.SubName
	}
	return fmt.Sprintf("%s-%s %s", a.MainCode, a.SubCode, name)
}

func age(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return now.Sub(t).Truncate(time.Second).String()
}

// lessRobotID orders numeric ids numerically and places them before other ids.
func lessRobotID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
