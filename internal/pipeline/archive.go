package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// ArchiveJob moves band snapshots older than the retention window to cold
// storage and optionally prunes them from the snapshot store afterwards.
type ArchiveJob struct {
	archiver  domain.Archiver
	snapshots domain.SnapshotStore
	retention time.Duration
	prune     bool
	now       func() time.Time
	logger    *slog.Logger
	onDone    ArchiveFunc
}

// ArchiveFunc observes the outcome of every archive run.
type ArchiveFunc func(ctx context.Context, archived int64, err error)

// NewArchiveJob creates an ArchiveJob. When prune is set, snapshots must be
// non-nil.
func NewArchiveJob(archiver domain.Archiver, snapshots domain.SnapshotStore, retention time.Duration, prune bool, logger *slog.Logger) *ArchiveJob {
	return &ArchiveJob{
		archiver:  archiver,
		snapshots: snapshots,
		retention: retention,
		prune:     prune && snapshots != nil,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "archive")),
	}
}

// OnComplete registers fn to be called after every run.
func (j *ArchiveJob) OnComplete(fn ArchiveFunc) {
	j.onDone = fn
}

// Run performs a single archive pass and returns the number of snapshots
// written to cold storage.
func (j *ArchiveJob) Run(ctx context.Context) (int64, error) {
	archived, err := j.run(ctx)
	if j.onDone != nil {
		j.onDone(ctx, archived, err)
	}
	return archived, err
}

func (j *ArchiveJob) run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	j.logger.Info("archive run starting", slog.Time("cutoff", cutoff))

	archived, err := j.archiver.ArchiveSnapshots(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pipeline: archive snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	var pruned int64
	if j.prune && archived > 0 {
		pruned, err = j.snapshots.DeleteBefore(ctx, cutoff)
		if err != nil {
			return archived, fmt.Errorf("pipeline: prune snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
		}
	}

	j.logger.Info("archive run complete",
		slog.Int64("archived", archived),
		slog.Int64("pruned", pruned),
	)
	return archived, nil
}

// RunCron runs the job on a 5-field cron schedule (UTC) until ctx is
// cancelled. A failed run is logged and the schedule continues.
func (j *ArchiveJob) RunCron(ctx context.Context, expr string) error {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return err
	}
	for {
		next, ok := sched.Next(j.now().UTC())
		if !ok {
			return fmt.Errorf("pipeline: schedule %q never fires", expr)
		}
		j.logger.Info("archive scheduled", slog.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Schedule is a parsed cron expression: minute hour day-of-month month
// day-of-week. Each field accepts "*", numbers, "a-b" ranges, "x/n" steps
// and comma-separated lists of those.
type Schedule struct {
	fields [5]fieldSet
}

// fieldSet is a bitmask of matching values; all values fit in 64 bits.
type fieldSet uint64

func (f fieldSet) has(v int) bool { return f&(1<<uint(v)) != 0 }

var fieldBounds = [5]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseSchedule parses a 5-field cron expression.
func ParseSchedule(expr string) (Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("pipeline: cron %q: want 5 fields, got %d", expr, len(parts))
	}
	var s Schedule
	for i, p := range parts {
		set, err := parseField(p, fieldBounds[i].min, fieldBounds[i].max)
		if err != nil {
			return Schedule{}, fmt.Errorf("pipeline: cron %q: %s: %w", expr, fieldBounds[i].name, err)
		}
		s.fields[i] = set
	}
	return s, nil
}

func parseField(field string, lo, hi int) (fieldSet, error) {
	var set fieldSet
	for _, term := range strings.Split(field, ",") {
		step := 1
		if base, s, ok := strings.Cut(term, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step %q", s)
			}
			step = n
			term = base
		}

		from, to := lo, hi
		switch {
		case term == "*":
		case strings.Contains(term, "-"):
			a, b, _ := strings.Cut(term, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("bad range %q", term)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("bad range %q", term)
			}
		default:
			v, err := strconv.Atoi(term)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", term)
			}
			from = v
			if step == 1 {
				to = v
			}
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("%q outside %d-%d", term, lo, hi)
		}
		for v := from; v <= to; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

// Matches reports whether t falls on a scheduled minute.
func (s Schedule) Matches(t time.Time) bool {
	return s.fields[0].has(t.Minute()) &&
		s.fields[1].has(t.Hour()) &&
		s.fields[2].has(t.Day()) &&
		s.fields[3].has(int(t.Month())) &&
		s.fields[4].has(int(t.Weekday()))
}

// Next returns the first scheduled minute strictly after t, searching at most
// four years ahead.
func (s Schedule) Next(t time.Time) (time.Time, bool) {
	c := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)
	for c.Before(limit) {
		if !s.fields[3].has(int(c.Month())) {
			c = time.Date(c.Year(), c.Month()+1, 1, 0, 0, 0, 0, c.Location())
			continue
		}
		if !s.fields[2].has(c.Day()) || !s.fields[4].has(int(c.Weekday())) {
			c = time.Date(c.Year(), c.Month(), c.Day()+1, 0, 0, 0, 0, c.Location())
			continue
		}
		if !s.fields[1].has(c.Hour()) {
			c = c.Truncate(time.Hour).Add(time.Hour)
			continue
		}
		if s.fields[0].has(c.Minute()) {
			return c, true
		}
		c = c.Add(time.Minute)
	}
	return time.Time{}, false
}
