package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"cgsync/internal/cache"
	"cgsync/internal/store"
	"cgsync/pkg/coinglass"
	"cgsync/pkg/ingest"
)

// RowWriter persists normalized rows; the concrete implementation lives in
// internal/store.
type RowWriter interface {
	Write(ctx context.Context, spec store.TableSpec, rows [][]any) (int, error)
}

// WatermarkCache records the newest ingested instant per dataset combination.
// Nil-safe: a runner without Redis simply skips watermarks.
type WatermarkCache interface {
	SetWithExpireCtx(ctx context.Context, key string, val any, expire time.Duration) error
}

// Report summarizes one task run.
type Report struct {
	Task   string
	Rows   int
	Combos int
	// Failed lists the combination labels whose walk or write errored.
	Failed []string
}

// Runner executes catalogue tasks sequentially: one grid expansion per task,
// one backward walk (or snapshot fetch) per dataset per combination, one
// upsert per walk. Sequential execution keeps the shared rate budget honest.
type Runner struct {
	Fetcher   ingest.Fetcher
	Writer    RowWriter
	Cache     WatermarkCache
	TTL       cache.TTLSet
	Window    ingest.Window
	Grids     Grids
	PageLimit int
	// Only restricts the run to the named tasks; empty means all.
	Only []string
}

// Run executes the catalogue and returns per-task reports. A task where every
// combination failed contributes to the returned error; partial failures are
// reported but do not abort the run.
func (r *Runner) Run(ctx context.Context) ([]Report, error) {
	selected := r.selectTasks()
	if len(selected) == 0 {
		return nil, fmt.Errorf("tasks: no tasks selected (filter %v)", r.Only)
	}

	reports := make([]Report, 0, len(selected))
	var degraded []string
	for _, task := range selected {
		started := time.Now()
		rep := r.runTask(ctx, task)
		logx.Infof("[%s] combos=%d rows=%d failed=%d elapsed=%s",
			task.Name, rep.Combos, rep.Rows, len(rep.Failed), time.Since(started).Round(time.Second))
		if rep.Combos > 0 && len(rep.Failed) == rep.Combos {
			degraded = append(degraded, task.Name)
		}
		reports = append(reports, rep)
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
	}
	if len(degraded) > 0 {
		return reports, fmt.Errorf("tasks: every combination failed for %v", degraded)
	}
	return reports, nil
}

func (r *Runner) selectTasks() []Task {
	all := Catalog()
	if len(r.Only) == 0 {
		return all
	}
	want := make(map[string]bool, len(r.Only))
	for _, name := range r.Only {
		want[name] = true
	}
	out := make([]Task, 0, len(all))
	for _, task := range all {
		if want[task.Name] {
			out = append(out, task)
		}
	}
	return out
}

func (r *Runner) runTask(ctx context.Context, task Task) Report {
	rep := Report{Task: task.Name}
	combos := task.Grid.Expand(r.Grids)
	rep.Combos = len(combos)
	for _, combo := range combos {
		comboFailed := false
		for _, ds := range task.Datasets {
			rows, err := r.runDataset(ctx, ds, combo)
			rep.Rows += rows
			if err != nil {
				comboFailed = true
				logx.Errorf("[%s] combo %s dataset %s: %v", task.Name, combo.Label, ds.Table, err)
			}
		}
		if comboFailed {
			rep.Failed = append(rep.Failed, combo.Label)
		}
	}
	return rep
}

// runDataset fetches, normalizes and writes one dataset for one combination.
// Records gathered before a mid-walk error are still written, so re-runs only
// need to cover the remaining range.
func (r *Runner) runDataset(ctx context.Context, ds Dataset, combo Combo) (int, error) {
	params := mergeParams(ds.Params, combo.Params)

	var (
		records []ingest.Record
		timeKey string
		walkErr error
	)
	if ds.Paged {
		limit := r.PageLimit
		if limit <= 0 {
			limit = ingest.DefaultPageSize
		}
		if ds.PageLimitFor != nil {
			limit = ds.PageLimitFor(combo, limit)
		}
		walker := &ingest.Walker{
			Client:   r.Fetcher,
			Path:     ds.Path,
			Params:   params,
			Window:   r.Window,
			PageSize: limit,
			TimeKey:  ds.TimeKey,
			Augment: func(p map[string]string) map[string]string {
				return coinglass.AugmentParams(ds.Path, p)
			},
		}
		result, err := walker.Walk(ctx)
		records, timeKey, walkErr = result.Records, result.TimeKey, err
		if errors.Is(walkErr, ingest.ErrNoTimeField) {
			// Schema drift, not an outage; skip without degrading the combo.
			logx.Errorf("[%s] combo %s: skipped, no time field", ds.Table, combo.Label)
			return 0, nil
		}
	} else {
		page, err := r.Fetcher.Fetch(ctx, ds.Path, params)
		if err != nil {
			return 0, err
		}
		if len(page) == 0 {
			return 0, nil
		}
		records = page
		key, ok := ingest.ResolveTimeKey(page[0], ds.TimeKey)
		if !ok {
			logx.Errorf("[%s] combo %s: skipped, no time field", ds.Table, combo.Label)
			return 0, nil
		}
		timeKey = key
	}

	if ds.Explode != nil {
		records = explodeAll(records, timeKey, ds.Explode)
	}

	rows, newest := r.buildRows(ds, combo, records, timeKey)
	written, writeErr := r.Writer.Write(ctx, tableSpec(ds, combo), rows)
	if writeErr == nil && written > 0 {
		r.storeWatermark(ctx, ds.Table, combo.Label, newest)
	}
	if walkErr != nil {
		return written, walkErr
	}
	return written, writeErr
}

// buildRows normalizes and maps records to insert rows. Exploded datasets may
// carry several rows per instant (one per ticker), so they bypass per-instant
// dedup and rely on the upsert's natural key instead. Snapshot datasets map
// every returned row: the backfill window only bounds paged walks, and these
// endpoints carry history (pre-window index data, today's ETF row) that must
// not be dropped.
func (r *Runner) buildRows(ds Dataset, combo Combo, records []ingest.Record, timeKey string) ([][]any, int64) {
	win := r.Window
	if !ds.Paged {
		win = ingest.Window{StartMS: math.MinInt64, EndMS: math.MaxInt64}
	}
	var keyed []ingest.Keyed
	if ds.Explode != nil {
		keyed = make([]ingest.Keyed, 0, len(records))
		for _, rec := range records {
			ms, ok := ingest.ToUnixMilli(rec[timeKey])
			if !ok || !win.Contains(ms) {
				continue
			}
			keyed = append(keyed, ingest.Keyed{InstantMS: ms, Record: rec})
		}
	} else {
		keyed = ingest.Normalize(records, timeKey, win)
	}

	rows := make([][]any, 0, len(keyed))
	var newest int64
	for _, k := range keyed {
		row := make([]any, 0, len(combo.KeyValues)+1+len(ds.Columns))
		row = append(row, combo.KeyValues...)
		row = append(row, timeValue(ds, k.InstantMS))
		row = append(row, ingest.MapValues(k.Record, ds.Columns)...)
		rows = append(rows, row)
		if k.InstantMS > newest {
			newest = k.InstantMS
		}
	}
	return rows, newest
}

func (r *Runner) storeWatermark(ctx context.Context, table, combo string, newestMS int64) {
	if r.Cache == nil || newestMS == 0 {
		return
	}
	key := cache.WatermarkKey(table, comboKeyPart(combo))
	if err := r.Cache.SetWithExpireCtx(ctx, key, strconv.FormatInt(newestMS, 10), r.TTL.Long); err != nil {
		logx.Errorf("watermark %s: %v", key, err)
	}
}

func comboKeyPart(label string) string {
	if label == "-" {
		return ""
	}
	return label
}

func tableSpec(ds Dataset, combo Combo) store.TableSpec {
	cols := make([]string, 0, len(combo.KeyColumns)+1+len(ds.Columns))
	cols = append(cols, combo.KeyColumns...)
	cols = append(cols, ds.TimeColumn)
	for _, c := range ds.Columns {
		cols = append(cols, c.Name)
	}
	return store.TableSpec{Name: ds.Table, Columns: cols, ConflictKeys: ds.ConflictKeys}
}

func timeValue(ds Dataset, ms int64) any {
	t := time.UnixMilli(ms).UTC()
	if ds.TimeAsDate {
		return t.Format("2006-01-02")
	}
	return t
}

func mergeParams(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func explodeAll(records []ingest.Record, timeKey string, explode func(ingest.Record, string) []ingest.Record) []ingest.Record {
	out := make([]ingest.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, explode(rec, timeKey)...)
	}
	return out
}
