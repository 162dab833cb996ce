package ingest

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
)

// ErrNoTimeField reports that no candidate timestamp field could be resolved
// from the first non-empty page. The walk is skipped, not failed.
var ErrNoTimeField = errors.New("ingest: no recognizable time field")

const (
	// DefaultPageSize is the provider's documented per-request ceiling.
	DefaultPageSize = 4500
	// cursorParam is the exclusive upper time bound for older pages.
	cursorParam = "end_time"
)

// Window is the inclusive target range for one walk, in millisecond epochs.
type Window struct {
	StartMS int64
	EndMS   int64
}

// Contains reports whether the instant falls inside the window.
func (w Window) Contains(ms int64) bool {
	return ms >= w.StartMS && ms <= w.EndMS
}

// Fetcher issues one rate-limited page request.
type Fetcher interface {
	Fetch(ctx context.Context, path string, params map[string]string) ([]Record, error)
}

// Walker reconstructs a historical range by paging backward from the most
// recent data. The provider's only navigation primitive is "most recent N
// points before end_time", so the walk repeatedly sets the cursor to the
// oldest observed instant minus one until the window start is reached.
type Walker struct {
	Client   Fetcher
	Path     string
	Params   map[string]string
	Window   Window
	PageSize int
	// FloorSize is the known-safe page size used for the one retry after the
	// provider rejects PageSize as too large.
	FloorSize int
	// TimeKey is the preferred timestamp field; fallbacks apply when absent.
	TimeKey string
	// Augment produces classifier-hinted parameters for the one retry after
	// an empty first page. Nil disables the retry.
	Augment func(map[string]string) map[string]string
}

// WalkResult carries the accumulated in-window records of one walk. Records
// may still contain cross-page duplicates; Normalize finishes the job.
type WalkResult struct {
	Records []Record
	TimeKey string
	Pages   int
}

// Walk runs the backward pagination loop. On a mid-walk fetch error the
// records accumulated so far are returned together with the error, so the
// caller can persist partial progress and report the combination degraded.
func (w *Walker) Walk(ctx context.Context) (*WalkResult, error) {
	pageSize := w.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	floor := w.FloorSize
	if floor <= 0 {
		floor = DefaultPageSize
	}

	result := &WalkResult{}
	var cursor *int64
	triedAugment := false
	logx.Infof("walk %s params=%v window=[%d,%d]", w.Path, w.Params, w.Window.StartMS, w.Window.EndMS)

	for {
		page, err := w.fetchPage(ctx, pageSize, cursor)
		if err != nil {
			if looksLikePageSizeRejection(err) && pageSize > floor {
				logx.Infof("walk %s: page size %d rejected, retrying at %d", w.Path, pageSize, floor)
				pageSize = floor
				page, err = w.fetchPage(ctx, pageSize, cursor)
			}
			if err != nil {
				return result, err
			}
		}
		result.Pages++

		if len(page) == 0 && cursor == nil && !triedAugment && w.Augment != nil {
			triedAugment = true
			augmented := w.Augment(cloneParams(w.Params))
			augmented["limit"] = strconv.Itoa(pageSize)
			page, err = w.Client.Fetch(ctx, w.Path, augmented)
			if err != nil {
				return result, err
			}
			result.Pages++
			logx.Infof("walk %s: augmented retry returned %d records", w.Path, len(page))
		}
		if len(page) == 0 {
			return result, nil
		}

		if result.TimeKey == "" {
			key, ok := ResolveTimeKey(page[0], w.TimeKey)
			if !ok {
				logx.Errorf("walk %s: %v in sample %v", w.Path, ErrNoTimeField, page[0])
				return result, ErrNoTimeField
			}
			result.TimeKey = key
		}

		oldest := int64(0)
		sawInstant := false
		for _, rec := range page {
			ms, ok := ToUnixMilli(rec[result.TimeKey])
			if !ok {
				continue
			}
			if !sawInstant || ms < oldest {
				oldest = ms
				sawInstant = true
			}
			if w.Window.Contains(ms) {
				result.Records = append(result.Records, rec)
			}
		}
		if !sawInstant {
			return result, nil
		}
		logx.Infof("walk %s: got=%d oldest=%d cursor=%s", w.Path, len(page), oldest, cursorLabel(cursor))

		if oldest <= w.Window.StartMS {
			return result, nil
		}
		next := oldest - 1
		if cursor != nil && next >= *cursor {
			// Provider ignored the cursor; stop rather than loop.
			return result, nil
		}
		cursor = &next
	}
}

func (w *Walker) fetchPage(ctx context.Context, pageSize int, cursor *int64) ([]Record, error) {
	params := cloneParams(w.Params)
	params["limit"] = strconv.Itoa(pageSize)
	if cursor != nil {
		params[cursorParam] = strconv.FormatInt(*cursor, 10)
	}
	return w.Client.Fetch(ctx, w.Path, params)
}

// looksLikePageSizeRejection matches the provider's "limit too large" style
// rejection by message pattern, the only signal it gives.
func looksLikePageSizeRejection(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "limit")
}

func cloneParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params)+2)
	for k, v := range params {
		out[k] = v
	}
	return out
}

func cursorLabel(cursor *int64) string {
	if cursor == nil {
		return "latest"
	}
	return strconv.FormatInt(*cursor, 10)
}
