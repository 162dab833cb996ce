package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	responses []scriptedResponse
	calls     []map[string]string
}

type scriptedResponse struct {
	records []Record
	err     error
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ string, params map[string]string) ([]Record, error) {
	f.calls = append(f.calls, params)
	if len(f.responses) == 0 {
		return nil, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp.records, resp.err
}

func secRecord(sec int64, close float64) Record {
	return Record{"time": float64(sec), "close": close}
}

func secWindow(startSec, endSec int64) Window {
	return Window{StartMS: startSec * 1000, EndMS: endSec * 1000}
}

func TestWalkPagesBackwardThroughWindow(t *testing.T) {
	base := int64(1700000000)
	fetcher := &scriptedFetcher{responses: []scriptedResponse{
		{records: []Record{secRecord(base+100, 1), secRecord(base+90, 2), secRecord(base+80, 3)}},
		{records: []Record{secRecord(base+79, 4), secRecord(base+60, 5), secRecord(base+50, 6)}},
	}}
	w := &Walker{
		Client: fetcher,
		Path:   "/api/futures/price/history",
		Params: map[string]string{"symbol": "BTCUSDT"},
		Window: secWindow(base+60, base+100),
	}

	result, err := w.Walk(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Pages)
	require.Equal(t, "time", result.TimeKey)
	// base+50 falls below the window start and is dropped.
	require.Len(t, result.Records, 5)

	require.Len(t, fetcher.calls, 2)
	require.NotContains(t, fetcher.calls[0], "end_time")
	require.Equal(t, "4500", fetcher.calls[0]["limit"])
	// Next cursor is one millisecond before the oldest instant seen.
	require.Equal(t, "1700000079999", fetcher.calls[1]["end_time"])
}

func TestWalkStopsWhenWindowStartReached(t *testing.T) {
	base := int64(1700000000)
	fetcher := &scriptedFetcher{responses: []scriptedResponse{
		{records: []Record{secRecord(base+10, 1), secRecord(base, 2)}},
	}}
	w := &Walker{Client: fetcher, Path: "/x", Window: secWindow(base, base+100)}

	result, err := w.Walk(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Pages)
	require.Len(t, result.Records, 2)
}

func TestWalkRetriesAtFloorOnLimitRejection(t *testing.T) {
	base := int64(1700000000)
	fetcher := &scriptedFetcher{responses: []scriptedResponse{
		{err: errors.New("coinglass: provider code 400: limit exceeds maximum")},
		{records: []Record{secRecord(base, 1)}},
	}}
	w := &Walker{
		Client:   fetcher,
		Path:     "/x",
		Window:   secWindow(base, base+100),
		PageSize: 9000,
	}

	result, err := w.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Len(t, fetcher.calls, 2)
	require.Equal(t, "9000", fetcher.calls[0]["limit"])
	require.Equal(t, "4500", fetcher.calls[1]["limit"])
}

func TestWalkDoesNotRetryUnrelatedErrors(t *testing.T) {
	wantErr := errors.New("connection refused")
	fetcher := &scriptedFetcher{responses: []scriptedResponse{{err: wantErr}}}
	w := &Walker{Client: fetcher, Path: "/x", Window: secWindow(0, 100)}

	result, err := w.Walk(context.Background())
	require.ErrorIs(t, err, wantErr)
	require.Empty(t, result.Records)
	require.Len(t, fetcher.calls, 1)
}

func TestWalkAugmentedRetryOnEmptyFirstPage(t *testing.T) {
	base := int64(1700000000)
	fetcher := &scriptedFetcher{responses: []scriptedResponse{
		{records: nil},
		{records: []Record{secRecord(base, 1)}},
	}}
	w := &Walker{
		Client: fetcher,
		Path:   "/api/spot/price/history",
		Params: map[string]string{"symbol": "BTCUSDT"},
		Window: secWindow(base, base+100),
		Augment: func(p map[string]string) map[string]string {
			p["pair"] = p["symbol"]
			p["type"] = "spot"
			return p
		},
	}

	result, err := w.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Len(t, fetcher.calls, 2)
	require.Equal(t, "BTCUSDT", fetcher.calls[1]["pair"])
	require.Equal(t, "spot", fetcher.calls[1]["type"])
	require.Equal(t, "4500", fetcher.calls[1]["limit"])
}

func TestWalkEmptyWithoutAugment(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []scriptedResponse{{records: nil}}}
	w := &Walker{Client: fetcher, Path: "/x", Window: secWindow(0, 100)}

	result, err := w.Walk(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Records)
	require.Len(t, fetcher.calls, 1)
}

func TestWalkNoTimeField(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []scriptedResponse{
		{records: []Record{{"open": float64(1), "close": float64(2)}}},
	}}
	w := &Walker{Client: fetcher, Path: "/x", Window: secWindow(0, 100)}

	result, err := w.Walk(context.Background())
	require.ErrorIs(t, err, ErrNoTimeField)
	require.Empty(t, result.Records)
	require.Equal(t, 1, result.Pages)
}

func TestWalkStopsWhenCursorIgnored(t *testing.T) {
	base := int64(1700000000)
	page := []Record{secRecord(base+100, 1), secRecord(base+90, 2)}
	fetcher := &scriptedFetcher{responses: []scriptedResponse{
		{records: page},
		{records: page},
		{records: page},
	}}
	w := &Walker{Client: fetcher, Path: "/x", Window: secWindow(base, base+200)}

	result, err := w.Walk(context.Background())
	require.NoError(t, err)
	// The repeated page proves the cursor is ignored; the walk must not spin.
	require.Equal(t, 2, result.Pages)
}
