package oasis

import (
	"context"
	"fmt"
	"time"

	"github.com/jgoulah/lmpscraper/internal/frame"
)

// DateLayout is the day-resolution format used for range bounds
const DateLayout = "20060102"

// Chunk is one request window
type Chunk struct {
	Start    time.Time
	End      time.Time
	Trailing bool
}

// dedupeKeys identify one price observation across chunk boundaries
var dedupeKeys = []string{"INTERVALSTARTTIME_GMT", "NODE", "LMP_TYPE", "MARKET_RUN_ID"}

// ParseDate parses a YYYYMMDD date as midnight GMT
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q (want YYYYMMDD): %w", s, err)
	}
	return t, nil
}

// Plan splits [start, end] into request windows. Full windows of chunkDays
// are emitted while they end before the final date; the remainder, through
// 23:00 on the final date, is always requested as a trailing window.
func Plan(start, end time.Time, chunkDays int) []Chunk {
	if chunkDays <= 0 {
		chunkDays = DefaultChunkDays
	}

	var chunks []Chunk
	cursor := start
	for cursor.AddDate(0, 0, chunkDays).Before(end) {
		next := cursor.AddDate(0, 0, chunkDays)
		chunks = append(chunks, Chunk{Start: cursor, End: next})
		cursor = next
	}

	chunks = append(chunks, Chunk{
		Start:    cursor,
		End:      end.Add(23 * time.Hour),
		Trailing: true,
	})
	return chunks
}

// Plan returns the request windows the client would use for [start, end]
func (c *Client) Plan(start, end time.Time) []Chunk {
	return Plan(start, end, c.chunkDays)
}

// FetchRange retrieves every window of [start, end] for node and row-stacks
// the results. Nothing is kept if any request fails.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time, node string, market Market) (*frame.Table, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end date %s must be after start date %s", end.Format(DateLayout), start.Format(DateLayout))
	}

	chunks := c.Plan(start, end)
	result := frame.New()

	for i, chunk := range chunks {
		reqURL := c.URL(market, node, chunk.Start, chunk.End)
		fmt.Fprintf(c.out, "[%d/%d] Fetching %s %s → %s...\n", i+1, len(chunks),
			market.ReportName(), chunk.Start.Format(QueryTimeLayout), chunk.End.Format(QueryTimeLayout))

		tbl, err := c.Fetch(ctx, reqURL)
		if err != nil {
			return nil, fmt.Errorf("fetching %s → %s: %w",
				chunk.Start.Format(DateLayout), chunk.End.Format(DateLayout), err)
		}

		fmt.Fprintf(c.out, "  ✓ %s\n", sizeOf(tbl))
		result.Append(tbl)
	}

	if c.dedupe {
		if dropped := result.Dedupe(dedupeKeys...); dropped > 0 {
			fmt.Fprintf(c.out, "⚠ Dropped %d duplicate boundary rows\n", dropped)
		}
	}

	return result, nil
}
