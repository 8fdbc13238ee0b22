// Package resample turns raw OASIS interval rows into hourly (or other fixed
// width) means in a local time zone.
package resample

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jgoulah/lmpscraper/internal/frame"
	"github.com/jgoulah/lmpscraper/internal/timeconv"
)

// Column names read from and added to the raw table
const (
	StartGMTColumn   = "INTERVALSTARTTIME_GMT"
	EndGMTColumn     = "INTERVALENDTIME_GMT"
	TypeColumn       = "LMP_TYPE"
	StartLocalColumn = "starttime_local"
	EndLocalColumn   = "endtime_local"
	startUTCColumn   = "starttime_gmt"
	endUTCColumn     = "endtime_gmt"
)

// TotalLMP is the price type tag of the full LMP (as opposed to its
// congestion, loss and energy components)
const TotalLMP = "LMP"

// localLayout keeps the offset so rows on either side of a DST change stay distinct
const localLayout = "2006-01-02 15:04:05-07:00"

// Options controls filtering and bucketing
type Options struct {
	PriceType string        // rows with another LMP_TYPE are discarded; default TotalLMP
	Zone      string        // local zone for bucketing; default timeconv.DefaultZone
	Bucket    time.Duration // bucket width; default one hour
	Year      int           // keep only buckets in this local year; 0 keeps all
}

// Row is one bucket of the aggregated series
type Row struct {
	Start   time.Time
	Means   []float64 // NaN when no sample in the bucket had a value
	Samples []int
}

// Result is the aggregated series. Columns names the numeric raw columns in
// the order Means and Samples use.
type Result struct {
	Columns []string
	Rows    []Row
}

// Hourly filters, sorts and buckets raw, returning one row per bucket
func Hourly(raw *frame.Table, opts Options) (*Result, error) {
	if opts.PriceType == "" {
		opts.PriceType = TotalLMP
	}
	if opts.Bucket <= 0 {
		opts.Bucket = time.Hour
	}

	loc, err := timeconv.LoadZone(opts.Zone)
	if err != nil {
		return nil, err
	}

	tbl := raw.Filter(raw.Equals(TypeColumn, opts.PriceType))

	starts, err := Annotate(tbl, loc)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(starts))
	for i := range order {
		order[i] = i
	}
	sortByTime(order, starts)

	numeric := tbl.NumericColumns()
	result := &Result{Columns: make([]string, len(numeric))}
	for i, c := range numeric {
		result.Columns[i] = tbl.Columns[c]
	}

	if len(order) == 0 {
		return result, nil
	}

	// buckets are aligned to local midnight of the first row's day
	first := starts[order[0]]
	origin := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	bucketOf := func(t time.Time) int {
		return int(math.Floor(float64(t.Sub(origin)) / float64(opts.Bucket)))
	}
	firstBucket := bucketOf(first)
	lastBucket := bucketOf(starts[order[len(order)-1]])

	sums := make([][]float64, lastBucket+1)
	counts := make([][]int, lastBucket+1)
	for _, i := range order {
		b := bucketOf(starts[i])
		if sums[b] == nil {
			sums[b] = make([]float64, len(numeric))
			counts[b] = make([]int, len(numeric))
		}
		for j, c := range numeric {
			v := frame.Float(tbl.Rows[i][c])
			if math.IsNaN(v) {
				continue
			}
			sums[b][j] += v
			counts[b][j]++
		}
	}

	for b := firstBucket; b <= lastBucket; b++ {
		start := origin.Add(time.Duration(b) * opts.Bucket)
		if opts.Year != 0 && start.Year() != opts.Year {
			continue
		}

		row := Row{
			Start:   start,
			Means:   make([]float64, len(numeric)),
			Samples: make([]int, len(numeric)),
		}
		for j := range numeric {
			row.Means[j] = math.NaN()
			if counts[b] != nil && counts[b][j] > 0 {
				row.Means[j] = sums[b][j] / float64(counts[b][j])
				row.Samples[j] = counts[b][j]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// Annotate adds GMT and local start/end columns to tbl and returns the
// parsed local start of every row
func Annotate(tbl *frame.Table, loc *time.Location) ([]time.Time, error) {
	startIdx := tbl.Index(StartGMTColumn)
	if startIdx < 0 && tbl.Len() > 0 {
		return nil, fmt.Errorf("missing column %s", StartGMTColumn)
	}
	endIdx := tbl.Index(EndGMTColumn)

	starts := make([]time.Time, tbl.Len())
	startUTC := make([]string, tbl.Len())
	endUTC := make([]string, tbl.Len())
	startLocal := make([]string, tbl.Len())
	endLocal := make([]string, tbl.Len())

	for i, row := range tbl.Rows {
		s, err := timeconv.ParseGMT(row[startIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		local := timeconv.InLocation(s, loc)
		starts[i] = local
		startUTC[i] = s.Format(time.DateTime)
		startLocal[i] = local.Format(localLayout)

		if endIdx >= 0 {
			e, err := timeconv.ParseGMT(row[endIdx])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			endLocalTime := timeconv.InLocation(e, loc)
			endUTC[i] = e.Format(time.DateTime)
			endLocal[i] = endLocalTime.Format(localLayout)
		}
	}

	addColumn(tbl, startUTCColumn, startUTC)
	if endIdx >= 0 {
		addColumn(tbl, endUTCColumn, endUTC)
	}
	addColumn(tbl, StartLocalColumn, startLocal)
	if endIdx >= 0 {
		addColumn(tbl, EndLocalColumn, endLocal)
	}

	return starts, nil
}

// sortByTime orders row indexes by local start, keeping ties in input order
func sortByTime(order []int, starts []time.Time) {
	sort.SliceStable(order, func(a, b int) bool {
		return starts[order[a]].Before(starts[order[b]])
	})
}

func addColumn(tbl *frame.Table, name string, values []string) {
	i := 0
	tbl.AddColumn(name, func([]string) string {
		v := values[i]
		i++
		return v
	})
}

// Table renders the result with the bucket start restored as a column
func (r *Result) Table() *frame.Table {
	tbl := frame.New(append([]string{StartLocalColumn}, r.Columns...)...)
	for _, row := range r.Rows {
		cells := make([]string, 0, len(row.Means)+1)
		cells = append(cells, row.Start.Format(localLayout))
		for _, v := range row.Means {
			cells = append(cells, frame.FormatFloat(v))
		}
		tbl.Rows = append(tbl.Rows, cells)
	}
	return tbl
}

// Mean returns the mean of column in row, or NaN if the column is unknown
func (r *Result) Mean(row int, column string) float64 {
	for j, c := range r.Columns {
		if c == column {
			return r.Rows[row].Means[j]
		}
	}
	return math.NaN()
}
