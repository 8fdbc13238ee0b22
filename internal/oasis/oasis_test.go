package oasis

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeZip(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeOASIS answers every query with rowsPerCall LMP rows and records the
// query windows it was asked for
type fakeOASIS struct {
	mu          sync.Mutex
	queries     []url.Values
	rowsPerCall int
}

func (f *fakeOASIS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query())
	call := len(f.queries)
	f.mu.Unlock()

	var csv bytes.Buffer
	csv.WriteString("INTERVALSTARTTIME_GMT,INTERVALENDTIME_GMT,NODE,MARKET_RUN_ID,LMP_TYPE,MW\n")
	for i := 0; i < f.rowsPerCall; i++ {
		fmt.Fprintf(&csv, "2016-01-%02dT08:%02d:00-00:00,2016-01-%02dT08:%02d:00-00:00,N1,RTM,LMP,%d\n",
			call, i*5, call, i*5+5, call*100+i)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, _ := zw.Create(fmt.Sprintf("report_%d.csv", call))
	entry.Write(csv.Bytes())
	zw.Close()

	w.Header().Set("Content-Type", "application/x-zip-compressed")
	w.Write(buf.Bytes())
}

func newTestClient(baseURL string) *Client {
	c := NewClient(baseURL, 0)
	c.SetOutput(io.Discard)
	return c
}

func TestReportName(t *testing.T) {
	assert.Equal(t, "PRC_LMP", Market{Code: "DAM"}.ReportName())
	assert.Equal(t, "PRC_INTVL_LMP", Market{Code: "RTM", Resolution: "5"}.ReportName())
	assert.Equal(t, "PRC_RTPD_LMP", Market{Code: "RTPD", Resolution: "15"}.ReportName())
	assert.Equal(t, "PRC_RTPD_LMP", Market{Code: "RTM", Resolution: ""}.ReportName())
}

func TestParseMarket(t *testing.T) {
	m, err := ParseMarket("rtm5")
	require.NoError(t, err)
	assert.Equal(t, Market{Code: "RTM", Resolution: "5"}, m)
	assert.Equal(t, "RTM5", m.String())

	m, err = ParseMarket("DAM")
	require.NoError(t, err)
	assert.Equal(t, Market{Code: "DAM"}, m)

	_, err = ParseMarket("")
	assert.Error(t, err)
	_, err = ParseMarket("15")
	assert.Error(t, err)
}

func TestBuildURL(t *testing.T) {
	raw := BuildURL("", Market{Code: "RTM", Resolution: "5"}, "CONTADNA_1_N001",
		date("20160101"), date("20160111"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "oasis.caiso.com", u.Host)
	assert.Equal(t, "/oasisapi/SingleZip", u.Path)

	q := u.Query()
	assert.Equal(t, "6", q.Get("resultformat"))
	assert.Equal(t, "PRC_INTVL_LMP", q.Get("queryname"))
	assert.Equal(t, "1", q.Get("version"))
	assert.Equal(t, "20160101T00:00-0000", q.Get("startdatetime"))
	assert.Equal(t, "20160111T00:00-0000", q.Get("enddatetime"))
	assert.Equal(t, "RTM", q.Get("market_run_id"))
	assert.Equal(t, "CONTADNA_1_N001", q.Get("node"))
}

func TestPlan_ShortRange(t *testing.T) {
	for n := 1; n <= 10; n++ {
		start := date("20160101")
		end := start.AddDate(0, 0, n)

		chunks := Plan(start, end, 10)
		require.Len(t, chunks, 1, "n=%d", n)
		assert.True(t, chunks[0].Trailing)
		assert.Equal(t, start, chunks[0].Start)
		assert.Equal(t, end.Add(23*time.Hour), chunks[0].End)
	}
}

func TestPlan_TwentyFiveDays(t *testing.T) {
	chunks := Plan(date("20160101"), date("20160126"), 10)
	require.Len(t, chunks, 3)

	assert.Equal(t, Chunk{Start: date("20160101"), End: date("20160111")}, chunks[0])
	assert.Equal(t, Chunk{Start: date("20160111"), End: date("20160121")}, chunks[1])
	assert.Equal(t, Chunk{Start: date("20160121"), End: date("20160126").Add(23 * time.Hour), Trailing: true}, chunks[2])
}

func TestPlan_ConfigurableChunk(t *testing.T) {
	chunks := Plan(date("20160101"), date("20160201"), 31)
	assert.Len(t, chunks, 1)

	chunks = Plan(date("20160101"), date("20160201"), 7)
	assert.Len(t, chunks, 5)
}

func TestFetch(t *testing.T) {
	body := makeZip(t, "20160101_20160111_PRC_INTVL_LMP_RTM_20180611_10_12_13_v1.csv",
		"INTERVALSTARTTIME_GMT,LMP_TYPE,MW\n2016-01-01T08:00:00-00:00,LMP,21.5\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	tbl, err := newTestClient(srv.URL).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"INTERVALSTARTTIME_GMT", "LMP_TYPE", "MW"}, tbl.Columns)
	assert.Equal(t, 1, tbl.Len())
}

func TestFetch_FollowsRedirect(t *testing.T) {
	body := makeZip(t, "report.csv", "A,B\n1,2\n")
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tbl, err := newTestClient(srv.URL).Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestFetch_NoCSVEntry(t *testing.T) {
	body := makeZip(t, "INVALID_REQUEST.xml", "<error/>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNoCSV)
}

func TestFetch_NotAZip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "opening ZIP")
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), srv.URL)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "too many requests")
}

func TestFetch_AcceptsAny2xx(t *testing.T) {
	body := makeZip(t, "report.csv", "NODE,MW\nN1,12.5\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		w.Write(body)
	}))
	defer srv.Close()

	tbl, err := newTestClient(srv.URL).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "12.5", tbl.Get(0, "MW"))
}

func TestFetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("never read"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchRange_ShortRangeSingleFetch(t *testing.T) {
	fake := &fakeOASIS{rowsPerCall: 3}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tbl, err := newTestClient(srv.URL).FetchRange(context.Background(),
		date("20160101"), date("20160108"), "N1", Market{Code: "RTM", Resolution: "5"})
	require.NoError(t, err)

	require.Len(t, fake.queries, 1)
	assert.Equal(t, "20160101T00:00-0000", fake.queries[0].Get("startdatetime"))
	assert.Equal(t, "20160108T23:00-0000", fake.queries[0].Get("enddatetime"))
	assert.Equal(t, 3, tbl.Len())
}

func TestFetchRange_TwentyFiveDays(t *testing.T) {
	fake := &fakeOASIS{rowsPerCall: 4}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tbl, err := newTestClient(srv.URL).FetchRange(context.Background(),
		date("20160101"), date("20160126"), "N1", Market{Code: "DAM"})
	require.NoError(t, err)

	require.Len(t, fake.queries, 3)
	assert.Equal(t, "20160101T00:00-0000", fake.queries[0].Get("startdatetime"))
	assert.Equal(t, "20160111T00:00-0000", fake.queries[0].Get("enddatetime"))
	assert.Equal(t, "20160111T00:00-0000", fake.queries[1].Get("startdatetime"))
	assert.Equal(t, "20160121T00:00-0000", fake.queries[1].Get("enddatetime"))
	assert.Equal(t, "20160121T00:00-0000", fake.queries[2].Get("startdatetime"))
	assert.Equal(t, "20160126T23:00-0000", fake.queries[2].Get("enddatetime"))
	for _, q := range fake.queries {
		assert.Equal(t, "PRC_LMP", q.Get("queryname"))
		assert.Equal(t, "DAM", q.Get("market_run_id"))
	}

	assert.Equal(t, 12, tbl.Len())
	assert.Equal(t, "100", tbl.Get(0, "MW"))
	assert.Equal(t, "303", tbl.Get(11, "MW"))
}

func TestFetchRange_Dedupe(t *testing.T) {
	body := makeZip(t, "r.csv", "INTERVALSTARTTIME_GMT,NODE,LMP_TYPE,MARKET_RUN_ID,MW\n"+
		"2016-01-11T00:00:00-00:00,N1,LMP,DAM,10\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	tbl, err := c.FetchRange(context.Background(), date("20160101"), date("20160126"), "N1", Market{Code: "DAM"})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())

	c.SetDedupe(true)
	tbl, err = c.FetchRange(context.Background(), date("20160101"), date("20160126"), "N1", Market{Code: "DAM"})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestFetchRange_FailureDiscardsChunks(t *testing.T) {
	var calls int
	body := makeZip(t, "r.csv", "A\n1\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	tbl, err := newTestClient(srv.URL).FetchRange(context.Background(),
		date("20160101"), date("20160126"), "N1", Market{Code: "DAM"})
	assert.Error(t, err)
	assert.Nil(t, tbl)
	assert.Equal(t, 2, calls)
}

func TestFetchRange_InvalidRange(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:0").FetchRange(context.Background(),
		date("20160110"), date("20160101"), "N1", Market{Code: "DAM"})
	assert.Error(t, err)
}
