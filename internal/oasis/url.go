package oasis

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the OASIS SingleZip endpoint
const DefaultBaseURL = "http://oasis.caiso.com/oasisapi/SingleZip"

// QueryTimeLayout is the startdatetime/enddatetime format OASIS expects
const QueryTimeLayout = "20060102T15:04-0000"

const (
	reportDayAhead      = "PRC_LMP"
	reportRealTime5Min  = "PRC_INTVL_LMP"
	reportRealTime15Min = "PRC_RTPD_LMP"
)

// Market identifies an OASIS market run and its sub-hourly resolution
type Market struct {
	Code       string // DAM, RTM or RTPD
	Resolution string // "" for DAM, "5" or "15" for real time
}

// ParseMarket parses a market descriptor such as "DAM", "RTM5" or "RTPD15"
func ParseMarket(s string) (Market, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Market{}, fmt.Errorf("empty market descriptor")
	}

	i := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return Market{Code: s}, nil
	}
	if i == 0 {
		return Market{}, fmt.Errorf("invalid market descriptor: %s", s)
	}
	return Market{Code: s[:i], Resolution: s[i:]}, nil
}

// String returns the market code and resolution joined, e.g. "RTM5"
func (m Market) String() string {
	return m.Code + m.Resolution
}

// ReportName selects the OASIS query name for the market
func (m Market) ReportName() string {
	if m.Code == "DAM" {
		return reportDayAhead
	}
	if m.Resolution == "5" {
		return reportRealTime5Min
	}
	return reportRealTime15Min
}

// BuildURL builds the SingleZip query for one node over [start, end]
func BuildURL(baseURL string, market Market, node string, start, end time.Time) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	params := url.Values{}
	params.Set("resultformat", "6")
	params.Set("queryname", market.ReportName())
	params.Set("version", "1")
	params.Set("startdatetime", start.Format(QueryTimeLayout))
	params.Set("enddatetime", end.Format(QueryTimeLayout))
	params.Set("market_run_id", market.Code)
	params.Set("node", node)

	return fmt.Sprintf("%s?%s", baseURL, params.Encode())
}
