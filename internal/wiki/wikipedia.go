package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	pageviewsDate = "20060102"
	touchedLayout = "2006-01-02T15:04:05Z"
	createdLayout = "January 02, 2006"
)

// SearchResult is one opensearch hit.
type SearchResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PageName    string `json:"page_name"`
}

// SearchPages runs an opensearch query against the main namespace.
func (c *Client) SearchPages(ctx context.Context, lang, keyword string, limit int) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("action", "opensearch")
	q.Set("search", keyword)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("namespace", "0")
	q.Set("format", "json")

	// [query, [titles], [descriptions], [urls]]
	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.wikipediaAPI(lang)+"?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	if len(raw) < 4 {
		return nil, errors.New("invalid response format from Wikipedia API")
	}
	var titles, descs, urls []string
	for i, dst := range []*[]string{&titles, &descs, &urls} {
		if err := json.Unmarshal(raw[i+1], dst); err != nil {
			return nil, fmt.Errorf("invalid response format from Wikipedia API: %w", err)
		}
	}
	out := make([]SearchResult, 0, len(titles))
	for i, t := range titles {
		r := SearchResult{Title: t, PageName: strings.ReplaceAll(t, " ", "_")}
		if i < len(descs) {
			r.Description = descs[i]
		}
		if i < len(urls) {
			r.URL = urls[i]
		}
		out = append(out, r)
	}
	return out, nil
}

// PageInfo describes a single article.
type PageInfo struct {
	PageID           int    `json:"page_id"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	Created          string `json:"created"`
	CreatedFormatted string `json:"created_formatted"`
}

type queryPage struct {
	PageID  int     `json:"pageid"`
	Title   string  `json:"title"`
	FullURL string  `json:"fullurl"`
	Touched string  `json:"touched"`
	Missing *string `json:"missing"`
	Links   []struct {
		Title string `json:"title"`
	} `json:"links"`
}

type queryResponse struct {
	Query struct {
		Pages map[string]queryPage `json:"pages"`
	} `json:"query"`
	Continue struct {
		PLContinue string `json:"plcontinue"`
	} `json:"continue"`
}

// firstPage returns the single page of a titles= query, or ErrNotFound.
func (r *queryResponse) firstPage(title string) (queryPage, error) {
	for _, p := range r.Query.Pages {
		if p.Missing != nil {
			break
		}
		return p, nil
	}
	return queryPage{}, fmt.Errorf("page '%s': %w", title, ErrNotFound)
}

// PageInfo returns the identity of an article. The "created" value is the
// page's last-touched timestamp, which is what the action API exposes cheaply.
func (c *Client) PageInfo(ctx context.Context, lang, title string) (*PageInfo, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("titles", title)
	q.Set("prop", "info|pageprops")
	q.Set("inprop", "url|created")
	q.Set("format", "json")

	var resp queryResponse
	if err := c.getJSON(ctx, c.wikipediaAPI(lang)+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	p, err := resp.firstPage(title)
	if err != nil {
		return nil, err
	}
	info := &PageInfo{PageID: p.PageID, Title: p.Title, URL: p.FullURL, Created: "Unknown", CreatedFormatted: "Unknown"}
	if p.Touched != "" {
		info.Created = p.Touched
		if t, err := time.Parse(touchedLayout, p.Touched); err == nil {
			info.CreatedFormatted = t.Format(createdLayout)
		}
	}
	return info, nil
}

// PageviewItem is one data point of the pageviews series.
type PageviewItem struct {
	Timestamp string `json:"timestamp"`
	Views     int    `json:"views"`
}

// Pageviews is a daily pageviews series over an inclusive date range.
type Pageviews struct {
	Title      string         `json:"page_title"`
	TotalViews int            `json:"total_views"`
	DataPoints int            `json:"data_points"`
	Start      string         `json:"start_date"`
	End        string         `json:"end_date"`
	Items      []PageviewItem `json:"views"`
}

// Pageviews fetches daily views for title between start and end. Pages the
// pageviews API does not know yield zero views rather than an error.
func (c *Client) Pageviews(ctx context.Context, lang, title string, start, end time.Time) (*Pageviews, error) {
	pv := &Pageviews{Title: title, Start: start.Format(pageviewsDate), End: end.Format(pageviewsDate)}
	u := fmt.Sprintf("%s/metrics/pageviews/per-article/%s.wikipedia/all-access/all-agents/%s/daily/%s/%s",
		c.ep.Pageviews, lang, url.PathEscape(strings.ReplaceAll(title, " ", "_")), pv.Start, pv.End)

	var body struct {
		Items []PageviewItem `json:"items"`
	}
	if err := c.getJSON(ctx, u, &body); err != nil {
		if errors.Is(err, ErrNotFound) {
			return pv, nil
		}
		return nil, err
	}
	pv.Items = body.Items
	pv.DataPoints = len(body.Items)
	for _, it := range body.Items {
		pv.TotalViews += it.Views
	}
	return pv, nil
}

// Statistics summarises an article's audience.
type Statistics struct {
	PastMonthTotalViews         int     `json:"past_month_total_views"`
	PastYearTotalViews          int     `json:"past_year_total_views"`
	DailyViewsCurrentMonth      int     `json:"daily_views_current_month"`
	DailyViewsLastYearSameMonth int     `json:"daily_views_last_year_same_month"`
	YoYChangePercent            float64 `json:"yoy_change_percent"`
}

// PageStats pairs page identity with its audience statistics.
type PageStats struct {
	PageInfo   PageInfo   `json:"page_info"`
	Statistics Statistics `json:"statistics"`
}

type window struct {
	start, end time.Time
	total      int
}

// ComprehensiveStats gathers page info and four pageview windows: the past
// 30 days, the past 365 days, the current month to date and the same span
// one year earlier.
func (c *Client) ComprehensiveStats(ctx context.Context, lang, title string) (*PageStats, error) {
	info, err := c.PageInfo(ctx, lang, title)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	windows := []*window{
		{start: now.AddDate(0, 0, -30), end: now},
		{start: now.AddDate(0, 0, -365), end: now},
		{start: monthStart, end: now},
		{start: monthStart.AddDate(0, 0, -365), end: now.AddDate(0, 0, -365)},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range windows {
		g.Go(func() error {
			pv, err := c.Pageviews(gctx, lang, title, w.start, w.end)
			if err != nil {
				return err
			}
			w.total = pv.TotalViews
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cur, last := windows[2], windows[3]
	curDays := now.Day()
	lastDays := daysBetween(last.start, last.end) + 1
	dailyCur := float64(cur.total) / float64(curDays)
	var dailyLast float64
	if lastDays > 0 {
		dailyLast = float64(last.total) / float64(lastDays)
	}

	return &PageStats{
		PageInfo: *info,
		Statistics: Statistics{
			PastMonthTotalViews:         windows[0].total,
			PastYearTotalViews:          windows[1].total,
			DailyViewsCurrentMonth:      int(math.RoundToEven(dailyCur)),
			DailyViewsLastYearSameMonth: int(math.RoundToEven(dailyLast)),
			YoYChangePercent:            yoyChange(dailyCur, dailyLast),
		},
	}, nil
}

// yoyChange returns the percent change rounded to one decimal. With no
// baseline it is 0 when both are zero and 100 otherwise.
func yoyChange(cur, last float64) float64 {
	if last > 0 {
		return math.Round((cur-last)/last*1000) / 10
	}
	if cur == 0 {
		return 0
	}
	return 100
}

func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
