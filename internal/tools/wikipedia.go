package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"mcp-wiki/internal/registry"
	"mcp-wiki/internal/wiki"
)

const (
	maxSearchResults = 50
	// statsConcurrency bounds parallel statistics lookups of one search.
	statsConcurrency = 4
)

var supportedLanguages = []string{"en", "fr", "de", "es", "it", "pt", "nl", "pl", "ru", "ja", "zh", "ar", "ko", "hi"}

type pageStatistics struct {
	PastMonthViews          int     `json:"past_month_views"`
	PastYearViews           int     `json:"past_year_views"`
	DailyViewsCurrentMonth  int     `json:"daily_views_current_month"`
	DailyViewsLastYearMonth int     `json:"daily_views_last_year_month"`
	YoYChangePercent        float64 `json:"yoy_change_percent"`
}

type enrichedPage struct {
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	PageCreated string          `json:"page_created"`
	Statistics  *pageStatistics `json:"statistics"`
	Error       string          `json:"error,omitempty"`
}

type keywordSearchResult struct {
	Success      bool   `json:"success"`
	Keyword      string `json:"keyword"`
	Language     string `json:"language"`
	TotalResults int    `json:"total_results"`
	Pages        any    `json:"pages"`
	Message      string `json:"message,omitempty"`
}

func (t *Toolset) searchWikipediaKeyword(ctx context.Context, args registry.Args) (any, error) {
	keyword, err := args.RequiredString("keyword")
	if err != nil {
		return nil, err
	}
	lang, err := args.String("language", t.lang)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(supportedLanguages, lang) {
		return nil, &registry.ArgumentError{Name: "language", Reason: fmt.Sprintf("%q not supported. Supported languages: %s", lang, strings.Join(supportedLanguages, ", "))}
	}
	maxResults, err := args.Int("max_results", t.maxResults)
	if err != nil {
		return nil, err
	}
	if maxResults < 1 || maxResults > maxSearchResults {
		return nil, &registry.ArgumentError{Name: "max_results", Reason: fmt.Sprintf("must be between 1 and %d", maxSearchResults)}
	}
	includeStats, err := args.Bool("include_stats", true)
	if err != nil {
		return nil, err
	}

	t.logger.InfoContext(ctx, "searching wikipedia", "keyword", keyword, "language", lang)
	results, err := t.wp.SearchPages(ctx, lang, keyword, maxResults)
	if err != nil {
		return nil, err
	}
	out := keywordSearchResult{Success: true, Keyword: keyword, Language: lang, TotalResults: len(results), Pages: results}
	if len(results) == 0 {
		out.Pages = []wiki.SearchResult{}
		out.Message = "No Wikipedia pages found for this keyword"
		return out, nil
	}
	if !includeStats {
		return out, nil
	}

	t.logger.InfoContext(ctx, "fetching page statistics", "pages", len(results))
	pages := make([]enrichedPage, len(results))
	var g errgroup.Group
	g.SetLimit(statsConcurrency)
	for i, r := range results {
		g.Go(func() error {
			pages[i] = t.enrichPage(ctx, lang, r)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out.Pages = pages
	return out, nil
}

func (t *Toolset) enrichPage(ctx context.Context, lang string, r wiki.SearchResult) enrichedPage {
	p := enrichedPage{Title: r.Title, URL: r.URL, Description: r.Description, PageCreated: "Unknown"}
	st, err := t.wp.ComprehensiveStats(ctx, lang, r.Title)
	if err != nil {
		t.logger.WarnContext(ctx, "page statistics unavailable", "title", r.Title, "error", err)
		p.Error = "Statistics not available for this page"
		return p
	}
	p.PageCreated = st.PageInfo.CreatedFormatted
	p.Statistics = &pageStatistics{
		PastMonthViews:          st.Statistics.PastMonthTotalViews,
		PastYearViews:           st.Statistics.PastYearTotalViews,
		DailyViewsCurrentMonth:  st.Statistics.DailyViewsCurrentMonth,
		DailyViewsLastYearMonth: st.Statistics.DailyViewsLastYearSameMonth,
		YoYChangePercent:        st.Statistics.YoYChangePercent,
	}
	return p
}

type pageStatsResult struct {
	Success bool `json:"success"`
	*wiki.PageStats
}

func (t *Toolset) getWikipediaPageStats(ctx context.Context, args registry.Args) (any, error) {
	title, err := args.RequiredString("page_title")
	if err != nil {
		return nil, err
	}
	lang, err := args.String("language", t.lang)
	if err != nil {
		return nil, err
	}
	st, err := t.wp.ComprehensiveStats(ctx, lang, title)
	if err != nil {
		return nil, err
	}
	return pageStatsResult{Success: true, PageStats: st}, nil
}

type linkWithStats struct {
	wiki.InternalLink
	Statistics *wiki.Statistics `json:"statistics,omitempty"`
	PageInfo   *wiki.PageInfo   `json:"page_info,omitempty"`
	StatsError string           `json:"stats_error,omitempty"`
}

type internalLinksResult struct {
	Success         bool            `json:"success"`
	PageTitle       string          `json:"page_title"`
	PageID          int             `json:"page_id"`
	Total           int             `json:"total_internal_links"`
	Links           []linkWithStats `json:"internal_links"`
	Partial         bool            `json:"partial"`
	MaxLinks        int             `json:"max_links"`
	StatsIncluded   bool            `json:"stats_included"`
	StatsCount      int             `json:"stats_count,omitempty"`
	SourcePageURL   string          `json:"source_page_url"`
	SourcePageTitle string          `json:"source_page_title"`
	KeywordSearched string          `json:"keyword_searched"`
	Language        string          `json:"language"`
}

func (t *Toolset) getWikipediaInternalLinks(ctx context.Context, args registry.Args) (any, error) {
	keyword, err := args.RequiredString("keyword")
	if err != nil {
		return nil, err
	}
	lang, err := args.String("language", "fr")
	if err != nil {
		return nil, err
	}
	includeStats, err := args.Bool("include_stats", false)
	if err != nil {
		return nil, err
	}
	maxWithStats, err := intArg(args, "max_links_with_stats", 1, 100, 20)
	if err != nil {
		return nil, err
	}
	maxLinks, err := intArg(args, "max_internal_links", 1, 2000, 200)
	if err != nil {
		return nil, err
	}

	hits, err := t.wp.SearchPages(ctx, lang, keyword, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("no Wikipedia page found for keyword '%s'", keyword)
	}
	first := hits[0]
	t.logger.InfoContext(ctx, "extracting internal links", "page", first.Title, "language", lang)

	links, err := t.wp.InternalLinks(ctx, lang, first.Title, maxLinks)
	if err != nil {
		return nil, err
	}
	out := internalLinksResult{
		Success:         true,
		PageTitle:       links.PageTitle,
		PageID:          links.PageID,
		Total:           links.Total,
		Links:           make([]linkWithStats, len(links.Links)),
		Partial:         links.Partial,
		MaxLinks:        links.MaxLinks,
		SourcePageURL:   first.URL,
		SourcePageTitle: first.Title,
		KeywordSearched: keyword,
		Language:        lang,
	}
	for i, l := range links.Links {
		out.Links[i].InternalLink = l
	}
	if !includeStats || len(out.Links) == 0 {
		return out, nil
	}

	// Sequential to keep the load on the pageviews API modest.
	n := min(maxWithStats, len(out.Links))
	for i := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l := &out.Links[i]
		st, err := t.wp.ComprehensiveStats(ctx, lang, l.LinkedPageTitle)
		if err != nil {
			l.StatsError = err.Error()
			continue
		}
		l.Statistics = &st.Statistics
		l.PageInfo = &st.PageInfo
	}
	t.logger.InfoContext(ctx, "link statistics fetched", "count", n)
	out.StatsIncluded = true
	out.StatsCount = n
	return out, nil
}
