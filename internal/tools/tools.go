// Package tools implements the Wikipedia and Wikidata tools served by
// mcp-wiki. Handlers decode their arguments from registry.Args, call the
// upstream services and return JSON-serializable result structs.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"mcp-wiki/internal/registry"
	"mcp-wiki/internal/wiki"
)

// Wikipedia is the subset of the Wikipedia client the tools use.
type Wikipedia interface {
	SearchPages(ctx context.Context, lang, keyword string, limit int) ([]wiki.SearchResult, error)
	ComprehensiveStats(ctx context.Context, lang, title string) (*wiki.PageStats, error)
	InternalLinks(ctx context.Context, lang, title string, maxLinks int) (*wiki.InternalLinks, error)
}

// Wikidata is the subset of the Wikidata client the tools use.
type Wikidata interface {
	SearchEntities(ctx context.Context, query, lang string, limit int) ([]wiki.EntitySearchResult, error)
	EntityData(ctx context.Context, id string) (*wiki.Entity, error)
	EntityLabels(ctx context.Context, ids []string, lang string) (map[string]wiki.EntitySummary, error)
	ExternalIdentifiers(ctx context.Context, e *wiki.Entity, lang string, maxProps, maxValues int) (map[string]wiki.Identifier, error)
}

// PageFetcher downloads arbitrary web pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (string, error)
}

// Options tunes the toolset. Zero values select defaults.
type Options struct {
	DefaultLanguage string
	MaxResults      int
	Logger          *slog.Logger
}

// Toolset holds the upstream services shared by every tool.
type Toolset struct {
	wp         Wikipedia
	wd         Wikidata
	pages      PageFetcher
	lang       string
	maxResults int
	logger     *slog.Logger
}

// New constructs a Toolset. A single *wiki.Client satisfies all three services.
func New(wp Wikipedia, wd Wikidata, pages PageFetcher, opts Options) *Toolset {
	t := &Toolset{wp: wp, wd: wd, pages: pages, lang: opts.DefaultLanguage, maxResults: opts.MaxResults, logger: opts.Logger}
	if !slices.Contains(supportedLanguages, t.lang) {
		t.lang = "en"
	}
	t.maxResults = clamp(t.maxResults, 1, maxSearchResults, 20)
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

type definition struct {
	name        string
	description string
	handler     registry.HandlerFunc
}

func (t *Toolset) definitions() []definition {
	return []definition{
		{"search_wikipedia_keyword", "Search Wikipedia pages for a keyword and return them with audience statistics: page creation date, views over the past month and year, average daily views this month and the same month last year, and the year-over-year change. Arguments: keyword (required), language (en, fr, de, es, it, pt, nl, pl, ru, ja, zh, ar, ko, hi), max_results (1-50), include_stats (default true).", t.searchWikipediaKeyword},
		{"get_wikipedia_page_stats", "Return page information and audience statistics for one Wikipedia page. Arguments: page_title (required), language.", t.getWikipediaPageStats},
		{"get_wikipedia_internal_links", "Find the Wikipedia page for a keyword and list its internal links to other articles, optionally with view statistics for the first linked pages. Arguments: keyword (required), language (default fr), include_stats (default false), max_links_with_stats (1-100), max_internal_links (1-2000).", t.getWikipediaInternalLinks},
		{"explore_wikidata_entity", "Search Wikidata for a term, select the best match and return the entity with its relations and the labels of linked entities. Arguments: query (required), language (default fr), search_limit (1-50), max_linked_entities (1-500).", t.exploreWikidataEntity},
		{"deep_dive_wikidata_topic", "Like explore_wikidata_entity, and also return sitelinks to Wikimedia projects and external identifiers as clickable URLs. Arguments: query (required), language (default fr), search_limit, max_linked_entities, max_identifier_properties (1-500), max_values_per_identifier (1-25).", t.deepDiveWikidataTopic},
		{"resolve_wikidata_entities", "Resolve a batch of terms to Wikidata entities in parallel, returning unique entities with the terms that matched them and the terms that could not be resolved. Arguments: entities (required list of strings), language (default fr), search_limit (1-50), max_concurrency (1-32).", t.resolveWikidataEntities},
		{"resolve_wikidata_entities_from_text", "Extract candidate proper nouns from free text and resolve them to Wikidata entities. Arguments: text (required), language (default fr), max_terms (1-200), search_limit, max_concurrency.", t.resolveWikidataEntitiesFromText},
		{"resolve_wikidata_entities_from_urls", "Fetch web pages, extract candidate terms from their title, first heading and Wikipedia links, and resolve them to Wikidata entities. Arguments: urls (required list), language (default fr), max_terms_per_url (1-200), search_limit, max_concurrency, timeout_seconds.", t.resolveWikidataEntitiesFromURLs},
	}
}

// Register adds every tool of t to r.
func Register(r registry.Registrar, t *Toolset) error {
	for _, d := range t.definitions() {
		if err := r.Register(d.name, d.handler, d.description); err != nil {
			return fmt.Errorf("register %s: %w", d.name, err)
		}
	}
	return nil
}

// clamp returns v when it lies in [lo, hi] and def otherwise.
func clamp(v, lo, hi, def int) int {
	if v < lo || v > hi {
		return def
	}
	return v
}

// intArg reads an integer argument and clamps it back to def when out of range.
func intArg(args registry.Args, name string, lo, hi, def int) (int, error) {
	v, err := args.Int(name, def)
	if err != nil {
		return 0, err
	}
	return clamp(v, lo, hi, def), nil
}
