package tools

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mcp-wiki/internal/registry"
	"mcp-wiki/internal/wiki"
)

const wikidataWiki = "https://www.wikidata.org/wiki/"

type entityRef struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type noEntityResult struct {
	Success    bool                      `json:"success"`
	Query      string                    `json:"query"`
	Language   string                    `json:"language"`
	Message    string                    `json:"message"`
	Entity     *entityRef                `json:"entity"`
	Candidates []wiki.EntitySearchResult `json:"candidates"`
}

type exploreResult struct {
	Success             bool                          `json:"success"`
	Query               string                        `json:"query"`
	Language            string                        `json:"language"`
	Entity              entityRef                     `json:"entity"`
	Candidates          []wiki.EntitySearchResult     `json:"candidates"`
	Relations           map[string]wiki.Relation      `json:"relations"`
	LinkedEntities      map[string]wiki.EntitySummary `json:"linked_entities"`
	LinkedEntitiesCount int                           `json:"linked_entities_count"`
}

type deepDiveResult struct {
	exploreResult
	Sitelinks        map[string]wiki.Sitelink   `json:"sitelinks"`
	SitelinksCount   int                        `json:"sitelinks_count"`
	Identifiers      map[string]wiki.Identifier `json:"identifiers"`
	IdentifiersCount int                        `json:"identifiers_count"`
}

type exploreParams struct {
	query, lang    string
	searchLimit    int
	maxLinked      int
	maxIdentifiers int
	maxValues      int
}

func exploreArgs(args registry.Args, deep bool) (exploreParams, error) {
	var p exploreParams
	var err error
	if p.query, err = args.RequiredString("query"); err != nil {
		return p, err
	}
	if p.lang, err = args.String("language", "fr"); err != nil {
		return p, err
	}
	if p.searchLimit, err = intArg(args, "search_limit", 1, 50, 5); err != nil {
		return p, err
	}
	if p.maxLinked, err = intArg(args, "max_linked_entities", 1, 500, 200); err != nil {
		return p, err
	}
	if !deep {
		return p, nil
	}
	if p.maxIdentifiers, err = intArg(args, "max_identifier_properties", 1, 500, 200); err != nil {
		return p, err
	}
	if p.maxValues, err = intArg(args, "max_values_per_identifier", 1, 25, 5); err != nil {
		return p, err
	}
	return p, nil
}

func (t *Toolset) exploreWikidataEntity(ctx context.Context, args registry.Args) (any, error) {
	p, err := exploreArgs(args, false)
	if err != nil {
		return nil, err
	}
	res, _, err := t.explore(ctx, p)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Toolset) deepDiveWikidataTopic(ctx context.Context, args registry.Args) (any, error) {
	p, err := exploreArgs(args, true)
	if err != nil {
		return nil, err
	}
	res, entity, err := t.explore(ctx, p)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return res, nil
	}
	out := deepDiveResult{exploreResult: res.(exploreResult)}
	out.Sitelinks = wiki.Sitelinks(entity)
	out.SitelinksCount = len(out.Sitelinks)

	ids, err := t.wd.ExternalIdentifiers(ctx, entity, p.lang, p.maxIdentifiers, p.maxValues)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.logger.WarnContext(ctx, "external identifiers unavailable", "entity", entity.ID, "error", err)
		ids = map[string]wiki.Identifier{}
	}
	out.Identifiers = ids
	out.IdentifiersCount = len(ids)
	return out, nil
}

// explore searches for p.query, selects the first hit and gathers its
// relations. It returns a noEntityResult and a nil entity when nothing
// matched.
func (t *Toolset) explore(ctx context.Context, p exploreParams) (any, *wiki.Entity, error) {
	results, err := t.wd.SearchEntities(ctx, p.query, p.lang, p.searchLimit)
	if err != nil {
		return nil, nil, err
	}
	if len(results) == 0 {
		return noEntityResult{
			Success:    true,
			Query:      p.query,
			Language:   p.lang,
			Message:    "No Wikidata entity found for this query",
			Candidates: []wiki.EntitySearchResult{},
		}, nil, nil
	}

	selected := results[0]
	entity, err := t.wd.EntityData(ctx, selected.ID)
	if err != nil {
		return nil, nil, err
	}

	relations, linkedIDs := wiki.LinkedEntities(entity, p.maxLinked)
	linked, err := t.wd.EntityLabels(ctx, linkedIDs, p.lang)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		t.logger.WarnContext(ctx, "linked entity labels unavailable", "entity", selected.ID, "error", err)
		linked = make(map[string]wiki.EntitySummary, len(linkedIDs))
		for _, id := range linkedIDs {
			linked[id] = wiki.EntitySummary{ID: id, URL: wikidataWiki + id}
		}
	}

	return exploreResult{
		Success:  true,
		Query:    p.query,
		Language: p.lang,
		Entity: entityRef{
			ID:          selected.ID,
			Label:       cmp.Or(entity.Label(p.lang), selected.Label),
			Description: cmp.Or(entity.Description(p.lang), selected.Description),
			URL:         cmp.Or(selected.URL, wikidataWiki+selected.ID),
		},
		Candidates:          results,
		Relations:           relations,
		LinkedEntities:      linked,
		LinkedEntitiesCount: len(linked),
	}, entity, nil
}

type resolvedEntity struct {
	entityRef
	MatchedTerms []string `json:"matched_terms"`
}

type termResolution struct {
	Term       string                    `json:"term"`
	Success    bool                      `json:"success"`
	Entity     *entityRef                `json:"entity"`
	Candidates []wiki.EntitySearchResult `json:"candidates,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

type resolveResult struct {
	Success       bool             `json:"success"`
	Language      string           `json:"language"`
	TermsCount    int              `json:"terms_count"`
	EntitiesCount int              `json:"entities_count"`
	Entities      []resolvedEntity `json:"entities"`
	Unresolved    []termResolution `json:"unresolved"`
}

type resolveParams struct {
	lang        string
	searchLimit int
	concurrency int
}

func resolveArgs(args registry.Args) (resolveParams, error) {
	var p resolveParams
	var err error
	if p.lang, err = args.String("language", "fr"); err != nil {
		return p, err
	}
	if p.searchLimit, err = intArg(args, "search_limit", 1, 50, 5); err != nil {
		return p, err
	}
	if p.concurrency, err = intArg(args, "max_concurrency", 1, 32, 8); err != nil {
		return p, err
	}
	return p, nil
}

func (t *Toolset) resolveWikidataEntities(ctx context.Context, args registry.Args) (any, error) {
	entities, err := args.Strings("entities")
	if err != nil {
		return nil, err
	}
	p, err := resolveArgs(args)
	if err != nil {
		return nil, err
	}
	return t.resolve(ctx, dedupeTerms(entities), p)
}

func (t *Toolset) resolveWikidataEntitiesFromText(ctx context.Context, args registry.Args) (any, error) {
	text, err := args.RequiredString("text")
	if err != nil {
		return nil, err
	}
	maxTerms, err := intArg(args, "max_terms", 1, 200, 50)
	if err != nil {
		return nil, err
	}
	p, err := resolveArgs(args)
	if err != nil {
		return nil, err
	}
	return t.resolve(ctx, extractTermsFromText(text, maxTerms), p)
}

type urlSource struct {
	URL        string   `json:"url"`
	Success    bool     `json:"success"`
	Terms      []string `json:"terms,omitempty"`
	TermsCount int      `json:"terms_count"`
	Error      string   `json:"error,omitempty"`
}

type urlsResult struct {
	Success             bool           `json:"success"`
	Language            string         `json:"language"`
	URLsCount           int            `json:"urls_count"`
	Sources             []urlSource    `json:"sources"`
	ExtractedTermsCount int            `json:"extracted_terms_count"`
	Resolution          *resolveResult `json:"resolution"`
}

func (t *Toolset) resolveWikidataEntitiesFromURLs(ctx context.Context, args registry.Args) (any, error) {
	urls, err := args.Strings("urls")
	if err != nil {
		return nil, err
	}
	maxTerms, err := intArg(args, "max_terms_per_url", 1, 200, 30)
	if err != nil {
		return nil, err
	}
	timeoutSec, err := intArg(args, "timeout_seconds", 1, 300, 20)
	if err != nil {
		return nil, err
	}
	p, err := resolveArgs(args)
	if err != nil {
		return nil, err
	}

	var targets []string
	for _, raw := range urls {
		if u := normalizeTerm(raw); u != "" {
			targets = append(targets, u)
		}
	}
	sources := make([]urlSource, len(targets))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, u := range targets {
		g.Go(func() error {
			sources[i] = t.fetchTerms(ctx, u, maxTerms, time.Duration(timeoutSec)*time.Second)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []string
	for _, s := range sources {
		all = append(all, s.Terms...)
	}
	terms := dedupeTerms(all)
	res, err := t.resolve(ctx, terms, p)
	if err != nil {
		return nil, err
	}
	return urlsResult{
		Success:             true,
		Language:            p.lang,
		URLsCount:           len(urls),
		Sources:             sources,
		ExtractedTermsCount: len(terms),
		Resolution:          res,
	}, nil
}

func (t *Toolset) fetchTerms(ctx context.Context, rawURL string, maxTerms int, timeout time.Duration) urlSource {
	src := urlSource{URL: rawURL}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	body, err := t.pages.FetchPage(fctx, rawURL)
	if err != nil {
		src.Error = err.Error()
		return src
	}
	terms, err := extractTermsFromHTML(strings.NewReader(body), maxTerms)
	if err != nil {
		src.Error = err.Error()
		return src
	}
	src.Success = true
	src.Terms = terms
	src.TermsCount = len(terms)
	return src
}

// resolve searches every term with bounded parallelism and merges the best
// hits into unique entities ordered by label, then id.
func (t *Toolset) resolve(ctx context.Context, terms []string, p resolveParams) (*resolveResult, error) {
	resolutions := make([]termResolution, len(terms))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, term := range terms {
		g.Go(func() error {
			resolutions[i] = t.resolveTerm(ctx, term, p)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &resolveResult{
		Success:    true,
		Language:   p.lang,
		TermsCount: len(terms),
		Entities:   []resolvedEntity{},
		Unresolved: []termResolution{},
	}
	index := make(map[string]int)
	for _, r := range resolutions {
		if !r.Success || r.Entity == nil || r.Entity.ID == "" {
			out.Unresolved = append(out.Unresolved, r)
			continue
		}
		if i, ok := index[r.Entity.ID]; ok {
			out.Entities[i].MatchedTerms = append(out.Entities[i].MatchedTerms, r.Term)
			continue
		}
		index[r.Entity.ID] = len(out.Entities)
		out.Entities = append(out.Entities, resolvedEntity{entityRef: *r.Entity, MatchedTerms: []string{r.Term}})
	}
	slices.SortStableFunc(out.Entities, func(a, b resolvedEntity) int {
		return strings.Compare(cmp.Or(a.Label, a.ID), cmp.Or(b.Label, b.ID))
	})
	out.EntitiesCount = len(out.Entities)
	return out, nil
}

func (t *Toolset) resolveTerm(ctx context.Context, term string, p resolveParams) termResolution {
	r := termResolution{Term: term}
	results, err := t.wd.SearchEntities(ctx, term, p.lang, p.searchLimit)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			t.logger.WarnContext(ctx, "wikidata search failed", "term", term, "error", err)
		}
		r.Error = err.Error()
		return r
	}
	r.Success = true
	r.Candidates = results
	if len(results) == 0 {
		r.Candidates = []wiki.EntitySearchResult{}
		return r
	}
	best := results[0]
	r.Entity = &entityRef{
		ID:          best.ID,
		Label:       best.Label,
		Description: best.Description,
		URL:         cmp.Or(best.URL, wikidataWiki+best.ID),
	}
	return r
}
