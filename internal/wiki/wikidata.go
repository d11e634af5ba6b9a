package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const labelBatchSize = 50

// LangValue is a language-tagged string.
type LangValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// DataValue is the typed value of a snak. Value stays raw because its shape
// depends on Type.
type DataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Statement is one claim of an entity.
type Statement struct {
	Mainsnak struct {
		Property  string     `json:"property"`
		Datavalue *DataValue `json:"datavalue"`
	} `json:"mainsnak"`
}

// SitelinkRef is the raw sitelink of an entity.
type SitelinkRef struct {
	Site  string `json:"site"`
	Title string `json:"title"`
}

// Entity is the subset of a Wikidata item or property document used here.
type Entity struct {
	ID           string                 `json:"id"`
	Datatype     string                 `json:"datatype,omitempty"`
	Labels       map[string]LangValue   `json:"labels"`
	Descriptions map[string]LangValue   `json:"descriptions"`
	Claims       map[string][]Statement `json:"claims"`
	Sitelinks    map[string]SitelinkRef `json:"sitelinks"`
}

// Label returns the label in lang, or "".
func (e *Entity) Label(lang string) string { return e.Labels[lang].Value }

// Description returns the description in lang, or "".
func (e *Entity) Description(lang string) string { return e.Descriptions[lang].Value }

// PropertyIDs returns the claim property ids in numeric order.
func (e *Entity) PropertyIDs() []string { return sortedPropertyIDs(e.Claims) }

// StringValue returns the snak value when it is a plain string.
func (s Statement) StringValue() (string, bool) {
	dv := s.Mainsnak.Datavalue
	if dv == nil || len(dv.Value) == 0 || dv.Value[0] != '"' {
		return "", false
	}
	var v string
	if err := json.Unmarshal(dv.Value, &v); err != nil {
		return "", false
	}
	return v, true
}

// ItemID returns the referenced item id when the snak points at a Q-item.
func (s Statement) ItemID() (string, bool) {
	dv := s.Mainsnak.Datavalue
	if dv == nil || len(dv.Value) == 0 || dv.Value[0] != '{' {
		return "", false
	}
	var v struct {
		EntityType string `json:"entity-type"`
		ID         string `json:"id"`
	}
	if err := json.Unmarshal(dv.Value, &v); err != nil {
		return "", false
	}
	if v.EntityType != "item" || !strings.HasPrefix(v.ID, "Q") {
		return "", false
	}
	return v.ID, true
}

// EntityMatch explains why a search hit matched.
type EntityMatch struct {
	Type     string `json:"type"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// EntitySearchResult is one wbsearchentities hit.
type EntitySearchResult struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	URL         string       `json:"url"`
	Match       *EntityMatch `json:"match"`
}

// SearchEntities searches Wikidata items by label and alias.
func (c *Client) SearchEntities(ctx context.Context, query, lang string, limit int) ([]EntitySearchResult, error) {
	q := url.Values{}
	q.Set("action", "wbsearchentities")
	q.Set("search", query)
	q.Set("language", lang)
	q.Set("uselang", lang)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Search []struct {
			ID          string       `json:"id"`
			Label       string       `json:"label"`
			Description string       `json:"description"`
			ConceptURI  string       `json:"concepturi"`
			Match       *EntityMatch `json:"match"`
		} `json:"search"`
	}
	if err := c.getJSON(ctx, c.ep.WikidataAPI+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	out := make([]EntitySearchResult, 0, len(resp.Search))
	for _, s := range resp.Search {
		if s.ID == "" {
			continue
		}
		out = append(out, EntitySearchResult{
			ID:          s.ID,
			Label:       s.Label,
			Description: s.Description,
			URL:         firstNonEmpty(s.ConceptURI, c.wikidataURL(s.ID)),
			Match:       s.Match,
		})
	}
	return out, nil
}

// EntityData fetches the full document of one entity.
func (c *Client) EntityData(ctx context.Context, id string) (*Entity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("entity_id is required")
	}
	var resp struct {
		Entities map[string]*Entity `json:"entities"`
	}
	if err := c.getJSON(ctx, c.ep.WikidataEntity+url.PathEscape(id)+".json", &resp); err != nil {
		return nil, err
	}
	if e, ok := resp.Entities[id]; ok && e != nil {
		return e, nil
	}
	// Merged entities redirect to their target, which is keyed by its own id.
	if len(resp.Entities) == 1 {
		for _, e := range resp.Entities {
			if e != nil {
				return e, nil
			}
		}
	}
	return nil, fmt.Errorf("entity '%s': %w", id, ErrNotFound)
}

func (c *Client) getEntities(ctx context.Context, ids []string, lang, props string) (map[string]*Entity, error) {
	out := make(map[string]*Entity, len(ids))
	for i := 0; i < len(ids); i += labelBatchSize {
		chunk := ids[i:min(i+labelBatchSize, len(ids))]
		q := url.Values{}
		q.Set("action", "wbgetentities")
		q.Set("ids", strings.Join(chunk, "|"))
		q.Set("props", props)
		q.Set("languages", lang)
		q.Set("format", "json")

		var resp struct {
			Entities map[string]*Entity `json:"entities"`
		}
		if err := c.getJSON(ctx, c.ep.WikidataAPI+"?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		for id, e := range resp.Entities {
			if e != nil {
				out[id] = e
			}
		}
	}
	return out, nil
}

// EntitySummary is the label, description and page of an entity.
type EntitySummary struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
}

// EntityLabels fetches labels and descriptions for ids in batches of 50.
func (c *Client) EntityLabels(ctx context.Context, ids []string, lang string) (map[string]EntitySummary, error) {
	ents, err := c.getEntities(ctx, ids, lang, "labels|descriptions")
	if err != nil {
		return nil, err
	}
	out := make(map[string]EntitySummary, len(ents))
	for id, e := range ents {
		out[id] = EntitySummary{ID: id, Label: e.Label(lang), Description: e.Description(lang), URL: c.wikidataURL(id)}
	}
	return out, nil
}

// PropertyMeta describes a property and its formatter URL (P1630).
type PropertyMeta struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Datatype     string `json:"datatype"`
	FormatterURL string `json:"formatter_url,omitempty"`
	URL          string `json:"url"`
}

// PropertiesMetadata fetches labels, datatypes and formatter URLs for ids.
func (c *Client) PropertiesMetadata(ctx context.Context, ids []string, lang string) (map[string]PropertyMeta, error) {
	ents, err := c.getEntities(ctx, ids, lang, "labels|claims|datatype")
	if err != nil {
		return nil, err
	}
	out := make(map[string]PropertyMeta, len(ents))
	for id, e := range ents {
		meta := PropertyMeta{ID: id, Label: e.Label(lang), Datatype: e.Datatype, URL: c.wikidataURL("Property:" + id)}
		if st := e.Claims["P1630"]; len(st) > 0 {
			if v, ok := st[0].StringValue(); ok {
				meta.FormatterURL = strings.TrimSpace(v)
			}
		}
		out[id] = meta
	}
	return out, nil
}
