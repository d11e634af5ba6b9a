package wiki

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Relation lists the items one property of an entity points at.
type Relation struct {
	Property       string   `json:"property"`
	LinkedEntities []string `json:"linked_entities"`
	Count          int      `json:"count"`
}

// LinkedEntities walks the claims in property order and collects referenced
// Q-items, per property and overall, stopping once limit distinct items are
// collected.
func LinkedEntities(e *Entity, limit int) (map[string]Relation, []string) {
	relations := make(map[string]Relation)
	linked := []string{}
	seenAll := make(map[string]struct{})

	for _, pid := range e.PropertyIDs() {
		var ids []string
		seen := make(map[string]struct{})
		for _, st := range e.Claims[pid] {
			qid, ok := st.ItemID()
			if !ok {
				continue
			}
			if _, dup := seen[qid]; dup {
				continue
			}
			seen[qid] = struct{}{}
			ids = append(ids, qid)
		}
		if len(ids) == 0 {
			continue
		}
		relations[pid] = Relation{Property: pid, LinkedEntities: ids, Count: len(ids)}
		for _, qid := range ids {
			if _, dup := seenAll[qid]; dup {
				continue
			}
			seenAll[qid] = struct{}{}
			linked = append(linked, qid)
			if len(linked) >= limit {
				return relations, linked
			}
		}
	}
	return relations, linked
}

// Sitelink is a sitelink resolved to a page URL. URL is empty for project
// families without a known host.
type Sitelink struct {
	Site  string `json:"site"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

var specialSites = map[string]string{
	"commonswiki":  "commons.wikimedia.org",
	"specieswiki":  "species.wikimedia.org",
	"metawiki":     "meta.wikimedia.org",
	"wikidatawiki": "www.wikidata.org",
}

var siteFamilies = []struct{ suffix, host string }{
	{"wikibooks", "wikibooks.org"},
	{"wikinews", "wikinews.org"},
	{"wikiquote", "wikiquote.org"},
	{"wikisource", "wikisource.org"},
	{"wikiversity", "wikiversity.org"},
	{"wikivoyage", "wikivoyage.org"},
	{"wiki", "wikipedia.org"},
}

// Sitelinks turns the entity's sitelinks into clickable Wikimedia URLs.
func Sitelinks(e *Entity) map[string]Sitelink {
	out := make(map[string]Sitelink, len(e.Sitelinks))
	for key, ref := range e.Sitelinks {
		if ref.Title == "" {
			continue
		}
		sl := Sitelink{Site: key, Title: ref.Title}
		page := url.PathEscape(strings.ReplaceAll(ref.Title, " ", "_"))
		if host, ok := specialSites[key]; ok {
			sl.URL = "https://" + host + "/wiki/" + page
			out[key] = sl
			continue
		}
		for _, f := range siteFamilies {
			lang, ok := strings.CutSuffix(key, f.suffix)
			if !ok || lang == "" {
				continue
			}
			// Site ids use underscores where hosts use dashes (zh_min_nanwiki).
			host := strings.ReplaceAll(lang, "_", "-") + "." + f.host
			sl.URL = "https://" + host + "/wiki/" + page
			break
		}
		out[key] = sl
	}
	return out
}

// IdentifierValue is one value of an external identifier.
type IdentifierValue struct {
	Value string `json:"value"`
	URL   string `json:"url,omitempty"`
}

// Identifier groups the string values of one property.
type Identifier struct {
	Property      string            `json:"property"`
	PropertyLabel string            `json:"property_label,omitempty"`
	PropertyURL   string            `json:"property_url"`
	FormatterURL  string            `json:"formatter_url,omitempty"`
	Values        []IdentifierValue `json:"values"`
	Count         int               `json:"count"`
}

const freebaseID = "P646"

// ExternalIdentifiers collects string-valued claims of the first maxProps
// properties and links each value through its property's formatter URL.
// Freebase ids link to the Google Knowledge Graph.
func (c *Client) ExternalIdentifiers(ctx context.Context, e *Entity, lang string, maxProps, maxValues int) (map[string]Identifier, error) {
	pids := e.PropertyIDs()
	if len(pids) > maxProps {
		pids = pids[:maxProps]
	}
	meta, err := c.PropertiesMetadata(ctx, pids, lang)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Identifier)
	for _, pid := range pids {
		m, ok := meta[pid]
		if !ok {
			m = PropertyMeta{ID: pid, URL: c.wikidataURL("Property:" + pid)}
		}
		var values []IdentifierValue
		for _, st := range e.Claims[pid] {
			raw, ok := st.StringValue()
			if !ok {
				continue
			}
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			v := IdentifierValue{Value: raw}
			switch {
			case pid == freebaseID:
				v.URL = "https://www.google.com/search?kgmid=" + url.PathEscape(raw)
			case strings.Contains(m.FormatterURL, "$1"):
				v.URL = strings.ReplaceAll(m.FormatterURL, "$1", url.PathEscape(raw))
			}
			values = append(values, v)
			if len(values) >= maxValues {
				break
			}
		}
		if len(values) == 0 {
			continue
		}
		out[pid] = Identifier{
			Property:      pid,
			PropertyLabel: m.Label,
			PropertyURL:   m.URL,
			FormatterURL:  m.FormatterURL,
			Values:        values,
			Count:         len(values),
		}
	}
	return out, nil
}

// sortedPropertyIDs orders P-ids numerically so results are deterministic.
func sortedPropertyIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		na, ea := strconv.Atoi(strings.TrimPrefix(a, "P"))
		nb, eb := strconv.Atoi(strings.TrimPrefix(b, "P"))
		if ea == nil && eb == nil && na != nb {
			return na - nb
		}
		return strings.Compare(a, b)
	})
	return ids
}
