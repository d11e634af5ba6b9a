package wiki

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"
)

// linksPageTimeout bounds each continuation request of InternalLinks.
const linksPageTimeout = 20 * time.Second

// InternalLink is an outgoing link to another main-namespace article.
type InternalLink struct {
	AnchorText      string `json:"anchor_text"`
	LinkedPageTitle string `json:"linked_page_title"`
	URL             string `json:"url"`
}

// InternalLinks is the de-duplicated link list of one article.
type InternalLinks struct {
	PageTitle string         `json:"page_title"`
	PageID    int            `json:"page_id"`
	Total     int            `json:"total_internal_links"`
	Links     []InternalLink `json:"internal_links"`
	Partial   bool           `json:"partial"`
	MaxLinks  int            `json:"max_links"`
}

// InternalLinks pages through prop=links for title until the API has no
// continuation or maxLinks is reached. A page request that times out ends
// the walk early with Partial set.
func (c *Client) InternalLinks(ctx context.Context, lang, title string, maxLinks int) (*InternalLinks, error) {
	if maxLinks < 1 {
		maxLinks = 200
	}
	out := &InternalLinks{PageTitle: title, MaxLinks: maxLinks, Links: []InternalLink{}}
	seen := make(map[string]struct{})
	cont := ""

	for {
		q := url.Values{}
		q.Set("action", "query")
		q.Set("titles", title)
		q.Set("prop", "links")
		q.Set("plnamespace", "0")
		q.Set("pllimit", "max")
		q.Set("format", "json")
		if cont != "" {
			q.Set("plcontinue", cont)
		}

		var resp queryResponse
		pctx, cancel := context.WithTimeout(ctx, linksPageTimeout)
		err := c.getJSON(pctx, c.wikipediaAPI(lang)+"?"+q.Encode(), &resp)
		cancel()
		if err != nil {
			if ctx.Err() == nil && isTimeout(err) {
				out.Partial = true
				break
			}
			return nil, err
		}

		p, err := resp.firstPage(title)
		if err != nil {
			return nil, err
		}
		out.PageID = p.PageID
		if p.Title != "" {
			out.PageTitle = p.Title
		}

		for _, l := range p.Links {
			if l.Title == "" {
				continue
			}
			if _, dup := seen[l.Title]; dup {
				continue
			}
			seen[l.Title] = struct{}{}
			out.Links = append(out.Links, InternalLink{
				AnchorText:      l.Title,
				LinkedPageTitle: l.Title,
				URL:             c.articleURL(lang, l.Title),
			})
			if len(out.Links) >= maxLinks {
				out.Partial = true
				break
			}
		}
		if len(out.Links) >= maxLinks {
			break
		}
		cont = resp.Continue.PLContinue
		if cont == "" {
			break
		}
	}
	out.Total = len(out.Links)
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
