package linkfetch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/linkscore"
)

// SnippetLength caps the page text kept as evidence.
const SnippetLength = 2000

var purchaseKeywords = []string{
	"comprar ingresso", "comprar ingressos", "garanta seu ingresso", "garantir ingresso",
	"ingressos a venda", "buy tickets", "get tickets", "buy now", "comprar agora",
}

var (
	pricePattern = regexp.MustCompile(`r\$\s?\d+(?:[.,]\d{2})?`)
	freePattern  = regexp.MustCompile(`\b(entrada (?:franca|gratuita)|gratuito|gratis|free entry)\b`)
)

// Meta tags that carry an event start date
var dateMetaSelectors = []string{
	`meta[property="event:start_time"]`,
	`meta[property="og:event:start_time"]`,
	`meta[itemprop="startDate"]`,
	`meta[name="event-date"]`,
}

// Extract parses an HTML page into link evidence. It never fails on bad
// markup: whatever could be read is returned and the rest stays empty.
func Extract(r io.Reader, pageURL string) (*event.LinkEvidence, error) {
	ev := &event.LinkEvidence{
		URL:           pageURL,
		IsGenericPage: linkscore.IsGenericLink(pageURL),
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ev, fmt.Errorf("parsing HTML: %w", err)
	}

	var structuredDates []string
	var structuredTime string

	// JSON-LD before scripts are stripped from the text
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		ld := parseJSONLD(sel.Text())
		structuredDates = append(structuredDates, ld.dates...)
		if structuredTime == "" {
			structuredTime = ld.clock
		}
		ev.Artists = append(ev.Artists, ld.performers...)
		if ev.Price == "" {
			ev.Price = ld.price
		}
		if ev.Description == "" {
			ev.Description = ld.description
		}
		if ev.Title == "" {
			ev.Title = ld.name
		}
	})

	doc.Find("time[datetime]").Each(func(_ int, sel *goquery.Selection) {
		d, c := dateFromISO(sel.AttrOr("datetime", ""))
		if d != "" {
			structuredDates = append(structuredDates, d)
		}
		if structuredTime == "" {
			structuredTime = c
		}
	})
	for _, selector := range dateMetaSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			d, c := dateFromISO(sel.AttrOr("content", ""))
			if d != "" {
				structuredDates = append(structuredDates, d)
			}
			if structuredTime == "" {
				structuredTime = c
			}
		})
	}

	if t := metaContent(doc, `meta[property="og:title"]`); t != "" {
		ev.Title = t
	}
	if ev.Title == "" {
		ev.Title = clean(doc.Find("title").First().Text())
	}
	if ev.Title == "" {
		ev.Title = clean(doc.Find("h1").First().Text())
	}

	if d := metaContent(doc, `meta[property="og:description"]`); d != "" {
		ev.Description = d
	} else if d := metaContent(doc, `meta[name="description"]`); d != "" && ev.Description == "" {
		ev.Description = d
	}

	doc.Find(`[itemprop="performer"], .artist, .artista, .performer, .lineup li`).Each(func(_ int, sel *goquery.Selection) {
		name := clean(sel.Text())
		if name != "" && len(name) <= 80 {
			ev.Artists = append(ev.Artists, name)
		}
	})
	ev.Artists = unique(ev.Artists)

	base, _ := url.Parse(pageURL)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if base != nil {
			if u, err := base.Parse(href); err == nil {
				href = u.String()
			}
		}
		if linkscore.IsPurchasePlatform(href) && !linkscore.IsGenericLink(href) {
			ev.PurchaseLinks = append(ev.PurchaseLinks, href)
		}
	})
	ev.PurchaseLinks = unique(ev.PurchaseLinks)

	doc.Find("script, style, noscript").Remove()
	text := clean(doc.Find("body").Text())
	if text == "" {
		text = clean(doc.Text())
	}
	lower := event.NormalizeText(text)

	ev.Dates = unique(append(structuredDates, ExtractDates(text)...))
	ev.Time = structuredTime
	if ev.Time == "" {
		ev.Time = ExtractTime(lower)
	}

	if ev.Price == "" {
		if m := pricePattern.FindString(lower); m != "" {
			ev.Price = strings.ToUpper(m[:2]) + m[2:]
		} else if m := freePattern.FindString(lower); m != "" {
			ev.Price = m
		}
	}

	hasKeyword := false
	for _, kw := range purchaseKeywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}
	onPlatformPage := linkscore.IsPurchasePlatform(pageURL) && !ev.IsGenericPage && strings.Contains(lower, "ingresso")
	ev.HasPurchaseAffordance = len(ev.PurchaseLinks) > 0 || hasKeyword || onPlatformPage

	ev.Snippet = truncate(text, SnippetLength)
	return ev, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	return clean(doc.Find(selector).First().AttrOr("content", ""))
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// jsonLD is the subset of schema.org Event data the pipeline uses
type jsonLD struct {
	name        string
	description string
	dates       []string
	clock       string
	performers  []string
	price       string
}

func parseJSONLD(raw string) jsonLD {
	var out jsonLD
	var v interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return out
	}
	walkJSONLD(v, &out)
	return out
}

// walkJSONLD visits nested objects, arrays and @graph containers looking for
// objects with event fields
func walkJSONLD(v interface{}, out *jsonLD) {
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			walkJSONLD(item, out)
		}
	case map[string]interface{}:
		if graph, ok := node["@graph"]; ok {
			walkJSONLD(graph, out)
		}
		if _, ok := node["startDate"]; !ok {
			return
		}
		if s, ok := node["name"].(string); ok && out.name == "" {
			out.name = clean(s)
		}
		if s, ok := node["description"].(string); ok && out.description == "" {
			out.description = clean(s)
		}
		for _, key := range []string{"startDate", "endDate"} {
			if s, ok := node[key].(string); ok {
				d, c := dateFromISO(s)
				if d == "" {
					d, _ = event.NormalizeDate(s)
				}
				if d != "" {
					out.dates = append(out.dates, d)
				}
				if key == "startDate" && out.clock == "" {
					out.clock = c
				}
			}
		}
		out.performers = append(out.performers, names(node["performer"])...)
		if out.price == "" {
			out.price = offerPrice(node["offers"])
		}
	}
}

func names(v interface{}) []string {
	switch node := v.(type) {
	case string:
		return []string{clean(node)}
	case map[string]interface{}:
		if s, ok := node["name"].(string); ok {
			return []string{clean(s)}
		}
	case []interface{}:
		var out []string
		for _, item := range node {
			out = append(out, names(item)...)
		}
		return out
	}
	return nil
}

func offerPrice(v interface{}) string {
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			if p := offerPrice(item); p != "" {
				return p
			}
		}
	case map[string]interface{}:
		var price string
		switch p := node["price"].(type) {
		case string:
			price = p
		case float64:
			price = fmt.Sprintf("%.2f", p)
		}
		if price == "" {
			if p, ok := node["lowPrice"].(float64); ok {
				price = fmt.Sprintf("%.2f", p)
			}
		}
		if price == "" {
			return ""
		}
		if cur, ok := node["priceCurrency"].(string); ok && cur != "" {
			return cur + " " + price
		}
		return price
	}
	return ""
}
