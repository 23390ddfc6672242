package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/linkfetch"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/source"
)

const Timeout = 30 * time.Second

// Venue describes how to read one venue's listing page.
type Venue struct {
	Name     string `yaml:"name" validate:"required"`
	URL      string `yaml:"url" validate:"required,url"`
	Category string `yaml:"category"`

	Item        string `yaml:"item" validate:"required"`
	Title       string `yaml:"title" validate:"required"`
	Date        string `yaml:"date" validate:"required"`
	Time        string `yaml:"time"`
	Link        string `yaml:"link"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
}

// Scraper handles fetching and parsing venue listing pages
type Scraper struct {
	client *http.Client
	venues []Venue
	log    *logger.Logger
}

// New creates a new Scraper for venues. A nil client uses a 30s timeout client.
func New(venues []Venue, client *http.Client, log *logger.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: Timeout}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Scraper{client: client, venues: venues, log: log}
}

// Name implements source.CandidateSource
func (s *Scraper) Name() string {
	return "scraper"
}

// Venues returns the configured venue names.
func (s *Scraper) Venues() []string {
	names := make([]string, len(s.venues))
	for i, v := range s.venues {
		names[i] = v.Name
	}
	return names
}

// FetchCandidates scrapes every venue matching q. A venue that fails is
// logged and skipped; the error is returned only when every venue failed.
func (s *Scraper) FetchCandidates(ctx context.Context, q source.Query) ([]*event.Candidate, error) {
	var out []*event.Candidate
	var lastErr error
	tried, failed := 0, 0

	for _, v := range s.venues {
		if q.Venue != "" && !strings.Contains(event.NormalizeText(v.Name), event.NormalizeText(q.Venue)) {
			continue
		}
		tried++
		found, err := s.FetchVenue(ctx, v)
		if err != nil {
			failed++
			lastErr = err
			s.log.Warn("Venue scrape failed", logger.Fields{"venue": v.Name, "error": err.Error()})
			continue
		}
		for _, c := range found {
			if q.Matches(c) {
				out = append(out, c)
			}
		}
	}

	if tried > 0 && failed == tried {
		return nil, lastErr
	}
	return out, nil
}

// FetchVenue fetches and parses one venue listing.
func (s *Scraper) FetchVenue(ctx context.Context, v Venue) ([]*event.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", linkfetch.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", v.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %w", v.Name, &linkfetch.StatusError{Code: resp.StatusCode})
	}

	return s.parseListing(resp.Body, v)
}

// parseListing extracts candidates from a listing page
func (s *Scraper) parseListing(r io.Reader, v Venue) ([]*event.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	base, _ := url.Parse(v.URL)
	provenance := "scraper:" + event.NormalizeText(v.Name)

	candidates := make([]*event.Candidate, 0)
	doc.Find(v.Item).Each(func(_ int, item *goquery.Selection) {
		title := text(item, v.Title)
		if title == "" {
			return
		}
		dates := linkfetch.ExtractDates(text(item, v.Date))
		if len(dates) == 0 {
			s.log.Debug("Skipping listing entry without date", logger.Fields{"venue": v.Name, "title": title})
			return
		}

		c := event.NewCandidate(title, dates[0], "", v.Name, provenance)
		c.Category = v.Category
		c.Price = text(item, v.Price)
		c.Description = text(item, v.Description)

		if v.Time != "" {
			raw := text(item, v.Time)
			if clock := linkfetch.ExtractTime(strings.ToLower(raw)); clock != "" {
				c.Time = clock
			} else {
				// left for the field validator to judge
				c.Time = raw
			}
		}

		if v.Link != "" {
			if href, ok := item.Find(v.Link).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
				link := strings.TrimSpace(href)
				if base != nil {
					if u, err := base.Parse(link); err == nil {
						link = u.String()
					}
				}
				c.Link = link
				valid := true
				c.LinkValid = &valid
			}
		}

		candidates = append(candidates, c)
	})

	// Deduplicate events by ID
	seen := make(map[string]bool)
	unique := make([]*event.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !seen[c.ID] {
			seen[c.ID] = true
			unique = append(unique, c)
		}
	}

	return unique, nil
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(selector).First().Text()), " ")
}
