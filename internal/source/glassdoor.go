package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/pkg/models"
)

// GlassdoorScraper fetches postings from Glassdoor. The site rotates its
// markup frequently, so extraction tries a list of known card selectors.
type GlassdoorScraper struct {
	logger *zap.Logger
}

// NewGlassdoorScraper returns the Glassdoor board adapter.
func NewGlassdoorScraper(logger *zap.Logger) *GlassdoorScraper {
	return &GlassdoorScraper{logger: logger}
}

func (g *GlassdoorScraper) Name() string { return "glassdoor" }

// Search loads Glassdoor's results page for the criteria and extracts the
// visible job cards.
func (g *GlassdoorScraper) Search(ctx context.Context, criteria Criteria) ([]models.JobListing, error) {
	browserCtx, cancel := createBrowserContext(ctx, g.logger)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, pageLoadTimeout)
	defer cancel()

	url := buildGlassdoorURL(criteria)
	var cards []map[string]string

	err := chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Hide the automation flag Glassdoor checks for.
			chromedp.Evaluate(`
				Object.defineProperty(navigator, 'webdriver', {
					get: () => undefined,
				});
			`, nil).Do(ctx)
			return nil
		}),
		chromedp.Navigate(url),
		chromedp.Sleep(3*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for i := 0; i < 3; i++ {
				chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil).Do(ctx)
				chromedp.Sleep(1500 * time.Millisecond).Do(ctx)
			}
			return nil
		}),
		chromedp.Evaluate(`
			(() => {
				const jobs = [];
				const selectors = [
					'.jobCard',
					'[data-test="job-card"]',
					'.job-listing',
					'.jl',
					'.job-search-result',
					'.JobCard'
				];

				let jobCards = [];
				for (const sel of selectors) {
					const cards = document.querySelectorAll(sel);
					if (cards.length > 0) {
						jobCards = cards;
						break;
					}
				}

				jobCards.forEach((card, index) => {
					if (index >= 50) return;

					const pick = (sels) => {
						for (const sel of sels) {
							const el = card.querySelector(sel);
							if (el && el.textContent.trim()) return el;
						}
						return null;
					};

					const titleEl = pick(['a[data-test="job-title"]', '.job-title', '.jobTitle', 'h3', 'a']);
					const companyEl = pick(['[data-test="employer-name"]', '.employer-name', '.companyName', '[class*="company"]']);
					const locationEl = pick(['[data-test="employer-location"]', '.job-location', '[class*="location"]']);
					const salaryEl = pick(['[data-test="detailSalary"]', '[class*="salary"]']);
					if (!titleEl) return;

					let url = titleEl.href || '';
					if (!url) {
						const linkEl = card.querySelector('a[href*="/partner/"]') || card.querySelector('a');
						if (linkEl && linkEl.href) url = linkEl.href;
					}

					jobs.push({
						title: titleEl.textContent.trim(),
						company: companyEl ? companyEl.textContent.trim() : '',
						location: locationEl ? locationEl.textContent.trim() : '',
						salary: salaryEl ? salaryEl.textContent.trim() : '',
						url: url,
						description: card.textContent.trim().slice(0, 2000),
					});
				});
				return jobs;
			})()
		`, &cards),
	)
	if err != nil {
		return nil, fmt.Errorf("glassdoor search %q/%q: %w", criteria.Role, criteria.Location, err)
	}

	now := time.Now().UTC()
	listings := []models.JobListing{}
	for _, card := range cards {
		listing := models.JobListing{
			Source:         g.Name(),
			ExternalID:     externalIDFromURL(card["url"]),
			Title:          card["title"],
			Company:        card["company"],
			Location:       card["location"],
			RemoteType:     classifyRemote(card["location"], card["description"]),
			EmploymentType: criteria.Type,
			Description:    card["description"],
			URL:            card["url"],
			PostedAt:       &now,
			Active:         true,
		}
		listing.SalaryMin, listing.SalaryMax = parseSalaryRange(card["salary"])
		if listing.ExternalID == "" || listing.Title == "" {
			continue
		}
		listings = append(listings, listing)
	}

	g.logger.Debug("glassdoor search complete",
		zap.String("role", criteria.Role),
		zap.String("location", criteria.Location),
		zap.Int("found", len(listings)),
	)
	return listings, nil
}

func buildGlassdoorURL(criteria Criteria) string {
	baseURL := "https://www.glassdoor.com/Job/jobs.htm"
	params := []string{}
	if criteria.Role != "" {
		params = append(params, "keyword="+strings.ReplaceAll(criteria.Role, " ", "+"))
	}
	if criteria.Location != "" && criteria.Location != models.RemoteLocation {
		params = append(params, "location="+strings.ReplaceAll(criteria.Location, " ", "+"))
	}
	if len(params) > 0 {
		return baseURL + "?" + strings.Join(params, "&")
	}
	return baseURL
}
