package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/pkg/models"
)

const pageLoadTimeout = 30 * time.Second

// BoardScraper fetches postings from startup.jobs with a headless browser.
type BoardScraper struct {
	logger *zap.Logger
}

// NewBoardScraper returns the chromedp-backed board adapter.
func NewBoardScraper(logger *zap.Logger) *BoardScraper {
	return &BoardScraper{logger: logger}
}

func (b *BoardScraper) Name() string { return "startupjobs" }

// createBrowserContext creates a new browser context with appropriate options
func createBrowserContext(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel2 := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		msg := fmt.Sprintf(format, v...)
		if strings.Contains(msg, "could not unmarshal event") {
			return
		}
		logger.Debug("chromedp", zap.String("message", msg))
	}))

	return ctx, func() {
		cancel2()
		cancel()
	}
}

// Search loads the board's search results for the criteria and extracts the
// visible job cards.
func (b *BoardScraper) Search(ctx context.Context, criteria Criteria) ([]models.JobListing, error) {
	browserCtx, cancel := createBrowserContext(ctx, b.logger)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, pageLoadTimeout)
	defer cancel()

	url := buildSearchURL(criteria)
	var cards []map[string]string

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(4*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var pageText string
			chromedp.Text("body", &pageText).Do(ctx)
			lower := strings.ToLower(pageText)
			if strings.Contains(lower, "access denied") ||
				strings.Contains(lower, "checking your browser") ||
				strings.Contains(lower, "robot check") {
				return fmt.Errorf("board is blocking automated access")
			}
			chromedp.WaitVisible(`.job, [data-job], article`, chromedp.ByQuery).Do(ctx)
			for i := 0; i < 3; i++ {
				chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil).Do(ctx)
				chromedp.Sleep(1 * time.Second).Do(ctx)
			}
			return nil
		}),
		chromedp.Evaluate(`
			(() => {
				const jobs = [];
				const cards = document.querySelectorAll('.job, [data-job], article');
				cards.forEach((card, index) => {
					if (index >= 50) return;
					const titleEl = card.querySelector('a[href*="/jobs/"], h2 a, h3 a');
					const companyEl = card.querySelector('[class*="company"], .subtitle');
					const locationEl = card.querySelector('[class*="location"], .meta');
					const salaryEl = card.querySelector('[class*="salary"], [class*="compensation"]');
					if (!titleEl || !titleEl.textContent.trim()) return;
					jobs.push({
						title: titleEl.textContent.trim(),
						url: titleEl.href || '',
						company: companyEl ? companyEl.textContent.trim() : '',
						location: locationEl ? locationEl.textContent.trim() : '',
						salary: salaryEl ? salaryEl.textContent.trim() : '',
						description: card.textContent.trim().slice(0, 2000),
					});
				});
				return jobs;
			})()
		`, &cards),
	)
	if err != nil {
		return nil, fmt.Errorf("board search %q/%q: %w", criteria.Role, criteria.Location, err)
	}

	now := time.Now().UTC()
	listings := []models.JobListing{}
	for _, card := range cards {
		listing := models.JobListing{
			Source:         b.Name(),
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

	b.logger.Debug("board search complete",
		zap.String("role", criteria.Role),
		zap.String("location", criteria.Location),
		zap.Int("found", len(listings)),
	)
	return listings, nil
}

// buildSearchURL constructs the board search URL
func buildSearchURL(criteria Criteria) string {
	baseURL := "https://startup.jobs/"
	params := []string{}
	if criteria.Role != "" {
		params = append(params, "q="+strings.ReplaceAll(criteria.Role, " ", "+"))
	}
	if criteria.Location != "" && criteria.Location != models.RemoteLocation {
		params = append(params, "l="+strings.ReplaceAll(criteria.Location, " ", "+"))
	}
	if criteria.Location == models.RemoteLocation {
		params = append(params, "remote=true")
	}
	if len(params) > 0 {
		return baseURL + "?" + strings.Join(params, "&")
	}
	return baseURL
}

// externalIDFromURL takes the last path segment as the board-native id.
func externalIDFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// classifyRemote infers the remote type from location and card text.
func classifyRemote(location, text string) models.RemoteType {
	loc := strings.ToLower(location)
	body := strings.ToLower(text)
	switch {
	case strings.Contains(loc, "remote"):
		return models.RemoteTypeRemote
	case strings.Contains(loc, "hybrid") || strings.Contains(body, "hybrid"):
		return models.RemoteTypeHybrid
	case strings.Contains(body, "fully remote") || strings.Contains(body, "100% remote"):
		return models.RemoteTypeRemote
	default:
		return models.RemoteTypeOnsite
	}
}

var salaryPattern = regexp.MustCompile(`\$?(\d{2,3})[kK]?\s*[-–—]\s*\$?(\d{2,3})[kK]|\$?(\d{4,7})\s*[-–—]\s*\$?(\d{4,7})`)

// parseSalaryRange pulls a numeric range out of salary text like
// "$70k–$90k" or "$70,000 - $90,000". Returns nils when nothing parses.
func parseSalaryRange(text string) (*int, *int) {
	cleaned := strings.ReplaceAll(text, ",", "")
	m := salaryPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return nil, nil
	}
	parse := func(s string, thousands bool) *int {
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		if thousands {
			n *= 1000
		}
		return &n
	}
	if m[1] != "" {
		return parse(m[1], true), parse(m[2], true)
	}
	return parse(m[3], false), parse(m[4], false)
}
