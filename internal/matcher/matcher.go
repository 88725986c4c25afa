package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/applypilot/applypilot/pkg/models"
)

// Factor weights. They sum to 1.0 so the composite stays in [0,1].
const (
	weightSkills   = 0.35
	weightLocation = 0.20
	weightSalary   = 0.15
	weightCompany  = 0.15
	weightRole     = 0.15
)

// Visibility and preparation thresholds on the composite score.
const (
	MinVisibleScore   = 0.3
	PrepareScore      = 0.7
	reasonScoreCutoff = 0.5
)

// Match scores a profile against a set of listings and returns the matches
// whose composite score clears the visibility threshold, best first.
// It is a pure function: neither the profile nor the listings are mutated.
func Match(profile *models.UserProfile, listings []models.JobListing) []models.JobMatch {
	matches := []models.JobMatch{}

	for i := range listings {
		listing := &listings[i]

		skillsScore, matchedSkills := scoreSkills(profile, listing)
		locationScore := scoreLocation(profile, listing)
		salaryScore := scoreSalary(profile, listing)
		companyScore := scoreCompany(profile, listing)
		roleScore := scoreRole(profile, listing)

		composite := skillsScore*weightSkills +
			locationScore*weightLocation +
			salaryScore*weightSalary +
			companyScore*weightCompany +
			roleScore*weightRole

		if composite < MinVisibleScore {
			continue
		}

		m := models.JobMatch{
			ProfileID:     profile.ID,
			ListingID:     listing.ID,
			Score:         composite,
			SkillsScore:   skillsScore,
			LocationScore: locationScore,
			SalaryScore:   salaryScore,
			CompanyScore:  companyScore,
			RoleScore:     roleScore,
			Status:        models.MatchStatusNew,
		}
		m.Reasons = buildReasons(&m, listing, matchedSkills)
		matches = append(matches, m)
	}

	// Order: score desc, then newer posting, then source name.
	byListing := make(map[int]*models.JobListing, len(listings))
	for i := range listings {
		byListing[listings[i].ID] = &listings[i]
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		li, lj := byListing[matches[i].ListingID], byListing[matches[j].ListingID]
		switch {
		case li.PostedAt != nil && lj.PostedAt != nil && !li.PostedAt.Equal(*lj.PostedAt):
			return li.PostedAt.After(*lj.PostedAt)
		case li.PostedAt != nil && lj.PostedAt == nil:
			return true
		case li.PostedAt == nil && lj.PostedAt != nil:
			return false
		}
		return li.Source < lj.Source
	})

	return matches
}

// ExtractRequirements derives the listing's requirement keywords. A populated
// requirements field is split on commas, semicolons, and newlines; otherwise
// keywords are tokenized out of the description with stop words removed.
func ExtractRequirements(listing *models.JobListing) []string {
	if strings.TrimSpace(listing.Requirements) != "" {
		parts := strings.FieldsFunc(listing.Requirements, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		})
		keywords := []string{}
		seen := map[string]bool{}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			key := strings.ToLower(p)
			if p == "" || seen[key] {
				continue
			}
			seen[key] = true
			keywords = append(keywords, p)
		}
		return keywords
	}
	return tokenize(listing.Description)
}

// scoreSkills returns the fraction of the listing's requirement keywords
// present in the profile's skill set, plus the skills that matched.
// A listing with no extractable requirements scores 0.
func scoreSkills(profile *models.UserProfile, listing *models.JobListing) (float64, []string) {
	keywords := ExtractRequirements(listing)
	if len(keywords) == 0 {
		return 0, nil
	}

	matched := 0
	matchedSkills := []string{}
	seenSkill := map[string]bool{}
	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		for _, skill := range profile.Skills {
			skillLower := strings.ToLower(skill)
			if strings.Contains(kwLower, skillLower) || strings.Contains(skillLower, kwLower) {
				matched++
				if !seenSkill[skillLower] {
					seenSkill[skillLower] = true
					matchedSkills = append(matchedSkills, skill)
				}
				break
			}
		}
	}

	return float64(matched) / float64(len(keywords)), matchedSkills
}

// scoreLocation returns 1.0 for a remote listing against a remote-accepting
// profile or a city/state match, 0.5 for a partial metro-area overlap, else 0.
func scoreLocation(profile *models.UserProfile, listing *models.JobListing) float64 {
	if listing.RemoteType == models.RemoteTypeRemote && profile.AcceptsRemote() {
		return 1.0
	}

	jobLoc := strings.ToLower(strings.TrimSpace(listing.Location))
	if jobLoc == "" {
		return 0
	}

	partial := false
	for _, want := range profile.DesiredLocations {
		wantLower := strings.ToLower(strings.TrimSpace(want))
		if wantLower == "" || wantLower == models.RemoteLocation {
			continue
		}
		if strings.Contains(jobLoc, wantLower) || strings.Contains(wantLower, jobLoc) {
			return 1.0
		}
		// Metro-area overlap: any shared token longer than 3 chars.
		for _, jobPart := range strings.Fields(jobLoc) {
			jobPart = strings.Trim(jobPart, ",")
			for _, wantPart := range strings.Fields(wantLower) {
				wantPart = strings.Trim(wantPart, ",")
				if len(jobPart) > 3 && jobPart == wantPart {
					partial = true
				}
			}
		}
	}
	if partial {
		return 0.5
	}
	return 0
}

// scoreSalary compares disclosed salary against the profile floor. No floor
// or a fully clearing minimum scores 1.0; a maximum strictly below the floor
// scores 0; a floor inside the range interpolates linearly. Undisclosed
// salary is treated as neutral.
func scoreSalary(profile *models.UserProfile, listing *models.JobListing) float64 {
	if profile.SalaryFloor == nil {
		return 1.0
	}
	floor := *profile.SalaryFloor

	if listing.SalaryMin == nil && listing.SalaryMax == nil {
		return 0.5
	}

	min, max := 0, 0
	if listing.SalaryMin != nil {
		min = *listing.SalaryMin
	}
	if listing.SalaryMax != nil {
		max = *listing.SalaryMax
	}
	if max < min {
		max = min
	}

	switch {
	case min >= floor:
		return 1.0
	case max < floor:
		return 0
	default:
		// min < floor <= max, so the range has width here.
		return float64(max-floor) / float64(max-min)
	}
}

// scoreCompany returns 1.0 when the company is targeted, 0.5 when the profile
// has no target companies at all, else 0.
func scoreCompany(profile *models.UserProfile, listing *models.JobListing) float64 {
	if len(profile.TargetCompanies) == 0 {
		return 0.5
	}
	companyLower := strings.ToLower(listing.Company)
	for _, target := range profile.TargetCompanies {
		if strings.ToLower(target) == companyLower {
			return 1.0
		}
	}
	return 0
}

// scoreRole is the best token overlap (Jaccard) between the listing title and
// any desired role string.
func scoreRole(profile *models.UserProfile, listing *models.JobListing) float64 {
	titleTokens := tokenSet(listing.Title)
	if len(titleTokens) == 0 {
		return 0
	}

	best := 0.0
	for _, role := range profile.DesiredRoles {
		roleTokens := tokenSet(role)
		if len(roleTokens) == 0 {
			continue
		}
		shared := 0
		for tok := range roleTokens {
			if titleTokens[tok] {
				shared++
			}
		}
		union := len(titleTokens) + len(roleTokens) - shared
		if union == 0 {
			continue
		}
		if s := float64(shared) / float64(union); s > best {
			best = s
		}
	}
	return best
}

// buildReasons renders a human-readable explanation for each sub-score that
// clears the reason cutoff, in factor-weight order.
func buildReasons(m *models.JobMatch, listing *models.JobListing, matchedSkills []string) []string {
	reasons := []string{}

	if m.SkillsScore > reasonScoreCutoff {
		r := fmt.Sprintf("Skills match: %.0f%%", m.SkillsScore*100)
		if len(matchedSkills) > 0 {
			capped := matchedSkills
			if len(capped) > 4 {
				capped = capped[:4]
			}
			r += fmt.Sprintf(" (%s)", strings.Join(capped, ", "))
		}
		reasons = append(reasons, r)
	}
	if m.LocationScore > reasonScoreCutoff {
		if listing.RemoteType == models.RemoteTypeRemote {
			reasons = append(reasons, "Remote position matches your location preference")
		} else {
			reasons = append(reasons, fmt.Sprintf("Location matches: %s", listing.Location))
		}
	}
	if m.SalaryScore > reasonScoreCutoff && listing.SalaryMin != nil {
		reasons = append(reasons, fmt.Sprintf("Salary meets your minimum (from $%d)", *listing.SalaryMin))
	}
	if m.CompanyScore > reasonScoreCutoff && len(listing.Company) > 0 && m.CompanyScore == 1.0 {
		reasons = append(reasons, fmt.Sprintf("%s is on your target company list", listing.Company))
	}
	if m.RoleScore > reasonScoreCutoff {
		reasons = append(reasons, fmt.Sprintf("Role matches: %.0f%% title overlap", m.RoleScore*100))
	}

	return reasons
}

// stopWords are ignored when tokenizing free text.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "you": true,
	"our": true, "your": true, "will": true, "are": true, "have": true,
	"experience": true, "requirements": true, "required": true,
	"preferred": true, "strong": true, "years": true, "plus": true,
	"knowledge": true, "ability": true, "skills": true, "working": true,
}

// tokenize extracts deduplicated keyword tokens from free text.
func tokenize(text string) []string {
	tokens := []string{}
	seen := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:()[]")
		if len(word) <= 2 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		tokens = append(tokens, word)
	}
	return tokens
}

// tokenSet returns the lowercase token set of a short string.
func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,!?;:()[]/")
		if word == "" {
			continue
		}
		set[word] = true
	}
	return set
}
