package models

import "time"

// RemoteType classifies how a listing treats remote work.
type RemoteType string

const (
	RemoteTypeRemote RemoteType = "remote"
	RemoteTypeHybrid RemoteType = "hybrid"
	RemoteTypeOnsite RemoteType = "onsite"
)

// EmploymentType is the kind of position a listing or profile targets.
type EmploymentType string

const (
	EmploymentInternship EmploymentType = "internship"
	EmploymentPartTime   EmploymentType = "part-time"
	EmploymentFullTime   EmploymentType = "full-time"
)

// RemoteLocation is the sentinel value in a profile's desired-locations set
// that means "remote positions are acceptable".
const RemoteLocation = "remote"

// Education is one entry in a profile's education history.
type Education struct {
	School   string `json:"school"`
	Degree   string `json:"degree"`
	Field    string `json:"field"`
	GradYear int    `json:"grad_year"`
}

// WorkEntry is one entry in a profile's work history.
type WorkEntry struct {
	Company   string     `json:"company"`
	Title     string     `json:"title"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"` // nil for current positions
}

// UserProfile holds everything the pipeline knows about one user.
type UserProfile struct {
	ID               int            `json:"id"`
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	Skills           []string       `json:"skills"`
	Education        []Education    `json:"education"`
	WorkHistory      []WorkEntry    `json:"work_history"`
	DesiredRoles     []string       `json:"desired_roles"`
	DesiredLocations []string       `json:"desired_locations"` // may contain RemoteLocation
	TargetCompanies  []string       `json:"target_companies"`  // empty means no preference
	SalaryFloor      *int           `json:"salary_floor"`
	SalaryCeiling    *int           `json:"salary_ceiling"`
	EmploymentType   EmploymentType `json:"employment_type"`
	LetterQuota      int            `json:"letter_quota"`    // generated cover letters per month
	LettersUsed      int            `json:"letters_used"`    // counter within the current window
	QuotaResetsAt    time.Time      `json:"quota_resets_at"` // counter zeroes when now crosses this
	Active           bool           `json:"active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// AcceptsRemote reports whether the profile's desired locations include the
// remote sentinel.
func (p *UserProfile) AcceptsRemote() bool {
	for _, loc := range p.DesiredLocations {
		if loc == RemoteLocation {
			return true
		}
	}
	return false
}

// JobListing is one posting from one board. Identity is (Source, ExternalID);
// re-discovery updates mutable fields in place.
type JobListing struct {
	ID             int            `json:"id"`
	Source         string         `json:"source"`
	ExternalID     string         `json:"external_id"`
	Title          string         `json:"title"`
	Company        string         `json:"company"`
	Location       string         `json:"location"`
	RemoteType     RemoteType     `json:"remote_type"`
	SalaryMin      *int           `json:"salary_min"`
	SalaryMax      *int           `json:"salary_max"`
	EmploymentType EmploymentType `json:"employment_type"`
	Description    string         `json:"description"`
	Requirements   string         `json:"requirements"` // comma/newline separated free text
	URL            string         `json:"url"`
	PostedAt       *time.Time     `json:"posted_at"`
	Active         bool           `json:"active"`
	FirstSeenAt    time.Time      `json:"first_seen_at"`
	LastSeenAt     time.Time      `json:"last_seen_at"`
}

// MatchStatus is the user-facing state of a JobMatch.
type MatchStatus string

const (
	MatchStatusNew       MatchStatus = "new"
	MatchStatusViewed    MatchStatus = "viewed"
	MatchStatusSaved     MatchStatus = "saved"
	MatchStatusDismissed MatchStatus = "dismissed"
	MatchStatusApplied   MatchStatus = "applied"
)

// JobMatch is the scored pairing of one profile and one listing.
type JobMatch struct {
	ID            int         `json:"id"`
	ProfileID     int         `json:"profile_id"`
	ListingID     int         `json:"listing_id"`
	Score         float64     `json:"score"` // composite, in [0,1]
	SkillsScore   float64     `json:"skills_score"`
	LocationScore float64     `json:"location_score"`
	SalaryScore   float64     `json:"salary_score"`
	CompanyScore  float64     `json:"company_score"`
	RoleScore     float64     `json:"role_score"`
	Reasons       []string    `json:"reasons"`
	Status        MatchStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// LetterSource records how a draft's cover letter was produced.
type LetterSource string

const (
	LetterSourceGenerated LetterSource = "generated"
	LetterSourceTemplate  LetterSource = "template"
)

// ApplicationStatus is the approval-queue state of a draft.
type ApplicationStatus string

const (
	ApplicationPrepared  ApplicationStatus = "prepared"
	ApplicationSubmitted ApplicationStatus = "submitted"
	ApplicationDismissed ApplicationStatus = "dismissed"
)

// PreparedApplication is a draft awaiting human approval.
type PreparedApplication struct {
	ID           int               `json:"id"`
	MatchID      int               `json:"match_id"`
	ProfileID    int               `json:"profile_id"`
	ListingID    int               `json:"listing_id"`
	CoverLetter  string            `json:"cover_letter"`
	LetterSource LetterSource      `json:"letter_source"`
	Answers      map[string]string `json:"answers"`
	Status       ApplicationStatus `json:"status"`
	PreparedAt   time.Time         `json:"prepared_at"`
	SubmittedAt  *time.Time        `json:"submitted_at"`
	DismissedAt  *time.Time        `json:"dismissed_at"`
}

// RunKind distinguishes the two pipeline cycles.
type RunKind string

const (
	RunKindDiscovery   RunKind = "discovery"
	RunKindPreparation RunKind = "preparation"
)

// RunTrigger records what started a cycle.
type RunTrigger string

const (
	RunTriggerScheduled RunTrigger = "scheduled"
	RunTriggerManual    RunTrigger = "manual"
)

// RunStatus is the lifecycle state of a ScrapeRun.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is the audit record of one discovery or preparation cycle.
// Created at cycle start, finalized at cycle end, immutable after.
type ScrapeRun struct {
	ID         string     `json:"id"`
	ProfileID  int        `json:"profile_id"`
	Kind       RunKind    `json:"kind"`
	Trigger    RunTrigger `json:"trigger"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Found      int        `json:"found"`
	New        int        `json:"new"`
	Updated    int        `json:"updated"`
	Errored    int        `json:"errored"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error"`
}
