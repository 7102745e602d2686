package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Board is an external job board configured for scraping.
type Board struct {
	ID                     uint                                 `gorm:"primaryKey" json:"id"`
	Name                   string                               `gorm:"size:255;not null" json:"name"`
	URL                    string                               `gorm:"size:512;not null" json:"url"`
	Type                   string                               `gorm:"size:32;not null" json:"type"`
	Description            string                               `gorm:"type:text" json:"description"`
	RequiresAuthentication bool                                 `json:"requires_authentication"`
	AuthenticationDetails  datatypes.JSONType[BoardCredentials] `json:"-"`
	SearchParameters       datatypes.JSONType[SearchParameters] `json:"search_parameters"`
	IsActive               bool                                 `gorm:"index" json:"is_active"`
	SearchFrequencyHours   int                                  `gorm:"not null" json:"search_frequency_hours"`
	LastSearchedAt         *time.Time                           `json:"last_searched_at"`
	CreatedAt              time.Time                            `json:"created_at"`
	UpdatedAt              time.Time                            `json:"updated_at"`
	DeletedAt              gorm.DeletedAt                       `gorm:"index" json:"-"`
}

// BoardCredentials are never serialized back to API clients.
type BoardCredentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// SearchParameters maps logical query fields onto the board's own query parameter names.
type SearchParameters struct {
	KeywordsParam string `json:"keywords_param,omitempty"`
	LocationParam string `json:"location_param,omitempty"`
	PostTypeParam string `json:"post_type_param,omitempty"`
	PageParam     string `json:"page_param,omitempty"`
	PerPageParam  string `json:"per_page_param,omitempty"`
	SortParam     string `json:"sort_param,omitempty"`
}

// DueForSearch reports whether the polling frequency has elapsed since the last search.
func (b Board) DueForSearch(now time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.LastSearchedAt == nil {
		return true
	}
	return !b.LastSearchedAt.Add(time.Duration(b.SearchFrequencyHours) * time.Hour).After(now)
}

// Listing is a normalized job/post record scraped from a board.
type Listing struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	BoardID         uint                        `gorm:"not null;uniqueIndex:idx_listings_board_external;uniqueIndex:idx_listings_board_url" json:"board_id"`
	Board           *Board                      `gorm:"constraint:OnDelete:CASCADE" json:"board,omitempty"`
	ExternalID      string                      `gorm:"size:191;not null;uniqueIndex:idx_listings_board_external" json:"external_id"`
	Title           string                      `gorm:"size:512;not null" json:"title"`
	Description     string                      `gorm:"type:text" json:"description"`
	CompanyName     string                      `gorm:"size:255" json:"company_name"`
	CompanyWebsite  string                      `gorm:"size:512" json:"company_website"`
	Location        string                      `gorm:"size:255" json:"location"`
	IsRemote        bool                        `json:"is_remote"`
	JobType         string                      `gorm:"size:32" json:"job_type"`
	ExperienceLevel string                      `gorm:"size:32" json:"experience_level"`
	SalaryMin       *float64                    `json:"salary_min"`
	SalaryMax       *float64                    `json:"salary_max"`
	SalaryCurrency  string                      `gorm:"size:3" json:"salary_currency"`
	SalaryPeriod    string                      `gorm:"size:16" json:"salary_period"`
	Skills          datatypes.JSONSlice[string] `json:"skills"`
	Categories      datatypes.JSONSlice[string] `json:"categories"`
	ApplyURL        string                      `gorm:"size:1024" json:"apply_url"`
	URL             string                      `gorm:"size:1024;not null;uniqueIndex:idx_listings_board_url" json:"url"`
	Source          string                      `gorm:"size:255" json:"source"`
	PostedAt        *time.Time                  `json:"posted_at"`
	ExpiresAt       *time.Time                  `json:"expires_at"`
	IsActive        bool                        `gorm:"index" json:"is_active"`
	RawData         datatypes.JSON              `json:"raw_data,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	DeletedAt       gorm.DeletedAt              `gorm:"index" json:"-"`
}

// SalaryRange renders the salary band, e.g. "USD 80,000.00 - 120,000.00/year".
func (l Listing) SalaryRange() string {
	if l.SalaryMin == nil && l.SalaryMax == nil {
		return "Not specified"
	}
	currency := l.SalaryCurrency
	if currency == "" {
		currency = "USD"
	}
	period := ""
	if l.SalaryPeriod != "" {
		period = "/" + l.SalaryPeriod
	}
	switch {
	case l.SalaryMin != nil && l.SalaryMax != nil:
		return fmt.Sprintf("%s %s - %s%s", currency, formatAmount(*l.SalaryMin), formatAmount(*l.SalaryMax), period)
	case l.SalaryMin != nil:
		return fmt.Sprintf("From %s %s%s", currency, formatAmount(*l.SalaryMin), period)
	default:
		return fmt.Sprintf("Up to %s %s%s", currency, formatAmount(*l.SalaryMax), period)
	}
}

func formatAmount(v float64) string {
	raw := fmt.Sprintf("%.2f", v)
	intPart, frac, _ := strings.Cut(raw, ".")
	negative := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if negative {
		out = "-" + out
	}
	return out
}

// UserProfile holds a candidate's identity, history and preferences.
type UserProfile struct {
	ID             uint                               `gorm:"primaryKey" json:"id"`
	Name           string                             `gorm:"size:255;not null" json:"name"`
	Email          string                             `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone          string                             `gorm:"size:20" json:"phone"`
	Location       string                             `gorm:"size:255" json:"location"`
	Title          string                             `gorm:"size:255" json:"title"`
	Summary        string                             `gorm:"type:text" json:"summary"`
	Skills         datatypes.JSONSlice[string]        `json:"skills"`
	Experience     datatypes.JSONSlice[Experience]    `json:"experience"`
	Education      datatypes.JSONSlice[Education]     `json:"education"`
	Certifications datatypes.JSONSlice[Certification] `json:"certifications"`
	Languages      datatypes.JSONSlice[Language]      `json:"languages"`
	ResumeURL      string                             `gorm:"size:512" json:"resume_url"`
	LinkedinURL    string                             `gorm:"size:512" json:"linkedin_url"`
	GithubURL      string                             `gorm:"size:512" json:"github_url"`
	WebsiteURL     string                             `gorm:"size:512" json:"website_url"`
	IsActive       bool                               `gorm:"index" json:"is_active"`
	Preferences    datatypes.JSONType[Preferences]    `json:"preferences"`
	CreatedAt      time.Time                          `json:"created_at"`
	UpdatedAt      time.Time                          `json:"updated_at"`
	DeletedAt      gorm.DeletedAt                     `gorm:"index" json:"-"`
}

// Experience dates use the YYYY-MM-DD layout; EndDate is empty while Current.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Current     bool   `json:"current"`
	Description string `json:"description,omitempty"`
}

type Education struct {
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date,omitempty"`
	Current      bool   `json:"current"`
	Description  string `json:"description,omitempty"`
}

type Certification struct {
	Name           string `json:"name"`
	Issuer         string `json:"issuer"`
	DateObtained   string `json:"date_obtained"`
	ExpirationDate string `json:"expiration_date,omitempty"`
}

type Language struct {
	Language    string `json:"language"`
	Proficiency string `json:"proficiency"`
}

type Preferences struct {
	MinSalary      *float64 `json:"min_salary,omitempty"`
	MaxSalary      *float64 `json:"max_salary,omitempty"`
	SalaryCurrency string   `json:"salary_currency,omitempty"`
	Locations      []string `json:"locations,omitempty"`
	Remote         *bool    `json:"remote,omitempty"`
}

// SearchCriteria is a named filter set used to build ingestion queries.
type SearchCriteria struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	UserProfileID   uint                        `gorm:"not null;index" json:"user_profile_id"`
	UserProfile     *UserProfile                `gorm:"constraint:OnDelete:CASCADE" json:"user_profile,omitempty"`
	Name            string                      `gorm:"size:255;not null" json:"name"`
	IsDefault       bool                        `json:"is_default"`
	Keywords        datatypes.JSONSlice[string] `json:"keywords"`
	Locations       datatypes.JSONSlice[string] `json:"locations"`
	JobType         string                      `gorm:"size:32" json:"job_type"`
	ExperienceLevel string                      `gorm:"size:32" json:"experience_level"`
	MinSalary       *float64                    `json:"min_salary"`
	MaxSalary       *float64                    `json:"max_salary"`
	SalaryCurrency  string                      `gorm:"size:3" json:"salary_currency"`
	IsRemote        *bool                       `json:"is_remote"`
	Industries      datatypes.JSONSlice[string] `json:"industries"`
	Companies       datatypes.JSONSlice[string] `json:"companies"`
	JobTitles       datatypes.JSONSlice[string] `json:"job_titles"`
	SkillsIncluded  datatypes.JSONSlice[string] `json:"skills_included"`
	SkillsExcluded  datatypes.JSONSlice[string] `json:"skills_excluded"`
	DaysPosted      *int                        `json:"days_posted"`
	IsActive        bool                        `gorm:"index" json:"is_active"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	DeletedAt       gorm.DeletedAt              `gorm:"index" json:"-"`
}

func (SearchCriteria) TableName() string { return "search_criteria" }

// Match is the scored association between a profile and a listing.
type Match struct {
	ID                     uint                              `gorm:"primaryKey" json:"id"`
	UserProfileID          uint                              `gorm:"not null;uniqueIndex:idx_matches_profile_listing" json:"user_profile_id"`
	UserProfile            *UserProfile                      `gorm:"constraint:OnDelete:CASCADE" json:"user_profile,omitempty"`
	ListingID              uint                              `gorm:"not null;uniqueIndex:idx_matches_profile_listing;index" json:"listing_id"`
	Listing                *Listing                          `gorm:"constraint:OnDelete:CASCADE" json:"listing,omitempty"`
	SearchCriteriaID       *uint                             `gorm:"index" json:"search_criteria_id"`
	SearchCriteria         *SearchCriteria                   `gorm:"constraint:OnDelete:SET NULL" json:"search_criteria,omitempty"`
	OverallScore           int                               `gorm:"not null;index" json:"overall_score"`
	SkillsScore            *int                              `json:"skills_score"`
	ExperienceScore        *int                              `json:"experience_score"`
	EducationScore         *int                              `json:"education_score"`
	CompanyFitScore        *int                              `json:"company_fit_score"`
	Strengths              datatypes.JSONSlice[string]       `json:"strengths"`
	Weaknesses             datatypes.JSONSlice[string]       `json:"weaknesses"`
	MatchingSkills         datatypes.JSONSlice[string]       `json:"matching_skills"`
	MissingSkills          datatypes.JSONSlice[string]       `json:"missing_skills"`
	MatchSummary           string                            `gorm:"type:text" json:"match_summary"`
	ImprovementSuggestions string                            `gorm:"type:text" json:"improvement_suggestions"`
	ApplicationAdvice      string                            `gorm:"type:text" json:"application_advice"`
	IsInterested           bool                              `json:"is_interested"`
	IsNotInterested        bool                              `json:"is_not_interested"`
	UserNotes              string                            `gorm:"type:text" json:"user_notes"`
	ViewedAt               *time.Time                        `json:"viewed_at"`
	AppliedAt              *time.Time                        `json:"applied_at"`
	RejectedAt             *time.Time                        `json:"rejected_at"`
	Status                 string                            `gorm:"size:32;not null;index" json:"status"`
	StatusHistory          datatypes.JSONSlice[StatusChange] `json:"status_history"`
	RawAnalysis            datatypes.JSON                    `json:"raw_analysis,omitempty"`
	CreatedAt              time.Time                         `json:"created_at"`
	UpdatedAt              time.Time                         `json:"updated_at"`
	DeletedAt              gorm.DeletedAt                    `gorm:"index" json:"-"`
}

// StatusChange is one entry of a match's append-only status log.
type StatusChange struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}

// IngestRun records one ingestion call for auditing.
type IngestRun struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	BoardID          uint       `gorm:"not null;index" json:"board_id"`
	SearchCriteriaID *uint      `gorm:"index" json:"search_criteria_id"`
	Query            string     `gorm:"type:text" json:"query"`
	Provider         string     `gorm:"size:32" json:"provider"`
	Status           string     `gorm:"size:16;not null;index" json:"status"`
	Fetched          int        `json:"fetched"`
	Normalized       int        `json:"normalized"`
	Skipped          int        `json:"skipped"`
	Duplicates       int        `json:"duplicates"`
	Persisted        int        `json:"persisted"`
	ArchiveKey       string     `gorm:"size:512" json:"archive_key,omitempty"`
	Error            string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Ingest run states.
const (
	IngestRunning   = "running"
	IngestCompleted = "completed"
	IngestFailed    = "failed"
)
