package eligibility

import (
	"context"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
)

// Translator categories
const (
	TypeProfessional  = "professional"
	TypeRWSTranslator = "rwstranslator"
	TypeVolunteer     = "volunteer"
)

// Job types derived from the requester's consumer category
const (
	JobTypePaid   = "paid"
	JobTypeRWS    = "rws"
	JobTypeUnpaid = "unpaid"
)

// Certification levels a translator may hold
const (
	LevelCertified       = "Certified"
	LevelCertifiedLaw    = "Certified with specialisation in law"
	LevelCertifiedHealth = "Certified with specialisation in health care"
	LevelLayman          = "Layman"
	LevelReadCourses     = "Read Translation courses"
)

// DB loads candidate pools
type DB interface {
	ListActiveTranslators(ctx context.Context) ([]*persistence.User, error)
	ListJobsByStatus(ctx context.Context, st string) ([]*persistence.Job, error)
	LoadBlacklist(ctx context.Context, customerID string) ([]string, error)
	SpecificTranslator(ctx context.Context, jobID string) (string, error)
}

// TownChecker answers if two users share a coverage area
type TownChecker interface {
	SameCoverageArea(ctx context.Context, userIDA, userIDB string) (bool, error)
}

// Filter selects which translators may see/accept a job
type Filter struct {
	DB    DB
	Towns TownChecker
}

// NewFilter creates an eligibility filter
func NewFilter(db DB, towns TownChecker) (*Filter, error) {
	if db == nil {
		return nil, fmt.Errorf("no DB")
	}
	if towns == nil {
		return nil, fmt.Errorf("no town checker")
	}
	return &Filter{DB: db, Towns: towns}, nil
}

// JobTypeFor maps translator category to the job type it may serve
func JobTypeFor(translatorType string) string {
	switch translatorType {
	case TypeProfessional:
		return JobTypePaid
	case TypeRWSTranslator:
		return JobTypeRWS
	}
	return JobTypeUnpaid
}

// TranslatorTypeFor maps job type to the translator category serving it
func TranslatorTypeFor(jobType string) string {
	switch jobType {
	case JobTypePaid:
		return TypeProfessional
	case JobTypeRWS:
		return TypeRWSTranslator
	case JobTypeUnpaid:
		return TypeVolunteer
	}
	return ""
}

// LevelsFor expands a job's certification requirement into accepted translator levels.
// Empty requirement accepts every level
func LevelsFor(certified string) []string {
	switch certified {
	case "yes", "both":
		return []string{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth}
	case "law", "n_law":
		return []string{LevelCertifiedLaw}
	case "health", "n_health":
		return []string{LevelCertifiedHealth}
	case "normal":
		return []string{LevelLayman, LevelReadCourses}
	}
	return []string{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth, LevelLayman, LevelReadCourses}
}

// Matches runs the pure per-pair checks: category, language, gender, certification
func Matches(job *persistence.Job, translator *persistence.User) bool {
	if JobTypeFor(translator.TranslatorType) != job.JobType {
		return false
	}
	if !speaks(translator, job.LanguageID) {
		return false
	}
	if job.Gender.Valid && job.Gender.String != translator.Gender {
		return false
	}
	return levelOK(job, translator)
}

func speaks(translator *persistence.User, languageID string) bool {
	for _, l := range translator.Languages {
		if l == languageID {
			return true
		}
	}
	return false
}

func levelOK(job *persistence.Job, translator *persistence.User) bool {
	for _, l := range LevelsFor(job.Certified.String) {
		if l == translator.TranslatorLevel {
			return true
		}
	}
	return false
}

// needsTownCheck - physical presence required and no phone fallback
func needsTownCheck(job *persistence.Job) bool {
	return job.PhysicalType && !job.PhoneType
}

// IsEligible decides whether one translator may see/accept one job
func (f *Filter) IsEligible(ctx context.Context, job *persistence.Job, translator *persistence.User) (bool, error) {
	if !Matches(job, translator) {
		return false, nil
	}
	specific, err := f.DB.SpecificTranslator(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("can't check specific translator: %w", err)
	}
	if specific != "" && specific != translator.ID {
		return false, nil
	}
	if needsTownCheck(job) {
		ok, err := f.Towns.SameCoverageArea(ctx, job.UserID, translator.ID)
		if err != nil {
			return false, fmt.Errorf("can't check towns: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// PotentialTranslators returns translators eligible for the job, minus the customer's blacklist.
// Used for SMS/push fan-out
func (f *Filter) PotentialTranslators(ctx context.Context, job *persistence.Job) ([]*persistence.User, error) {
	users, err := f.DB.ListActiveTranslators(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't load translators: %w", err)
	}
	blacklist, err := f.DB.LoadBlacklist(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("can't load blacklist: %w", err)
	}
	blocked := map[string]bool{}
	for _, id := range blacklist {
		blocked[id] = true
	}
	res := []*persistence.User{}
	for _, u := range users {
		if blocked[u.ID] {
			continue
		}
		ok, err := f.IsEligible(ctx, job, u)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, u)
		}
	}
	goapp.Log.Debug().Str("ID", job.ID).Int("count", len(res)).Msg("potential translators")
	return res, nil
}

// PotentialJobs returns all pending jobs the translator is eligible for
func (f *Filter) PotentialJobs(ctx context.Context, translator *persistence.User) ([]*persistence.Job, error) {
	jobs, err := f.DB.ListJobsByStatus(ctx, status.Pending.String())
	if err != nil {
		return nil, fmt.Errorf("can't load pending jobs: %w", err)
	}
	res := []*persistence.Job{}
	for _, j := range jobs {
		ok, err := f.IsEligible(ctx, j, translator)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, j)
		}
	}
	goapp.Log.Debug().Str("translator", translator.ID).Int("count", len(res)).Msg("potential jobs")
	return res, nil
}
