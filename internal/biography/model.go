package biography

import (
	"strings"
	"time"
)

// Stage identifies which lifecycle table a biography lives in.
type Stage string

const (
	// StagePending holds submitted biographies awaiting review.
	StagePending Stage = "pending"
	// StageValidated holds accepted biographies eligible for publication.
	StageValidated Stage = "validated"
)

const (
	tablePending        = "biography_pending"
	tableValidated      = "biography_validated"
	tableEvents         = "events"
	tableEventBiography = "event_biography"
	tableKeywords       = "itu_keywords"

	keywordSeparator = ";"
)

func (s Stage) table() string {
	if s == StageValidated {
		return tableValidated
	}
	return tablePending
}

// Record is the persisted biography row shared by the pending and validated tables.
// Column names match the legacy schema.
type Record struct {
	BiographyID          string `gorm:"column:BiographyID;primaryKey;size:64;not null"`
	FirstName            string `gorm:"column:FirstName;size:190"`
	LastName             string `gorm:"column:LastName;size:190"`
	Title                string `gorm:"column:Title;size:64"`
	JobTitle             string `gorm:"column:JobTitle;size:190"`
	Email                string `gorm:"column:Email;size:320;not null;uniqueIndex"`
	Country              string `gorm:"column:Country;size:128"`
	LinkedInPage         string `gorm:"column:LinkedInPage;size:512"`
	TwitterPage          string `gorm:"column:TwitterPage;size:512"`
	FacebookPage         string `gorm:"column:FacebookPage;size:512"`
	SocialNetworkPage    string `gorm:"column:SocialNetworkPage;size:512"`
	PersonalPhotoName    string `gorm:"column:PersonalPhotoName;size:255"`
	IEEEPage             string `gorm:"column:IEEEPage;size:512"`
	PersonalWebPage      string `gorm:"column:PersonalWebPage;size:512"`
	Organization         string `gorm:"column:Organization;size:255"`
	Region               string `gorm:"column:Region;size:128"`
	GoogleScholarProfile string `gorm:"column:GoogleScholarProfile;size:512"`
	Gender               string `gorm:"column:Gender;size:32"`
	Keywords             string `gorm:"column:Keywords;type:text"`
	Biography            string `gorm:"column:Biography;type:text"`
}

// PendingBiography binds Record to the pending table.
type PendingBiography struct {
	Record
}

// TableName provides the explicit table binding for GORM.
func (PendingBiography) TableName() string {
	return tablePending
}

// ValidatedBiography binds Record to the validated table.
type ValidatedBiography struct {
	Record
}

// TableName provides the explicit table binding for GORM.
func (ValidatedBiography) TableName() string {
	return tableValidated
}

// Event is a named conference event biographies can be linked to.
type Event struct {
	EventID    string    `gorm:"column:EventID;primaryKey;size:64;not null" json:"EventID"`
	EventName  string    `gorm:"column:EventName;size:255;not null;uniqueIndex" json:"EventName"`
	CreateDate time.Time `gorm:"column:CreateDate;not null;index" json:"CreateDate"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return tableEvents
}

// EventBiography links an event to a biography identifier in either stage.
type EventBiography struct {
	EventID     string `gorm:"column:EventID;primaryKey;size:64;not null"`
	BiographyID string `gorm:"column:BiographyID;primaryKey;size:64;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (EventBiography) TableName() string {
	return tableEventBiography
}

// Keyword is one entry of the controlled ITU vocabulary.
type Keyword struct {
	KwText string `gorm:"column:KwText;primaryKey;size:255;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Keyword) TableName() string {
	return tableKeywords
}

// Models lists every persisted type, in migration order.
func Models() []any {
	return []any{&Event{}, &PendingBiography{}, &ValidatedBiography{}, &EventBiography{}, &Keyword{}}
}

// Submission is the biography payload posted by submitters and administrators.
type Submission struct {
	FirstName            string   `json:"FirstName"`
	LastName             string   `json:"LastName"`
	Title                string   `json:"Title"`
	JobTitle             string   `json:"JobTitle"`
	Email                string   `json:"Email"`
	Country              string   `json:"Country"`
	LinkedInPage         string   `json:"LinkedInPage"`
	TwitterPage          string   `json:"TwitterPage"`
	FacebookPage         string   `json:"FacebookPage"`
	SocialNetworkPage    string   `json:"SocialNetworkPage"`
	IEEEPage             string   `json:"IEEEPage"`
	PersonalWebPage      string   `json:"PersonalWebPage"`
	Organization         string   `json:"Organization"`
	Region               string   `json:"Region"`
	GoogleScholarProfile string   `json:"GoogleScholarProfile"`
	Gender               string   `json:"Gender"`
	Keywords             []string `json:"Keywords"`
	Biography            string   `json:"Biography"`
}

// PhotoUpload carries a client supplied photo.
type PhotoUpload struct {
	Filename string
	Contents []byte
}

// Profile is the enriched, publishable view of a biography.
type Profile struct {
	BiographyID          string   `json:"BiographyID"`
	FirstName            string   `json:"FirstName"`
	LastName             string   `json:"LastName"`
	Title                string   `json:"Title"`
	JobTitle             string   `json:"JobTitle"`
	Email                string   `json:"Email"`
	Country              string   `json:"Country"`
	LinkedInPage         string   `json:"LinkedInPage"`
	TwitterPage          string   `json:"TwitterPage"`
	FacebookPage         string   `json:"FacebookPage"`
	SocialNetworkPage    string   `json:"SocialNetworkPage"`
	PersonalPhotoName    string   `json:"PersonalPhotoName"`
	IEEEPage             string   `json:"IEEEPage"`
	PersonalWebPage      string   `json:"PersonalWebPage"`
	Organization         string   `json:"Organization"`
	Region               string   `json:"Region"`
	GoogleScholarProfile string   `json:"GoogleScholarProfile"`
	Gender               string   `json:"Gender"`
	Keywords             []string `json:"Keywords"`
	Biography            string   `json:"Biography"`
	ProfileURL           string   `json:"ProfileURL,omitempty"`
	Stage                Stage    `json:"Stage"`
}

func newRecord(biographyID, email string, submission Submission, photoName string) Record {
	return Record{
		BiographyID:          biographyID,
		FirstName:            submission.FirstName,
		LastName:             submission.LastName,
		Title:                submission.Title,
		JobTitle:             submission.JobTitle,
		Email:                email,
		Country:              submission.Country,
		LinkedInPage:         submission.LinkedInPage,
		TwitterPage:          submission.TwitterPage,
		FacebookPage:         submission.FacebookPage,
		SocialNetworkPage:    submission.SocialNetworkPage,
		PersonalPhotoName:    photoName,
		IEEEPage:             submission.IEEEPage,
		PersonalWebPage:      submission.PersonalWebPage,
		Organization:         submission.Organization,
		Region:               submission.Region,
		GoogleScholarProfile: submission.GoogleScholarProfile,
		Gender:               submission.Gender,
		Keywords:             JoinKeywords(submission.Keywords),
		Biography:            submission.Biography,
	}
}

// JoinKeywords serializes keywords for storage.
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, keywordSeparator)
}

// SplitKeywords reverses JoinKeywords. The empty string yields an empty list.
func SplitKeywords(stored string) []string {
	if stored == "" {
		return []string{}
	}
	return strings.Split(stored, keywordSeparator)
}

// normalizeEmail is the canonical form emails are stored and compared in.
func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// normalizeIdentifier is the canonical form event and biography identifiers are compared in.
func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
