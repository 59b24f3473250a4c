// Package corpus holds the legal knowledge entries that retrieval ranks.
//
// Entries are read-only once loaded. Creating and editing entries is the
// job of the entry-management service; this package only reads its exports.
package corpus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntryType is the kind of legal provision an entry represents.
type EntryType string

const (
	TypeStatuteSection        EntryType = "statute_section"
	TypeRuleOfCourt           EntryType = "rule_of_court"
	TypeConstitutionProvision EntryType = "constitution_provision"
	TypeRightsAdvisory        EntryType = "rights_advisory"
	TypeAgencyCircular        EntryType = "agency_circular"
	TypeDOJIssuance           EntryType = "doj_issuance"
	TypeExecutiveIssuance     EntryType = "executive_issuance"
	TypeCityOrdinanceSection  EntryType = "city_ordinance_section"
	TypeJurisprudence         EntryType = "jurisprudence"
	TypePNPSOP                EntryType = "pnp_sop"
	TypeIncidentChecklist     EntryType = "incident_checklist"
)

var knownTypes = map[EntryType]bool{
	TypeStatuteSection:        true,
	TypeRuleOfCourt:           true,
	TypeConstitutionProvision: true,
	TypeRightsAdvisory:        true,
	TypeAgencyCircular:        true,
	TypeDOJIssuance:           true,
	TypeExecutiveIssuance:     true,
	TypeCityOrdinanceSection:  true,
	TypeJurisprudence:         true,
	TypePNPSOP:                true,
	TypeIncidentChecklist:     true,
}

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	return knownTypes[t]
}

// IsStatuteLike reports whether entries of this type define offenses with
// elements and penalties.
func (t EntryType) IsStatuteLike() bool {
	return t == TypeStatuteSection || t == TypeCityOrdinanceSection
}

// HasArticles reports whether entries of this type are cited by article number.
func (t EntryType) HasArticles() bool {
	return t == TypeStatuteSection || t == TypeConstitutionProvision
}

// Status is the legal status of a provision.
type Status string

const (
	StatusActive   Status = "active"
	StatusAmended  Status = "amended"
	StatusRepealed Status = "repealed"
)

// Valid reports whether s is a known status. Empty is treated as unknown.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusAmended, StatusRepealed:
		return true
	}
	return false
}

// Date is a calendar date that accepts "2006-01-02" and RFC 3339 in JSON.
type Date struct {
	time.Time
}

// dateLayouts are tried in order when decoding.
var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01", "2006"}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("effective_date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", s)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

// String returns the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Entry is a single legal provision or document.
type Entry struct {
	// ID is globally unique and never changes once assigned.
	ID                string    `json:"entry_id"`
	Type              EntryType `json:"type"`
	Title             string    `json:"title"`
	CanonicalCitation string    `json:"canonical_citation"`
	Summary           string    `json:"summary,omitempty"`
	BodyText          string    `json:"text,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	LawFamily         string    `json:"law_family,omitempty"`
	SectionID         string    `json:"section_id,omitempty"`
	Status            Status    `json:"status,omitempty"`
	EffectiveDate     Date      `json:"effective_date"`
	// Verified is nil when nobody has reviewed the entry.
	Verified     *bool     `json:"verified,omitempty"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	SourceURLs   []string  `json:"source_urls,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`

	// Rule of court fields.
	RuleNo    string `json:"rule_no,omitempty"`
	SectionNo string `json:"section_no,omitempty"`

	// Article-numbered provisions (statutes, constitution).
	ArticleNo string `json:"article_no,omitempty"`

	// Statute fields.
	Elements  []string `json:"elements,omitempty"`
	Penalties []string `json:"penalties,omitempty"`
}

// UnmarshalJSON accepts "body_text" as an alias for "text" and
// "article_number" as an alias for "article_no".
func (e *Entry) UnmarshalJSON(b []byte) error {
	type plain Entry
	aux := struct {
		*plain
		BodyAlias    string `json:"body_text"`
		ArticleAlias string `json:"article_number"`
	}{plain: (*plain)(e)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if e.BodyText == "" {
		e.BodyText = aux.BodyAlias
	}
	if e.ArticleNo == "" {
		e.ArticleNo = aux.ArticleAlias
	}
	return nil
}

// Validate checks the invariants an entry must hold to be ranked.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry_id is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("entry %s: unknown type %q", e.ID, e.Type)
	}
	if e.Status != "" && !e.Status.Valid() {
		return fmt.Errorf("entry %s: unknown status %q", e.ID, e.Status)
	}
	return nil
}

// IsVerified reports whether the entry was explicitly verified.
func (e *Entry) IsVerified() bool {
	return e.Verified != nil && *e.Verified
}

// IsActive reports whether the entry is in force. Entries without a
// status are assumed active.
func (e *Entry) IsActive() bool {
	return e.Status == "" || e.Status == StatusActive
}

// TitleCitation returns "title citation", the form exact-citation queries
// are compared against.
func (e *Entry) TitleCitation() string {
	return strings.TrimSpace(e.Title + " " + e.CanonicalCitation)
}

// CitationTitle returns "citation title".
func (e *Entry) CitationTitle() string {
	return strings.TrimSpace(e.CanonicalCitation + " " + e.Title)
}
