package models

import (
	"time"

	"namex/pkg/domain"
)

// NameRequest is the aggregate root. It owns its name choices, applicant,
// comments and partner-jurisdiction records.
type NameRequest struct {
	ID                 domain.RequestID  `json:"id"`
	NRNum              domain.NRNumber   `json:"nrNum"`
	StateCd            State             `json:"stateCd"`
	PreviousStateCd    *State            `json:"previousStateCd"`
	EntityTypeCd       string            `json:"entity_type_cd"`
	RequestActionCd    string            `json:"request_action_cd"`
	RequestTypeCd      string            `json:"requestTypeCd"`
	ConsentFlag        *string           `json:"consentFlag"`
	ConsentDate        *time.Time        `json:"consent_dt"`
	ExpirationDate     *time.Time        `json:"expirationDate"`
	Furnished          string            `json:"furnished"`
	CheckedOutBy       *string           `json:"checkedOutBy"`
	CheckedOutDt       *time.Time        `json:"checkedOutDt"`
	PriorityCd         string            `json:"priorityCd"`
	PriorityDate       *time.Time        `json:"priorityDate"`
	SubmittedDate      time.Time         `json:"submittedDate"`
	LastUpdate         time.Time         `json:"lastUpdate"`
	HasBeenReset       bool              `json:"hasBeenReset"`
	UserID             domain.UserID     `json:"userId"`
	CorpNum            string            `json:"corpNum"`
	AdditionalInfo     string            `json:"additionalInfo"`
	NatureBusinessInfo string            `json:"natureBusinessInfo"`
	TradeMark          string            `json:"tradeMark"`
	XproJurisdiction   string            `json:"xproJurisdiction"`
	HomeJurisNum       string            `json:"homeJurisNum"`
	PreviousNr         string            `json:"previousNr"`
	PreviousRequestID  *domain.RequestID `json:"previousRequestId"`

	Names        []*NameChoice  `json:"names"`
	Applicant    *Applicant     `json:"applicants"`
	Comments     []*Comment     `json:"comments"`
	PartnerNames []*PartnerName `json:"nwpta"`
}

// NameChoice is one of up to three ranked names on a request.
type NameChoice struct {
	ID              int64      `json:"id"`
	Choice          int        `json:"choice"`
	Name            string     `json:"name"`
	State           NameState  `json:"state"`
	Designation     string     `json:"designation"`
	DecisionText    string     `json:"decision_text"`
	NameTypeCd      string     `json:"name_type_cd"`
	Conflict1       string     `json:"conflict1"`
	Conflict2       string     `json:"conflict2"`
	Conflict3       string     `json:"conflict3"`
	Conflict1Num    string     `json:"conflict1_num"`
	Conflict2Num    string     `json:"conflict2_num"`
	Conflict3Num    string     `json:"conflict3_num"`
	ConsumptionDate *time.Time `json:"consumptionDate"`
	CorpNum         string     `json:"corpNum"`
	CommentID       *int64     `json:"commentId"`
}

// Applicant is the primary contact and address on a request.
type Applicant struct {
	LastName               string `json:"lastName"`
	FirstName              string `json:"firstName"`
	MiddleName             string `json:"middleName"`
	PhoneNumber            string `json:"phoneNumber"`
	FaxNumber              string `json:"faxNumber"`
	EmailAddress           string `json:"emailAddress"`
	Contact                string `json:"contact"`
	ClientFirstName        string `json:"clientFirstName"`
	ClientLastName         string `json:"clientLastName"`
	DeclineNotificationInd string `json:"declineNotificationInd"`
	AddrLine1              string `json:"addrLine1"`
	AddrLine2              string `json:"addrLine2"`
	AddrLine3              string `json:"addrLine3"`
	City                   string `json:"city"`
	PostalCd               string `json:"postalCd"`
	StateProvinceCd        string `json:"stateProvinceCd"`
	CountryTypeCd          string `json:"countryTypeCd"`
}

// Comment is an append-only examiner note.
type Comment struct {
	ID         int64         `json:"id"`
	Comment    string        `json:"comment"`
	ExaminerID domain.UserID `json:"examinerId"`
	Examiner   string        `json:"examiner"`
	Timestamp  time.Time     `json:"timestamp"`
}

// PartnerName is a New West Partnership jurisdiction record (AB, SK, ...).
type PartnerName struct {
	JurisdictionTypeCd string     `json:"partnerJurisdictionTypeCd"`
	NameTypeCd         string     `json:"partnerNameTypeCd"`
	NameNumber         string     `json:"partnerNameNumber"`
	NameDate           *time.Time `json:"partnerNameDate"`
	Name               string     `json:"partnerName"`
}

// IsCheckedOut reports whether a checkout token is held.
func (r *NameRequest) IsCheckedOut() bool {
	return r.CheckedOutBy != nil
}

// HeldBy reports whether token matches the current checkout token.
func (r *NameRequest) HeldBy(token *string) bool {
	if r.CheckedOutBy == nil || token == nil {
		return r.CheckedOutBy == nil && token == nil
	}
	return *r.CheckedOutBy == *token
}

// ApplyCheckout records a fresh checkout token.
func (r *NameRequest) ApplyCheckout(token string, at time.Time) {
	r.CheckedOutBy = &token
	r.CheckedOutDt = &at
}

// ApplyCheckin releases the checkout token.
func (r *NameRequest) ApplyCheckin() {
	r.CheckedOutBy = nil
	r.CheckedOutDt = nil
}

// NameChoice returns the name with the given rank, or nil.
func (r *NameRequest) NameChoice(choice int) *NameChoice {
	for _, n := range r.Names {
		if n.Choice == choice {
			return n
		}
	}
	return nil
}

// SetConsent sets or clears the consent flag.
func (r *NameRequest) SetConsent(flag *string) {
	if flag == nil {
		r.ConsentFlag = nil
		r.ConsentDate = nil
		return
	}
	v := *flag
	r.ConsentFlag = &v
}

// ConsentIs compares the consent flag, treating nil as distinct from any value.
func (r *NameRequest) ConsentIs(flag string) bool {
	return r.ConsentFlag != nil && *r.ConsentFlag == flag
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (r *NameRequest) Clone() *NameRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.PreviousStateCd = clonePtr(r.PreviousStateCd)
	c.ConsentFlag = clonePtr(r.ConsentFlag)
	c.ConsentDate = clonePtr(r.ConsentDate)
	c.ExpirationDate = clonePtr(r.ExpirationDate)
	c.CheckedOutBy = clonePtr(r.CheckedOutBy)
	c.CheckedOutDt = clonePtr(r.CheckedOutDt)
	c.PriorityDate = clonePtr(r.PriorityDate)
	c.PreviousRequestID = clonePtr(r.PreviousRequestID)
	if r.Applicant != nil {
		a := *r.Applicant
		c.Applicant = &a
	}
	c.Names = make([]*NameChoice, len(r.Names))
	for i, n := range r.Names {
		nc := *n
		nc.ConsumptionDate = clonePtr(n.ConsumptionDate)
		nc.CommentID = clonePtr(n.CommentID)
		c.Names[i] = &nc
	}
	c.Comments = make([]*Comment, len(r.Comments))
	for i, cm := range r.Comments {
		cc := *cm
		c.Comments[i] = &cc
	}
	c.PartnerNames = make([]*PartnerName, len(r.PartnerNames))
	for i, p := range r.PartnerNames {
		pc := *p
		pc.NameDate = clonePtr(p.NameDate)
		c.PartnerNames[i] = &pc
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
