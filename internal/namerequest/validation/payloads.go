package validation

import (
	"time"

	"namex/internal/namerequest/models"
	"namex/pkg/optional"
)

// CommentPayload is a comment entry. A missing, null or zero id marks a new
// comment; entries with an id refer to existing comments and are ignored.
type CommentPayload struct {
	ID      optional.Field[int64] `json:"id,omitzero"`
	Comment *string               `json:"comment" validate:"omitempty,max=4096"`
}

// IsNew reports whether the entry should be appended.
func (c CommentPayload) IsNew() bool {
	id, ok := c.ID.Value()
	return !ok || id == 0
}

// NamePayload is a full name choice as sent on a replace.
type NamePayload struct {
	Choice          int              `json:"choice" validate:"required,min=1,max=3"`
	Name            string           `json:"name" validate:"max=1024"`
	State           models.NameState `json:"state" validate:"omitempty,oneof=NE APPROVED CONDITION REJECTED"`
	Designation     string           `json:"designation" validate:"max=50"`
	DecisionText    string           `json:"decision_text" validate:"max=1000"`
	NameTypeCd      string           `json:"name_type_cd" validate:"max=10"`
	Conflict1       string           `json:"conflict1"`
	Conflict2       string           `json:"conflict2"`
	Conflict3       string           `json:"conflict3"`
	Conflict1Num    string           `json:"conflict1_num"`
	Conflict2Num    string           `json:"conflict2_num"`
	Conflict3Num    string           `json:"conflict3_num"`
	ConsumptionDate *time.Time       `json:"consumptionDate"`
	CorpNum         string           `json:"corpNum" validate:"max=20"`
	Comment         *CommentPayload  `json:"comment"`
}

// ApplicantPayload is the applicant block of a replace.
type ApplicantPayload struct {
	LastName               string `json:"lastName" validate:"max=50"`
	FirstName              string `json:"firstName" validate:"max=50"`
	MiddleName             string `json:"middleName" validate:"max=50"`
	PhoneNumber            string `json:"phoneNumber" validate:"max=30"`
	FaxNumber              string `json:"faxNumber" validate:"max=30"`
	EmailAddress           string `json:"emailAddress" validate:"omitempty,email,max=75"`
	Contact                string `json:"contact" validate:"max=150"`
	ClientFirstName        string `json:"clientFirstName" validate:"max=50"`
	ClientLastName         string `json:"clientLastName" validate:"max=50"`
	DeclineNotificationInd string `json:"declineNotificationInd" validate:"omitempty,oneof=Y N"`
	AddrLine1              string `json:"addrLine1" validate:"max=200"`
	AddrLine2              string `json:"addrLine2" validate:"max=200"`
	AddrLine3              string `json:"addrLine3" validate:"max=200"`
	City                   string `json:"city" validate:"max=40"`
	PostalCd               string `json:"postalCd" validate:"max=20"`
	StateProvinceCd        string `json:"stateProvinceCd" validate:"max=2"`
	CountryTypeCd          string `json:"countryTypeCd" validate:"max=2"`
}

// PartnerNamePayload is a partner-jurisdiction record on a replace.
type PartnerNamePayload struct {
	JurisdictionTypeCd string     `json:"partnerJurisdictionTypeCd" validate:"required,max=3"`
	NameTypeCd         string     `json:"partnerNameTypeCd" validate:"max=4"`
	NameNumber         string     `json:"partnerNameNumber" validate:"max=20"`
	NameDate           *time.Time `json:"partnerNameDate"`
	Name               string     `json:"partnerName" validate:"max=255"`
}

// PutPayload fully replaces the editable content of a request.
type PutPayload struct {
	NRNum              string               `json:"nrNum"`
	State              string               `json:"state"`
	StateCd            string               `json:"stateCd"`
	CheckedOutBy       *string              `json:"checkedOutBy"`
	EntityTypeCd       string               `json:"entity_type_cd" validate:"max=10"`
	RequestActionCd    string               `json:"request_action_cd" validate:"max=10"`
	RequestTypeCd      string               `json:"requestTypeCd" validate:"max=10"`
	ConsentFlag        *string              `json:"consentFlag" validate:"omitempty,oneof=Y N R"`
	ConsentDate        *time.Time           `json:"consent_dt"`
	ExpirationDate     *time.Time           `json:"expirationDate"`
	Furnished          string               `json:"furnished" validate:"omitempty,oneof=Y N"`
	HasBeenReset       bool                 `json:"hasBeenReset"`
	PriorityCd         string               `json:"priorityCd" validate:"omitempty,oneof=Y N"`
	PriorityDate       *time.Time           `json:"priorityDate"`
	SubmittedDate      *time.Time           `json:"submittedDate"`
	CorpNum            string               `json:"corpNum" validate:"max=20"`
	AdditionalInfo     string               `json:"additionalInfo" validate:"max=150"`
	NatureBusinessInfo string               `json:"natureBusinessInfo" validate:"max=1000"`
	TradeMark          string               `json:"tradeMark" validate:"max=100"`
	XproJurisdiction   string               `json:"xproJurisdiction" validate:"max=40"`
	HomeJurisNum       string               `json:"homeJurisNum" validate:"max=40"`
	PreviousNr         string               `json:"previousNr" validate:"max=12"`
	Names              []NamePayload        `json:"names" validate:"max=3,dive"`
	Applicants         *ApplicantPayload    `json:"applicants"`
	Comments           []CommentPayload     `json:"comments" validate:"dive"`
	PartnerNames       []PartnerNamePayload `json:"nwpta" validate:"dive"`
}

// TargetState returns the requested state, accepting either spelling.
func (p *PutPayload) TargetState() string {
	if p.State != "" {
		return p.State
	}
	return p.StateCd
}

// ApplicantPatch carries only the applicant fields the caller sent.
type ApplicantPatch struct {
	LastName        optional.Field[string] `json:"lastName,omitzero"`
	FirstName       optional.Field[string] `json:"firstName,omitzero"`
	MiddleName      optional.Field[string] `json:"middleName,omitzero"`
	PhoneNumber     optional.Field[string] `json:"phoneNumber,omitzero"`
	FaxNumber       optional.Field[string] `json:"faxNumber,omitzero"`
	EmailAddress    optional.Field[string] `json:"emailAddress,omitzero"`
	Contact         optional.Field[string] `json:"contact,omitzero"`
	ClientFirstName optional.Field[string] `json:"clientFirstName,omitzero"`
	ClientLastName  optional.Field[string] `json:"clientLastName,omitzero"`
	AddrLine1       optional.Field[string] `json:"addrLine1,omitzero"`
	AddrLine2       optional.Field[string] `json:"addrLine2,omitzero"`
	AddrLine3       optional.Field[string] `json:"addrLine3,omitzero"`
	City            optional.Field[string] `json:"city,omitzero"`
	PostalCd        optional.Field[string] `json:"postalCd,omitzero"`
	StateProvinceCd optional.Field[string] `json:"stateProvinceCd,omitzero"`
	CountryTypeCd   optional.Field[string] `json:"countryTypeCd,omitzero"`
}

// NamePatch carries only the name fields the caller sent for one choice.
type NamePatch struct {
	Choice       int                    `json:"choice"`
	Name         optional.Field[string] `json:"name,omitzero"`
	State        optional.Field[string] `json:"state,omitzero"`
	Designation  optional.Field[string] `json:"designation,omitzero"`
	DecisionText optional.Field[string] `json:"decision_text,omitzero"`
	Conflict1    optional.Field[string] `json:"conflict1,omitzero"`
	Conflict2    optional.Field[string] `json:"conflict2,omitzero"`
	Conflict3    optional.Field[string] `json:"conflict3,omitzero"`
	Conflict1Num optional.Field[string] `json:"conflict1_num,omitzero"`
	Conflict2Num optional.Field[string] `json:"conflict2_num,omitzero"`
	Conflict3Num optional.Field[string] `json:"conflict3_num,omitzero"`
	Comment      *CommentPayload        `json:"comment"`
}

// PatchPayload is a partial update. Absent keys are left untouched; explicit
// nulls clear nullable columns.
type PatchPayload struct {
	StateCd            optional.Field[string]         `json:"stateCd,omitzero"`
	CheckedOutBy       optional.Field[string]         `json:"checkedOutBy,omitzero"`
	EntityTypeCd       optional.Field[string]         `json:"entity_type_cd,omitzero"`
	RequestActionCd    optional.Field[string]         `json:"request_action_cd,omitzero"`
	RequestTypeCd      optional.Field[string]         `json:"requestTypeCd,omitzero"`
	ConsentFlag        optional.Field[string]         `json:"consentFlag,omitzero"`
	CorpNum            optional.Field[string]         `json:"corpNum,omitzero"`
	AdditionalInfo     optional.Field[string]         `json:"additionalInfo,omitzero"`
	NatureBusinessInfo optional.Field[string]         `json:"natureBusinessInfo,omitzero"`
	TradeMark          optional.Field[string]         `json:"tradeMark,omitzero"`
	XproJurisdiction   optional.Field[string]         `json:"xproJurisdiction,omitzero"`
	HomeJurisNum       optional.Field[string]         `json:"homeJurisNum,omitzero"`
	PreviousNr         optional.Field[string]         `json:"previousNr,omitzero"`
	PriorityCd         optional.Field[string]         `json:"priorityCd,omitzero"`
	Applicants         optional.Field[ApplicantPatch] `json:"applicants,omitzero"`
	Names              []NamePatch                    `json:"names"`
	Comments           []CommentPayload               `json:"comments"`
}

// StateChangePayload is the staff state-change request.
type StateChangePayload struct {
	State           optional.Field[string] `json:"state,omitzero"`
	PreviousStateCd optional.Field[string] `json:"previousStateCd,omitzero"`
	CorpNum         optional.Field[string] `json:"corpNum,omitzero"`
	Comments        []CommentPayload       `json:"comments"`
}

// CommentPost is a single staff comment.
type CommentPost struct {
	Comment string `json:"comment" validate:"required,max=4096"`
}
