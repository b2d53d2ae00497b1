package models

// Request action codes.
const (
	ActionCodeNew          = "NEW"
	ActionCodeChange       = "CHG"
	ActionCodeConvert      = "CNV"
	ActionCodeAmalgamate   = "AML"
	ActionCodeAssumed      = "ASSUMED"
	ActionCodeMove         = "MVE"
	ActionCodeRestore      = "REH"
	ActionCodeReinstate    = "REN"
	ActionCodeDBA          = "DBA"
	ActionCodeNotSupported = "NRO-NEWAML"
)

type entityAction struct {
	entity string
	action string
}

// requestTypeMapping derives entity type and request action for legacy
// requests that only carry a request type code.
var requestTypeMapping = map[string]entityAction{
	"CR":   {"CR", ActionCodeNew},
	"UL":   {"UL", ActionCodeNew},
	"BC":   {"BC", ActionCodeNew},
	"CP":   {"CP", ActionCodeNew},
	"PA":   {"PA", ActionCodeNew},
	"CC":   {"CC", ActionCodeNew},
	"FI":   {"FI", ActionCodeNew},
	"FR":   {"FR", ActionCodeNew},
	"GP":   {"GP", ActionCodeNew},
	"LL":   {"LL", ActionCodeNew},
	"LP":   {"LP", ActionCodeNew},
	"SO":   {"SO", ActionCodeNew},
	"XCR":  {"XCR", ActionCodeNew},
	"XUL":  {"XUL", ActionCodeNew},
	"XCP":  {"XCP", ActionCodeNew},
	"XLL":  {"XLL", ActionCodeNew},
	"XLP":  {"XLP", ActionCodeNew},
	"XSO":  {"XSO", ActionCodeNew},
	"CCR":  {"CR", ActionCodeChange},
	"CUL":  {"UL", ActionCodeChange},
	"CCP":  {"CP", ActionCodeChange},
	"CFI":  {"FI", ActionCodeChange},
	"CLL":  {"LL", ActionCodeChange},
	"CLP":  {"LP", ActionCodeChange},
	"CSO":  {"SO", ActionCodeChange},
	"CCC":  {"CC", ActionCodeChange},
	"CCV":  {"CC", ActionCodeConvert},
	"ULCB": {"UL", ActionCodeConvert},
	"AL":   {"CR", ActionCodeAmalgamate},
	"UA":   {"UL", ActionCodeAmalgamate},
	"AS":   {"XCR", ActionCodeAssumed},
	"UC":   {"UL", ActionCodeAssumed},
	"MVE":  {"XCR", ActionCodeMove},
	"RCR":  {"CR", ActionCodeRestore},
	"RUL":  {"UL", ActionCodeRestore},
	"RCP":  {"CP", ActionCodeRestore},
	"RCC":  {"CC", ActionCodeRestore},
	"RFI":  {"FI", ActionCodeRestore},
	"RSO":  {"SO", ActionCodeRestore},
	"XRCR": {"XCR", ActionCodeReinstate},
	"XRUL": {"XUL", ActionCodeReinstate},
	"XRCP": {"XCP", ActionCodeReinstate},
}

// MapRequestType returns the entity type and request action for a request
// type code.
func MapRequestType(requestTypeCd string) (entity, action string, ok bool) {
	m, ok := requestTypeMapping[requestTypeCd]
	if !ok {
		return "", "", false
	}
	return m.entity, m.action, true
}

// FillEntityAndAction derives missing entity type and request action codes
// from the request type.
func (r *NameRequest) FillEntityAndAction() {
	if r.RequestTypeCd == "" || (r.EntityTypeCd != "" && r.RequestActionCd != "") {
		return
	}
	if entity, action, ok := MapRequestType(r.RequestTypeCd); ok {
		r.EntityTypeCd = entity
		r.RequestActionCd = action
	}
}

// IsRestoration reports whether the request restores or reinstates a
// dissolved entity. These requests get the long expiry window.
func (r *NameRequest) IsRestoration() bool {
	if r.RequestActionCd == ActionCodeRestore || r.RequestActionCd == ActionCodeReinstate {
		return true
	}
	if m, ok := requestTypeMapping[r.RequestTypeCd]; ok {
		return m.action == ActionCodeRestore || m.action == ActionCodeReinstate
	}
	return false
}
