// Package validation checks request payloads before any aggregate is touched.
// Nothing here mutates state: every function either returns nil or a domain
// error carrying the reasons the payload was rejected.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"namex/internal/namerequest/models"
	"namex/internal/namerequest/policy"
	dErrors "namex/pkg/domain-errors"
)

const invalidPayload = "Invalid request payload"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names so messages match what the caller sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidatePut checks a full replace payload. Required fields abort at once;
// everything else is collected and reported together.
func ValidatePut(p *PutPayload) error {
	if p == nil {
		return dErrors.New(dErrors.CodeBadRequest, "Request body is required")
	}
	raw := p.TargetState()
	if raw == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "Name Request state is required")
	}
	state, err := models.ParseState(raw)
	if err != nil {
		return err
	}
	if !policy.IsPutState(state) {
		return dErrors.New(dErrors.CodeInvalidInput, invalidStateChange(state))
	}

	var details []string
	details = append(details, structErrors(p)...)
	details = append(details, CheckNameChoices(nameTexts(p.Names))...)
	if len(details) > 0 {
		return dErrors.WithDetails(dErrors.CodeValidation, invalidPayload, details)
	}
	return nil
}

// ValidatePatch checks a partial update against the state it would leave the
// request in. An absent state means the current one.
func ValidatePatch(p *PatchPayload, current models.State, action string) error {
	if _, err := models.ParsePatchAction(action); err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	target := current
	if p.StateCd.Present() {
		raw, ok := p.StateCd.Value()
		if !ok {
			return dErrors.New(dErrors.CodeInvalidInput, "Name Request state cannot be null")
		}
		s, err := models.ParseState(raw)
		if err != nil {
			return err
		}
		target = s
	}
	if !policy.IsEditable(target) {
		return dErrors.New(dErrors.CodeInvalidInput, invalidStateChange(target))
	}

	var details []string
	if a, ok := p.Applicants.Value(); ok {
		if email, ok := a.EmailAddress.Value(); ok && email != "" {
			if err := validate.Var(email, "email,max=75"); err != nil {
				details = append(details, "applicants.emailAddress must be a valid email address")
			}
		}
	}
	if flag, ok := p.ConsentFlag.Value(); ok && !isFlag(flag, "Y", "N", "R") {
		details = append(details, fmt.Sprintf("consentFlag must be one of Y, N, R, got %q", flag))
	}
	if pr, ok := p.PriorityCd.Value(); ok && !isFlag(pr, "Y", "N") {
		details = append(details, fmt.Sprintf("priorityCd must be one of Y, N, got %q", pr))
	}
	for _, n := range p.Names {
		if n.Choice < 1 || n.Choice > 3 {
			details = append(details, fmt.Sprintf("names.choice must be between 1 and 3, got %d", n.Choice))
		}
		if s, ok := n.State.Value(); ok && !validNameState(s) {
			details = append(details, fmt.Sprintf("names.state %q is not a valid name state", s))
		}
	}
	for _, c := range p.Comments {
		details = append(details, structErrors(c)...)
	}
	if len(details) > 0 {
		return dErrors.WithDetails(dErrors.CodeValidation, invalidPayload, details)
	}
	return nil
}

// ValidateStateChange checks a staff state change. Consumption preconditions
// depend on the stored names and are enforced by the service.
func ValidateStateChange(p *StateChangePayload) error {
	if p == nil {
		return dErrors.New(dErrors.CodeBadRequest, "Request body is required")
	}
	if p.State.Present() {
		raw, ok := p.State.Value()
		if !ok {
			return dErrors.New(dErrors.CodeInvalidInput, "Name Request state cannot be null")
		}
		if _, err := models.ParseState(raw); err != nil {
			return err
		}
	}
	if raw, ok := p.PreviousStateCd.Value(); ok && raw != "" {
		if _, err := models.ParseState(raw); err != nil {
			return err
		}
	}
	var details []string
	for _, c := range p.Comments {
		details = append(details, structErrors(c)...)
	}
	if len(details) > 0 {
		return dErrors.WithDetails(dErrors.CodeValidation, invalidPayload, details)
	}
	return nil
}

// ValidateNamePatch checks an examiner's edit of a single name choice.
func ValidateNamePatch(p *NamePatch, choice int) error {
	if p == nil {
		return dErrors.New(dErrors.CodeBadRequest, "Request body is required")
	}
	if choice < 1 || choice > 3 {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("name choice must be between 1 and 3, got %d", choice))
	}
	if p.Choice != 0 && p.Choice != choice {
		return dErrors.New(dErrors.CodeInvalidInput, "name choice in body does not match the path")
	}
	var details []string
	if s, ok := p.State.Value(); ok && !validNameState(s) {
		details = append(details, fmt.Sprintf("state %q is not a valid name state", s))
	}
	if p.State.IsNull() {
		details = append(details, "state cannot be null")
	}
	if name, ok := p.Name.Value(); ok && len(name) > 1024 {
		details = append(details, "name is too long, max: 1024")
	}
	if p.Comment != nil {
		details = append(details, structErrors(p.Comment)...)
	}
	if len(details) > 0 {
		return dErrors.WithDetails(dErrors.CodeValidation, invalidPayload, details)
	}
	return nil
}

// ValidateComment checks a single posted comment.
func ValidateComment(p *CommentPost) error {
	if p == nil {
		return dErrors.New(dErrors.CodeBadRequest, "Request body is required")
	}
	if strings.TrimSpace(p.Comment) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "comment is required")
	}
	if details := structErrors(p); len(details) > 0 {
		return dErrors.WithDetails(dErrors.CodeValidation, invalidPayload, details)
	}
	return nil
}

// CheckNameChoices applies the ranking rules to the name text keyed by choice:
// choice 1 must be present and choice 3 needs a choice 2.
func CheckNameChoices(names map[int]string) []string {
	var details []string
	if strings.TrimSpace(names[1]) == "" {
		details = append(details, "Data does not include a name choice 1")
	}
	if strings.TrimSpace(names[3]) != "" && strings.TrimSpace(names[2]) == "" {
		details = append(details, "Data contains a name choice 3 without a name choice 2")
	}
	return details
}

func nameTexts(names []NamePayload) map[int]string {
	out := make(map[int]string, len(names))
	for _, n := range names {
		out[n.Choice] = n.Name
	}
	return out
}

func structErrors(s any) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s is too long, max: %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s is too short, min: %s", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func invalidStateChange(s models.State) string {
	return fmt.Sprintf("Invalid state change requested - the Name Request state cannot be changed to [%s]", s)
}

func isFlag(v string, allowed ...string) bool { return slices.Contains(allowed, v) }

func validNameState(s string) bool {
	switch models.NameState(s) {
	case models.NameNotExamined, models.NameApproved, models.NameCondition, models.NameRejected:
		return true
	}
	return false
}
