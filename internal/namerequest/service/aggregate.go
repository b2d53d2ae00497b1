package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	idmodels "namex/internal/identity/models"
	"namex/internal/namerequest/models"
	"namex/internal/namerequest/policy"
	"namex/internal/namerequest/validation"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/optional"
	"namex/pkg/platform/sentinel"
)

const resetComment = "This NR was RESET."

// ExpiryFor returns the end of the legislation day the request expires on.
func (p ExpiryPolicy) ExpiryFor(nr *models.NameRequest, now time.Time) time.Time {
	days := p.Days
	if nr.IsRestoration() {
		days = p.RestorationDays
	}
	local := now.AddDate(0, 0, days).In(p.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 0, 0, p.Location)
}

// applyStateChange moves nr to state and keeps the derived fields in step.
// A nil owner keeps the current owner.
func (s *Service) applyStateChange(nr *models.NameRequest, state models.State, owner *idmodels.User, now time.Time) {
	previous := nr.StateCd

	if state == models.StateInProgress && previous != models.StateInProgress {
		nr.Furnished = models.FlagNo
		p := previous
		nr.PreviousStateCd = &p
	}
	if previous == models.StateInProgress && state != models.StateInProgress {
		nr.PreviousStateCd = nil
	}
	if policy.ClearsReset(state) {
		nr.HasBeenReset = false
	}
	if state != previous && state != models.StateConditional {
		nr.SetConsent(nil)
	}
	if state == models.StateConditional && nr.ConsentFlag == nil {
		y := models.FlagYes
		nr.SetConsent(&y)
	}
	// expiry is stamped once, on the first decision
	if policy.IsDecision(state) && nr.Furnished != models.FlagYes && nr.ExpirationDate == nil {
		exp := s.cfg.Expiry.ExpiryFor(nr, now)
		nr.ExpirationDate = &exp
		nr.Furnished = models.FlagYes
	}

	nr.StateCd = state
	if owner != nil {
		nr.UserID = owner.ID
	}
	nr.LastUpdate = now
}

// demoteActive enforces one in-progress request per examiner. When owner is
// about to take nr into INPROGRESS, any other request they hold in progress
// goes back to its previous state, or HOLD. The demoted request is saved in
// the same transaction and returned.
func (s *Service) demoteActive(ctx context.Context, store Store, owner *idmodels.User, nr *models.NameRequest, state models.State, now time.Time) (*models.NameRequest, error) {
	if state != models.StateInProgress || owner == nil || owner.ID == s.cfg.ServiceAccount.ID {
		return nil, nil
	}
	active, err := store.FindInProgressForUser(ctx, owner.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find active name request")
	}
	if active.ID == nr.ID {
		return nil, nil
	}

	target := models.StateHold
	if active.PreviousStateCd != nil && *active.PreviousStateCd != models.StateInProgress {
		target = *active.PreviousStateCd
	}
	active.StateCd = target
	active.PreviousStateCd = nil
	active.LastUpdate = now
	if err := store.Save(ctx, active); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to demote active name request")
	}
	return active, nil
}

// consume stamps the consuming corporation on every approved or conditioned
// name. Preconditions are checked before any name is touched.
func consume(nr *models.NameRequest, corpNum string, now time.Time) error {
	corpNum = strings.TrimSpace(corpNum)
	if corpNum == "" {
		return dErrors.New(dErrors.CodeInvalidInput, `"corpNum" is required and cannot be empty.`)
	}
	if !slices.ContainsFunc(nr.Names, func(n *models.NameChoice) bool { return n.State.Consumable() }) {
		return dErrors.New(dErrors.CodeInvalidInput, "Cannot find an Approved or Condition name to be consumed.")
	}
	for _, n := range nr.Names {
		if n.State.Consumable() {
			at := now
			n.ConsumptionDate = &at
			n.CorpNum = corpNum
		}
	}
	nr.CorpNum = corpNum
	return nil
}

// ChangeFlags records which parts of the aggregate a replace touched.
type ChangeFlags struct {
	Header          bool
	State           bool
	Consent         bool
	ConsentReceived bool
	Reset           bool
	PreviousNr      bool
	Applicant       bool
	Names           bool
	Comments        bool
	PartnerNames    bool
}

// Any reports whether anything changed.
func (f ChangeFlags) Any() bool {
	return f.Header || f.State || f.Consent || f.Reset || f.PreviousNr ||
		f.Applicant || f.Names || f.Comments || f.PartnerNames
}

// applyFullReplace replaces the editable content of nr with p. Name choices
// missing or blank in p are deleted.
func (s *Service) applyFullReplace(ctx context.Context, store Store, nr *models.NameRequest, p *validation.PutPayload, state models.State, actor *idmodels.User, now time.Time) (ChangeFlags, error) {
	var flags ChangeFlags

	reset := nr.Furnished == models.FlagYes && p.Furnished == models.FlagNo

	flags.Header = assignHeader(nr, p)

	if p.Furnished != "" && p.Furnished != nr.Furnished {
		nr.Furnished = p.Furnished
		flags.Header = true
	}
	if p.ExpirationDate != nil && !timeEqual(nr.ExpirationDate, p.ExpirationDate) {
		exp := *p.ExpirationDate
		nr.ExpirationDate = &exp
		flags.Header = true
	}

	if !ptrEqual(nr.ConsentFlag, p.ConsentFlag) {
		flags.Consent = true
		flags.ConsentReceived = p.ConsentFlag != nil && *p.ConsentFlag == models.FlagReceived
		nr.SetConsent(p.ConsentFlag)
	}
	if p.ConsentDate != nil && nr.ConsentFlag != nil {
		d := *p.ConsentDate
		nr.ConsentDate = &d
	}

	if state != nr.StateCd {
		flags.State = true
		s.applyStateChange(nr, state, nil, now)
	}

	if p.PreviousNr != nr.PreviousNr {
		flags.PreviousNr = true
		nr.PreviousNr = p.PreviousNr
		nr.PreviousRequestID = nil
		if p.PreviousNr != "" {
			id, err := s.lookupPrevious(ctx, store, p.PreviousNr)
			if err != nil {
				return flags, err
			}
			nr.PreviousRequestID = id
		}
	}

	if p.Applicants != nil {
		a := applicantFrom(p.Applicants)
		if nr.Applicant == nil || *nr.Applicant != a {
			nr.Applicant = &a
			flags.Applicant = true
		}
	}

	changed, err := s.replaceNames(ctx, store, nr, p.Names, actor, now)
	if err != nil {
		return flags, err
	}
	flags.Names = changed

	for _, c := range p.Comments {
		if appendComment(nr, c, actor, now) {
			flags.Comments = true
		}
	}

	partners := partnersFrom(p.PartnerNames)
	if !slices.EqualFunc(nr.PartnerNames, partners, partnerEqual) {
		nr.PartnerNames = partners
		flags.PartnerNames = true
	}

	if reset {
		flags.Reset = true
		nr.HasBeenReset = true
		nr.ExpirationDate = nil
		nr.SetConsent(nil)
		nr.Comments = append(nr.Comments, newComment(resetComment, actor, now))
	}

	flags.ConsentReceived = flags.ConsentReceived && nr.ConsentIs(models.FlagReceived)
	if flags.Any() {
		nr.LastUpdate = now
	}
	return flags, nil
}

func (s *Service) lookupPrevious(ctx context.Context, store Store, raw string) (*domain.RequestID, error) {
	nrNum, err := domain.ParseNRNumber(raw)
	if err != nil {
		// an unparseable reference cannot resolve
		return nil, nil
	}
	prev, err := store.GetByNR(ctx, nrNum)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up previous NR")
	}
	id := prev.ID
	return &id, nil
}

func assignHeader(nr *models.NameRequest, p *validation.PutPayload) bool {
	changed := false
	changed = assign(&nr.EntityTypeCd, p.EntityTypeCd) || changed
	changed = assign(&nr.RequestActionCd, p.RequestActionCd) || changed
	changed = assign(&nr.RequestTypeCd, p.RequestTypeCd) || changed
	changed = assign(&nr.CorpNum, p.CorpNum) || changed
	changed = assign(&nr.AdditionalInfo, p.AdditionalInfo) || changed
	changed = assign(&nr.NatureBusinessInfo, p.NatureBusinessInfo) || changed
	changed = assign(&nr.TradeMark, p.TradeMark) || changed
	changed = assign(&nr.XproJurisdiction, p.XproJurisdiction) || changed
	changed = assign(&nr.HomeJurisNum, p.HomeJurisNum) || changed
	if p.PriorityCd != "" {
		changed = assign(&nr.PriorityCd, p.PriorityCd) || changed
	}
	if p.PriorityDate != nil && !timeEqual(nr.PriorityDate, p.PriorityDate) {
		d := *p.PriorityDate
		nr.PriorityDate = &d
		changed = true
	}
	return changed
}

// replaceNames makes nr's name choices match names. Changed text on an
// existing choice leaves an audit comment.
func (s *Service) replaceNames(ctx context.Context, store Store, nr *models.NameRequest, names []validation.NamePayload, actor *idmodels.User, now time.Time) (bool, error) {
	byChoice := make(map[int]validation.NamePayload, len(names))
	for _, n := range names {
		byChoice[n.Choice] = n
	}

	changed := false
	for choice := 1; choice <= 3; choice++ {
		in, ok := byChoice[choice]
		existing := nr.NameChoice(choice)

		if !ok || strings.TrimSpace(in.Name) == "" {
			if existing == nil {
				continue
			}
			if err := store.DeleteName(ctx, nr.ID, choice); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return changed, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete name choice")
			}
			nr.Names = slices.DeleteFunc(nr.Names, func(n *models.NameChoice) bool { return n.Choice == choice })
			changed = true
			continue
		}

		if existing == nil {
			existing = &models.NameChoice{Choice: choice, State: models.NameNotExamined}
			nr.Names = append(nr.Names, existing)
			changed = true
		}
		before := *existing
		name := models.NormalizeName(in.Name)
		if before.Name != "" && before.Name != name {
			msg := fmt.Sprintf("Name choice %d changed from %s to %s", choice, before.Name, name)
			nr.Comments = append(nr.Comments, newComment(msg, actor, now))
		}
		existing.Name = name
		if in.State != "" {
			existing.State = in.State
		}
		existing.Designation = in.Designation
		existing.DecisionText = in.DecisionText
		existing.NameTypeCd = in.NameTypeCd
		existing.Conflict1, existing.Conflict1Num = in.Conflict1, in.Conflict1Num
		existing.Conflict2, existing.Conflict2Num = in.Conflict2, in.Conflict2Num
		existing.Conflict3, existing.Conflict3Num = in.Conflict3, in.Conflict3Num
		if in.ConsumptionDate != nil {
			d := *in.ConsumptionDate
			existing.ConsumptionDate = &d
		}
		if in.CorpNum != "" {
			existing.CorpNum = in.CorpNum
		}
		if in.Comment != nil {
			appendComment(nr, *in.Comment, actor, now)
		}
		if !nameEqual(&before, existing) {
			changed = true
		}
	}
	slices.SortFunc(nr.Names, func(a, b *models.NameChoice) int { return a.Choice - b.Choice })
	return changed, nil
}

// applyPartialEdit updates only the fields present in p. Explicit nulls
// clear; omitted fields are never touched.
func (s *Service) applyPartialEdit(nr *models.NameRequest, p *validation.PatchPayload, actor *idmodels.User, now time.Time) error {
	patchString(&nr.EntityTypeCd, p.EntityTypeCd)
	patchString(&nr.RequestActionCd, p.RequestActionCd)
	patchString(&nr.RequestTypeCd, p.RequestTypeCd)
	patchString(&nr.CorpNum, p.CorpNum)
	patchString(&nr.AdditionalInfo, p.AdditionalInfo)
	patchString(&nr.NatureBusinessInfo, p.NatureBusinessInfo)
	patchString(&nr.TradeMark, p.TradeMark)
	patchString(&nr.XproJurisdiction, p.XproJurisdiction)
	patchString(&nr.HomeJurisNum, p.HomeJurisNum)
	patchString(&nr.PreviousNr, p.PreviousNr)
	if p.PriorityCd.HasValue() {
		patchString(&nr.PriorityCd, p.PriorityCd)
		if nr.PriorityCd == models.FlagYes && nr.PriorityDate == nil {
			d := now
			nr.PriorityDate = &d
		}
	}
	if p.ConsentFlag.Present() {
		nr.SetConsent(p.ConsentFlag.Ptr())
	}

	if p.Applicants.IsNull() {
		nr.Applicant = nil
	} else if a, ok := p.Applicants.Value(); ok {
		if nr.Applicant == nil {
			nr.Applicant = &models.Applicant{}
		}
		patchApplicant(nr.Applicant, a)
	}

	for _, in := range p.Names {
		if err := patchName(nr, in, now); err != nil {
			return err
		}
		if in.Comment != nil {
			appendComment(nr, *in.Comment, actor, now)
		}
	}
	if details := validation.CheckNameChoices(nameTexts(nr)); len(details) > 0 {
		return dErrors.WithDetails(dErrors.CodeValidation, "Invalid request payload", details)
	}

	for _, c := range p.Comments {
		appendComment(nr, c, actor, now)
	}
	nr.LastUpdate = now
	return nil
}

// patchName applies one name patch. A null or blank name removes the choice.
func patchName(nr *models.NameRequest, in validation.NamePatch, now time.Time) error {
	existing := nr.NameChoice(in.Choice)
	name, hasName := in.Name.Value()
	if in.Name.IsNull() || (hasName && strings.TrimSpace(name) == "") {
		nr.Names = slices.DeleteFunc(nr.Names, func(n *models.NameChoice) bool { return n.Choice == in.Choice })
		return nil
	}
	if existing == nil {
		if !hasName {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("name choice %d does not exist", in.Choice))
		}
		existing = &models.NameChoice{Choice: in.Choice, State: models.NameNotExamined}
		nr.Names = append(nr.Names, existing)
		slices.SortFunc(nr.Names, func(a, b *models.NameChoice) int { return a.Choice - b.Choice })
	}
	applyNamePatch(existing, in)
	return nil
}

// applyNamePatch sets the present fields of in on n.
func applyNamePatch(n *models.NameChoice, in validation.NamePatch) {
	if name, ok := in.Name.Value(); ok {
		n.Name = models.NormalizeName(name)
	}
	if st, ok := in.State.Value(); ok {
		n.State = models.NameState(st)
	}
	patchString(&n.Designation, in.Designation)
	patchString(&n.DecisionText, in.DecisionText)
	patchString(&n.Conflict1, in.Conflict1)
	patchString(&n.Conflict2, in.Conflict2)
	patchString(&n.Conflict3, in.Conflict3)
	patchString(&n.Conflict1Num, in.Conflict1Num)
	patchString(&n.Conflict2Num, in.Conflict2Num)
	patchString(&n.Conflict3Num, in.Conflict3Num)
}

func patchApplicant(a *models.Applicant, in validation.ApplicantPatch) {
	patchString(&a.LastName, in.LastName)
	patchString(&a.FirstName, in.FirstName)
	patchString(&a.MiddleName, in.MiddleName)
	patchString(&a.PhoneNumber, in.PhoneNumber)
	patchString(&a.FaxNumber, in.FaxNumber)
	patchString(&a.EmailAddress, in.EmailAddress)
	patchString(&a.Contact, in.Contact)
	patchString(&a.ClientFirstName, in.ClientFirstName)
	patchString(&a.ClientLastName, in.ClientLastName)
	patchString(&a.AddrLine1, in.AddrLine1)
	patchString(&a.AddrLine2, in.AddrLine2)
	patchString(&a.AddrLine3, in.AddrLine3)
	patchString(&a.City, in.City)
	patchString(&a.PostalCd, in.PostalCd)
	patchString(&a.StateProvinceCd, in.StateProvinceCd)
	patchString(&a.CountryTypeCd, in.CountryTypeCd)
}

// appendComment adds c if it is new and non-blank. Existing comments are
// immutable and ignored.
func appendComment(nr *models.NameRequest, c validation.CommentPayload, actor *idmodels.User, now time.Time) bool {
	if !c.IsNew() || c.Comment == nil || strings.TrimSpace(*c.Comment) == "" {
		return false
	}
	nr.Comments = append(nr.Comments, newComment(*c.Comment, actor, now))
	return true
}

func newComment(text string, actor *idmodels.User, now time.Time) *models.Comment {
	c := &models.Comment{Comment: models.ToASCII(text), Timestamp: now}
	if actor != nil {
		c.ExaminerID = actor.ID
		c.Examiner = actor.Username
	}
	return c
}

func applicantFrom(p *validation.ApplicantPayload) models.Applicant {
	return models.Applicant{
		LastName:               p.LastName,
		FirstName:              p.FirstName,
		MiddleName:             p.MiddleName,
		PhoneNumber:            p.PhoneNumber,
		FaxNumber:              p.FaxNumber,
		EmailAddress:           p.EmailAddress,
		Contact:                p.Contact,
		ClientFirstName:        p.ClientFirstName,
		ClientLastName:         p.ClientLastName,
		DeclineNotificationInd: p.DeclineNotificationInd,
		AddrLine1:              p.AddrLine1,
		AddrLine2:              p.AddrLine2,
		AddrLine3:              p.AddrLine3,
		City:                   p.City,
		PostalCd:               p.PostalCd,
		StateProvinceCd:        p.StateProvinceCd,
		CountryTypeCd:          p.CountryTypeCd,
	}
}

func partnersFrom(in []validation.PartnerNamePayload) []*models.PartnerName {
	out := make([]*models.PartnerName, 0, len(in))
	for _, p := range in {
		pn := &models.PartnerName{
			JurisdictionTypeCd: p.JurisdictionTypeCd,
			NameTypeCd:         p.NameTypeCd,
			NameNumber:         p.NameNumber,
			Name:               p.Name,
		}
		if p.NameDate != nil {
			d := *p.NameDate
			pn.NameDate = &d
		}
		out = append(out, pn)
	}
	return out
}

func nameTexts(nr *models.NameRequest) map[int]string {
	out := make(map[int]string, len(nr.Names))
	for _, n := range nr.Names {
		out[n.Choice] = n.Name
	}
	return out
}

func partnerEqual(a, b *models.PartnerName) bool {
	return a.JurisdictionTypeCd == b.JurisdictionTypeCd &&
		a.NameTypeCd == b.NameTypeCd &&
		a.NameNumber == b.NameNumber &&
		a.Name == b.Name &&
		timeEqual(a.NameDate, b.NameDate)
}

func nameEqual(a, b *models.NameChoice) bool {
	return a.Name == b.Name && a.State == b.State &&
		a.Designation == b.Designation && a.DecisionText == b.DecisionText &&
		a.NameTypeCd == b.NameTypeCd &&
		a.Conflict1 == b.Conflict1 && a.Conflict2 == b.Conflict2 && a.Conflict3 == b.Conflict3 &&
		a.Conflict1Num == b.Conflict1Num && a.Conflict2Num == b.Conflict2Num && a.Conflict3Num == b.Conflict3Num &&
		a.CorpNum == b.CorpNum && timeEqual(a.ConsumptionDate, b.ConsumptionDate)
}

func assign[T comparable](dst *T, v T) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

func patchString(dst *string, f optional.Field[string]) {
	if !f.Present() {
		return
	}
	*dst = f.ValueOr("")
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
