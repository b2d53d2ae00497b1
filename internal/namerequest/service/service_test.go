package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"namex/internal/events"
	evmemory "namex/internal/events/store/memory"
	idmodels "namex/internal/identity/models"
	"namex/internal/namerequest/models"
	"namex/internal/namerequest/ports"
	"namex/internal/namerequest/ports/mocks"
	"namex/internal/namerequest/store/memory"
	"namex/internal/namerequest/validation"
	"namex/internal/platform/lock"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/optional"
	"namex/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	store      *memory.InMemoryStore
	eventStore *evmemory.InMemoryStore
	search     *mocks.MockSearchIndex
	payments   *mocks.MockPaymentGateway
	notifier   *mocks.MockNotificationPublisher
	service    *Service
	ctx        context.Context
	now        time.Time

	account  *idmodels.User
	editor   *idmodels.User
	approver *idmodels.User
	system   *idmodels.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = memory.NewInMemoryStore()
	s.eventStore = evmemory.NewInMemoryStore()
	s.search = mocks.NewMockSearchIndex(s.ctrl)
	s.payments = mocks.NewMockPaymentGateway(s.ctrl)
	s.notifier = mocks.NewMockNotificationPublisher(s.ctrl)

	s.account = &idmodels.User{ID: 1, Username: idmodels.ServiceAccountUsername, Roles: []idmodels.Role{idmodels.RoleSystem}}
	s.editor = &idmodels.User{ID: 2, Username: "editor", Roles: []idmodels.Role{idmodels.RoleEditor}}
	s.approver = &idmodels.User{ID: 3, Username: "approver", Roles: []idmodels.Role{idmodels.RoleApprover}}
	s.system = &idmodels.User{ID: 4, Username: "system", Roles: []idmodels.Role{idmodels.RoleSystem}}

	s.service = s.newService()
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	return s.newServiceFor(s.store, opts...)
}

func (s *ServiceSuite) newServiceFor(store Store, opts ...Option) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder, err := events.New(s.eventStore, events.WithLogger(logger))
	s.Require().NoError(err)
	opts = append([]Option{
		WithLogger(logger),
		WithSearchIndex(s.search),
		WithPaymentGateway(s.payments),
		WithNotifier(s.notifier),
	}, opts...)
	svc, err := New(store, recorder, Config{
		ServiceAccount: s.account,
		Expiry:         ExpiryPolicy{Location: time.UTC},
	}, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) seed(nrNum string, state models.State, mutate ...func(*models.NameRequest)) *models.NameRequest {
	nr := &models.NameRequest{
		NRNum:           domain.NRNumber(nrNum),
		StateCd:         state,
		EntityTypeCd:    "CR",
		RequestActionCd: "NEW",
		RequestTypeCd:   "CR",
		Furnished:       models.FlagYes,
		PriorityCd:      models.FlagNo,
		SubmittedDate:   s.now.Add(-24 * time.Hour),
		Names: []*models.NameChoice{
			{Choice: 1, Name: "ACME WIDGETS LTD.", State: models.NameNotExamined},
		},
		Applicant: &models.Applicant{LastName: "Doe", EmailAddress: "jane@example.com"},
	}
	for _, fn := range mutate {
		fn(nr)
	}
	s.Require().NoError(s.store.Create(s.ctx, nr))
	return nr
}

func (s *ServiceSuite) stored(id domain.RequestID) *models.NameRequest {
	nr, err := s.store.GetByID(s.ctx, id)
	s.Require().NoError(err)
	return nr
}

func (s *ServiceSuite) eventActions(id domain.RequestID) []string {
	list, err := s.eventStore.ListByRequest(s.ctx, id)
	s.Require().NoError(err)
	out := make([]string, 0, len(list))
	for _, e := range list {
		if e.Outcome == events.OutcomeSuccess {
			out = append(out, e.Action)
		}
	}
	return out
}

func (s *ServiceSuite) failureActions(id domain.RequestID) []string {
	list, err := s.eventStore.ListByRequest(s.ctx, id)
	s.Require().NoError(err)
	var out []string
	for _, e := range list {
		if e.Outcome == events.OutcomeFailure {
			out = append(out, e.Action)
		}
	}
	return out
}

func tokenPayload(token string) *validation.PatchPayload {
	return &validation.PatchPayload{CheckedOutBy: optional.Of(token)}
}

func decodePatch(t *testing.T, raw string) *validation.PatchPayload {
	t.Helper()
	var p validation.PatchPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func (s *ServiceSuite) TestNewRequiresCollaborators() {
	recorder, err := events.New(evmemory.NewInMemoryStore())
	s.Require().NoError(err)

	_, err = New(nil, recorder, Config{ServiceAccount: s.account})
	s.ErrorContains(err, "store is required")

	_, err = New(s.store, nil, Config{ServiceAccount: s.account})
	s.ErrorContains(err, "event recorder is required")

	_, err = New(s.store, recorder, Config{})
	s.ErrorContains(err, "service account is required")
}

// ===========================================================================
// Checkout / checkin
// ===========================================================================

func (s *ServiceSuite) TestCheckoutFromDraft() {
	nr := s.seed("NR 1000001", models.StateDraft)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "checkout", nil)
	s.Require().NoError(err)

	s.True(res.Minimal)
	view := res.LockView()
	s.Require().NotNil(view.CheckedOutBy)
	s.NotEmpty(*view.CheckedOutBy)
	s.Equal(models.StateInProgress, view.StateCd)
	s.Contains(view.Actions, models.ActionCheckin)

	got := s.stored(nr.ID)
	s.Equal(models.StateInProgress, got.StateCd)
	s.Equal(models.FlagNo, got.Furnished)
	s.Equal(s.account.ID, got.UserID)
	s.Require().NotNil(got.PreviousStateCd)
	s.Equal(models.StateDraft, *got.PreviousStateCd)
	s.Equal(*view.CheckedOutBy, *got.CheckedOutBy)
	s.Equal([]string{events.ActionCheckout}, s.eventActions(nr.ID))
}

func (s *ServiceSuite) TestSecondCheckoutWithOtherTokenIsLocked() {
	nr := s.seed("NR 1000002", models.StateDraft)
	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)

	_, err = s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", tokenPayload("tok-B"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))

	_, err = s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))
}

func (s *ServiceSuite) TestCheckoutByHolderIssuesNewToken() {
	nr := s.seed("NR 1000003", models.StateDraft)
	first, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)
	token := *first.Request.CheckedOutBy

	second, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", tokenPayload(token))
	s.Require().NoError(err)
	s.NotEqual(token, *second.Request.CheckedOutBy)
	s.Equal(models.StateInProgress, second.Request.StateCd)
}

func (s *ServiceSuite) TestCheckoutRefusedOutsideRequestEditableStates() {
	nr := s.seed("NR 1000004", models.StateApproved)

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	s.Nil(s.stored(nr.ID).CheckedOutBy)
}

func (s *ServiceSuite) TestCheckinReturnsToDraft() {
	nr := s.seed("NR 1000005", models.StateDraft)
	out, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKIN", tokenPayload(*out.Request.CheckedOutBy))
	s.Require().NoError(err)
	s.True(res.Minimal)

	got := s.stored(nr.ID)
	s.Equal(models.StateDraft, got.StateCd)
	s.Nil(got.CheckedOutBy)
	s.Nil(got.CheckedOutDt)
	s.Nil(got.PreviousStateCd)
	s.Contains(res.Actions, models.ActionCheckout)
}

func (s *ServiceSuite) TestCheckinFromHoldWithoutCheckout() {
	nr := s.seed("NR 1000006", models.StateHold)

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKIN", nil)
	s.Require().NoError(err)
	s.Equal(models.StateDraft, s.stored(nr.ID).StateCd)
}

func (s *ServiceSuite) TestCheckinNeedsTokenUnlessSystem() {
	nr := s.seed("NR 1000007", models.StateDraft)
	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)

	_, err = s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKIN", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))

	_, err = s.service.Patch(s.ctx, s.system, nr.ID, "CHECKIN", nil)
	s.Require().NoError(err)
	s.Nil(s.stored(nr.ID).CheckedOutBy)
}

func (s *ServiceSuite) TestHeldRequestLockIsLocked() {
	locker := lock.NewMemory(time.Minute, 10*time.Millisecond)
	svc := s.newService(WithLocker(locker))
	nr := s.seed("NR 1000008", models.StateDraft)

	unlock, err := locker.Acquire(s.ctx, "nr:"+nr.ID.String())
	s.Require().NoError(err)
	defer unlock()

	_, err = svc.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))
}

// ===========================================================================
// Patch dispatch
// ===========================================================================

func (s *ServiceSuite) TestPatchRejectsUnknownAction() {
	nr := s.seed("NR 1000010", models.StateDraft)

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "UPGRADE", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestPatchUnknownRequest() {
	_, err := s.service.Patch(s.ctx, s.editor, 999, "EDIT", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestPatchRejectsNonEditableTargetState() {
	nr := s.seed("NR 1000011", models.StateDraft)

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "EDIT", decodePatch(s.T(), `{"stateCd": "CANCELLED"}`))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Equal([]string{events.ActionEdit}, s.failureActions(nr.ID))
}

func (s *ServiceSuite) TestPatchUnknownActionIsAudited() {
	nr := s.seed("NR 1000009", models.StateDraft)

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "UPGRADE", nil)
	s.Require().Error(err)
	s.Equal([]string{events.ActionPatch}, s.failureActions(nr.ID))
	s.Empty(s.eventActions(nr.ID))
}

func (s *ServiceSuite) TestEditCannotDecideRequest() {
	nr := s.seed("NR 1000019", models.StateDraft, func(nr *models.NameRequest) {
		nr.Furnished = models.FlagNo
	})

	for _, state := range []string{"APPROVED", "CONDITIONAL"} {
		_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "EDIT", decodePatch(s.T(), `{"stateCd": "`+state+`"}`))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden), state)
	}
	_, err := s.service.Patch(s.ctx, s.approver, nr.ID, "EDIT", decodePatch(s.T(), `{"stateCd": "APPROVED"}`))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	got := s.stored(nr.ID)
	s.Equal(models.StateDraft, got.StateCd)
	s.Nil(got.ExpirationDate)
	s.Equal(models.FlagNo, got.Furnished)
	s.Empty(s.eventActions(nr.ID))
	s.Len(s.failureActions(nr.ID), 3)
}

func (s *ServiceSuite) TestEditMovesToHold() {
	nr := s.seed("NR 1000024", models.StateDraft)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "EDIT", decodePatch(s.T(), `{"stateCd": "HOLD"}`))
	s.Require().NoError(err)
	s.Equal(models.StateHold, res.Request.StateCd)
}

func (s *ServiceSuite) TestEditAppliesPresentFieldsOnly() {
	nr := s.seed("NR 1000012", models.StateDraft, func(nr *models.NameRequest) {
		nr.AdditionalInfo = "original"
		nr.TradeMark = "ACME"
	})

	p := decodePatch(s.T(), `{
		"additionalInfo": "more detail",
		"tradeMark": null,
		"applicants": {"phoneNumber": "250-555-0100"},
		"comments": [{"comment": "please expedite"}, {"id": 7, "comment": "already stored"}]
	}`)
	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "EDIT", p)
	s.Require().NoError(err)
	s.False(res.Minimal)

	got := s.stored(nr.ID)
	s.Equal("more detail", got.AdditionalInfo)
	s.Empty(got.TradeMark)
	s.Equal("250-555-0100", got.Applicant.PhoneNumber)
	s.Equal("jane@example.com", got.Applicant.EmailAddress)
	s.Equal(models.StateDraft, got.StateCd)
	s.Require().Len(got.Comments, 1)
	s.Equal("please expedite", got.Comments[0].Comment)
	s.Equal("editor", got.Comments[0].Examiner)
	s.Equal([]string{events.ActionEdit}, s.eventActions(nr.ID))
}

func (s *ServiceSuite) TestEditChoiceThreeWithoutTwoIsRejected() {
	nr := s.seed("NR 1000013", models.StateDraft)

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "EDIT", decodePatch(s.T(), `{"names": [{"choice": 3, "name": "third choice"}]}`))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Len(s.stored(nr.ID).Names, 1)
}

func (s *ServiceSuite) TestEditByNonHolderIsLocked() {
	nr := s.seed("NR 1000014", models.StateDraft)
	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)

	_, err = s.service.Patch(s.ctx, s.editor, nr.ID, "EDIT", decodePatch(s.T(), `{"checkedOutBy": "someone-else", "additionalInfo": "x"}`))
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))
}

func (s *ServiceSuite) TestCancelRemovesFromSearchIndex() {
	nr := s.seed("NR 1000015", models.StateDraft)
	s.search.EXPECT().DeleteDocument(gomock.Any(), defaultSolrCore, nr.NRNum).Return(nil)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CANCEL", nil)
	s.Require().NoError(err)
	s.Equal(models.StateCancelled, res.Request.StateCd)
	s.Equal([]models.ClientAction{models.ActionReceipts}, res.Actions)
}

func (s *ServiceSuite) TestCancelReleasesCheckout() {
	nr := s.seed("NR 1000025", models.StateDraft)
	out, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)
	s.search.EXPECT().DeleteDocument(gomock.Any(), gomock.Any(), nr.NRNum).Return(nil)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CANCEL", tokenPayload(*out.Request.CheckedOutBy))
	s.Require().NoError(err)
	s.Equal([]models.ClientAction{models.ActionReceipts}, res.Actions)

	got := s.stored(nr.ID)
	s.Equal(models.StateCancelled, got.StateCd)
	s.Nil(got.CheckedOutBy)
	s.Nil(got.CheckedOutDt)
}

func (s *ServiceSuite) TestCancelSurvivesSearchFailure() {
	nr := s.seed("NR 1000016", models.StateDraft)
	s.search.EXPECT().DeleteDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("solr down"))

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CANCEL", nil)
	s.Require().NoError(err)
	s.Equal(models.StateCancelled, s.stored(nr.ID).StateCd)
}

func (s *ServiceSuite) TestCancelSkipsUnindexedEntityTypes() {
	nr := s.seed("NR 1000017", models.StateDraft, func(nr *models.NameRequest) {
		nr.EntityTypeCd = "SO"
		nr.RequestTypeCd = "SO"
	})

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CANCEL", nil)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestResendPublishesNotification() {
	nr := s.seed("NR 1000018", models.StateApproved)
	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionResend, gomock.Any()).Return(nil)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "RESEND", nil)
	s.Require().NoError(err)
	s.Equal(models.StateApproved, res.Request.StateCd)
	s.Equal([]string{events.ActionResend, events.ActionNotification}, s.eventActions(nr.ID))
}

// ===========================================================================
// Refunds
// ===========================================================================

func (s *ServiceSuite) addPayment(nr *models.NameRequest, token string, status models.PaymentStatus, action models.PaymentAction) *models.Payment {
	p := &models.Payment{RequestID: nr.ID, Token: token, StatusCode: status, Action: action, Amount: 30}
	s.Require().NoError(s.store.AddPayment(s.ctx, p))
	return p
}

func (s *ServiceSuite) TestRequestRefund() {
	nr := s.seed("NR 1000020", models.StateDraft)
	s.addPayment(nr, "tok-1", models.PaymentCompleted, models.PaymentActionCreate)
	s.addPayment(nr, "tok-2", models.PaymentApproved, models.PaymentActionUpgrade)
	s.addPayment(nr, "tok-3", models.PaymentCancelled, models.PaymentActionCreate)

	s.payments.EXPECT().GetPayment(gomock.Any(), "tok-1").Return(&ports.PaymentDetail{
		Total:    30,
		Receipts: []ports.Receipt{{ReceiptNumber: "R1", ReceiptAmount: 30}},
	}, nil)
	s.payments.EXPECT().RefundPayment(gomock.Any(), "tok-1", map[string]any{}).Return(nil)
	s.payments.EXPECT().GetPayment(gomock.Any(), "tok-2").Return(&ports.PaymentDetail{Total: 0}, nil)
	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionRefund, map[string]string{"refundValue": "30.00"}).Return(nil)
	s.search.EXPECT().DeleteDocument(gomock.Any(), gomock.Any(), nr.NRNum).Return(nil)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "REQUEST_REFUND", nil)
	s.Require().NoError(err)
	s.Equal(models.StateRefundRequested, res.Request.StateCd)
	s.Require().NotNil(res.Refund)
	s.Equal(30.0, res.Refund.Total)
	s.Require().Len(res.Refund.Payments, 3)
	s.Equal(RefundIssued, res.Refund.Payments[0].Result)
	s.Equal(RefundZero, res.Refund.Payments[1].Result)
	s.Equal(RefundSkipped, res.Refund.Payments[2].Result)

	stored, err := s.store.ListPayments(s.ctx, nr.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentRefundRequested, stored[0].StatusCode)
	s.Equal(models.PaymentRefundRequested, stored[1].StatusCode)
	s.Equal(models.PaymentCancelled, stored[2].StatusCode)
}

func (s *ServiceSuite) TestRequestRefundSkipsRenewedRequests() {
	nr := s.seed("NR 1000021", models.StateDraft)
	s.addPayment(nr, "tok-1", models.PaymentCompleted, models.PaymentActionCreate)
	s.addPayment(nr, "tok-2", models.PaymentCompleted, models.PaymentActionReapply)

	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionRefund, map[string]string{"refundValue": "0.00"}).Return(nil)
	s.search.EXPECT().DeleteDocument(gomock.Any(), gomock.Any(), nr.NRNum).Return(nil)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "REQUEST_REFUND", nil)
	s.Require().NoError(err)
	s.Equal("0.00", res.Refund.TotalString())
	s.NotEmpty(res.Refund.SkippedReason)

	stored, err := s.store.ListPayments(s.ctx, nr.ID)
	s.Require().NoError(err)
	for _, p := range stored {
		s.Equal(models.PaymentCompleted, p.StatusCode)
	}
}

func (s *ServiceSuite) TestRequestRefundContinuesPastFailedPayment() {
	nr := s.seed("NR 1000022", models.StateDraft)
	s.addPayment(nr, "tok-1", models.PaymentCompleted, models.PaymentActionCreate)
	s.addPayment(nr, "tok-2", models.PaymentPartial, models.PaymentActionCreate)

	s.payments.EXPECT().GetPayment(gomock.Any(), "tok-1").Return(nil, errors.New("payment api down"))
	s.payments.EXPECT().GetPayment(gomock.Any(), "tok-2").Return(&ports.PaymentDetail{
		Total:    10.5,
		Receipts: []ports.Receipt{{ReceiptNumber: "R2", ReceiptAmount: 10.5}},
	}, nil)
	s.payments.EXPECT().RefundPayment(gomock.Any(), "tok-2", gomock.Any()).Return(nil)
	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionRefund, map[string]string{"refundValue": "10.50"}).Return(nil)
	s.search.EXPECT().DeleteDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	res, err := s.service.Patch(s.ctx, s.editor, nr.ID, "REQUEST_REFUND", nil)
	s.Require().NoError(err)
	s.True(res.Refund.Failed())
	s.Equal(RefundFailed, res.Refund.Payments[0].Result)
	s.Equal(RefundIssued, res.Refund.Payments[1].Result)

	stored, err := s.store.ListPayments(s.ctx, nr.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentCompleted, stored[0].StatusCode)
	s.Equal(models.PaymentRefundRequested, stored[1].StatusCode)
}

// paymentsUnavailable fails every payment read.
type paymentsUnavailable struct {
	*memory.InMemoryStore
}

func (paymentsUnavailable) ListPayments(context.Context, domain.RequestID) ([]*models.Payment, error) {
	return nil, errors.New("connection reset")
}

func (s *ServiceSuite) TestRequestRefundLeavesRequestWhenPaymentsUnreadable() {
	svc := s.newServiceFor(paymentsUnavailable{s.store})
	nr := s.seed("NR 1000026", models.StateDraft)
	s.addPayment(nr, "tok-1", models.PaymentCompleted, models.PaymentActionCreate)

	_, err := svc.Patch(s.ctx, s.editor, nr.ID, "REQUEST_REFUND", nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	s.Equal(models.StateDraft, s.stored(nr.ID).StateCd)
	s.Empty(s.eventActions(nr.ID))
	s.Equal([]string{events.ActionRequestRefund}, s.failureActions(nr.ID))
}

func (s *ServiceSuite) TestRequestRefundOutsideDraftIsLocked() {
	nr := s.seed("NR 1000023", models.StateReserved)

	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "REQUEST_REFUND", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	s.Equal(models.StateReserved, s.stored(nr.ID).StateCd)
}

// ===========================================================================
// Rollback and replace
// ===========================================================================

func (s *ServiceSuite) TestRollbackRequiresRole() {
	nr := s.seed("NR 1000030", models.StateApproved)

	_, err := s.service.Rollback(s.ctx, s.editor, nr.ID, "cancel")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Rollback(s.ctx, s.approver, nr.ID, "REOPEN")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestRollbackCancelsFromAnyState() {
	nr := s.seed("NR 1000031", models.StatePendingPayment, func(nr *models.NameRequest) {
		token := "stuck"
		nr.CheckedOutBy = &token
	})
	s.search.EXPECT().DeleteDocument(gomock.Any(), gomock.Any(), nr.NRNum).Return(nil)

	res, err := s.service.Rollback(s.ctx, s.system, nr.ID, "cancel")
	s.Require().NoError(err)
	s.Equal(models.StateCancelled, res.Request.StateCd)
	s.Nil(s.stored(nr.ID).CheckedOutBy)
	s.Equal([]string{events.ActionRollback}, s.eventActions(nr.ID))
}

func putPayload(state string, mutate ...func(*validation.PutPayload)) *validation.PutPayload {
	p := &validation.PutPayload{
		State:           state,
		EntityTypeCd:    "CR",
		RequestActionCd: "NEW",
		RequestTypeCd:   "CR",
		Furnished:       models.FlagYes,
		PriorityCd:      models.FlagNo,
		Names:           []validation.NamePayload{{Choice: 1, Name: "ACME WIDGETS LTD.", State: models.NameNotExamined}},
		Applicants:      &validation.ApplicantPayload{LastName: "Doe", EmailAddress: "jane@example.com"},
	}
	for _, fn := range mutate {
		fn(p)
	}
	return p
}

func (s *ServiceSuite) TestReplaceRejectedOutsidePutStates() {
	nr := s.seed("NR 1000032", models.StateInProgress)

	_, err := s.service.Replace(s.ctx, s.editor, nr.ID, putPayload("DRAFT", func(p *validation.PutPayload) {
		p.AdditionalInfo = "changed"
	}))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	got := s.stored(nr.ID)
	s.Equal(models.StateInProgress, got.StateCd)
	s.Empty(got.AdditionalInfo)
}

func (s *ServiceSuite) TestReplaceRejectsNonPutTargetState() {
	nr := s.seed("NR 1000033", models.StateDraft)

	_, err := s.service.Replace(s.ctx, s.editor, nr.ID, putPayload("APPROVED"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestReplaceUpdatesNamesWithAuditComment() {
	nr := s.seed("NR 1000034", models.StateDraft)

	res, err := s.service.Replace(s.ctx, s.editor, nr.ID, putPayload("DRAFT", func(p *validation.PutPayload) {
		p.Names[0].Name = "Acme Gadgets Ltd."
		p.Names = append(p.Names, validation.NamePayload{Choice: 2, Name: "acme things ltd."})
	}))
	s.Require().NoError(err)

	s.Require().Len(res.Request.Names, 2)
	s.Equal("ACME GADGETS LTD.", res.Request.Names[0].Name)
	s.Equal("ACME THINGS LTD.", res.Request.Names[1].Name)
	s.Require().NotEmpty(res.Request.Comments)
	s.Equal("Name choice 1 changed from ACME WIDGETS LTD. to ACME GADGETS LTD.", res.Request.Comments[0].Comment)
}

func (s *ServiceSuite) TestReplaceResetPublishesNotification() {
	expiry := s.now.Add(30 * 24 * time.Hour)
	nr := s.seed("NR 1000035", models.StateDraft, func(nr *models.NameRequest) {
		nr.ExpirationDate = &expiry
	})
	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionReset, gomock.Any()).Return(nil)

	_, err := s.service.Replace(s.ctx, s.editor, nr.ID, putPayload("DRAFT", func(p *validation.PutPayload) {
		p.Furnished = models.FlagNo
	}))
	s.Require().NoError(err)

	got := s.stored(nr.ID)
	s.True(got.HasBeenReset)
	s.Nil(got.ExpirationDate)
	s.Equal(models.FlagNo, got.Furnished)
	s.Require().NotEmpty(got.Comments)
	s.Equal(resetComment, got.Comments[len(got.Comments)-1].Comment)
}

func (s *ServiceSuite) TestReplaceConsentReceivedPublishesNotification() {
	nr := s.seed("NR 1000036", models.StateDraft)
	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionConsentReceived, gomock.Any()).Return(nil)

	received := models.FlagReceived
	_, err := s.service.Replace(s.ctx, s.editor, nr.ID, putPayload("DRAFT", func(p *validation.PutPayload) {
		p.ConsentFlag = &received
	}))
	s.Require().NoError(err)
	s.True(s.stored(nr.ID).ConsentIs(models.FlagReceived))
}

func (s *ServiceSuite) TestReplaceLinksPreviousRequest() {
	prev := s.seed("NR 1000037", models.StateExpired)
	nr := s.seed("NR 1000038", models.StateDraft)

	res, err := s.service.Replace(s.ctx, s.editor, nr.ID, putPayload("DRAFT", func(p *validation.PutPayload) {
		p.PreviousNr = "NR 1000037"
	}))
	s.Require().NoError(err)
	s.Require().NotNil(res.Request.PreviousRequestID)
	s.Equal(prev.ID, *res.Request.PreviousRequestID)

	res, err = s.service.Replace(s.ctx, s.editor, nr.ID, putPayload("DRAFT", func(p *validation.PutPayload) {
		p.PreviousNr = "NR 9999999"
	}))
	s.Require().NoError(err)
	s.Nil(res.Request.PreviousRequestID)
}

// ===========================================================================
// Staff operations
// ===========================================================================

func stateChange(state string) *validation.StateChangePayload {
	return &validation.StateChangePayload{State: optional.Of(state)}
}

func (s *ServiceSuite) TestDecisionSetsExpiryOnce() {
	nr := s.seed("NR 1000040", models.StateInProgress, func(nr *models.NameRequest) {
		nr.Furnished = models.FlagNo
		nr.UserID = s.approver.ID
	})
	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionApproved, gomock.Any()).Return(nil).Times(2)

	res, err := s.service.ChangeState(s.ctx, s.approver, nr.NRNum, stateChange("APPROVED"))
	s.Require().NoError(err)
	expected := time.Date(2026, 4, 27, 23, 59, 0, 0, time.UTC)
	s.Require().NotNil(res.Request.ExpirationDate)
	s.True(expected.Equal(*res.Request.ExpirationDate))
	s.Equal(models.FlagYes, res.Request.Furnished)

	later := requestcontext.WithTime(context.Background(), s.now.Add(72*time.Hour))
	_, err = s.service.ChangeState(later, s.approver, nr.NRNum, stateChange("INPROGRESS"))
	s.Require().NoError(err)
	res, err = s.service.ChangeState(later, s.approver, nr.NRNum, stateChange("APPROVED"))
	s.Require().NoError(err)
	s.True(expected.Equal(*res.Request.ExpirationDate))
}

func (s *ServiceSuite) TestRestorationExpiry() {
	nr := s.seed("NR 1000041", models.StateInProgress, func(nr *models.NameRequest) {
		nr.RequestTypeCd = "RCR"
		nr.RequestActionCd = models.ActionCodeRestore
		nr.Furnished = models.FlagNo
	})
	s.notifier.EXPECT().Publish(gomock.Any(), gomock.Any(), ports.OptionRejected, gomock.Any()).Return(nil)

	res, err := s.service.ChangeState(s.ctx, s.approver, nr.NRNum, stateChange("REJECTED"))
	s.Require().NoError(err)
	want := s.now.AddDate(0, 0, defaultRestorationExpiryDays)
	s.Equal(want.Year(), res.Request.ExpirationDate.Year())
	s.Equal(want.YearDay(), res.Request.ExpirationDate.YearDay())
}

func (s *ServiceSuite) TestConditionalSetsConsentAndReopenClearsIt() {
	nr := s.seed("NR 1000042", models.StateInProgress, func(nr *models.NameRequest) {
		nr.Furnished = models.FlagNo
	})
	s.notifier.EXPECT().Publish(gomock.Any(), gomock.Any(), ports.OptionConditional, gomock.Any()).Return(nil)

	res, err := s.service.ChangeState(s.ctx, s.approver, nr.NRNum, stateChange("CONDITIONAL"))
	s.Require().NoError(err)
	s.True(res.Request.ConsentIs(models.FlagYes))

	res, err = s.service.ChangeState(s.ctx, s.approver, nr.NRNum, stateChange("HOLD"))
	s.Require().NoError(err)
	s.Nil(res.Request.ConsentFlag)
	s.Nil(res.Request.ConsentDate)
}

func (s *ServiceSuite) TestDecisionForbiddenForEditor() {
	nr := s.seed("NR 1000043", models.StateInProgress)

	_, err := s.service.ChangeState(s.ctx, s.editor, nr.NRNum, stateChange("APPROVED"))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(models.StateInProgress, s.stored(nr.ID).StateCd)
}

func (s *ServiceSuite) TestTakingRequestDemotesActiveOne() {
	active := s.seed("NR 1000044", models.StateInProgress, func(nr *models.NameRequest) {
		prev := models.StateDraft
		nr.PreviousStateCd = &prev
		nr.UserID = s.approver.ID
	})
	next := s.seed("NR 1000045", models.StateDraft)

	res, err := s.service.ChangeState(s.ctx, s.approver, next.NRNum, stateChange("INPROGRESS"))
	s.Require().NoError(err)
	s.Equal(models.StateInProgress, res.Request.StateCd)
	s.Equal(s.approver.ID, res.Request.UserID)
	s.Require().NotNil(res.Demoted)
	s.Equal(active.NRNum, res.Demoted.NRNum)

	got := s.stored(active.ID)
	s.Equal(models.StateDraft, got.StateCd)
	s.Nil(got.PreviousStateCd)
}

func (s *ServiceSuite) TestConsumeRequiresCorpNumAndConsumableName() {
	nr := s.seed("NR 1000046", models.StateApproved, func(nr *models.NameRequest) {
		nr.Names[0].State = models.NameApproved
		nr.Names = append(nr.Names, &models.NameChoice{Choice: 2, Name: "OTHER LTD.", State: models.NameRejected})
	})

	_, err := s.service.ChangeState(s.ctx, s.approver, nr.NRNum, stateChange("CONSUMED"))
	s.Require().Error(err)
	s.Contains(err.Error(), `"corpNum" is required`)

	p := stateChange("CONSUMED")
	p.CorpNum = optional.Of("BC1234567")
	res, err := s.service.ChangeState(s.ctx, s.approver, nr.NRNum, p)
	s.Require().NoError(err)
	s.Equal("BC1234567", res.Request.CorpNum)
	s.Equal("BC1234567", res.Request.Names[0].CorpNum)
	s.NotNil(res.Request.Names[0].ConsumptionDate)
	s.Empty(res.Request.Names[1].CorpNum)

	rejected := s.seed("NR 1000047", models.StateApproved, func(nr *models.NameRequest) {
		nr.Names[0].State = models.NameRejected
	})
	p = stateChange("CONSUMED")
	p.CorpNum = optional.Of("BC7654321")
	_, err = s.service.ChangeState(s.ctx, s.approver, rejected.NRNum, p)
	s.Require().Error(err)
	s.Contains(err.Error(), "Cannot find an Approved or Condition name")
	s.Empty(s.stored(rejected.ID).CorpNum)
}

func (s *ServiceSuite) TestChangeStateSetsPreviousState() {
	nr := s.seed("NR 1000048", models.StateHold)

	p := stateChange("HOLD")
	p.PreviousStateCd = optional.Of("DRAFT")
	p.Comments = []validation.CommentPayload{{Comment: ptr("waiting on client")}}
	res, err := s.service.ChangeState(s.ctx, s.editor, nr.NRNum, p)
	s.Require().NoError(err)
	s.Require().NotNil(res.Request.PreviousStateCd)
	s.Equal(models.StateDraft, *res.Request.PreviousStateCd)
	s.Require().Len(res.Request.Comments, 1)

	p = &validation.StateChangePayload{PreviousStateCd: optional.Null[string]()}
	res, err = s.service.ChangeState(s.ctx, s.editor, nr.NRNum, p)
	s.Require().NoError(err)
	s.Nil(res.Request.PreviousStateCd)
}

func (s *ServiceSuite) TestStaffMutationsRespectCheckout() {
	nr := s.seed("NR 1000049", models.StateDraft)
	out, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)
	token := *out.Request.CheckedOutBy

	_, err = s.service.ChangeState(s.ctx, s.approver, nr.NRNum, stateChange("APPROVED"))
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))

	p := &validation.NamePatch{State: optional.Of("APPROVED")}
	_, err = s.service.EditName(s.ctx, s.approver, nr.NRNum, 1, p)
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))

	_, err = s.service.AddComment(s.ctx, s.approver, nr.NRNum, &validation.CommentPost{Comment: "sneaking in"})
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))

	got := s.stored(nr.ID)
	s.Equal(models.StateInProgress, got.StateCd)
	s.Nil(got.ExpirationDate)
	s.Empty(got.Comments)
	s.Require().NotNil(got.CheckedOutBy)
	s.Equal(token, *got.CheckedOutBy)
}

func (s *ServiceSuite) TestSystemStateChangeReleasesCheckout() {
	nr := s.seed("NR 1000054", models.StateDraft)
	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)

	res, err := s.service.ChangeState(s.ctx, s.system, nr.NRNum, stateChange("HOLD"))
	s.Require().NoError(err)
	s.Equal(models.StateHold, res.Request.StateCd)
	s.Nil(res.Request.CheckedOutBy)
	s.Nil(s.stored(nr.ID).CheckedOutBy)
}

func (s *ServiceSuite) TestEditNameRequiresActiveExaminer() {
	nr := s.seed("NR 1000050", models.StateInProgress, func(nr *models.NameRequest) {
		nr.UserID = s.approver.ID
	})
	p := &validation.NamePatch{Name: optional.Of("Café Widgets Ltd."), State: optional.Of("APPROVED")}

	_, err := s.service.EditName(s.ctx, s.editor, nr.NRNum, 1, p)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.EditName(s.ctx, s.approver, nr.NRNum, 2, p)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	res, err := s.service.EditName(s.ctx, s.approver, nr.NRNum, 1, p)
	s.Require().NoError(err)
	s.Equal("CAFE WIDGETS LTD.", res.Request.Names[0].Name)
	s.Equal(models.NameApproved, res.Request.Names[0].State)
}

func (s *ServiceSuite) TestAddCommentAndHistory() {
	nr := s.seed("NR 1000051", models.StateHold)

	c, err := s.service.AddComment(s.ctx, s.editor, nr.NRNum, &validation.CommentPost{Comment: "called the applicant"})
	s.Require().NoError(err)
	s.NotZero(c.ID)
	s.Equal("editor", c.Examiner)

	history, err := s.service.History(s.ctx, nr.NRNum)
	s.Require().NoError(err)
	s.Require().Equal(1, history.Count)
	s.Equal("Staff Comment", history.Transactions[0].UserAction)
	s.Require().NotNil(history.Transactions[0].Comment)
	s.Equal("called the applicant", *history.Transactions[0].Comment)
}

func (s *ServiceSuite) TestHistoryOmitsCheckoutAndFailures() {
	nr := s.seed("NR 1000052", models.StateDraft)
	out, err := s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", nil)
	s.Require().NoError(err)
	_, err = s.service.Patch(s.ctx, s.editor, nr.ID, "CHECKOUT", tokenPayload("wrong"))
	s.Require().Error(err)
	_, err = s.service.Patch(s.ctx, s.editor, nr.ID, "EDIT", decodePatch(s.T(),
		`{"checkedOutBy": "`+*out.Request.CheckedOutBy+`", "additionalInfo": "x"}`))
	s.Require().NoError(err)

	history, err := s.service.History(s.ctx, nr.NRNum)
	s.Require().NoError(err)
	s.Equal(1, history.Count)
	s.Equal("Edit NR Details (Name Request)", history.Transactions[0].UserAction)
}

func (s *ServiceSuite) TestResendNotificationFromEvent() {
	nr := s.seed("NR 1000053", models.StateApproved)
	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionResend, gomock.Any()).Return(nil)
	_, err := s.service.Patch(s.ctx, s.editor, nr.ID, "RESEND", nil)
	s.Require().NoError(err)

	list, err := s.eventStore.ListByRequest(s.ctx, nr.ID)
	s.Require().NoError(err)
	var notification, resend *events.Event
	for _, e := range list {
		switch e.Action {
		case events.ActionNotification:
			notification = e
		case events.ActionResend:
			resend = e
		}
	}
	s.Require().NotNil(notification)
	s.Require().NotNil(resend)

	s.notifier.EXPECT().Publish(gomock.Any(), nr.NRNum, ports.OptionResend,
		map[string]string{"eventId": notification.ID.String()}).Return(nil)
	e, err := s.service.ResendNotification(s.ctx, s.editor, notification.ID)
	s.Require().NoError(err)
	var data map[string]any
	s.Require().NoError(json.Unmarshal(e.Data, &data))
	s.Equal("2026-03-02, 10:00 AM UTC", data["resend_date"])
	s.Equal("jane@example.com", data["email"])

	_, err = s.service.ResendNotification(s.ctx, s.editor, resend.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestGetFillsDerivedFields() {
	nr := s.seed("NR 1000054", models.StateDraft, func(nr *models.NameRequest) {
		nr.EntityTypeCd = ""
		nr.RequestActionCd = ""
		nr.RequestTypeCd = "BC"
	})

	res, err := s.service.Get(s.ctx, nr.ID)
	s.Require().NoError(err)
	s.Equal("BC", res.Request.EntityTypeCd)
	s.NotEmpty(res.Request.RequestActionCd)

	_, err = s.service.GetByNR(s.ctx, "NR 0000000")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func ptr[T any](v T) *T { return &v }

func TestExpiryForUsesEndOfLocalDay(t *testing.T) {
	vancouver := time.FixedZone("PDT", -7*60*60)
	policy := ExpiryPolicy{Location: vancouver, Days: 56, RestorationDays: 421}

	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) // still March 1 in Vancouver
	got := policy.ExpiryFor(&models.NameRequest{RequestTypeCd: "CR"}, now)

	assert.Equal(t, vancouver, got.Location())
	assert.Equal(t, 23, got.Hour())
	assert.Equal(t, 59, got.Minute())
	assert.Equal(t, time.April, got.Month())
	assert.Equal(t, 26, got.Day())
}
