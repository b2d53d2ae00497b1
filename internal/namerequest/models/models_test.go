package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "namex/pkg/domain-errors"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"café inc.", "CAFE INC."},
		{"Société Générale", "SOCIETE GENERALE"},
		{"ﬁne foods", "FINE FOODS"},
		{"plain", "PLAIN"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeName(got), "normalizing twice is a no-op")
		})
	}
}

func TestToASCIIDropsUnmappable(t *testing.T) {
	assert.Equal(t, "Acme  Co", ToASCII("Acme 漢 Co"))
	assert.Equal(t, ToASCII("Acme 漢 Co"), ToASCII(ToASCII("Acme 漢 Co")))
}

func TestParseState(t *testing.T) {
	st, err := ParseState("CONDITIONAL")
	require.NoError(t, err)
	assert.Equal(t, StateConditional, st)

	_, err = ParseState("ON_FIRE")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestParsePatchAction(t *testing.T) {
	a, err := ParsePatchAction("request_refund")
	require.NoError(t, err)
	assert.Equal(t, PatchRequestRefund, a)

	_, err = ParsePatchAction("UPGRADE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECKOUT, CHECKIN, EDIT, CANCEL, RESEND, REQUEST_REFUND")

	_, err = ParseRollbackAction("checkin")
	require.Error(t, err)
}

func TestCheckoutToken(t *testing.T) {
	nr := &NameRequest{}
	assert.False(t, nr.IsCheckedOut())
	assert.True(t, nr.HeldBy(nil))

	nr.ApplyCheckout("tok-A", time.Now())
	assert.True(t, nr.IsCheckedOut())
	tokA, tokB := "tok-A", "tok-B"
	assert.True(t, nr.HeldBy(&tokA))
	assert.False(t, nr.HeldBy(&tokB))
	assert.False(t, nr.HeldBy(nil))

	nr.ApplyCheckin()
	assert.Nil(t, nr.CheckedOutBy)
	assert.Nil(t, nr.CheckedOutDt)
}

func TestCloneIsDeep(t *testing.T) {
	flag := FlagYes
	nr := &NameRequest{
		ConsentFlag: &flag,
		Names:       []*NameChoice{{Choice: 1, Name: "ACME"}},
		Applicant:   &Applicant{LastName: "Smith"},
		Comments:    []*Comment{{Comment: "first"}},
	}
	c := nr.Clone()
	*c.ConsentFlag = FlagNo
	c.Names[0].Name = "OTHER"
	c.Applicant.LastName = "Jones"
	c.Comments[0].Comment = "changed"

	assert.Equal(t, FlagYes, *nr.ConsentFlag)
	assert.Equal(t, "ACME", nr.Names[0].Name)
	assert.Equal(t, "Smith", nr.Applicant.LastName)
	assert.Equal(t, "first", nr.Comments[0].Comment)
}

func TestFillEntityAndAction(t *testing.T) {
	nr := &NameRequest{RequestTypeCd: "RUL"}
	nr.FillEntityAndAction()
	assert.Equal(t, "UL", nr.EntityTypeCd)
	assert.Equal(t, ActionCodeRestore, nr.RequestActionCd)
	assert.True(t, nr.IsRestoration())

	kept := &NameRequest{RequestTypeCd: "CR", EntityTypeCd: "BC", RequestActionCd: ActionCodeChange}
	kept.FillEntityAndAction()
	assert.Equal(t, "BC", kept.EntityTypeCd, "explicit codes win")
	assert.False(t, kept.IsRestoration())
}

func TestHasReapply(t *testing.T) {
	assert.False(t, HasReapply([]*Payment{{Action: PaymentActionCreate}}))
	assert.True(t, HasReapply([]*Payment{{Action: PaymentActionCreate}, {Action: PaymentActionReapply}}))
	assert.True(t, PaymentPartial.Refundable())
	assert.False(t, PaymentRefundRequested.Refundable())
}

func TestNameRequestJSONFieldNames(t *testing.T) {
	nr := &NameRequest{NRNum: "NR 1234567", StateCd: StateDraft, Furnished: FlagNo}
	raw, err := json.Marshal(nr)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "NR 1234567", m["nrNum"])
	assert.Equal(t, "DRAFT", m["stateCd"])
	assert.Contains(t, m, "checkedOutBy")
	assert.Contains(t, m, "nwpta")
}
