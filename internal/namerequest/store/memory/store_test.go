package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namex/internal/namerequest/models"
	"namex/pkg/domain"
	"namex/pkg/platform/sentinel"
)

func newRequest(digits string) *models.NameRequest {
	return &models.NameRequest{
		NRNum:   domain.NRNumber("NR " + digits),
		StateCd: models.StateDraft,
		Names:   []*models.NameChoice{{Choice: 1, Name: "ACME LTD."}},
	}
}

func TestCreateAssignsIDsAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	nr := newRequest("1000001")
	require.NoError(t, store.Create(ctx, nr))
	assert.NotZero(t, nr.ID)
	assert.NotZero(t, nr.Names[0].ID)

	err := store.Create(ctx, newRequest("1000001"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	nr := newRequest("1000002")
	require.NoError(t, store.Create(ctx, nr))

	got, err := store.GetByNR(ctx, nr.NRNum)
	require.NoError(t, err)
	got.StateCd = models.StateCancelled
	got.Names[0].Name = "CHANGED"

	again, err := store.GetByID(ctx, nr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDraft, again.StateCd)
	assert.Equal(t, "ACME LTD.", again.Names[0].Name)

	_, err = store.GetByID(ctx, 999)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestSaveAssignsCommentIDs(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	nr := newRequest("1000003")
	require.NoError(t, store.Create(ctx, nr))

	nr.Comments = append(nr.Comments, &models.Comment{Comment: "first"})
	require.NoError(t, store.Save(ctx, nr))
	assert.NotZero(t, nr.Comments[0].ID)

	assert.ErrorIs(t, store.Save(ctx, newRequest("1000099")), sentinel.ErrNotFound)
}

func TestFindInProgressForUserPicksLatest(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	older := newRequest("1000004")
	older.StateCd, older.UserID, older.LastUpdate = models.StateInProgress, 7, base
	newer := newRequest("1000005")
	newer.StateCd, newer.UserID, newer.LastUpdate = models.StateInProgress, 7, base.Add(time.Minute)
	other := newRequest("1000006")
	other.StateCd, other.UserID = models.StateInProgress, 8
	for _, nr := range []*models.NameRequest{older, newer, other} {
		require.NoError(t, store.Create(ctx, nr))
	}

	got, err := store.FindInProgressForUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = store.FindInProgressForUser(ctx, 9)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCompareAndSetCheckout(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	nr := newRequest("1000007")
	require.NoError(t, store.Create(ctx, nr))
	now := time.Now()
	a, b := "token-a", "token-b"

	require.NoError(t, store.CompareAndSetCheckout(ctx, nr.ID, nil, &a, &now))
	assert.ErrorIs(t, store.CompareAndSetCheckout(ctx, nr.ID, nil, &b, &now), sentinel.ErrConflict)
	assert.ErrorIs(t, store.CompareAndSetCheckout(ctx, nr.ID, &b, nil, nil), sentinel.ErrConflict)
	require.NoError(t, store.CompareAndSetCheckout(ctx, nr.ID, &a, nil, nil))

	got, err := store.GetByID(ctx, nr.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CheckedOutBy)
	assert.ErrorIs(t, store.CompareAndSetCheckout(ctx, 999, nil, &a, &now), sentinel.ErrNotFound)
}

func TestPayments(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	nr := newRequest("1000008")
	require.NoError(t, store.Create(ctx, nr))

	p := &models.Payment{RequestID: nr.ID, Token: "tok", StatusCode: models.PaymentCompleted}
	require.NoError(t, store.AddPayment(ctx, p))
	assert.NotZero(t, p.ID)

	p.StatusCode = models.PaymentRefundRequested
	require.NoError(t, store.SavePayment(ctx, p))

	list, err := store.ListPayments(ctx, nr.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.PaymentRefundRequested, list[0].StatusCode)

	assert.ErrorIs(t, store.AddPayment(ctx, &models.Payment{RequestID: 999}), sentinel.ErrNotFound)
}
