package renewal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/guard"
	"github.com/nuzulstay/nuzulstay/internal/ledger"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

type execerFunc func() error

func (f execerFunc) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, f()
}

type memoryBookings struct {
	bookings map[int64]*Booking
}

func (m *memoryBookings) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

type memoryExtensionRepo struct {
	extensions []Extension
	execErr    error
	nextID     int64
}

func (m *memoryExtensionRepo) Approve(ctx context.Context, ext Extension, record RecordFunc) (*Extension, error) {
	if err := record(ctx, execerFunc(func() error { return m.execErr })); err != nil {
		return nil, err
	}
	m.nextID++
	ext.ID = m.nextID
	ext.CreatedAt = time.Now()
	m.extensions = append(m.extensions, ext)
	return &ext, nil
}

func (m *memoryExtensionRepo) ListByBooking(ctx context.Context, bookingID int64) ([]Extension, error) {
	var out []Extension
	for _, ext := range m.extensions {
		if ext.BookingID == bookingID {
			out = append(out, ext)
		}
	}
	return out, nil
}

type stubAsserter struct {
	controlled bool
	err        error
}

func (a stubAsserter) AssertNotExternallyControlled(ctx context.Context, unitID int64, op guard.Operation) error {
	if a.err != nil {
		return a.err
	}
	if a.controlled {
		return &guard.ExternalConflictError{Operation: op, UnitID: unitID}
	}
	return nil
}

type stubCharges struct {
	inputs []ledger.CreateEntryInput
	err    error
}

func (c *stubCharges) CreateEntry(ctx context.Context, input ledger.CreateEntryInput, actor shared.Actor) (*ledger.PaymentLedgerEntry, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.inputs = append(c.inputs, input)
	return &ledger.PaymentLedgerEntry{ID: 501, BookingID: input.BookingID, Type: input.Type, Amount: input.Amount, Status: input.Status}, nil
}

type stubExtender struct {
	bookingIDs []int64
	newEnds    []time.Time
	err        error
}

func (e *stubExtender) ExtendBooking(ctx context.Context, bookingID int64, newEnd time.Time) error {
	if e.err != nil {
		return e.err
	}
	e.bookingIDs = append(e.bookingIDs, bookingID)
	e.newEnds = append(e.newEnds, newEnd)
	return nil
}

var renewalAdmin = shared.Actor{ID: 1, Name: "admin", Class: shared.ActorClassAdmin}

type renewalFixture struct {
	now      time.Time
	bookings *memoryBookings
	repo     *memoryExtensionRepo
	charges  *stubCharges
	extender *stubExtender
}

func newRenewalService(t *testing.T, controlled bool, apiSafe bool) (*Service, *renewalFixture) {
	t.Helper()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	booking := eligibleBooking(now)
	booking.MonthlyRent = decimal.RequireFromString("2500")
	booking.Currency = "SAR"
	booking.GuestName = "Fahad"

	fx := &renewalFixture{
		now:      now,
		bookings: &memoryBookings{bookings: map[int64]*Booking{booking.ID: &booking}},
		repo:     &memoryExtensionRepo{},
		charges:  &stubCharges{},
		extender: &stubExtender{},
	}
	svc := NewService(fx.bookings, fx.repo, stubAsserter{controlled: controlled}, fx.charges, fx.extender, audit.NewRecorder(nil), Config{
		RenewalWindowDays: 30,
		APISafeForWrites:  apiSafe,
	})
	svc.now = func() time.Time { return now }
	return svc, fx
}

func TestApproveExtensionDirectRenewal(t *testing.T) {
	svc, fx := newRenewalService(t, false, false)
	newEnd := fx.now.AddDate(0, 1, 0)

	ext, err := svc.ApproveExtension(context.Background(), ApproveExtensionInput{BookingID: 42, NewEndDate: newEnd}, renewalAdmin)
	require.NoError(t, err)
	require.Equal(t, PathDirectRenewal, ext.Path)
	require.False(t, ext.RequiresExternalUpdate)
	require.Nil(t, ext.ChangeNote)
	require.EqualValues(t, 501, ext.LedgerEntryID)

	require.Len(t, fx.charges.inputs, 1)
	require.Equal(t, ledger.TypeRenewalRent, fx.charges.inputs[0].Type)
	require.Equal(t, ledger.StatusDue, fx.charges.inputs[0].Status)
	require.True(t, decimal.RequireFromString("2500").Equal(fx.charges.inputs[0].Amount))
	require.Empty(t, fx.extender.bookingIDs, "direct renewals never touch the channel manager")
}

func TestApproveExtensionRequiresChangeNoteWhenLocal(t *testing.T) {
	svc, fx := newRenewalService(t, true, false)

	_, err := svc.ApproveExtension(context.Background(), ApproveExtensionInput{BookingID: 42, NewEndDate: fx.now.AddDate(0, 1, 0)}, renewalAdmin)
	require.ErrorIs(t, err, ErrChangeNoteRequired)
	require.Empty(t, fx.charges.inputs, "no charge may exist before the note is supplied")
	require.Empty(t, fx.repo.extensions)
}

func TestApproveExtensionLocalWithNote(t *testing.T) {
	svc, fx := newRenewalService(t, true, false)

	ext, err := svc.ApproveExtension(context.Background(), ApproveExtensionInput{
		BookingID:  42,
		NewEndDate: fx.now.AddDate(0, 1, 0),
		ChangeNote: "Extended manually in Beds24 until July.",
	}, renewalAdmin)
	require.NoError(t, err)
	require.Equal(t, PathLocalExtension, ext.Path)
	require.True(t, ext.RequiresExternalUpdate)
	require.NotNil(t, ext.ChangeNote)
	require.Empty(t, fx.extender.bookingIDs)
}

func TestApproveExtensionDelegatesToChannelManager(t *testing.T) {
	svc, fx := newRenewalService(t, true, true)
	newEnd := fx.now.AddDate(0, 1, 0)

	ext, err := svc.ApproveExtension(context.Background(), ApproveExtensionInput{BookingID: 42, NewEndDate: newEnd}, renewalAdmin)
	require.NoError(t, err)
	require.Equal(t, PathBeds24API, ext.Path)
	require.False(t, ext.RequiresExternalUpdate, "delegated writes need no manual mirroring")
	require.Equal(t, []int64{42}, fx.extender.bookingIDs)
	require.Equal(t, []time.Time{newEnd}, fx.extender.newEnds)
}

func TestApproveExtensionAbortsWhenChannelManagerFails(t *testing.T) {
	svc, fx := newRenewalService(t, true, true)
	fx.extender.err = errors.New("beds24 5xx")

	_, err := svc.ApproveExtension(context.Background(), ApproveExtensionInput{BookingID: 42, NewEndDate: fx.now.AddDate(0, 1, 0)}, renewalAdmin)
	require.Error(t, err)
	require.Empty(t, fx.charges.inputs)
	require.Empty(t, fx.repo.extensions)
}

func TestApproveExtensionRejectsIneligibleBooking(t *testing.T) {
	svc, fx := newRenewalService(t, false, false)
	fx.bookings.bookings[42].Status = "pending"

	_, err := svc.ApproveExtension(context.Background(), ApproveExtensionInput{BookingID: 42, NewEndDate: fx.now.AddDate(0, 1, 0)}, renewalAdmin)
	require.ErrorIs(t, err, ErrNotEligible)
	require.Equal(t, "Booking is not active", shared.UserSafeMessage(err))
}

func TestApproveExtensionRejectsNonForwardEndDate(t *testing.T) {
	svc, fx := newRenewalService(t, false, false)

	_, err := svc.ApproveExtension(context.Background(), ApproveExtensionInput{BookingID: 42, NewEndDate: fx.now.AddDate(0, 0, 5)}, renewalAdmin)
	require.Error(t, err)
	require.Empty(t, fx.repo.extensions)
}

func TestApproveExtensionAbortsWhenAuditFails(t *testing.T) {
	svc, fx := newRenewalService(t, false, false)
	fx.repo.execErr = errors.New("audit insert failed")

	_, err := svc.ApproveExtension(context.Background(), ApproveExtensionInput{BookingID: 42, NewEndDate: fx.now.AddDate(0, 1, 0)}, renewalAdmin)
	require.Error(t, err)
	require.Empty(t, fx.repo.extensions)
}

func TestEligibilityUnknownBooking(t *testing.T) {
	svc, _ := newRenewalService(t, false, false)

	_, err := svc.Eligibility(context.Background(), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
