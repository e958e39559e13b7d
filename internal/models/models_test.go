package models

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/geo"
	"BloodLink/pkg/notification"
	"BloodLink/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 8, 12, 10, 15, 33, 0, time.UTC)

func newTestRepo(t *testing.T, opts ...Option) *Repo {
	t.Helper()
	store, err := flatstore.New(t.TempDir())
	require.NoError(t, err)
	notes := notification.NewLog(store, notification.WithClock(func() time.Time { return fixedNow }))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewRepo(store, notes, opts...)
}

func seedAlert(t *testing.T, r *Repo, id, status string) {
	t.Helper()
	require.NoError(t, r.store.Append(AlertTable, flatstore.Row{
		"alert_id": id, "hospital_id": "99", "bank_id": "21",
		"blood_group": "O+", "component": "Plasma", "units_needed": "3", "status": status,
	}))
}

func seedInventory(t *testing.T, r *Repo, units int) {
	t.Helper()
	require.NoError(t, r.store.Append(InventoryTable, flatstore.Row{
		"blood_group": "O+", "component": "Plasma", "blood_group_id": "7", "component_id": "2",
		"units_available": strconv.Itoa(units),
	}))
}

func fileBytes(t *testing.T, r *Repo, table flatstore.Table) []byte {
	t.Helper()
	b, err := os.ReadFile(r.store.Path(table))
	require.NoError(t, err)
	return b
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"SENT":      StatusPending,
		"pending":   StatusPending,
		"":          StatusPending,
		"Resolved":  StatusResolved,
		"resolved":  StatusResolved,
		"RESOLVED":  StatusResolvedU,
		"completed": StatusCompleted,
		"failed":    StatusFailed,
		"accepted":  StatusAccepted,
		"on hold":   "On Hold",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), in)
	}
}

func TestCreateBloodRequestRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	form := BloodRequestForm{
		HospitalName:  "City General",
		BloodBankName: "Krithi's Blood Bank",
		BankID:        21,
		Phone:         "044-1234",
		Distance:      4.5,
		BloodGroup:    "B+",
		Component:     "Platelets",
		UnitsNeeded:   "3",
		Urgency:       "Urgent",
	}
	created, err := r.CreateBloodRequest(context.Background(), form, "99", "21")
	require.NoError(t, err)

	rows, err := r.ListBloodRequests()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	got := rows[0]
	assert.Equal(t, strconv.FormatInt(fixedNow.UnixMilli(), 10), got["alert_id"])
	assert.Equal(t, created["alert_id"], got["alert_id"])
	assert.Equal(t, StatusSent, got["status"])
	assert.Equal(t, "City General", got["hospital_name"])
	assert.Equal(t, "Krithi's Blood Bank", got["blood_bank_name"])
	assert.Equal(t, "21", got["bank_id"])
	assert.Equal(t, "99", got["hospital_id"])
	assert.Equal(t, "044-1234", got["phone"])
	assert.Equal(t, "4.5", got["distance"])
	assert.Equal(t, "B+", got["blood_group"])
	assert.Equal(t, "Platelets", got["component"])
	assert.Equal(t, "3", got["units_needed"])
	assert.Equal(t, "Urgent", got["urgency"])
	assert.Equal(t, "2025-08-12", got["date"])
	assert.Equal(t, "10:15:33", got["time"])

	responses, err := r.ListBankResponses()
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, StatusSent, responses[0]["status"])

	notes, err := r.notes.List(notification.ScopeGlobal)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "City General requests 3 units of Platelets (B+) [Urgent]", notes[0].Message)
}

func TestCreateBloodRequestDistinctIDsInSameMillisecond(t *testing.T) {
	r := newTestRepo(t)
	form := BloodRequestForm{BloodGroup: "A+", Component: "Plasma", UnitsNeeded: 1}
	a, err := r.CreateBloodRequest(context.Background(), form, "99", "21")
	require.NoError(t, err)
	b, err := r.CreateBloodRequest(context.Background(), form, "99", "21")
	require.NoError(t, err)
	assert.NotEqual(t, a["alert_id"], b["alert_id"])
}

func TestCreateBloodRequestValidation(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.CreateBloodRequest(context.Background(), BloodRequestForm{Component: "Plasma", UnitsNeeded: 1}, "99", "21")
	assert.True(t, errors.IsValidation(err))
	_, err = r.CreateBloodRequest(context.Background(), BloodRequestForm{BloodGroup: "A+", Component: "Plasma", UnitsNeeded: "many"}, "99", "21")
	assert.True(t, errors.IsValidation(err))
}

func TestCompleteAlertClampsInventory(t *testing.T) {
	r := newTestRepo(t)
	seedAlert(t, r, "100", StatusPending)
	seedInventory(t, r, 2)

	res, err := r.CompleteAlert(context.Background(), CompleteForm{AlertID: "100", UnitsUsed: 5}, "99")
	require.NoError(t, err)
	assert.True(t, res.InventoryUpdated)
	assert.Equal(t, 0, res.UnitsAvailable)

	inv, err := r.ListInventory()
	require.NoError(t, err)
	assert.Equal(t, "0", inv[0]["units_available"])

	alerts, err := r.ListAlerts("")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, alerts[0]["status"])

	responses, err := r.ListAlertResponses()
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "5", responses[0]["units_used"])
	assert.Equal(t, "99", responses[0]["hospital_id"])

	low, err := r.notes.List(notification.ScopeLowStock)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, notification.TypeLowStock, low[0].Type)
}

func TestCompleteAlertMissingLeavesTableUntouched(t *testing.T) {
	r := newTestRepo(t)
	seedAlert(t, r, "100", StatusPending)
	seedInventory(t, r, 10)
	alertsBefore := fileBytes(t, r, AlertTable)
	invBefore := fileBytes(t, r, InventoryTable)

	_, err := r.CompleteAlert(context.Background(), CompleteForm{AlertID: "404", UnitsUsed: 1}, "99")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, alertsBefore, fileBytes(t, r, AlertTable))
	assert.Equal(t, invBefore, fileBytes(t, r, InventoryTable))

	responses, err := r.ListAlertResponses()
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestCompleteAlertWithoutInventoryRow(t *testing.T) {
	r := newTestRepo(t)
	seedAlert(t, r, "100", StatusPending)

	res, err := r.CompleteAlert(context.Background(), CompleteForm{AlertID: "100", UnitsUsed: 1, Component: "Platelets"}, "99")
	require.NoError(t, err)
	assert.False(t, res.InventoryUpdated)
	assert.Equal(t, StatusCompleted, res.Alert["status"])
}

func TestUpdateInventoryMissingRow(t *testing.T) {
	r := newTestRepo(t)
	seedInventory(t, r, 10)
	before := fileBytes(t, r, InventoryTable)

	_, err := r.UpdateInventory(context.Background(), InventoryForm{
		BloodGroup: "AB-", Component: "Plasma", BloodGroupID: 6, ComponentID: 2, UnitsAvailable: 4,
	})
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, before, fileBytes(t, r, InventoryTable))

	_, err = r.UpdateInventory(context.Background(), InventoryForm{BloodGroup: "O+", Component: "Plasma", BloodGroupID: 7})
	assert.True(t, errors.IsValidation(err))
}

func TestUpdateInventoryLowStockUsesOverride(t *testing.T) {
	r := newTestRepo(t, WithThreshold(func(component string) int {
		if component == "Plasma" {
			return 3
		}
		return 5
	}))
	seedInventory(t, r, 10)

	row, err := r.UpdateInventory(context.Background(), InventoryForm{
		BloodGroup: "O+", Component: "Plasma", BloodGroupID: "7", ComponentID: "2", UnitsAvailable: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "4", row["units_available"])
	low, _ := r.notes.List(notification.ScopeLowStock)
	assert.Empty(t, low)

	_, err = r.UpdateInventory(context.Background(), InventoryForm{
		BloodGroup: "O+", Component: "Plasma", BloodGroupID: "7", ComponentID: "2", UnitsAvailable: 2,
	})
	require.NoError(t, err)
	low, _ = r.notes.List(notification.ScopeLowStock)
	assert.Len(t, low, 1)

	n, err := r.LowStockCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAlertStatusIsMonotonic(t *testing.T) {
	r := newTestRepo(t)
	seedAlert(t, r, "100", StatusPending)
	seedInventory(t, r, 10)

	_, err := r.ResolveAlert(context.Background(), "100", 2)
	require.NoError(t, err)

	_, err = r.RespondAlert(context.Background(), RespondForm{AlertID: "100", Status: "FAILED"})
	assert.True(t, errors.IsConflict(err))
	_, err = r.CompleteAlert(context.Background(), CompleteForm{AlertID: "100", UnitsUsed: 1}, "99")
	assert.True(t, errors.IsConflict(err))

	alerts, err := r.ListAlerts("21")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, alerts[0]["status"])

	inv, _ := r.ListInventory()
	assert.Equal(t, "8", inv[0]["units_available"])
}

func TestRespondAlertAcceptedEmitsSignal(t *testing.T) {
	r := newTestRepo(t)
	seedAlert(t, r, "100", StatusSent)

	var got *AlertAccepted
	util.Sig().Connect(SigAlertAccepted, func(sender any, params ...any) {
		got = sender.(*AlertAccepted)
	})
	defer util.Sig().Disconnect(SigAlertAccepted)

	_, err := r.RespondAlert(context.Background(), RespondForm{AlertID: 100, Status: "accepted", DonorID: 7})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "100", got.AlertID)
	assert.Equal(t, "7", got.DonorID)

	responses, _ := r.ListBankResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, StatusAccepted, responses[0]["status"])

	_, err = r.RespondAlert(context.Background(), RespondForm{AlertID: 100, Status: "maybe"})
	assert.True(t, errors.IsValidation(err))
}

func TestConcurrentResolvesKeepEveryUpdate(t *testing.T) {
	r := newTestRepo(t)
	for i := 0; i < 10; i++ {
		seedAlert(t, r, strconv.Itoa(i), StatusPending)
	}
	seedInventory(t, r, 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := r.ResolveAlert(context.Background(), id, 1)
			assert.NoError(t, err)
		}(strconv.Itoa(i))
	}
	wg.Wait()

	alerts, err := r.ListAlerts("")
	require.NoError(t, err)
	for _, a := range alerts {
		assert.Equal(t, StatusResolved, a["status"], a["alert_id"])
	}
	inv, _ := r.ListInventory()
	assert.Equal(t, "90", inv[0]["units_available"])
}

func TestDecrement(t *testing.T) {
	assert.Equal(t, 0, Decrement(2, 5))
	assert.Equal(t, 3, Decrement(5, 2))
	assert.Equal(t, 0, Decrement(0, 0))
}

func TestAlertFromRequest(t *testing.T) {
	row := AlertFromRequest(map[string]interface{}{
		"alert_id": 1723456789012, "status": "SENT", "units_needed": 3, "extra": "dropped",
	})
	assert.Equal(t, "1723456789012", row["alert_id"])
	assert.Equal(t, StatusPending, row["status"])
	assert.Equal(t, "3", row["units_needed"])
	assert.NotContains(t, row, "extra")
}

func TestEligibility(t *testing.T) {
	r := newTestRepo(t)
	require.NoError(t, r.store.RewriteAll(DonorTable, []flatstore.Row{
		{"donor_id": "1", "name": "Asha", "eligible": "no"},
	}))

	_, err := r.StoreEligibility(EligibilityTable, EligibilityForm{DonorID: 1, Eligibility: "maybe"})
	assert.True(t, errors.IsValidation(err))

	row, err := r.StoreEligibility(EligibilityTable, EligibilityForm{DonorID: 1, Eligibility: "Yes"})
	require.NoError(t, err)
	assert.Equal(t, "yes", row["eligibility"])
	_, err = r.StoreEligibility(EligibilityTable, EligibilityForm{DonorID: 1, Eligibility: false})
	require.NoError(t, err)

	got, err := r.GetEligibility(EligibilityTable, "1")
	require.NoError(t, err)
	assert.Equal(t, "yes", got)

	_, err = r.GetEligibility(HospitalEligibilityTable, "1")
	assert.True(t, errors.IsNotFound(err))

	n, err := r.AcceptedDonorsCount(EligibilityTable)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, answer, err := r.UpdateDonorEligibility(EligibilityForm{DonorID: "1", Eligibility: "true"})
	require.NoError(t, err)
	assert.Equal(t, "yes", answer)
	donor, err := r.GetDonor("1")
	require.NoError(t, err)
	assert.Equal(t, "yes", donor["eligible"])

	_, _, err = r.UpdateDonorEligibility(EligibilityForm{DonorID: "2", Eligibility: "no"})
	assert.True(t, errors.IsNotFound(err))
}

func TestDonorsNearAndDashboard(t *testing.T) {
	r := newTestRepo(t)
	require.NoError(t, r.store.RewriteAll(DonorTable, []flatstore.Row{
		{"donor_id": "1", "name": "Near", "email": "near@example.com", "password": "pw", "blood_group": "O+", "lat": "13.0830", "lon": "80.2710", "last_donated": "2025-01-10", "total_donation": "3", "first_donation_date": "2023-01-10", "total_units_donated": "3"},
		{"donor_id": "2", "name": "Far", "blood_group": "O+", "lat": "12.9716", "lon": "77.5946", "last_donated": "15-03-2025"},
		{"donor_id": "3", "name": "NoCoords", "blood_group": "O+", "lat": "", "lon": "x"},
	}))

	near, err := r.DonorsNear(geo.Point{Lat: 13.0827, Lon: 80.2707}, 5, "")
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, 1, near[0]["donor_id"])
	assert.NotContains(t, near[0], "password")

	_, err = r.DonorsNear(geo.Point{}, 0, "")
	assert.True(t, errors.IsValidation(err))

	dash, err := r.Dashboard("1")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-10", dash["next_eligible_date"])
	assert.Equal(t, 3, dash["total_donations"])

	dash, err = r.Dashboard("2")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-13", dash["next_eligible_date"])

	history, err := r.DonationHistory("1")
	require.NoError(t, err)
	donations := history["donations"].([]Donation)
	require.Len(t, donations, 3)
	assert.Equal(t, "10-01-2023", donations[0].Date)
	assert.Equal(t, "10-01-2025", donations[2].Date)

	_, err = r.Dashboard("9")
	assert.True(t, errors.IsNotFound(err))

	_, err = r.DonorLogin("near@example.com", "bad")
	assert.Equal(t, 401, errors.GetCode(err))
	_, err = r.DonorLogin("nobody@example.com", "pw")
	assert.True(t, errors.IsNotFound(err))
	login, err := r.DonorLogin("NEAR@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Near", login["name"])
}

func TestSeedAndAuthenticate(t *testing.T) {
	r := newTestRepo(t)
	written, err := r.Seed("99", "21")
	require.NoError(t, err)
	assert.Equal(t, len(BloodGroups)*len(Components), written[InventoryTable.Name])

	written, err = r.Seed("99", "21")
	require.NoError(t, err)
	assert.Empty(t, written)

	acct, err := r.Authenticate(LoginForm{Username: "bank", Password: "bank123"})
	require.NoError(t, err)
	assert.Equal(t, "bank", acct.Role)
	assert.Equal(t, "21", acct.EntityID)

	_, err = r.Authenticate(LoginForm{Username: "bank", Password: "nope"})
	assert.Equal(t, 401, errors.GetCode(err))

	assert.True(t, errors.IsConflict(r.AddCredential("bank", "x", "bank", "21")))
}

func TestSimulatorAppendsPendingAlert(t *testing.T) {
	r := newTestRepo(t)
	sim := NewSimulator(r, "21", 1)
	row, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, row["status"])

	n, err := r.PendingAlertCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNotifyDonor(t *testing.T) {
	r := newTestRepo(t)
	for i := 0; i < 25; i++ {
		_, err := r.NotifyDonor(context.Background(), "1", "message "+strconv.Itoa(i))
		require.NoError(t, err)
	}
	list, err := r.DonorNotifications("1")
	require.NoError(t, err)
	require.Len(t, list, 20)
	assert.Equal(t, "message 24", list[0].Message)
	assert.Equal(t, "message 5", list[19].Message)

	_, err = r.NotifyDonor(context.Background(), "", "x")
	assert.True(t, errors.IsValidation(err))
}
