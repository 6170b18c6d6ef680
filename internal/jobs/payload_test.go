package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "150", want: "150.00"},
		{in: "150.5", want: "150.50"},
		{in: " 0099.99 ", want: "99.99"},
		{in: "0.01", want: "0.01"},
		{in: "0", wantErr: true},
		{in: "0.00", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "1.234", wantErr: true},
		{in: "1.", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := normalizeAmount(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrValidation, tt.in)
			assert.Equal(t, "amount", FieldOf(err), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestApplyProvideQuote(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	var job Job
	err := Payload{SuggestedDate: "2024-06-10"}.apply(ActionProvideQuote, &job, now)
	assert.Equal(t, "amount", FieldOf(err))

	err = Payload{Amount: "150"}.apply(ActionProvideQuote, &job, now)
	assert.Equal(t, "suggestedDate", FieldOf(err))

	err = Payload{Amount: "150", SuggestedDate: "10/06/2024"}.apply(ActionProvideQuote, &job, now)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "suggestedDate", FieldOf(err))

	err = Payload{Amount: "150", SuggestedDate: "2024-06-10", Notes: " two pallets "}.apply(ActionProvideQuote, &job, now)
	require.NoError(t, err)
	require.NotNil(t, job.QuoteAmount)
	assert.Equal(t, "150.00", *job.QuoteAmount)
	assert.Equal(t, "2024-06-10", job.SuggestedDate.Format(dateLayout))
	assert.Equal(t, "two pallets", job.QuoteNotes)
}

func TestApplyMarkCollectedRequiresBothSignatures(t *testing.T) {
	now := time.Now()

	var job Job
	err := Payload{DriverSignature: []byte("d")}.apply(ActionMarkCollected, &job, now)
	assert.Equal(t, "customerSignature", FieldOf(err))

	err = Payload{CustomerSignature: []byte("c")}.apply(ActionMarkCollected, &job, now)
	assert.Equal(t, "driverSignature", FieldOf(err))
	assert.Nil(t, job.CollectedAt)

	err = Payload{CustomerSignature: []byte("c"), DriverSignature: []byte("d"), CustomerName: "Ann"}.apply(ActionMarkCollected, &job, now)
	require.NoError(t, err)
	require.NotNil(t, job.CollectedAt)
	assert.Equal(t, "Ann", job.CustomerName)
}

func TestApplyReceiveAtFacility(t *testing.T) {
	var job Job
	err := Payload{StaffSignature: []byte("s"), StaffName: "Sam"}.apply(ActionReceiveAtFacility, &job, time.Now())
	assert.Equal(t, "itemsConfirmed", FieldOf(err))

	err = Payload{ItemsConfirmed: true, StaffName: "Sam"}.apply(ActionReceiveAtFacility, &job, time.Now())
	assert.Equal(t, "staffSignature", FieldOf(err))

	err = Payload{ItemsConfirmed: true, StaffSignature: []byte("s")}.apply(ActionReceiveAtFacility, &job, time.Now())
	assert.Equal(t, "staffName", FieldOf(err))

	err = Payload{ItemsConfirmed: true, StaffSignature: []byte("s"), StaffName: " Sam "}.apply(ActionReceiveAtFacility, &job, time.Now())
	require.NoError(t, err)
	assert.True(t, job.ItemsConfirmed)
	assert.Equal(t, "Sam", job.StaffName)
}

func TestApplyDeclineAndPostponeClearDates(t *testing.T) {
	d := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	job := Job{RequestedDate: &d, CollectionDate: &d}

	require.NoError(t, Payload{}.apply(ActionDeclineRequest, &job, time.Now()))
	assert.Nil(t, job.RequestedDate)
	require.NoError(t, Payload{}.apply(ActionPostpone, &job, time.Now()))
	assert.Nil(t, job.CollectionDate)
}

func TestNewJobValidate(t *testing.T) {
	assert.Equal(t, "clientRef", FieldOf(NewJob{}.validate()))
	assert.Equal(t, "items", FieldOf(NewJob{ClientRef: "C-1"}.validate()))
	assert.Equal(t, "items.category", FieldOf(NewJob{ClientRef: "C-1", Items: []Item{{Quantity: 1}}}.validate()))
	assert.Equal(t, "items.quantity", FieldOf(NewJob{ClientRef: "C-1", Items: []Item{{Category: "IT", Quantity: -1}}}.validate()))
	assert.NoError(t, NewJob{ClientRef: "C-1", Items: []Item{{Category: "IT", Quantity: 2}}}.validate())
}

func TestItemInference(t *testing.T) {
	assert.True(t, Item{Category: "Batteries"}.IsHazardous())
	assert.True(t, Item{Category: "Misc", Hazardous: true}.IsHazardous())
	assert.True(t, Item{Category: "IT", Subcategory: "Laptop"}.IsDataBearing())
	assert.False(t, Item{Category: "Furniture"}.IsDataBearing())
}
