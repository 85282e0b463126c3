package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekImageProducesPNG(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	slots := []*service.SlotDetails{
		{ID: 1, Datetime: time.Date(2050, 1, 10, 6, 30, 0, 0, time.UTC), ChildCount: 4, TotalCapacity: 4,
			Vehicles: []service.VehicleDetails{{VehicleID: 30}}},
		{ID: 2, Datetime: time.Date(2050, 1, 12, 15, 0, 0, 0, time.UTC), ChildCount: 0, TotalCapacity: 999},
	}

	data, err := WeekImage(WeekInput{
		Title:     "Morning run",
		WeekStart: time.Date(2050, 1, 9, 23, 0, 0, 0, time.UTC),
		Location:  paris,
		Slots:     slots,
		Now:       time.Date(2050, 1, 11, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, img.Bounds().Dx())
	assert.Equal(t, imageHeight, img.Bounds().Dy())
}

func TestCalculateHourRange(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	empty := calculateHourRange(nil, paris)
	assert.Equal(t, defaultMinHour-hourPaddingTop, empty.start)

	slots := []*service.SlotDetails{
		{Datetime: time.Date(2050, 1, 10, 6, 30, 0, 0, time.UTC)},  // 07:30 local
		{Datetime: time.Date(2050, 1, 10, 15, 45, 0, 0, time.UTC)}, // 16:45 local, ends 17:15
	}
	hours := calculateHourRange(slots, paris)
	assert.Equal(t, 6, hours.start)
	assert.Equal(t, 19, hours.end)
	assert.Equal(t, 13, hours.total)
}

func TestGroupSlotsByLocalDay(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// 23:30 UTC в воскресенье - уже понедельник в Париже
	slot := &service.SlotDetails{Datetime: time.Date(2050, 1, 9, 23, 30, 0, 0, time.UTC)}
	byDay := groupSlotsByDay([]*service.SlotDetails{slot}, paris)
	assert.Len(t, byDay["2050-01-10"], 1)
}

func TestTripColor(t *testing.T) {
	assert.Equal(t, tripEmptyColor, tripColor(&service.SlotDetails{}))
	assert.Equal(t, tripPartialColor, tripColor(&service.SlotDetails{ChildCount: 1, AvailableSeats: 2}))
	assert.Equal(t, tripFullColor, tripColor(&service.SlotDetails{ChildCount: 4, AvailableSeats: 0}))
}
