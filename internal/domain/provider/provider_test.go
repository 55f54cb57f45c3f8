package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlotsCovers(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	slots := Slots{
		{Start: day.Add(13 * time.Hour), End: day.Add(17 * time.Hour)},
		{Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)},
	}

	assert.True(t, slots.Covers(day.Add(9*time.Hour), day.Add(10*time.Hour)))
	assert.True(t, slots.Covers(day.Add(16*time.Hour), day.Add(17*time.Hour)))
	assert.False(t, slots.Covers(day.Add(11*time.Hour), day.Add(14*time.Hour)), "must fit a single slot")
	assert.False(t, slots.Covers(day.Add(8*time.Hour), day.Add(9*time.Hour)))

	sorted := slots.Sorted()
	assert.True(t, sorted[0].Start.Before(sorted[1].Start))
	assert.True(t, slots[0].Start.After(slots[1].Start), "Sorted must not reorder the receiver")
}

func TestSlotsValidate(t *testing.T) {
	now := time.Now()
	assert.NoError(t, Slots{{Start: now, End: now.Add(time.Hour)}}.Validate())
	assert.ErrorIs(t, Slots{{Start: now, End: now}}.Validate(), ErrInvalidSlot)
	assert.NoError(t, Slots(nil).Validate())
}

func TestSlotsValueScan(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	in := Slots{{Start: start, End: start.Add(time.Hour)}}

	v, err := in.Value()
	assert.NoError(t, err)

	var out Slots
	assert.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, in, out)

	v, err = Slots(nil).Value()
	assert.NoError(t, err)
	assert.Equal(t, "[]", v)

	assert.NoError(t, out.Scan(nil))
	assert.Empty(t, out)
	assert.Error(t, out.Scan(42))
}
