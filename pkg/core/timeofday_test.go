package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay_Valid(t *testing.T) {
	tod, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 8, Minute: 30}, tod)
}

func TestParseTimeOfDay_TrimsWhitespace(t *testing.T) {
	tod, err := ParseTimeOfDay("  23:59 ")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 59}, tod)
}

func TestParseTimeOfDay_RejectsMalformed(t *testing.T) {
	for _, input := range []string{"8", "8:3:1", "aa:bb", "", "25:00", "10:75", "-1:30"} {
		_, err := ParseTimeOfDay(input)
		assert.Error(t, err, "input %q should not parse", input)

		var invalid *InvalidTimeError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestTimeOfDayList_RoundTripsThroughSQL(t *testing.T) {
	list, err := ParseTimeOfDayList("08:00,12:30,20:15")
	require.NoError(t, err)
	require.Len(t, list, 3)

	value, err := list.Value()
	require.NoError(t, err)
	assert.Equal(t, "08:00,12:30,20:15", value)

	var scanned TimeOfDayList
	require.NoError(t, scanned.Scan("08:00,12:30,20:15"))
	assert.Equal(t, list, scanned)
}

func TestTimeOfDayList_ScanRejectsBadEntry(t *testing.T) {
	var list TimeOfDayList
	err := list.Scan("08:00,99:99")
	assert.Error(t, err)
}

func TestTimeOfDayList_ScanNil(t *testing.T) {
	list := TimeOfDayList{{Hour: 1}}
	require.NoError(t, list.Scan(nil))
	assert.Empty(t, list)
}

func TestTimeOfDayList_Sorted(t *testing.T) {
	list, err := ParseTimeOfDayList("20:00,08:00,12:00")
	require.NoError(t, err)

	sorted := list.Sorted()

	assert.Equal(t, "08:00,12:00,20:00", sorted.String())
	// The original order is preserved.
	assert.Equal(t, "20:00,08:00,12:00", list.String())
}
