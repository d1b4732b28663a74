package arrivals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose_WithoutPassenger(t *testing.T) {
	j := Compose(nil, chennai, ETA{DistanceKm: 4, Minutes: 9})

	assert.Equal(t, chennai, j.Target)
	assert.Zero(t, j.WalkingDistanceKm)
	assert.Zero(t, j.WalkingMinutes)
	assert.Equal(t, 9, j.TotalJourneyMinutes)
}

func TestCompose_WithPassenger(t *testing.T) {
	passenger := northOf(chennai, 2)

	j := Compose(&passenger, chennai, ETA{DistanceKm: 5, Minutes: 15})

	assert.Equal(t, passenger, j.Target)
	assert.Equal(t, 2.0, j.WalkingDistanceKm)
	assert.Equal(t, 24, j.WalkingMinutes)
	assert.Equal(t, 39, j.TotalJourneyMinutes)
}

func TestWalk_RoundsUp(t *testing.T) {
	km, mins := Walk(northOf(chennai, 1.01), chennai)
	assert.Equal(t, 1.01, km)
	assert.Equal(t, 13, mins)

	km, mins = Walk(chennai, chennai)
	assert.Zero(t, km)
	assert.Zero(t, mins)
}

func TestParsePassenger(t *testing.T) {
	got := ParsePassenger("13.05", " 80.25 ")
	require.NotNil(t, got)
	assert.Equal(t, Coordinate{Lat: 13.05, Lng: 80.25}, *got)

	for _, tc := range [][2]string{
		{"", "80.2"},
		{"13.0", ""},
		{"abc", "80.2"},
		{"13.0", "NaN"},
		{"Inf", "80.2"},
		{"95", "80.2"},
		{"13.0", "200"},
	} {
		assert.Nil(t, ParsePassenger(tc[0], tc[1]), "lat=%q lng=%q", tc[0], tc[1])
	}
}
