package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	chennai := Point{Lat: 13.0827, Lon: 80.2707}
	bangalore := Point{Lat: 12.9716, Lon: 77.5946}

	assert.InDelta(t, 290, DistanceKm(chennai, bangalore), 5)
	assert.InDelta(t, DistanceKm(chennai, bangalore), DistanceKm(bangalore, chennai), 1e-9)
	assert.Zero(t, DistanceKm(chennai, chennai))
}

func TestWithin(t *testing.T) {
	a := Point{Lat: 13.0827, Lon: 80.2707}
	b := Point{Lat: 13.0900, Lon: 80.2800}
	assert.True(t, Within(a, b, 5))
	assert.False(t, Within(a, Point{Lat: 12.9716, Lon: 77.5946}, 50))
}
