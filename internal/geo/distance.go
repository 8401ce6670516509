// Package geo вычисляет расстояния между точками доставки.
package geo

import (
	"errors"
	"math"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

// ErrGeocodingRequired возвращается, если у одной из точек нет координат.
var ErrGeocodingRequired = errors.New("geocoding required")

const earthRadiusKm = 6371.0

// DistanceKm возвращает расстояние по большому кругу между двумя точками в километрах.
func DistanceKm(a, b model.Location) (float64, error) {
	if a.Coordinates == nil || b.Coordinates == nil {
		return 0, ErrGeocodingRequired
	}
	return Haversine(*a.Coordinates, *b.Coordinates), nil
}

// Haversine вычисляет расстояние между координатами по формуле гаверсинусов.
func Haversine(a, b model.Coordinates) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	// Округление может вывести h за пределы [0, 1] для почти диаметрально противоположных точек.
	h = min(max(h, 0), 1)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
