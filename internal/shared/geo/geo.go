package geo

// Valid reports whether the pair is a usable WGS84 coordinate.
func Valid(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
