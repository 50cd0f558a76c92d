// Package geo converts raw GPS coordinates into the GCJ-02 datum used by
// Chinese map providers and builds map deep links from them.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WGS-84 ellipsoid parameters.
const (
	semiMajorAxis = 6378137.0
	eccentricity2 = 0.00669342162296594323
)

// Bounding box outside of which GCJ-02 and WGS-84 coincide by convention.
const (
	minLng = 72.004
	maxLng = 137.8347
	minLat = 0.8293
	maxLat = 55.8271
)

// Coordinate is a longitude/latitude pair in decimal degrees.
type Coordinate struct {
	Lng float64
	Lat float64
}

// ToGCJ02 returns c shifted from WGS-84 into GCJ-02.
// c must be a WGS-84 coordinate; converting an already shifted value shifts it twice.
func (c Coordinate) ToGCJ02() Coordinate {
	lng, lat := ToGCJ02(c.Lng, c.Lat)
	return Coordinate{Lng: lng, Lat: lat}
}

// OutOfChina reports whether the point lies outside the territory that needs
// the GCJ-02 correction.
func OutOfChina(lng, lat float64) bool {
	return lng < minLng || lng > maxLng || lat < minLat || lat > maxLat
}

// ToGCJ02 converts a WGS-84 longitude/latitude pair to GCJ-02.
// Points outside the bounding box are returned unchanged.
func ToGCJ02(lng, lat float64) (float64, float64) {
	if OutOfChina(lng, lat) {
		return lng, lat
	}

	dLat := transformLat(lng-105.0, lat-35.0)
	dLng := transformLng(lng-105.0, lat-35.0)

	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - eccentricity2*magic*magic
	sqrtMagic := math.Sqrt(magic)

	dLat = (dLat * 180.0) / ((semiMajorAxis * (1 - eccentricity2)) / (magic * sqrtMagic) * math.Pi)
	dLng = (dLng * 180.0) / (semiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)

	return lng + dLng, lat + dLat
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLng(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}

// MarkerLabel is the fixed marker name carried by every map link.
const MarkerLabel = "当前位置"

// NoLocationURL is the placeholder link for records without coordinates.
const NoLocationURL = "#"

// MarkerURL builds an AMap marker link for a GCJ-02 coordinate.
func MarkerURL(c Coordinate) string {
	return fmt.Sprintf("https://uri.amap.com/marker?position=%.6f,%.6f&name=%s&coordinate=gaode", c.Lng, c.Lat, MarkerLabel)
}

// RawMarkerURL builds an AMap marker link from unconverted coordinate text.
// It is the fallback when the values cannot be parsed as numbers.
func RawMarkerURL(lng, lat string) string {
	return fmt.Sprintf("https://uri.amap.com/marker?position=%s,%s&name=%s&coordinate=gaode", lng, lat, MarkerLabel)
}

// MapLink builds the marker link for raw WGS-84 coordinate text. Parseable
// values are converted to GCJ-02; anything else is linked unconverted. An
// empty or "N/A" value on either axis yields NoLocationURL.
func MapLink(lng, lat string) string {
	if absent(lng) || absent(lat) {
		return NoLocationURL
	}
	x, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	y, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if errLng != nil || errLat != nil || !finite(x) || !finite(y) {
		return RawMarkerURL(lng, lat)
	}
	return MarkerURL(Coordinate{Lng: x, Lat: y}.ToGCJ02())
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func absent(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "N/A"
}
