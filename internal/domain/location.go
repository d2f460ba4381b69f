package domain

import (
	"context"
	"strconv"
)

// Location is a WGS-84 latitude/longitude pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the location as "lat,lon" with the shortest exact
// representation of each coordinate.
func (l Location) String() string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lon, 'f', -1, 64)
}

// ZipLocation is the result of resolving a postal code.
type ZipLocation struct {
	Location
	Name    string
	Country string
}

// Locator resolves postal codes to coordinates.
type Locator interface {
	LocateZip(ctx context.Context, zip, country string) (ZipLocation, error)
}
