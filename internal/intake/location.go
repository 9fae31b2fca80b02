package intake

import (
	"errors"

	"github.com/cleanmap/reports-service/internal/types"
)

// ErrNoLocation means neither a map pin nor EXIF GPS data was
// available for a submission. This is the only recoverable failure of
// location resolution.
var ErrNoLocation = errors.New("no location available")

// ResolveLocation picks the report coordinate: a user-placed pin
// always wins over EXIF-derived GPS; EXIF is the fallback.
func ResolveLocation(pin, exifCoord *types.GeoCoordinate) (types.GeoCoordinate, error) {
	if pin != nil {
		return *pin, nil
	}
	if exifCoord != nil {
		return *exifCoord, nil
	}
	return types.GeoCoordinate{}, ErrNoLocation
}
