// Package exif recovers a GPS coordinate and a JSON-safe metadata
// snapshot from an uploaded photo. Extraction failure is never fatal:
// a photo without usable metadata simply yields no coordinate.
package exif

import (
	"io"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/cleanmap/reports-service/internal/types"
)

func init() {
	// Register maker note parsers for better camera support
	exif.RegisterParsers(mknote.All...)
}

// Outcome distinguishes why extraction did or did not yield a
// coordinate. Callers treat NoMetadata and DecodeFailed identically;
// they are separate so tests can tell them apart.
type Outcome int

const (
	// OutcomeGPS means a coordinate and snapshot were extracted.
	OutcomeGPS Outcome = iota
	// OutcomeNoGPS means metadata was readable but carried no usable
	// GPS block; the snapshot is still returned.
	OutcomeNoGPS
	// OutcomeNoMetadata means the image carries no EXIF block.
	OutcomeNoMetadata
	// OutcomeDecodeFailed means the metadata was present but unreadable.
	OutcomeDecodeFailed
)

// Extract reads EXIF metadata from an image stream. The stream's read
// position is restored to the start on every exit path, since callers
// re-read the same stream for normalization.
func Extract(r io.ReadSeeker) (coord *types.GeoCoordinate, snapshot types.ExifSnapshot, outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			coord, snapshot, outcome = nil, nil, OutcomeDecodeFailed
		}
		r.Seek(0, io.SeekStart)
	}()

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, nil, OutcomeDecodeFailed
	}

	x, err := exif.Decode(r)
	if err != nil {
		return nil, nil, OutcomeNoMetadata
	}

	snapshot = buildSnapshot(x)

	lat, latOK := dmsField(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	lng, lngOK := dmsField(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if !latOK || !lngOK {
		return nil, snapshot, OutcomeNoGPS
	}

	return &types.GeoCoordinate{Latitude: lat, Longitude: lng}, snapshot, OutcomeGPS
}

// DMSToDecimal converts a degrees/minutes/seconds triple to decimal
// degrees, negated for southern and western hemisphere references.
func DMSToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	decimal := degrees + minutes/60.0 + seconds/3600.0
	if ref == "S" || ref == "W" {
		decimal = -decimal
	}
	return decimal
}

// dmsField reads one GPS axis (value rationals plus hemisphere ref)
// and converts it to decimal degrees.
func dmsField(x *exif.Exif, valField, refField exif.FieldName) (float64, bool) {
	tag, err := x.Get(valField)
	if err != nil {
		return 0, false
	}
	refTag, err := x.Get(refField)
	if err != nil {
		return 0, false
	}
	ref, err := refTag.StringVal()
	if err != nil {
		return 0, false
	}

	var dms [3]float64
	for i := range dms {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return 0, false
		}
		dms[i] = float64(num) / float64(den)
	}

	return DMSToDecimal(dms[0], dms[1], dms[2], ref), true
}

type snapshotWalker struct {
	fields types.ExifSnapshot
}

func (w *snapshotWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if value, ok := sanitizeTag(tag); ok {
		w.fields[string(name)] = value
	}
	return nil
}

func buildSnapshot(x *exif.Exif) types.ExifSnapshot {
	walker := &snapshotWalker{fields: types.ExifSnapshot{}}
	if err := x.Walk(walker); err != nil {
		return walker.fields
	}
	return walker.fields
}

// sanitizeTag maps a TIFF tag to a JSON-safe value: scalars kept
// verbatim, multi-valued numerics as float lists, binary fields
// dropped, anything else stringified. Fields that cannot be converted
// are skipped.
func sanitizeTag(tag *tiff.Tag) (interface{}, bool) {
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		return s, true

	case tiff.IntVal:
		if tag.Count == 1 {
			v, err := tag.Int(0)
			if err != nil {
				return nil, false
			}
			return v, true
		}
		values := make([]float64, 0, tag.Count)
		for i := 0; i < int(tag.Count); i++ {
			v, err := tag.Int(i)
			if err != nil {
				return nil, false
			}
			values = append(values, float64(v))
		}
		return values, true

	case tiff.FloatVal:
		if tag.Count == 1 {
			v, err := tag.Float(0)
			if err != nil {
				return nil, false
			}
			return v, true
		}
		values := make([]float64, 0, tag.Count)
		for i := 0; i < int(tag.Count); i++ {
			v, err := tag.Float(i)
			if err != nil {
				return nil, false
			}
			values = append(values, v)
		}
		return values, true

	case tiff.RatVal:
		values := make([]float64, 0, tag.Count)
		for i := 0; i < int(tag.Count); i++ {
			num, den, err := tag.Rat2(i)
			if err != nil {
				return nil, false
			}
			if den == 0 {
				return tag.String(), true
			}
			values = append(values, float64(num)/float64(den))
		}
		if len(values) == 1 {
			return values[0], true
		}
		return values, true

	case tiff.UndefVal, tiff.OtherVal:
		// binary or opaque payloads have no place in a JSON snapshot
		return nil, false

	default:
		return tag.String(), true
	}
}
