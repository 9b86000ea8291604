package records

import (
	"encoding/json"
	"fmt"
)

// Kind names one of the remote resource kinds. The value doubles as
// the query parameter sent to the provider and as the field name the
// provider uses when it wraps the array in an object.
type Kind string

const (
	KindBeds           Kind = "beds"
	KindPlants         Kind = "plants"
	KindImages         Kind = "images"
	KindTrails         Kind = "trails"
	KindTrailLocations Kind = "trail_locations"
)

// DecodeError reports a payload that could not be decoded as the
// requested kind. Decoding is independent per kind: one kind failing
// never invalidates another.
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// rawList extracts the array of records from a payload. The provider
// has served two shapes over time: a bare JSON array, and an object
// holding the array under a field named after the kind. Both are
// accepted.
func rawList(kind Kind, data []byte) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, &DecodeError{Kind: kind, Err: err}
	}
	inner, ok := wrapped[string(kind)]
	if !ok {
		return nil, &DecodeError{Kind: kind, Err: fmt.Errorf("payload has no %q field", kind)}
	}
	if err := json.Unmarshal(inner, &list); err != nil {
		return nil, &DecodeError{Kind: kind, Err: err}
	}
	return list, nil
}

// DecodeBeds parses a beds payload. Unknown fields are ignored;
// records missing their identity fail the whole decode so a malformed
// feed degrades to empty rather than half-loaded.
func DecodeBeds(data []byte) ([]Bed, error) {
	list, err := rawList(KindBeds, data)
	if err != nil {
		return nil, err
	}
	out := make([]Bed, 0, len(list))
	for i, raw := range list {
		var b Bed
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, &DecodeError{Kind: KindBeds, Err: err}
		}
		if b.Recnum == "" {
			return nil, &DecodeError{Kind: KindBeds, Err: fmt.Errorf("record %d missing recnum", i)}
		}
		out = append(out, b)
	}
	return out, nil
}

// DecodePlants parses a plants payload.
func DecodePlants(data []byte) ([]Plant, error) {
	list, err := rawList(KindPlants, data)
	if err != nil {
		return nil, err
	}
	out := make([]Plant, 0, len(list))
	for i, raw := range list {
		var p Plant
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &DecodeError{Kind: KindPlants, Err: err}
		}
		if p.Recnum == "" {
			return nil, &DecodeError{Kind: KindPlants, Err: fmt.Errorf("record %d missing recnum", i)}
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodeImages parses an images payload.
func DecodeImages(data []byte) ([]ImageRef, error) {
	list, err := rawList(KindImages, data)
	if err != nil {
		return nil, err
	}
	out := make([]ImageRef, 0, len(list))
	for i, raw := range list {
		var img ImageRef
		if err := json.Unmarshal(raw, &img); err != nil {
			return nil, &DecodeError{Kind: KindImages, Err: err}
		}
		if img.PlantRecnum == "" || img.Filename == "" {
			return nil, &DecodeError{Kind: KindImages, Err: fmt.Errorf("record %d missing plant_recnum or filename", i)}
		}
		out = append(out, img)
	}
	return out, nil
}

// DecodeTrails parses a trails metadata payload.
func DecodeTrails(data []byte) ([]Trail, error) {
	list, err := rawList(KindTrails, data)
	if err != nil {
		return nil, err
	}
	out := make([]Trail, 0, len(list))
	for i, raw := range list {
		var t Trail
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, &DecodeError{Kind: KindTrails, Err: err}
		}
		if t.ID == "" {
			return nil, &DecodeError{Kind: KindTrails, Err: fmt.Errorf("record %d missing ID", i)}
		}
		out = append(out, t)
	}
	return out, nil
}

// DecodeTrailPoints parses a trail_locations payload.
func DecodeTrailPoints(data []byte) ([]TrailPoint, error) {
	list, err := rawList(KindTrailLocations, data)
	if err != nil {
		return nil, err
	}
	out := make([]TrailPoint, 0, len(list))
	for i, raw := range list {
		var p TrailPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &DecodeError{Kind: KindTrailLocations, Err: err}
		}
		if p.TrailID == "" {
			return nil, &DecodeError{Kind: KindTrailLocations, Err: fmt.Errorf("record %d missing Trail_ID", i)}
		}
		out = append(out, p)
	}
	return out, nil
}
