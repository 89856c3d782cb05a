package capture

import (
	"fmt"
	"strconv"
	"strings"
)

// Coordinates is a device position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Lines renders the coordinates the way the recipe page shows them.
func (c Coordinates) Lines() []string {
	return []string{
		"Latitude: " + strconv.FormatFloat(c.Latitude, 'f', -1, 64),
		"Longitude: " + strconv.FormatFloat(c.Longitude, 'f', -1, 64),
	}
}

// LocationErrorCode classifies a failed position lookup.
type LocationErrorCode int

const (
	LocationUnknown LocationErrorCode = iota
	LocationPermissionDenied
	LocationPositionUnavailable
	LocationTimeout
)

var locationMessages = [...]string{
	LocationUnknown:             "Erro desconhecido",
	LocationPermissionDenied:    "Permissão negada!",
	LocationPositionUnavailable: "Posição indisponível!",
	LocationTimeout:             "Tempo de solicitação excedido!",
}

var locationNames = [...]string{
	LocationUnknown:             "unknown",
	LocationPermissionDenied:    "permission-denied",
	LocationPositionUnavailable: "position-unavailable",
	LocationTimeout:             "timeout",
}

// ParseLocationErrorCode maps a reported numeric code; anything outside the
// known classes is unknown.
func ParseLocationErrorCode(value string) LocationErrorCode {
	code, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || code < int(LocationUnknown) || code > int(LocationTimeout) {
		return LocationUnknown
	}
	return LocationErrorCode(code)
}

func (c LocationErrorCode) String() string {
	if c < LocationUnknown || c > LocationTimeout {
		return locationNames[LocationUnknown]
	}
	return locationNames[c]
}

// Message returns the user-facing text for the class.
func (c LocationErrorCode) Message() string {
	if c < LocationUnknown || c > LocationTimeout {
		return locationMessages[LocationUnknown]
	}
	return locationMessages[c]
}

// LocationError is a classified position lookup failure.
type LocationError struct {
	Code LocationErrorCode
	Err  error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location %s: %v", e.Code, e.Err)
	}
	return "location " + e.Code.String()
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text.
func (e *LocationError) Message() string {
	return e.Code.Message()
}

// ParseCoordinates reads a latitude/longitude pair. Missing values classify
// as position-unavailable; malformed or out-of-range values as unknown.
func ParseCoordinates(latitude, longitude string) (Coordinates, error) {
	latitude = strings.TrimSpace(latitude)
	longitude = strings.TrimSpace(longitude)
	if latitude == "" || longitude == "" {
		return Coordinates{}, &LocationError{Code: LocationPositionUnavailable}
	}
	lat, err := strconv.ParseFloat(latitude, 64)
	if err != nil {
		return Coordinates{}, &LocationError{Code: LocationUnknown, Err: err}
	}
	lon, err := strconv.ParseFloat(longitude, 64)
	if err != nil {
		return Coordinates{}, &LocationError{Code: LocationUnknown, Err: err}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Coordinates{}, &LocationError{Code: LocationUnknown, Err: fmt.Errorf("coordinates out of range: %s, %s", latitude, longitude)}
	}
	return Coordinates{Latitude: lat, Longitude: lon}, nil
}
