package model

import "time"

// ExitNodeRecord describes the externally visible endpoint of the current
// Tor circuit, as observed by a lookup routed through the SOCKS port.
//
// Address is the only required field. Geolocation fields are best effort:
// lookup providers vary in what they return, and a record with an address
// but no location is still a fully resolved record.
type ExitNodeRecord struct {
	// Address is the public IP address seen by the lookup service.
	Address string `json:"address"`

	// CountryName is the human-readable country name, if the geolocation
	// lookup returned one (e.g., "Germany").
	CountryName string `json:"country_name,omitempty"`

	// CountryCode is the ISO 3166-1 alpha-2 code, if available (e.g., "DE").
	CountryCode string `json:"country_code,omitempty"`

	// City is the city reported by the geolocation lookup, if available.
	City string `json:"city,omitempty"`

	// IsTorExit reports whether the exit verification service confirmed
	// the address as a known Tor exit node. False may mean the check failed
	// or the address genuinely is not a Tor exit; see Session.LastError.
	IsTorExit bool `json:"is_tor_exit"`

	// RotationSeq is the value of the session rotation counter at the time
	// this record was resolved. Used to correlate records with rotations.
	RotationSeq uint64 `json:"rotation_seq"`

	// ResolvedAt is when the lookup completed.
	ResolvedAt time.Time `json:"resolved_at"`
}

// Location returns a "City, Country" string for display.
// Missing fields degrade gracefully: "City", "Country", or "unknown".
func (r *ExitNodeRecord) Location() string {
	country := r.CountryName
	if country == "" {
		country = r.CountryCode
	}

	switch {
	case r.City != "" && country != "":
		return r.City + ", " + country
	case country != "":
		return country
	case r.City != "":
		return r.City
	default:
		return "unknown"
	}
}
