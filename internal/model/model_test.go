package model

import "testing"

// TestExitNodeRecordLocation tests location string formatting.
func TestExitNodeRecordLocation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		record   ExitNodeRecord
		expected string
	}{
		{"city and country name", ExitNodeRecord{City: "Berlin", CountryName: "Germany"}, "Berlin, Germany"},
		{"city and country code only", ExitNodeRecord{City: "Berlin", CountryCode: "DE"}, "Berlin, DE"},
		{"country only", ExitNodeRecord{CountryName: "Germany"}, "Germany"},
		{"city only", ExitNodeRecord{City: "Berlin"}, "Berlin"},
		{"nothing", ExitNodeRecord{}, "unknown"},
		{"name preferred over code", ExitNodeRecord{CountryName: "Germany", CountryCode: "DE"}, "Germany"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.record.Location(); got != tc.expected {
				t.Errorf("Location() = %q, expected %q", got, tc.expected)
			}
		})
	}
}

// TestCircuitIsUsable tests the usable-circuit condition.
func TestCircuitIsUsable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		circuit  Circuit
		expected bool
	}{
		{"built general", Circuit{Status: CircuitStatusBuilt, Purpose: GeneralPurpose}, true},
		{"built with extended purpose string", Circuit{Status: CircuitStatusBuilt, Purpose: "GENERAL,NEED_CAPACITY"}, true},
		{"launched general", Circuit{Status: CircuitStatusLaunched, Purpose: GeneralPurpose}, false},
		{"built directory", Circuit{Status: CircuitStatusBuilt, Purpose: "DIR_FETCH"}, false},
		{"failed", Circuit{Status: CircuitStatusFailed, Purpose: GeneralPurpose}, false},
		{"empty", Circuit{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.circuit.IsUsable(); got != tc.expected {
				t.Errorf("IsUsable() = %v, expected %v", got, tc.expected)
			}
		})
	}
}
