package task

import (
	"regexp"
	"testing"
)

var jobIDPattern = regexp.MustCompile(`^\d{8}-\d{6}-[0-9a-f]{8}$`)

func TestNewJobID(t *testing.T) {
	first := NewJobID()
	second := NewJobID()

	if !jobIDPattern.MatchString(first.String()) {
		t.Errorf("JobID %q does not match YYYYMMDD-HHMMSS-xxxxxxxx", first.String())
	}
	if first.Equals(second) {
		t.Errorf("Two generated JobIDs should differ, both were %s", first.String())
	}
	if first.IsZero() {
		t.Error("Generated JobID should not be zero")
	}
}

func TestJobIDFromString(t *testing.T) {
	const raw = "20260301-120000-abcd1234"

	if got := JobIDFromString(raw).String(); got != raw {
		t.Errorf("Round-tripped JobID = %s, want %s", got, raw)
	}
}

func TestJobIDEquals(t *testing.T) {
	a := JobIDFromString("20260301-120000-abcd1234")
	b := JobIDFromString("20260301-120000-abcd1234")
	c := JobIDFromString("20260301-120001-efgh5678")

	if !a.Equals(b) {
		t.Error("JobIDs with the same value should be equal")
	}
	if a.Equals(c) {
		t.Error("JobIDs with different values should not be equal")
	}
}

func TestJobIDIsZero(t *testing.T) {
	var zero JobID

	if !zero.IsZero() {
		t.Error("Zero-value JobID should report IsZero")
	}
	if JobIDFromString("20260301-120000-abcd1234").IsZero() {
		t.Error("Restored JobID should not report IsZero")
	}
}
