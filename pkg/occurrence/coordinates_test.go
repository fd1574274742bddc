package occurrence

import "testing"

func TestParseUTMCoordinates(t *testing.T) {
	point, ok := ParseVerbatimCoordinates("9N 573674 6114170")
	if !ok {
		t.Fatal("expected UTM string to parse")
	}
	// zone 9 has central meridian -129; the point sits in northern BC
	if point.Latitude < 54.5 || point.Latitude > 56.0 {
		t.Fatalf("latitude %f out of expected range", point.Latitude)
	}
	if point.Longitude < -129.0 || point.Longitude > -127.0 {
		t.Fatalf("longitude %f out of expected range", point.Longitude)
	}
}

func TestParseUTMWithoutZoneLetter(t *testing.T) {
	if _, ok := ParseVerbatimCoordinates("9 573674 6114170"); !ok {
		t.Fatal("expected zone-letterless UTM string to parse")
	}
}

func TestParseLatLong(t *testing.T) {
	for _, verbatim := range []string{"50.7 -120.2", "50.7, -120.2", "50.7,-120.2"} {
		point, ok := ParseVerbatimCoordinates(verbatim)
		if !ok {
			t.Fatalf("expected %q to parse", verbatim)
		}
		if point.Latitude != 50.7 || point.Longitude != -120.2 {
			t.Fatalf("unexpected point %+v for %q", point, verbatim)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, verbatim := range []string{"", "not-a-coordinate", "999 1 2", "95.0 -120.0", "50.0 -200.0"} {
		if _, ok := ParseVerbatimCoordinates(verbatim); ok {
			t.Fatalf("expected %q to fail parsing", verbatim)
		}
	}
}
