package tracks

import (
	_ "embed"
	"testing"

	"github.com/google/go-cmp/cmp"
)

//go:embed testdata/green.yaml
var greenLayout []byte

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	y, err := LoadLayout(greenLayout)
	if err != nil {
		t.Fatal(err)
	}
	c, err := OpenMemory(LineGreen)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Seed(y); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestParseLine(t *testing.T) {
	for _, c := range []struct {
		in   string
		want Line
		ok   bool
	}{
		{"red", LineRed, true},
		{"Red", LineRed, true},
		{"GREEN", LineGreen, true},
		{"green", LineGreen, true},
		{"blue", "", false},
		{"", "", false},
	} {
		got, err := ParseLine(c.in)
		if c.ok && err != nil {
			t.Errorf("ParseLine(%q): unexpected error %v", c.in, err)
			continue
		}
		if !c.ok {
			if err == nil {
				t.Errorf("ParseLine(%q): expected error", c.in)
			}
			continue
		}
		if got != c.want {
			t.Errorf("ParseLine(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLookupBlock(t *testing.T) {
	c := newTestCatalog(t)

	got, ok := c.LookupBlock(64)
	if !ok {
		t.Fatal("block 64 missing")
	}
	want := BlockFacts{
		Number:        64,
		LengthM:       150,
		SpeedLimitMPH: 25, // round(40 * 0.621371)
		IsStation:     true,
		StationNumber: 9,
		StationName:   "Glenbury",
		PlatformSide:  "left",
	}
	if !cmp.Equal(got, want) {
		t.Fatalf("diff: %s", cmp.Diff(want, got))
	}

	got, ok = c.LookupBlock(63)
	if !ok {
		t.Fatal("block 63 missing")
	}
	if !got.Underground {
		t.Fatal("block 63 should be underground")
	}
	if got.SpeedLimitMPH != 43 { // round(70 * 0.621371)
		t.Fatalf("speed limit %v, want 43", got.SpeedLimitMPH)
	}
	if got.IsStation {
		t.Fatal("block 63 is not a station")
	}

	if _, ok := c.LookupBlock(999); ok {
		t.Fatal("block 999 should miss")
	}
}

func TestLookupStation(t *testing.T) {
	c := newTestCatalog(t)

	got, ok := c.LookupStation(9)
	if !ok {
		t.Fatal("station 9 missing")
	}
	want := StationFacts{Name: "Glenbury", PlatformSide: "left", BlockNumber: 64}
	if !cmp.Equal(got, want) {
		t.Fatalf("diff: %s", cmp.Diff(want, got))
	}

	if _, ok := c.LookupStation(42); ok {
		t.Fatal("station 42 should miss")
	}
	if _, ok := c.LookupStation(0); ok {
		t.Fatal("station 0 should miss")
	}
}

func TestStationsAndCount(t *testing.T) {
	c := newTestCatalog(t)
	if n := c.Count(); n != 5 {
		t.Fatalf("count %d, want 5", n)
	}
	sts := c.Stations()
	if len(sts) != 2 {
		t.Fatalf("stations %d, want 2", len(sts))
	}
	if sts[0].Name != "Glenbury" || sts[1].Name != "Dormont" {
		t.Fatalf("unexpected station order: %+v", sts)
	}
}

func TestSeedLineMismatch(t *testing.T) {
	y, err := LoadLayout(greenLayout)
	if err != nil {
		t.Fatal(err)
	}
	c, err := OpenMemory(LineRed)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Seed(y); err == nil {
		t.Fatal("seeding a red catalog with a green layout should fail")
	}
}

func TestLoadLayoutRejectsBadInput(t *testing.T) {
	for name, data := range map[string]string{
		"bad yaml":     "line: [",
		"no line":      "blocks:\n  - number: 1\n    length-m: 10\n    speed-limit-kmh: 40\n",
		"unknown line": "line: blue\nblocks:\n  - number: 1\n    length-m: 10\n    speed-limit-kmh: 40\n",
		"no blocks":    "line: red\n",
		"zero length":  "line: red\nblocks:\n  - number: 1\n    length-m: 0\n    speed-limit-kmh: 40\n",
		"bad side":     "line: red\nblocks:\n  - number: 1\n    length-m: 10\n    speed-limit-kmh: 40\n    station: {number: 1, name: A, side: up}\n",
	} {
		if _, err := LoadLayout([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
