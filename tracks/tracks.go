// Package tracks is the static track-block catalog. Block facts for one
// line live in a buntdb database built ahead of time (see cmd/trackdb);
// controllers treat the catalog as a pure lookup service.
package tracks

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
)

// Line is a track line identifier.
type Line string

const (
	LineRed   Line = "Red"
	LineGreen Line = "Green"
)

// ParseLine normalizes a case-insensitive line name.
func ParseLine(s string) (Line, error) {
	switch strings.ToLower(s) {
	case "red":
		return LineRed, nil
	case "green":
		return LineGreen, nil
	}
	return "", fmt.Errorf("unknown line %q (want red or green)", s)
}

// BlockFacts are the static per-block facts a controller consumes. The
// speed limit is converted to mph from the stored km/h value at lookup
// time and rounded to a whole number.
type BlockFacts struct {
	Number        int
	LengthM       float64
	SpeedLimitMPH float64
	Underground   bool
	IsStation     bool
	StationNumber int
	StationName   string
	PlatformSide  string
}

// StationFacts locate a station by its wayside station number.
type StationFacts struct {
	Name         string
	PlatformSide string
	BlockNumber  int
}

// blockRecord is the stored form, in raw layout units.
type blockRecord struct {
	Number        int            `json:"number"`
	LengthM       float64        `json:"length-m"`
	SpeedLimitKMH float64        `json:"speed-limit-kmh"`
	Underground   bool           `json:"underground"`
	Station       *stationRecord `json:"station,omitempty"`
}

type stationRecord struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Side   string `json:"side"`
}

func (r blockRecord) facts() BlockFacts {
	f := BlockFacts{
		Number:        r.Number,
		LengthM:       r.LengthM,
		SpeedLimitMPH: math.Round(r.SpeedLimitKMH * 0.621371),
		Underground:   r.Underground,
	}
	if r.Station != nil {
		f.IsStation = true
		f.StationNumber = r.Station.Number
		f.StationName = r.Station.Name
		f.PlatformSide = r.Station.Side
	}
	return f
}

// Catalog is the read-mostly block database for one line.
type Catalog struct {
	db   *buntdb.DB
	line Line
}

const metaLineKey = "meta:line"

func blockKey(line Line, number int) string {
	return fmt.Sprintf("block:%s:%04d:data", strings.ToLower(string(line)), number)
}

func blockPrefix(line Line) string {
	return fmt.Sprintf("block:%s:", strings.ToLower(string(line)))
}

// Open opens an existing block database and reads its line identity.
func Open(path string) (*Catalog, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open block db: %w", err)
	}
	c := &Catalog{db: db}
	err = db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(metaLineKey)
		if err != nil {
			return fmt.Errorf("get %s: %w", metaLineKey, err)
		}
		line, err := ParseLine(raw)
		if err != nil {
			return err
		}
		c.line = line
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Create opens (or creates) a block database at path and stamps it with
// the line identity.
func Create(path string, line Line) (*Catalog, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open block db: %w", err)
	}
	err = db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(metaLineKey, string(line), nil)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("stamp line: %w", err)
	}
	return &Catalog{db: db, line: line}, nil
}

// OpenMemory returns an empty in-memory catalog for line. Tests and ad hoc
// runs seed it with Seed.
func OpenMemory(line Line) (*Catalog, error) {
	return Create(":memory:", line)
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) Line() Line { return c.line }

// LookupBlock returns the static facts for one block, false on a miss.
func (c *Catalog) LookupBlock(number int) (BlockFacts, bool) {
	var rec blockRecord
	err := c.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(blockKey(c.line, number))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &rec)
	})
	if err != nil {
		if err != buntdb.ErrNotFound {
			zap.S().Errorw("block db read failed", "block", number, "err", err)
		}
		return BlockFacts{}, false
	}
	return rec.facts(), true
}

// LookupStation scans the line's blocks for a matching station number.
func (c *Catalog) LookupStation(number int) (StationFacts, bool) {
	var (
		facts StationFacts
		found bool
	)
	err := c.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(blockPrefix(c.line)+"*", func(key, value string) bool {
			var rec blockRecord
			if err := json.Unmarshal([]byte(value), &rec); err != nil {
				zap.S().Warnw("bad block record", "key", key, "err", err)
				return true
			}
			if rec.Station != nil && rec.Station.Number == number {
				facts = StationFacts{
					Name:         rec.Station.Name,
					PlatformSide: rec.Station.Side,
					BlockNumber:  rec.Number,
				}
				found = true
				return false
			}
			return true
		})
	})
	if err != nil {
		zap.S().Errorw("block db scan failed", "station", number, "err", err)
		return StationFacts{}, false
	}
	return facts, found
}

// Stations lists every station on the line in block order.
func (c *Catalog) Stations() []StationFacts {
	var out []StationFacts
	err := c.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(blockPrefix(c.line)+"*", func(key, value string) bool {
			var rec blockRecord
			if err := json.Unmarshal([]byte(value), &rec); err != nil {
				zap.S().Warnw("bad block record", "key", key, "err", err)
				return true
			}
			if rec.Station != nil {
				out = append(out, StationFacts{
					Name:         rec.Station.Name,
					PlatformSide: rec.Station.Side,
					BlockNumber:  rec.Number,
				})
			}
			return true
		})
	})
	if err != nil {
		zap.S().Errorw("block db scan failed", "err", err)
		return nil
	}
	return out
}

// Count returns the number of blocks stored for the line.
func (c *Catalog) Count() int {
	n := 0
	err := c.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(blockPrefix(c.line)+"*", func(key, value string) bool {
			n++
			return true
		})
	})
	if err != nil {
		zap.S().Errorw("block db scan failed", "err", err)
		return 0
	}
	return n
}
