package tracks

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/buntdb"
	"gopkg.in/yaml.v3"
)

// Layout is the YAML source a block database is seeded from.
type Layout struct {
	Line   string  `yaml:"line" validate:"required"`
	Blocks []Block `yaml:"blocks" validate:"required,min=1,dive"`
}

// Block is one layout entry. Lengths are meters, speed limits km/h (the
// units of the engineering drawings the layouts are transcribed from).
type Block struct {
	Number        int      `yaml:"number" validate:"required,gt=0"`
	LengthM       float64  `yaml:"length-m" validate:"required,gt=0"`
	SpeedLimitKMH float64  `yaml:"speed-limit-kmh" validate:"required,gt=0"`
	Underground   bool     `yaml:"underground"`
	Station       *Station `yaml:"station"`
}

type Station struct {
	Number int    `yaml:"number" validate:"required,gt=0"`
	Name   string `yaml:"name" validate:"required"`
	Side   string `yaml:"side" validate:"required,oneof=left right both Left Right Both"`
}

var validate = validator.New()

// LoadLayout parses and validates layout YAML.
func LoadLayout(data []byte) (*Layout, error) {
	var y Layout
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if err := validate.Struct(&y); err != nil {
		return nil, fmt.Errorf("validate layout: %w", err)
	}
	if _, err := ParseLine(y.Line); err != nil {
		return nil, err
	}
	return &y, nil
}

// Seed writes every block of the layout into the catalog.
func (c *Catalog) Seed(y *Layout) error {
	line, err := ParseLine(y.Line)
	if err != nil {
		return err
	}
	if line != c.line {
		return fmt.Errorf("layout is for the %s line but catalog holds %s", line, c.line)
	}
	return c.db.Update(func(tx *buntdb.Tx) error {
		for _, b := range y.Blocks {
			rec := blockRecord{
				Number:        b.Number,
				LengthM:       b.LengthM,
				SpeedLimitKMH: b.SpeedLimitKMH,
				Underground:   b.Underground,
			}
			if b.Station != nil {
				rec.Station = &stationRecord{
					Number: b.Station.Number,
					Name:   b.Station.Name,
					Side:   b.Station.Side,
				}
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal block %d: %w", b.Number, err)
			}
			if _, _, err := tx.Set(blockKey(line, b.Number), string(data), nil); err != nil {
				return fmt.Errorf("set block %d: %w", b.Number, err)
			}
		}
		return nil
	})
}
