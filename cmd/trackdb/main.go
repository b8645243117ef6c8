package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kmac08/onboard/tracks"
)

var dbPath string
var layoutPath string
var mode string
var block int

func main() {
	flag.StringVar(&dbPath, "db-path", "./tracks.db", "path to block database")
	flag.StringVar(&layoutPath, "layout", "", "layout YAML to seed from (mode seed)")
	flag.StringVar(&mode, "mode", "", "seed, get, stations or count")
	flag.IntVar(&block, "block", 0, "block number to look up (mode get)")
	flag.Parse()

	err := main2()
	if err != nil {
		log.Fatal(err)
	}
}

func main2() error {
	switch mode {
	case "seed":
		if layoutPath == "" {
			return fmt.Errorf("mode seed needs -layout")
		}
		data, err := os.ReadFile(layoutPath)
		if err != nil {
			return fmt.Errorf("read layout: %w", err)
		}
		y, err := tracks.LoadLayout(data)
		if err != nil {
			return err
		}
		line, err := tracks.ParseLine(y.Line)
		if err != nil {
			return err
		}
		cat, err := tracks.Create(dbPath, line)
		if err != nil {
			return err
		}
		defer cat.Close()
		if err := cat.Seed(y); err != nil {
			return err
		}
		log.Printf("seeded %d blocks on the %s line", cat.Count(), cat.Line())
		return nil
	case "get":
		cat, err := tracks.Open(dbPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		facts, ok := cat.LookupBlock(block)
		if !ok {
			return fmt.Errorf("block %d not in %s line catalog", block, cat.Line())
		}
		data, err := json.MarshalIndent(facts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", data)
		return nil
	case "stations":
		cat, err := tracks.Open(dbPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		for _, st := range cat.Stations() {
			fmt.Printf("block %d\t%s (%s platform)\n", st.BlockNumber, st.Name, st.PlatformSide)
		}
		return nil
	case "count":
		cat, err := tracks.Open(dbPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		log.Printf("%d blocks on the %s line", cat.Count(), cat.Line())
		return nil
	default:
		return fmt.Errorf("mode must be seed, get, stations or count")
	}
}
