package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"heart-insights/internal/common"
	"heart-insights/internal/dataset"
)

func main() {
	var (
		out  = flag.String("out", common.DefaultDatasetPath, "Output CSV path, - for stdout")
		rows = flag.Int("rows", 1190, "Number of patients to generate")
		seed = flag.Int64("seed", common.DefaultRandomSeed, "Random seed")
	)
	flag.Parse()

	if *rows <= 0 {
		log.Fatalf("rows must be positive, got %d", *rows)
	}

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	t := dataset.Synthetic(*rows, *seed)
	if err := dataset.WriteCSV(w, t); err != nil {
		log.Fatalf("Failed to write data: %v", err)
	}

	positives := 0
	target := t.ColumnIndex("target")
	for _, row := range t.Rows {
		if row[target] == 1 {
			positives++
		}
	}
	fmt.Fprintf(os.Stderr, "✓ Generated %d synthetic patients (%d with heart disease)\n", len(t.Rows), positives)
}
