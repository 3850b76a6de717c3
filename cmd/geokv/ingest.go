package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/geokv"
	"github.com/hupe1980/geokv/feature"
	"github.com/hupe1980/geokv/model"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		adapterID string
		batch     int
	)
	cmd := &cobra.Command{
		Use:   "ingest <csv>",
		Short: "Ingest point features from a CSV file",
		Long: `Ingest reads a CSV file with the header id,x,y followed by any number of
attribute columns. Attributes are stored as strings; empty cells are omitted.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx := cmd.Context()
			db, err := a.openDB(ctx, true)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := ingest(cmd, db, in, model.AdapterID(adapterID), batch)
			if err != nil {
				return err
			}
			if err := db.Flush(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d features into %s\n", n, adapterID)
			return nil
		},
	}
	cmd.Flags().StringVar(&adapterID, "adapter", "features", "adapter id of the ingested features")
	cmd.Flags().IntVar(&batch, "batch", 1000, "features per write")
	return cmd
}

func ingest(cmd *cobra.Command, db *geokv.DB[*feature.Feature], in io.Reader, adapterID model.AdapterID, batch int) (int, error) {
	ctx := cmd.Context()
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 3 || header[0] != "id" || header[1] != "x" || header[2] != "y" {
		return 0, fmt.Errorf("header must start with id,x,y, got %s", strings.Join(header, ","))
	}
	names := header[3:]
	attrs := make([]feature.Attribute, len(names))
	for i, name := range names {
		attrs[i] = feature.Attribute{Name: model.FieldID(name), Type: feature.String}
	}
	a, err := feature.NewAdapter(adapterID, db.Index(), attrs...)
	if err != nil {
		return 0, err
	}
	if err := db.RegisterAdapter(ctx, a); err != nil {
		return 0, err
	}

	batch = max(batch, 1)
	pending := make([]*feature.Feature, 0, batch)
	total := 0
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
		f, err := parseRecord(rec, names)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		pending = append(pending, f)
		if len(pending) == batch {
			if err := db.Write(ctx, adapterID, pending...); err != nil {
				return total, err
			}
			total += len(pending)
			pending = pending[:0]
		}
	}
	if len(pending) > 0 {
		if err := db.Write(ctx, adapterID, pending...); err != nil {
			return total, err
		}
		total += len(pending)
	}
	return total, nil
}

func parseRecord(rec []string, names []string) (*feature.Feature, error) {
	if rec[0] == "" {
		return nil, errors.New("empty id")
	}
	x, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}
	f := &feature.Feature{
		ID:         rec[0],
		Geometry:   feature.Point{x, y},
		Attributes: make(map[model.FieldID]any, len(names)),
	}
	for i, name := range names {
		if v := rec[3+i]; v != "" {
			f.Attributes[model.FieldID(name)] = v
		}
	}
	return f, nil
}
