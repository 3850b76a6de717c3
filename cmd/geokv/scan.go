package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/geokv"
	"github.com/hupe1980/geokv/feature"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/scan"
)

type scanFlags struct {
	adapter        string
	fields         []string
	limit          int
	bbox           string
	resolution     string
	pushDown       bool
	dropMismatched bool
	skipErrors     bool
	stats          bool
}

// record is the JSON line printed per feature.
type record struct {
	ID         string                `json:"id"`
	Adapter    model.AdapterID       `json:"adapter"`
	Geometry   []float64             `json:"geometry,omitempty"`
	Attributes map[model.FieldID]any `json:"attributes,omitempty"`
}

func newScanCmd(a *app) *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan features and print them as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx, false)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := registerStored(ctx, db); err != nil {
				return err
			}

			q, err := f.query()
			if err != nil {
				return err
			}
			var current model.AdapterID
			q.Callback = func(_ *feature.Feature, row model.Row) { current = row.Key.AdapterID }
			var stats scan.Stats
			q.Stats = &stats

			query, err := db.Query(ctx, q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for ft, err := range query.All() {
				if err != nil {
					return err
				}
				if err := enc.Encode(record{
					ID:         ft.ID,
					Adapter:    current,
					Geometry:   ft.Geometry,
					Attributes: ft.Attributes,
				}); err != nil {
					return err
				}
			}
			if f.stats {
				return json.NewEncoder(cmd.ErrOrStderr()).Encode(stats.Snapshot())
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.adapter, "adapter", "", "adapter the projected fields belong to")
	fl.StringSliceVar(&f.fields, "fields", nil, "fields to keep (requires --adapter)")
	fl.IntVar(&f.limit, "limit", 0, "maximum number of features (0 = unlimited)")
	fl.StringVar(&f.bbox, "bbox", "", "bounding box minx,miny,maxx,maxy")
	fl.StringVar(&f.resolution, "resolution", "", "subsampling resolution rx,ry")
	fl.BoolVar(&f.pushDown, "push-down", false, "apply the projection inside the store")
	fl.BoolVar(&f.dropMismatched, "drop-mismatched", false, "drop features of other adapters")
	fl.BoolVar(&f.skipErrors, "skip-errors", false, "skip rows that fail to decode")
	fl.BoolVar(&f.stats, "stats", false, "print scan counters to stderr")
	return cmd
}

func (f *scanFlags) query() (geokv.QueryOptions[*feature.Feature], error) {
	q := geokv.QueryOptions[*feature.Feature]{
		AdapterID:      model.AdapterID(f.adapter),
		PushDown:       f.pushDown,
		DropMismatched: f.dropMismatched,
		Limit:          f.limit,
		SkipErrors:     f.skipErrors,
	}
	for _, name := range f.fields {
		q.Fields = append(q.Fields, model.FieldID(name))
	}
	if f.bbox != "" {
		v, err := parseFloats(f.bbox, 4)
		if err != nil {
			return q, fmt.Errorf("--bbox: %w", err)
		}
		q.Range = &geokv.Box{Min: v[:2], Max: v[2:]}
	}
	if f.resolution != "" {
		v, err := parseFloats(f.resolution, 2)
		if err != nil {
			return q, fmt.Errorf("--resolution: %w", err)
		}
		q.MaxResolution = v
	}
	return q, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
