package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/geokv/index"
)

func newIndexCmd(*app) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Manage index definitions in the config file",
	}
}

func newIndexListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List index definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range a.cfg.IndexNames() {
				ic := a.cfg.Indexes[name]
				mark := " "
				if name == strings.ToLower(a.cfg.Index) {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s bits=%d partitions=%d\n", mark, name, ic.Bits, ic.Partitions)
			}
			return nil
		},
	}
}

func newIndexAddCmd(a *app) *cobra.Command {
	var (
		bits       int
		partitions int
		use        bool
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace an index definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			m, err := index.Spatial(name, bits)
			if err != nil {
				return err
			}
			m.Partitions = partitions
			if err := m.Validate(); err != nil {
				return err
			}
			a.cfg.Indexes[name] = IndexConfig{Bits: bits, Partitions: partitions}
			if use {
				a.cfg.Index = name
			}
			if err := saveConfig(a.cfg, a.cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s saved\n", name)
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 20, "precision per dimension (1..32)")
	cmd.Flags().IntVar(&partitions, "partitions", 0, "number of partitions (0..256)")
	cmd.Flags().BoolVar(&use, "use", false, "make this the index of new stores")
	return cmd
}

func newIndexRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an index definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			if _, ok := a.cfg.Indexes[name]; !ok {
				return fmt.Errorf("unknown index %q", name)
			}
			if name == strings.ToLower(a.cfg.Index) {
				return fmt.Errorf("index %q is in use; select another with index add --use", name)
			}
			delete(a.cfg.Indexes, name)
			if err := saveConfig(a.cfg, a.cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s removed\n", name)
			return nil
		},
	}
}
