package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"stmap/internal/bootstrap"
	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
	"stmap/internal/usecase/mapping"
)

var mappingCmd = &cobra.Command{
	Use:     "mapping",
	Aliases: []string{"m"},
	Short:   "Manage source-to-target mappings",
}

var mappingAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a mapping",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		created, err := svc.Add(ctx, fieldsFromFlags(cmd, domainmapping.Fields{}))
		if err != nil {
			logging.Error(ctx, "add mapping failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add mapping")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "added mapping: %s %s\n", created.ID, lineageLabel(created)); err != nil {
			return errs.Wrap(err, "write add output")
		}
		return nil
	}),
}

var mappingEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a mapping; unset flags keep their current values",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		current, err := svc.Get(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get mapping")
		}

		edited, err := svc.Edit(ctx, current.ID, fieldsFromFlags(cmd, current.Fields()))
		if err != nil {
			logging.Error(ctx, "edit mapping failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "edit mapping")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "edited mapping: %s %s\n", edited.ID, lineageLabel(edited)); err != nil {
			return errs.Wrap(err, "write edit output")
		}
		return nil
	}),
}

var mappingDeleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"rm"},
	Short:   "Delete mappings by id",
	Args:    cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		for _, id := range cmd.Flags().Args() {
			if err := svc.Delete(ctx, id); err != nil {
				logging.Error(ctx, "delete mapping failed", slog.String("id", id), slog.Any("err", errs.Loggable(err)))
				return errs.Wrapf(err, "delete mapping %s", id)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted mapping: %s\n", id); err != nil {
				return errs.Wrap(err, "write delete output")
			}
		}
		return nil
	}),
}

var mappingGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one mapping",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		item, err := svc.Get(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get mapping")
		}

		output, _ := cmd.Flags().GetString("output")
		return writeMappings(cmd.OutOrStdout(), output, []domainmapping.Mapping{item}, svc.TimeFormat())
	}),
}

var mappingListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List mappings in insertion order",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		targetTable, _ := cmd.Flags().GetString("target")
		sourceTable, _ := cmd.Flags().GetString("source")
		if strings.TrimSpace(targetTable) != "" && strings.TrimSpace(sourceTable) != "" {
			return errors.New("--target and --source are mutually exclusive")
		}

		var (
			items []domainmapping.Mapping
			err   error
		)
		switch {
		case strings.TrimSpace(targetTable) != "":
			items, err = svc.ByTargetTable(ctx, targetTable)
		case strings.TrimSpace(sourceTable) != "":
			items, err = svc.BySourceTable(ctx, sourceTable)
		default:
			items, err = svc.List(ctx)
		}
		if err != nil {
			return errs.Wrap(err, "list mappings")
		}

		output, _ := cmd.Flags().GetString("output")
		return writeMappings(cmd.OutOrStdout(), output, items, svc.TimeFormat())
	}),
}

var mappingSearchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Case-insensitive search across table, field, transformation and notes text",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		items, err := svc.Search(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "search mappings")
		}

		output, _ := cmd.Flags().GetString("output")
		return writeMappings(cmd.OutOrStdout(), output, items, svc.TimeFormat())
	}),
}

var mappingTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show mappings grouped by target table",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		groups, err := svc.GroupByTarget(ctx)
		if err != nil {
			return errs.Wrap(err, "group mappings")
		}

		output, _ := cmd.Flags().GetString("output")
		return writeTree(cmd.OutOrStdout(), output, groups)
	}),
}

var mappingStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show distinct target/source table counts and the mapping total",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		stats, err := svc.Statistics(ctx)
		if err != nil {
			return errs.Wrap(err, "compute statistics")
		}

		output, _ := cmd.Flags().GetString("output")
		return writeStatistics(cmd.OutOrStdout(), output, stats)
	}),
}

var mappingTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List distinct target or source tables",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		side, _ := cmd.Flags().GetString("side")
		var (
			tables []string
			err    error
		)
		switch strings.ToLower(strings.TrimSpace(side)) {
		case "", "target":
			tables, err = svc.TargetTables(ctx)
		case "source":
			tables, err = svc.SourceTables(ctx)
		default:
			return fmt.Errorf("unsupported side %q (expected: target or source)", side)
		}
		if err != nil {
			return errs.Wrap(err, "list tables")
		}

		for _, table := range tables {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), table); err != nil {
				return errs.Wrap(err, "write tables output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(mappingCmd)
	mappingCmd.AddCommand(
		mappingAddCmd,
		mappingEditCmd,
		mappingDeleteCmd,
		mappingGetCmd,
		mappingListCmd,
		mappingSearchCmd,
		mappingTreeCmd,
		mappingStatsCmd,
		mappingTablesCmd,
	)

	addFieldFlags(mappingAddCmd)
	addFieldFlags(mappingEditCmd)

	for _, command := range []*cobra.Command{mappingGetCmd, mappingListCmd, mappingSearchCmd, mappingTreeCmd, mappingStatsCmd} {
		command.Flags().StringP("output", "o", outputTable, "Output format (table|json|yaml)")
	}
	mappingListCmd.Flags().String("target", "", "Only mappings into this target table")
	mappingListCmd.Flags().String("source", "", "Only mappings from this source table")
	mappingTablesCmd.Flags().String("side", "target", "Which tables to list (target|source)")
}

func addFieldFlags(cmd *cobra.Command) {
	cmd.Flags().String("target-table", "", "Target table name")
	cmd.Flags().String("target-field", "", "Target field name")
	cmd.Flags().String("source-table", "", "Source table name")
	cmd.Flags().String("source-field", "", "Source field name")
	cmd.Flags().String("transformation", "", "Transformation logic, e.g. UPPER(TRIM(CUST_NAME))")
	cmd.Flags().String("notes", "", "Free-text notes")
}

// fieldsFromFlags overlays every flag the user set onto base.
func fieldsFromFlags(cmd *cobra.Command, base domainmapping.Fields) domainmapping.Fields {
	fields := base
	for name, target := range map[string]*string{
		"target-table":   &fields.TargetTable,
		"target-field":   &fields.TargetField,
		"source-table":   &fields.SourceTable,
		"source-field":   &fields.SourceField,
		"transformation": &fields.Transformation,
		"notes":          &fields.Notes,
	} {
		if cmd.Flags().Changed(name) {
			*target, _ = cmd.Flags().GetString(name)
		}
	}
	return fields
}
