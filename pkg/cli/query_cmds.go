package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"metricql/internal/domain"
	"metricql/internal/objectstore"
	"metricql/internal/service/export"
	"metricql/internal/service/format"
	"metricql/internal/service/semantic"
)

func newCompileCmd() *cobra.Command {
	var q localQuery
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a metric query against an explore file and print the SQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			compiled, err := q.compile(cmd)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), compiled)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), compiled.SQL)
			return err
		},
	}
	q.register(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		q        localQuery
		wh       warehouseFlags
		page     int
		pageSize int
		raw      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile a metric query and run it against a warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			compiled, err := q.compile(cmd)
			if err != nil {
				return err
			}
			client, err := wh.open(cmd)
			if err != nil {
				return err
			}
			defer client.Close() //nolint:errcheck

			results, err := client.RunQuery(cmd.Context(), compiled.SQL)
			if err != nil {
				return fmt.Errorf("run query: %w", err)
			}
			rows := semantic.RekeyRows(results.Rows, compiled.Aliases)
			formatted := format.FormatRows(rows, compiled.Fields, format.Options{OnlyRaw: raw})
			result := semantic.Paginate(formatted, domain.PageRequest{Page: page, PageSize: pageSize})

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), semantic.QueryResult{
					SQL:         compiled.SQL,
					Fields:      compiled.Fields,
					ResultsPage: result,
				})
			}
			return printResults(cmd, compiled, result)
		},
	}
	q.register(cmd)
	wh.register(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, "Rows per page")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw values without number formats")
	return cmd
}

func printResults(cmd *cobra.Command, compiled *semantic.CompiledMetricQuery, page domain.ResultsPage) error {
	headers := make([]string, len(compiled.Columns))
	for i, id := range compiled.Columns {
		headers[i] = id
		if item, ok := compiled.Fields[id]; ok && item.Label != "" {
			headers[i] = item.Label
		}
	}
	rows := make([][]string, len(page.Rows))
	for i, row := range page.Rows {
		cells := make([]string, len(compiled.Columns))
		for j, id := range compiled.Columns {
			cells[j] = row[id].Value.Formatted
		}
		rows[i] = cells
	}
	if err := printTable(cmd.OutOrStdout(), headers, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.ErrOrStderr(), "page %d of %d (%d rows)\n", page.Page, page.TotalPageCount, page.TotalResults)
	return err
}

func newExportCmd() *cobra.Command {
	var (
		q              localQuery
		wh             warehouseFlags
		outDir         string
		name           string
		showTableNames bool
		raw            bool
		cellsLimit     int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run a metric query and write the results to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			compiled, err := q.compile(cmd)
			if err != nil {
				return err
			}
			client, err := wh.open(cmd)
			if err != nil {
				return err
			}
			defer client.Close() //nolint:errcheck

			results, err := client.RunQuery(cmd.Context(), compiled.SQL)
			if err != nil {
				return fmt.Errorf("run query: %w", err)
			}

			dir, err := filepath.Abs(outDir)
			if err != nil {
				return err
			}
			svc := export.NewService(export.Config{LocalDir: dir, CellsLimit: cellsLimit}, objectstore.Disabled{}, cliLogger())
			defer svc.Close()

			if name == "" {
				name = compiled.Fields[compiled.Columns[0]].Table
			}
			file, err := svc.Export(cmd.Context(), semantic.RekeyRows(results.Rows, compiled.Aliases), compiled.Fields, export.CSVOptions{
				Name:           name,
				Columns:        compiled.Columns,
				ShowTableNames: showTableNames,
				OnlyRaw:        raw,
			})
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), file)
			}
			if file.Truncated {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: export exceeds the cell limit and is flagged as truncated")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), file.LocalPath)
			return err
		},
	}
	q.register(cmd)
	wh.register(cmd)
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "Directory the CSV file is written to")
	cmd.Flags().StringVar(&name, "name", "", "Name the file id is derived from (default: base table)")
	cmd.Flags().BoolVar(&showTableNames, "show-table-names", false, "Prefix headers with table labels")
	cmd.Flags().BoolVar(&raw, "raw", false, "Write raw values without number formats")
	cmd.Flags().IntVar(&cellsLimit, "cells-limit", export.DefaultCellsLimit, "Cell budget above which the export is flagged as truncated")
	return cmd
}
