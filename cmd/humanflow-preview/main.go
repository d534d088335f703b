// Package main implements humanflow-preview, an offline look at how a
// workbook would be imported without a server or database.
package main

import (
	"fmt"
	"io"
	"os"

	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/config"
	"github.com/amirphl/humanflow/models"
	"github.com/spf13/cobra"
)

type previewOptions struct {
	sheet    string
	name     string
	phone    string
	template string
	limit    int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &previewOptions{}
	cmd := &cobra.Command{
		Use:   "humanflow-preview <file>",
		Short: "Preview the prospects and message links of a workbook",
		Long: `Reads an .xlsx, .xls or .csv workbook, prints its sheets with the
suggested name and phone columns, extracts the prospects of one sheet and
prints the outbound message link of the first of them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "sheet to extract (default: first sheet)")
	cmd.Flags().StringVar(&opts.name, "name", "", "name column (default: suggested)")
	cmd.Flags().StringVar(&opts.phone, "phone", "", "phone column (default: suggested)")
	cmd.Flags().StringVar(&opts.template, "template", config.DefaultTemplate, "message template")
	cmd.Flags().IntVar(&opts.limit, "limit", 5, "number of links to print")
	return cmd
}

func runPreview(out io.Writer, path string, opts *previewOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	wb, err := businessflow.ReadWorkbook(path, f)
	if err != nil {
		return err
	}

	keywords := businessflow.MappingKeywords{Name: config.DefaultNameKeywords, Phone: config.DefaultPhoneKeywords}
	for _, name := range wb.SheetNames {
		headers := wb.Headers(name)
		s := businessflow.SuggestColumns(headers, keywords)
		_, _ = fmt.Fprintf(out, "sheet %q: %d rows\n", name, wb.RowCount(name))
		_, _ = fmt.Fprintf(out, "  headers: %v\n", headers)
		_, _ = fmt.Fprintf(out, "  suggested name=%q phone=%q\n", s.NameGuess, s.PhoneGuess)
	}

	sheet := opts.sheet
	if sheet == "" {
		sheet = wb.SheetNames[0]
	}
	grid, err := wb.Sheet(sheet)
	if err != nil {
		return err
	}

	selection := businessflow.NewMappingSelection(sheet, wb.Headers(sheet), keywords)
	if opts.name != "" {
		selection.NameColumn = opts.name
	}
	if opts.phone != "" {
		selection.PhoneColumn = opts.phone
	}
	mapping, err := selection.Confirm()
	if err != nil {
		return fmt.Errorf("sheet %q: %w", sheet, err)
	}

	result := businessflow.ExtractContacts(grid, mapping, businessflow.ExtractOptions{
		MinPhoneDigits: config.DefaultMinPhoneDigits,
		DefaultName:    config.DefaultNameLabel,
		DefaultStatus:  config.DefaultStatusLabel,
	})
	_, _ = fmt.Fprintf(out, "\n%d prospects, %d rows skipped\n", len(result.Contacts), result.Skipped)

	printLinks(out, result.Contacts, opts.template, opts.limit)
	return nil
}

func printLinks(out io.Writer, contacts []models.Prospect, template string, limit int) {
	builder := businessflow.LinkBuilder{BaseURL: config.DefaultMessagingURL, ContactedLabel: config.DefaultContactedLabel}
	for i, p := range contacts {
		if i >= limit {
			break
		}
		link := builder.BuildAndMark(template, p)
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", p.ID, p.Nombre, link.URL)
	}
}
