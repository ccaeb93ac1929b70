package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/ndvlink/internal/errors"
	"github.com/Iron-Ham/ndvlink/internal/ndv"
)

func (a *app) filterArg(args []string, i int) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	return a.cfg.Listing.DefaultFilter
}

func (a *app) libsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "libs [FILTER]",
		Short: "List libraries",
		Long: `List the libraries on the server whose names match FILTER.

FILTER uses * and ? wildcards; it defaults to listing.default_filter.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			res, err := client.WalkLibraries(a.filterArg(args, 0), func(page []string) bool {
				for _, lib := range page {
					fmt.Fprintln(out, lib)
				}
				return true
			})
			if err != nil {
				return err
			}
			if res.Truncated {
				fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render(fmt.Sprintf("page limit reached after %d pages; the listing may be incomplete", res.Pages)))
			}
			return nil
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls LIBRARY [FILTER]",
		Short: "List objects in a library",
		Long: `List the objects in LIBRARY whose names match FILTER, with their type,
size, owner, last change and the storage area the server reports them in.
Long names are cut to fit the table.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := libraryRef(args[0])
			if err != nil {
				return err
			}

			client, err := a.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			objects, err := client.ListObjects(ref.Library, a.filterArg(args, 1))
			if err != nil {
				return err
			}

			t := newTable("NAME", "TYPE", "SIZE", "USER", "CHANGED", "AREA", "LONG NAME")
			for _, obj := range objects {
				t.add(obj.FileName(), obj.TypeName(), strconv.FormatInt(obj.Size, 10), obj.User,
					formatDate(obj), formatArea(obj), truncate(obj.LongName, maxCellWidth))
			}
			fmt.Fprint(cmd.OutOrStdout(), t.String())
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("%d objects in %s", len(objects), ref.Library)))
			return nil
		},
	}
}

// libraryRef parses arg and rejects object paths, whose name would otherwise
// be ignored. Name patterns go in the FILTER argument.
func libraryRef(arg string) (ndv.Reference, error) {
	ref, err := ndv.ParsePath(arg)
	if err != nil {
		return ndv.Reference{}, err
	}
	if ref.Kind != ndv.RefLibrary {
		return ndv.Reference{}, errors.NewValidationError("path must name a library; pass name patterns as FILTER").
			WithField("path").WithValue(arg).WithCause(errors.ErrInvalidPath)
	}
	return ref, nil
}

func formatDate(obj ndv.ObjectInfo) string {
	if obj.SourceDate.IsZero() {
		return "-"
	}
	return obj.SourceDate.Format("2006-01-02 15:04")
}

func formatArea(obj ndv.ObjectInfo) string {
	if !obj.HasArea() {
		return "-"
	}
	return fmt.Sprintf("%d/%d", obj.DatabaseID, obj.FileNumber)
}

func (a *app) areasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "areas",
		Short: "List storage areas",
		Long: `List the storage areas advertised by the server. The area marked with *
is used for listings and for objects without their own area.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			areas, err := client.StorageAreas()
			if err != nil {
				return err
			}
			global, ok, err := client.GlobalArea()
			if err != nil {
				return err
			}
			if len(areas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render("server advertised no storage areas"))
				return nil
			}

			t := newTable("", "DBID", "FNR", "KIND")
			for _, area := range areas {
				mark := ""
				if ok && area == global {
					mark = "*"
				}
				t.add(mark, strconv.Itoa(area.DatabaseID), strconv.Itoa(area.FileNumber), area.Kind.String())
			}
			fmt.Fprint(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}
