package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/ndvlink/internal/errors"
	"github.com/Iron-Ham/ndvlink/internal/ndv"
)

// watchDebounce is how long put --watch waits for writes to settle.
const watchDebounce = 300 * time.Millisecond

func objectRef(arg string) (ndv.Reference, error) {
	ref, err := ndv.ParsePath(arg)
	if err != nil {
		return ndv.Reference{}, err
	}
	if ref.Kind != ndv.RefObject {
		return ndv.Reference{}, errors.NewValidationError("path must name an object (LIBRARY/NAME.EXT)").
			WithField("path").WithValue(arg).WithCause(errors.ErrInvalidPath)
	}
	return ref, nil
}

// locate finds the object named by ref through a listing so reads and
// writes use the object's own area. Objects the listing does not know, such
// as new ones, are addressed by the parsed reference and reported as unlisted.
func (a *app) locate(client *ndv.Client, ref ndv.Reference) (ndv.ObjectInfo, bool, error) {
	obj, err := client.LookupObject(ref.Library, ref.Object.Name, ref.Object.Type)
	switch {
	case err == nil:
		return obj, true, nil
	case errors.Is(err, errors.ErrObjectNotFound):
		a.logger.Debug("object not listed, using parsed path", "path", ref.String())
		return ref.Object, false, nil
	default:
		return ndv.ObjectInfo{}, false, err
	}
}

func (a *app) catCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "cat LIBRARY/NAME[.EXT]",
		Short: "Print an object's source",
		Long: `Print the source of an object, or write it to a file with -o.

The extension selects the object type when several objects share a name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := objectRef(args[0])
			if err != nil {
				return err
			}

			client, err := a.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			obj, _, err := a.locate(client, ref)
			if err != nil {
				return err
			}
			text, err := client.ReadSource(ref.Library, obj)
			if err != nil {
				return err
			}

			if output != "" {
				if err := afero.WriteFile(a.fs, output, []byte(text), 0o644); err != nil {
					return errors.Wrapf(err, "failed to write %s", output)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s to %s\n", obj.FileName(), output)
				return nil
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the source to FILE instead of stdout")
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "put LIBRARY/NAME.EXT [FILE|-]",
		Short: "Save a source to the server",
		Long: `Save FILE (or stdin) as the source of an object. Objects that do not exist
yet are created in the library's storage area.

With --watch, FILE is uploaded again every time it is saved until
interrupted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := objectRef(args[0])
			if err != nil {
				return err
			}
			file := "-"
			if len(args) > 1 {
				file = args[1]
			}
			if watch && file == "-" {
				return errors.NewValidationError("--watch needs a FILE").WithField("watch")
			}

			upload := func() error {
				text, err := a.readSource(file)
				if err != nil {
					return err
				}
				return a.upload(cmd, ref, text)
			}
			if err := upload(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s, press Ctrl-C to stop\n", file)
			return watchAndUpload(ctx, file, func() {
				if err := upload(); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("upload failed: "+err.Error()))
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "upload FILE again whenever it changes")
	return cmd
}

// readSource reads file, or stdin for "-", with line endings normalized to "\n".
func (a *app) readSource(file string) (string, error) {
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = afero.ReadFile(a.fs, file)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", file)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

func (a *app) upload(cmd *cobra.Command, ref ndv.Reference, text string) error {
	client, err := a.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	obj, listed, err := a.locate(client, ref)
	if err != nil {
		return err
	}
	if err := client.WriteSource(ref.Library, obj, text); err != nil {
		return err
	}

	verb := "Saved"
	if !listed {
		verb = "Created"
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s/%s\n", verb, ref.Library, obj.FileName())
	return nil
}

// watchAndUpload runs upload after every settled change to file. Uploads run
// on their own goroutine so file events keep being drained while a slow
// upload is in flight; changes during an upload collapse into one more run.
func watchAndUpload(ctx context.Context, file string, upload func()) error {
	pending := make(chan struct{}, 1)

	var wg conc.WaitGroup
	wg.Go(func() {
		for range pending {
			upload()
		}
	})

	err := watchFile(ctx, file, watchDebounce, func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	})
	close(pending)
	wg.Wait()
	return err
}

func (a *app) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve LIBRARY/NAME[.EXT]",
		Short: "Show which storage area an object is read from",
		Long: `Show how a path is parsed and which storage area a read or write of the
object would target. Objects found by a listing use their own area; others
fall back to the connection-wide area.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := objectRef(args[0])
			if err != nil {
				return err
			}

			client, err := a.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			obj, listed, err := a.locate(client, ref)
			if err != nil {
				return err
			}
			area, err := client.ResolveArea(obj)
			if err != nil {
				return err
			}

			source := "connection-wide area (object not listed)"
			if listed && obj.HasArea() {
				source = "object's own area"
			} else if listed {
				source = "connection-wide area (listing reported no area)"
			}

			out := cmd.OutOrStdout()
			label := func(s string) string { return mutedStyle.Render(fmt.Sprintf("%-8s", s)) }
			fmt.Fprintf(out, "%s %s\n", label("library"), ref.Library)
			fmt.Fprintf(out, "%s %s (%s)\n", label("object"), obj.FileName(), obj.TypeName())
			fmt.Fprintf(out, "%s %s\n", label("area"), area)
			fmt.Fprintf(out, "%s %s\n", label("via"), source)
			if area.IsDefault() {
				fmt.Fprintln(out, warningStyle.Render("the server default area cannot serve content operations"))
			}
			return nil
		},
	}
}
