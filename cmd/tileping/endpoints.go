package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/tileurl"
	"github.com/hamed0406/tileping/internal/webconf"
)

func NewEndpointsCommand() *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:     "endpoints",
		Aliases: []string{"ls"},
		Short:   "List the endpoints derived from the webconf files",
		Example: `  # List datasets and their metadata URLs
  tileping endpoints --webconf ./webconf

  # Also report missing or malformed directives
  tileping endpoints --validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			eps := webconf.Discover(a.cfg.Webconf, a.logger)
			if len(eps) == 0 {
				fmt.Fprintln(out, "No endpoints discovered from webconf files.")
				return nil
			}

			urls := tileurl.New(a.cfg.Server)
			invalid := 0
			for _, ep := range eps {
				fmt.Fprintf(out, "%s (%s)\n", ep.Name, ep.RelativeDir)
				fmt.Fprintf(out, "    Metadata: %s\n", urls.MetadataURL(ep))
				if size := describeSize(ep); size != "" {
					fmt.Fprintf(out, "    Size: %s\n", size)
				}
				if !validate {
					continue
				}
				if issues := webconf.Validate(ep); len(issues) > 0 {
					invalid++
					for _, issue := range issues {
						fmt.Fprintf(out, "    ✗ %s\n", issue)
					}
				} else {
					fmt.Fprintln(out, "    ✓ valid")
				}
			}

			fmt.Fprintf(out, "\n%d endpoints", len(eps))
			if validate {
				fmt.Fprintf(out, ", %d with configuration problems", invalid)
			}
			fmt.Fprintln(out)
			if invalid > 0 {
				return exitCode(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "check each webconf for essential directives")
	return cmd
}

func describeSize(ep domain.Endpoint) string {
	if !ep.HasDimensions() {
		return ""
	}
	parts := []string{fmt.Sprintf("%dx%d", *ep.Width, *ep.Height), fmt.Sprintf("%d bands", *ep.Bands)}
	if ep.Levels != nil {
		parts = append(parts, fmt.Sprintf("%d levels", *ep.Levels))
	}
	return strings.Join(parts, ", ")
}
