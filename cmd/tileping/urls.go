package main

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/tileurl"
	"github.com/hamed0406/tileping/internal/webconf"
)

func NewURLsCommand() *cobra.Command {
	var (
		levels   int
		perLevel int
	)

	cmd := &cobra.Command{
		Use:   "urls <name>",
		Short: "Print a grid of tile URLs for one endpoint",
		Long: `Print tile URLs for the endpoint whose name, or relative_dir/name, matches
<name>. Levels are capped by the dataset's own level count when its Size
directive declares one.`,
		Example: `  tileping urls landsat
  tileping urls imagery/landsat --levels 3 --per-level 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			eps := webconf.Discover(a.cfg.Webconf, a.logger)
			ep, ok := findEndpoint(eps, args[0])
			if !ok {
				if guess := closestEndpoint(eps, args[0]); guess != "" {
					return fmt.Errorf("no endpoint named %q under %s (did you mean %q?)", args[0], a.cfg.Webconf, guess)
				}
				return fmt.Errorf("no endpoint named %q under %s", args[0], a.cfg.Webconf)
			}
			for _, u := range tileurl.New(a.cfg.Server).TestURLs(ep, levels, perLevel) {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&levels, "levels", 3, "number of zoom levels")
	cmd.Flags().IntVar(&perLevel, "per-level", 2, "tiles per axis on each level")
	return cmd
}

// closestEndpoint suggests the endpoint key within a third of name's length
// in edit distance, or "" when nothing is that close.
func closestEndpoint(eps []domain.Endpoint, name string) string {
	best, bestDist := "", len(name)/3+1
	for _, ep := range eps {
		for _, key := range []string{ep.Name, ep.RelativeDir + "/" + ep.Name} {
			if d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(key)); d < bestDist {
				best, bestDist = key, d
			}
		}
	}
	return best
}

func findEndpoint(eps []domain.Endpoint, name string) (domain.Endpoint, bool) {
	for _, ep := range eps {
		if ep.Name == name || ep.RelativeDir+"/"+ep.Name == name {
			return ep.Clone(), true
		}
	}
	return domain.Endpoint{}, false
}
