// Package tileurl builds tile and metadata URLs for discovered endpoints.
// Every function here is pure.
package tileurl

import (
	"strconv"
	"strings"

	"github.com/hamed0406/tileping/internal/domain"
)

// DefaultLevels is assumed when a webconf does not declare its level count.
const DefaultLevels = 7

type Generator struct {
	base string
}

// New returns a generator rooted at base. Trailing slashes are dropped.
func New(base string) Generator {
	return Generator{base: strings.TrimRight(base, "/")}
}

func (g Generator) Base() string { return g.base }

// TileURL returns {base}/tiles/{dir}/tile/{z}/{x}/{y}.
func (g Generator) TileURL(ep domain.Endpoint, z, x, y int) string {
	var b strings.Builder
	b.WriteString(g.base)
	b.WriteString("/tiles/")
	b.WriteString(ep.PathSegment())
	b.WriteString("/tile/")
	b.WriteString(strconv.Itoa(z))
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(x))
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(y))
	return b.String()
}

func (g Generator) CoordURL(ep domain.Endpoint, c domain.Coord) string {
	return g.TileURL(ep, c.Z, c.X, c.Y)
}

// MetadataURL returns {base}/tiles/{dir}/.
func (g Generator) MetadataURL(ep domain.Endpoint) string {
	return g.base + "/tiles/" + ep.PathSegment() + "/"
}

// TestURLs enumerates a small grid: levels below min(numLevels, endpoint
// levels) and tilesPerLevel x tilesPerLevel tiles on each.
func (g Generator) TestURLs(ep domain.Endpoint, numLevels, tilesPerLevel int) []string {
	levels := min(numLevels, ep.LevelCount(DefaultLevels))
	if levels <= 0 || tilesPerLevel <= 0 {
		return nil
	}
	urls := make([]string, 0, levels*tilesPerLevel*tilesPerLevel)
	for z := 0; z < levels; z++ {
		for x := 0; x < tilesPerLevel; x++ {
			for y := 0; y < tilesPerLevel; y++ {
				urls = append(urls, g.TileURL(ep, z, x, y))
			}
		}
	}
	return urls
}
