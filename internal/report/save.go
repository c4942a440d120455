package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/tileping/internal/domain"
)

// DefaultReportName is tile_server_ping_report_YYYYMMDD_HHMMSS.json in local time.
func DefaultReportName(t time.Time) string {
	return "tile_server_ping_report_" + t.Format("20060102_150405") + ".json"
}

// Save writes run to path as JSON, or YAML when the extension is .yaml or .yml.
func Save(path string, run domain.Run) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	}
}
