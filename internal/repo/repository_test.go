package repo_test

import (
	"testing"

	"github.com/hamed0406/tileping/internal/repo"
	"github.com/hamed0406/tileping/internal/repo/memory"
	pg "github.com/hamed0406/tileping/internal/repo/postgres"
)

// External test package avoids an import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.RunStore = memory.New(0)
	var _ repo.AlertStore = memory.New(0)

	var _ repo.RunStore = (*pg.Store)(nil)
	var _ repo.AlertStore = (*pg.Store)(nil)
}
