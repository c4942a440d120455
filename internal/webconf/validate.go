package webconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hamed0406/tileping/internal/domain"
)

// Essential lists the directives every served dataset needs.
var Essential = []string{"Size", "PageSize", "DataFile", "IndexFile"}

// Validate returns the configuration problems of ep, or nil if there are none.
func Validate(ep domain.Endpoint) []string {
	var problems []string
	var missing []string
	for _, key := range Essential {
		if !ep.Config.Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		problems = append(problems, "missing essential parameters: "+strings.Join(missing, ", "))
	}

	size, ok := ep.Config.Get("Size")
	if !ok {
		return problems
	}
	parts := strings.Fields(size)
	if len(parts) < 3 {
		return append(problems, "Size parameter should have at least 3 values")
	}
	for i, p := range parts[:3] {
		if _, err := strconv.ParseUint(p, 10, 64); err != nil {
			problems = append(problems, fmt.Sprintf("Size parameter part %d is not numeric: %s", i, p))
		}
	}
	return problems
}
