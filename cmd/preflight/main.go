// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/config"
	"github.com/hamed0406/tileping/internal/webconf"
)

func main() {
	os.Exit(preflight(os.Getenv, os.Stdout, os.Stderr))
}

// preflight checks the environment a tileping run or serve deployment
// depends on and returns the process exit code.
func preflight(getenv func(string) string, stdout, stderr io.Writer) int {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(stdout, "✔", msg) }

	server := strings.TrimSpace(getenv("TILE_SERVER_URL"))
	port := strings.TrimSpace(getenv("TILE_SERVER_PORT"))
	switch {
	case server != "":
		ok("TILE_SERVER_URL=" + server)
	case port != "":
		ok("TILE_SERVER_PORT=" + port)
	default:
		warn("TILE_SERVER_URL and TILE_SERVER_PORT empty; using " + config.ResolveServerURL(getenv))
	}

	root := strings.TrimSpace(getenv("TILEPING_WEBCONF"))
	if root == "" {
		root = "webconf"
	}
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		fail("webconf directory " + root + " not found (set TILEPING_WEBCONF).")
	} else if n := len(webconf.FindFiles(root, zap.NewNop())); n == 0 {
		warn("no " + webconf.Ext + " files under " + root + "; nothing will be tested.")
	} else {
		ok(fmt.Sprintf("%d %s files under %s", n, webconf.Ext, root))
	}

	admin := strings.TrimSpace(getenv("TILEPING_API_ADMIN_KEYS"))
	pub := strings.TrimSpace(getenv("TILEPING_API_PUBLIC_KEYS"))
	if admin == "" {
		warn("TILEPING_API_ADMIN_KEYS is empty (POST /api/runs is open to everyone).")
	}
	if pub == "" && admin == "" {
		warn("TILEPING_API_PUBLIC_KEYS is empty (read routes are open).")
	}
	for _, kv := range [][2]string{{"TILEPING_API_ADMIN_KEYS", admin}, {"TILEPING_API_PUBLIC_KEYS", pub}} {
		if strings.Contains(kv[1], " ") {
			warn(kv[0] + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if getenv("TILEPING_DATABASE_URL") == "" {
		warn("TILEPING_DATABASE_URL empty; serve keeps run history in memory.")
	} else {
		ok("TILEPING_DATABASE_URL present")
	}
	if getenv("TILEPING_SLACK_WEBHOOK") == "" {
		warn("TILEPING_SLACK_WEBHOOK empty; status changes are only logged.")
	} else {
		ok("TILEPING_SLACK_WEBHOOK present")
	}

	if failed {
		return 1
	}
	ok("preflight passed")
	return 0
}
