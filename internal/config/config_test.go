package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"

	"github.com/hamed0406/tileping/internal/config"
)

var envVars = []string{
	"TILE_SERVER_URL", "TILE_SERVER_PORT", "GITHUB_ACTIONS",
	"TILEPING_WORKERS", "TILEPING_LOG_LEVEL", "TILEPING_API_ADMIN_KEYS", "TILEPING_SERVE_INTERVAL",
}

func unsetAll() {
	for _, k := range envVars {
		os.Unsetenv(k)
	}
}

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

var _ = Describe("Config", func() {
	var (
		tempDir string
		flags   *pflag.FlagSet
	)

	BeforeEach(func() {
		unsetAll()
		DeferCleanup(unsetAll)

		tempDir = GinkgoT().TempDir()
		flags = pflag.NewFlagSet("tileping", pflag.ContinueOnError)
		config.AddFlags(flags)
		config.AddServeFlags(flags)
	})

	writeConfig := func(content string) string {
		path := filepath.Join(tempDir, "tileping.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	Describe("Load", func() {
		Context("with no file, env or flags", func() {
			It("uses the defaults", func() {
				cfg, err := config.Load(flags)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server).To(Equal("http://localhost"))
				Expect(cfg.Webconf).To(Equal("webconf"))
				Expect(cfg.Workers).To(Equal(5))
				Expect(cfg.AutoDetect).To(BeTrue())
				Expect(cfg.Timeout).To(Equal(15 * time.Second))
				Expect(cfg.Retries).To(Equal(2))
				Expect(cfg.Backoff()).To(Equal(500 * time.Millisecond))
				Expect(cfg.Log.Level).To(Equal(config.LogLevelInfo))
				Expect(cfg.Serve.Addr).To(Equal("127.0.0.1:8080"))
				Expect(cfg.Serve.Interval).To(Equal(5 * time.Minute))
				Expect(cfg.SlowThreshold).To(Equal(5 * time.Second))
				Expect(cfg.API.TriggerRPM).To(Equal(12))
				Expect(cfg.API.TriggerBurst).To(Equal(3))
			})
		})

		Context("with a config file", func() {
			It("reads values from it", func() {
				path := writeConfig(`
server: "http://tiles.example.com:9000"
webconf: "/srv/webconf"
workers: 12
timeout: "3s"
log:
  level: "debug"
serve:
  interval: "30s"
api:
  admin_keys: ["adm_x"]
`)
				Expect(flags.Set("config", path)).To(Succeed())

				cfg, err := config.Load(flags)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server).To(Equal("http://tiles.example.com:9000"))
				Expect(cfg.Webconf).To(Equal("/srv/webconf"))
				Expect(cfg.Workers).To(Equal(12))
				Expect(cfg.Timeout).To(Equal(3 * time.Second))
				Expect(cfg.Log.Level).To(Equal("debug"))
				Expect(cfg.Serve.Interval).To(Equal(30 * time.Second))
				Expect(cfg.API.AdminKeys).To(Equal([]string{"adm_x"}))
			})

			It("lets flags override the file", func() {
				path := writeConfig("workers: 12\n")
				Expect(flags.Set("config", path)).To(Succeed())
				Expect(flags.Set("workers", "3")).To(Succeed())

				cfg, err := config.Load(flags)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Workers).To(Equal(3))
			})

			It("fails on an unreadable file", func() {
				Expect(flags.Set("config", filepath.Join(tempDir, "missing.yaml"))).To(Succeed())
				_, err := config.Load(flags)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with environment variables", func() {
			It("reads TILEPING_ prefixed keys", func() {
				os.Setenv("TILEPING_WORKERS", "9")
				os.Setenv("TILEPING_LOG_LEVEL", "warn")
				os.Setenv("TILEPING_API_ADMIN_KEYS", "a, b")
				os.Setenv("TILEPING_SERVE_INTERVAL", "1m")

				cfg, err := config.Load(flags)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Workers).To(Equal(9))
				Expect(cfg.Log.Level).To(Equal("warn"))
				Expect(cfg.API.AdminKeys).To(Equal([]string{"a", "b"}))
				Expect(cfg.Serve.Interval).To(Equal(time.Minute))
			})

			It("derives the server from TILE_SERVER_PORT", func() {
				os.Setenv("TILE_SERVER_PORT", "8081")
				cfg, err := config.Load(flags)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server).To(Equal("http://localhost:8081"))
			})

			It("prefers the --server flag over the environment", func() {
				os.Setenv("TILE_SERVER_URL", "http://env:1")
				Expect(flags.Set("server", "http://flag:2")).To(Succeed())
				cfg, err := config.Load(flags)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server).To(Equal("http://flag:2"))
			})
		})

		Context("with detection flags", func() {
			It("turns detection off with --no-auto-detect", func() {
				Expect(flags.Set("no-auto-detect", "true")).To(Succeed())
				cfg, err := config.Load(flags)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.AutoDetect).To(BeFalse())
			})

			It("enables the report when a path is given", func() {
				Expect(flags.Set("report", "out.yaml")).To(Succeed())
				cfg, err := config.Load(flags)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.SaveReport).To(BeTrue())
				Expect(cfg.ReportFile("default.json")).To(Equal("out.yaml"))
			})
		})

		Context("with invalid values", func() {
			It("rejects a non-http server URL", func() {
				Expect(flags.Set("server", "ftp://tiles")).To(Succeed())
				_, err := config.Load(flags)
				Expect(err).To(MatchError(ContainSubstring("http or https")))
			})

			It("rejects zero workers", func() {
				Expect(flags.Set("workers", "0")).To(Succeed())
				_, err := config.Load(flags)
				Expect(err).To(HaveOccurred())
			})

			It("rejects an unknown log level", func() {
				Expect(flags.Set("log-level", "loud")).To(Succeed())
				_, err := config.Load(flags)
				Expect(err).To(MatchError(ContainSubstring("Level")))
			})

			It("rejects a bad serve address", func() {
				Expect(flags.Set("addr", "nope")).To(Succeed())
				_, err := config.Load(flags)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("ResolveServerURL", func() {
		DescribeTable("precedence",
			func(vars map[string]string, want string) {
				Expect(config.ResolveServerURL(env(vars))).To(Equal(want))
			},
			Entry("nothing set", map[string]string{}, "http://localhost"),
			Entry("explicit URL", map[string]string{"TILE_SERVER_URL": "http://x:1", "TILE_SERVER_PORT": "2"}, "http://x:1"),
			Entry("port only", map[string]string{"TILE_SERVER_PORT": "8081"}, "http://localhost:8081"),
			Entry("port beats CI", map[string]string{"TILE_SERVER_PORT": "8081", "GITHUB_ACTIONS": "true"}, "http://localhost:8081"),
			Entry("CI only", map[string]string{"GITHUB_ACTIONS": "true"}, "http://localhost:62134"),
		)
	})
})
