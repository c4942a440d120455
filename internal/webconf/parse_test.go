package webconf

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func TestParseReader_DirectivesFlagsAndComments(t *testing.T) {
	src := strings.Join([]string{
		"# dataset header",
		"",
		"   # indented comment",
		"Size 512 512 3 7",
		"PageSize\t256   256 1",
		"  DataFile   /data/gebco.ptf  ",
		"Compressed",
		"   ",
	}, "\n")

	cm, err := ParseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if len(cm) != 4 {
		t.Fatalf("want 4 directives, got %d: %+v", len(cm), cm)
	}
	if v, _ := cm.Get("Size"); v != "512 512 3 7" {
		t.Fatalf("Size = %q", v)
	}
	if v, _ := cm.Get("PageSize"); v != "256   256 1" {
		t.Fatalf("PageSize = %q", v)
	}
	if v, _ := cm.Get("DataFile"); v != "/data/gebco.ptf" {
		t.Fatalf("DataFile = %q", v)
	}
	if !cm.IsFlag("Compressed") {
		t.Fatalf("Compressed should be a flag: %+v", cm["Compressed"])
	}
	if cm.IsFlag("Size") {
		t.Fatalf("Size should not be a flag")
	}
}

func TestParseReader_LastWins(t *testing.T) {
	cm, err := ParseReader(strings.NewReader("Key first\nKey\nKey last\n"))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if v, _ := cm.Get("Key"); v != "last" || cm.IsFlag("Key") {
		t.Fatalf("want last value to win, got %+v", cm["Key"])
	}

	cm, _ = ParseReader(strings.NewReader("Key value\nKey\n"))
	if !cm.IsFlag("Key") {
		t.Fatalf("a trailing flag line should win, got %+v", cm["Key"])
	}
}

func TestParseReader_PartialOnError(t *testing.T) {
	r := io.MultiReader(strings.NewReader("A 1\nB 2\n"), iotest.ErrReader(errors.New("disk gone")))
	cm, err := ParseReader(r)
	if err == nil {
		t.Fatalf("expected read error")
	}
	if len(cm) != 2 {
		t.Fatalf("want the two lines read before the error, got %+v", cm)
	}
}

func TestParse_MissingFileWarnsAndReturnsEmpty(t *testing.T) {
	log, logs := observed()
	cm := Parse(filepath.Join(t.TempDir(), "nope.webconf"), log)
	if len(cm) != 0 {
		t.Fatalf("want empty map, got %+v", cm)
	}
	if logs.FilterMessage("webconf_read_failed").Len() != 1 {
		t.Fatalf("expected a read warning, got %v", logs.All())
	}
}

func TestParse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.webconf")
	if err := os.WriteFile(path, []byte("Size 1 2 3\nIndexFile idx\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cm := Parse(path, zap.NewNop())
	if v, _ := cm.Get("IndexFile"); v != "idx" {
		t.Fatalf("IndexFile = %q", v)
	}
}
