package webconf

import (
	"bufio"
	"io"
	"os"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/domain"
)

const maxLineSize = 1 << 20

// Parse reads the webconf file at path. Failures are logged and whatever was
// read before the failure is returned.
func Parse(path string, log *zap.Logger) domain.ConfigMap {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("webconf_read_failed", zap.String("path", path), zap.Error(err))
		return domain.ConfigMap{}
	}
	defer f.Close()

	cm, err := ParseReader(f)
	if err != nil {
		log.Warn("webconf_read_failed", zap.String("path", path), zap.Error(err))
	}
	return cm
}

// ParseReader parses directives from r. On error the directives read so far
// are returned along with it.
func ParseReader(r io.Reader) (domain.ConfigMap, error) {
	cm := domain.ConfigMap{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		key, d, ok := parseLine(sc.Text())
		if ok {
			cm[key] = d
		}
	}
	return cm, sc.Err()
}

func parseLine(line string) (string, domain.Directive, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", domain.Directive{}, false
	}
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, domain.Directive{Flag: true}, true
	}
	value := strings.TrimLeftFunc(line[i:], unicode.IsSpace)
	return line[:i], domain.Directive{Value: value}, true
}
