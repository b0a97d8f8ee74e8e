package cutsite

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// ParseMarkers reads a marker list: one sequence per line, blank lines and
// lines starting with '#' are ignored. A line may mark its cut position with
// CutMarker; otherwise the read is cut where the marker starts. name labels
// the patterns in error messages.
func ParseMarkers(r io.Reader, name string) (*Spec, error) {
	var ps []Pattern
	sc := bufio.NewScanner(r)
	for lineno := 1; sc.Scan(); lineno++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		p, err := ParseSite(fmt.Sprintf("%s:%d", name, lineno), line, 0)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, "read markers", name)
	}
	if len(ps) == 0 {
		return nil, &InvalidSpecError{Site: name, Reason: "marker file has no sequences"}
	}
	return NewSpec(ps...)
}

// LoadMarkers reads a marker file through grailbio/base/file, so path may be
// local or on S3. Compressed files are decompressed based on their suffix.
func LoadMarkers(ctx context.Context, path string) (spec *Spec, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open markers", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u, _ := compress.NewReaderPath(r, in.Name()); u != nil {
		defer u.Close() // nolint: errcheck
		r = u
	}
	return ParseMarkers(r, path)
}
