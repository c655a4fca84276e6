package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks every .sql file in dir; see ValidateFS.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("migrate: dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS requires YYYYMMDDHHMMSS_name.sql filenames, unique versions and
// both goose sections in every file.
func ValidateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	owner := make(map[string]string, len(names))
	var problems []error
	for _, name := range names {
		m := migrationName.FindStringSubmatch(name)
		if m == nil {
			problems = append(problems, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, dup := owner[m[1]]; dup {
			problems = append(problems, fmt.Errorf("%s: version %s already used by %s", name, m[1], prev))
		}
		owner[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				problems = append(problems, fmt.Errorf("%s: missing %q", name, marker))
			}
		}
	}
	return errors.Join(problems...)
}
