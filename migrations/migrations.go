// Package migrations embeds the SQL schema. Files are applied in name
// order; NNN_name.down.sql reverts NNN_name.sql.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Step is one migration file.
type Step struct {
	Name string
	SQL  string
}

// Up returns the forward migrations in apply order.
func Up() ([]Step, error) {
	return load(func(name string) bool { return !strings.HasSuffix(name, ".down.sql") }, false)
}

// Down returns the reverting migrations, newest first.
func Down() ([]Step, error) {
	return load(func(name string) bool { return strings.HasSuffix(name, ".down.sql") }, true)
}

func load(keep func(string) bool, reverse bool) ([]Step, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	var steps []Step
	for _, name := range names {
		if !keep(name) {
			continue
		}
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Name: name, SQL: string(data)})
	}
	return steps, nil
}
