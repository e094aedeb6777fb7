// Package dbms knows the supported back-end database engines and the names
// operators and banners use for them.
package dbms

import (
	"regexp"
	"sort"
	"strings"

	"github.com/0x6d61/sqltarget/internal/engine"
)

// Engine is a supported DBMS with the aliases it is known by. Aliases are
// lower case.
type Engine struct {
	Name    string
	Aliases []string
}

// Supported lists every engine the scanner can target.
var Supported = []Engine{
	{Name: "Microsoft SQL Server", Aliases: []string{"microsoft sql server", "mssqlserver", "mssql", "ms"}},
	{Name: "MySQL", Aliases: []string{"mysql", "my", "mariadb"}},
	{Name: "PostgreSQL", Aliases: []string{"postgresql", "postgres", "pgsql", "psql", "pg"}},
	{Name: "Oracle", Aliases: []string{"oracle", "orcl", "ora", "or"}},
	{Name: "SQLite", Aliases: []string{"sqlite", "sqlite3"}},
	{Name: "Microsoft Access", Aliases: []string{"msaccess", "access", "jet", "microsoft access"}},
	{Name: "Firebird", Aliases: []string{"firebird", "mozilla firebird", "interbase", "ibase", "fb"}},
	{Name: "SAP MaxDB", Aliases: []string{"maxdb", "sap maxdb", "sap db"}},
	{Name: "Sybase", Aliases: []string{"sybase", "sybase sql server"}},
	{Name: "IBM DB2", Aliases: []string{"db2", "ibm db2", "ibmdb2"}},
	{Name: "HSQLDB", Aliases: []string{"hsql", "hsqldb", "hs", "hypersonic"}},
}

// bannerPattern matches "<alias> <version>" anywhere in a stored banner.
// Longer aliases come first so that "mssql" wins over "ms".
var bannerPattern = func() *regexp.Regexp {
	var aliases []string
	for _, e := range Supported {
		aliases = append(aliases, e.Aliases...)
	}
	sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	for i, a := range aliases {
		aliases[i] = regexp.QuoteMeta(a)
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(aliases, "|") + `) ([\d.]+)`)
}()

// Lookup returns the engine name or alias matches, ignoring case. It
// returns nil if the name is not recognized.
func Lookup(name string) *Engine {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	for i := range Supported {
		e := &Supported[i]
		if strings.ToLower(e.Name) == name {
			return e
		}
		for _, a := range e.Aliases {
			if a == name {
				return e
			}
		}
	}
	return nil
}

// Canonical returns the engine name for a known alias, or name unchanged.
func Canonical(name string) string {
	if e := Lookup(name); e != nil {
		return e.Name
	}
	return name
}

// Conflicts reports whether a declared DBMS belongs to an alias group that
// does not contain the stored one.
func Conflicts(declared, stored string) bool {
	d := Lookup(declared)
	if d == nil {
		return false
	}
	return Lookup(stored) != d
}

// ParseBanner splits a stored "name version" string. Without a recognizable
// version the whole value is the name and the version is unknown.
func ParseBanner(value string) (name string, versions []string) {
	lower := strings.ToLower(strings.TrimSpace(value))
	if m := bannerPattern.FindStringSubmatch(lower); m != nil {
		return strings.ToLower(m[1]), []string{m[2]}
	}
	return lower, []string{engine.UnknownDBMSVersion}
}
