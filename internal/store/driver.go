package store

import (
	"database/sql"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/search"
)

// Locale-aware text support. Each connection gets:
//
//   - a "locale" collation backed by x/text/collate, used for text
//     ordering and range comparison (ORDER BY ... COLLATE locale)
//   - a text_contains(haystack, needle) SQL function backed by
//     x/text/search (diacritic and width insensitive, case kept
//     significant), used by Contains predicates
//
// Collators are not safe for concurrent use, so each connection builds
// its own inside the hook. The store limits itself to one open
// connection anyway (single writer).

var (
	driverMu   sync.Mutex
	registered = map[string]bool{}
)

// driverFor returns the name of a sqlite3 driver variant whose
// connection hook installs locale support for the given language.
// database/sql forbids re-registering a name, so names are cached.
func driverFor(tag language.Tag) string {
	name := "sqlite3_bindery_" + tag.String()

	driverMu.Lock()
	defer driverMu.Unlock()
	if registered[name] {
		return name
	}

	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			col := collate.New(tag)
			if err := conn.RegisterCollation("locale", func(a, b string) int {
				return col.CompareString(a, b)
			}); err != nil {
				return err
			}

			matcher := search.New(tag, search.IgnoreDiacritics, search.IgnoreWidth)
			return conn.RegisterFunc("text_contains", func(haystack, needle string) bool {
				if needle == "" {
					return true
				}
				start, _ := matcher.IndexString(haystack, needle)
				return start >= 0
			}, true)
		},
	})
	registered[name] = true
	return name
}
