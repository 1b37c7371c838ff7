package cli

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/roach88/bindery/internal/schema"
	"github.com/roach88/bindery/internal/store"
)

// loadSchema resolves the schema the commands run against: a CUE file
// when --schema is given, the built-in User/Job schema otherwise.
func loadSchema(opts *RootOptions) (*schema.Schema, error) {
	if opts.SchemaPath == "" {
		return schema.Default()
	}
	sch, err := schema.LoadFile(opts.SchemaPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load schema", err)
	}
	return sch, nil
}

// openStore opens the store named by the global flags. Callers own
// the Close.
func openStore(opts *RootOptions) (*store.Store, error) {
	sch, err := loadSchema(opts)
	if err != nil {
		return nil, err
	}

	tag, err := language.Parse(opts.Language)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid language tag %q", opts.Language), err)
	}

	s, err := store.OpenConfig(opts.DBPath, sch, store.Config{Language: tag})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	return s, nil
}
