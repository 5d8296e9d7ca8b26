package engine

import (
	"errors"

	"github.com/bindweld/bindweld/pkg/classify"
	"github.com/bindweld/bindweld/pkg/directive"
	"github.com/bindweld/bindweld/pkg/model"
	"github.com/bindweld/bindweld/pkg/names"
)

// IsConfigError reports whether err is something the user can fix in
// the directive file, as opposed to an extraction failure or a bug in
// the tool. The CLI uses this to phrase its failure output.
func IsConfigError(err error) bool {
	var (
		cfgErr   *directive.ConfigError
		parseErr *directive.ParseError
		missing  *model.MissingSymbolError
		emptyNS  *model.EmptyNamespaceError
		notRec   *model.NotARecordError
		pod      *classify.PODViolationError
		conflict *names.ConflictError
	)
	switch {
	case errors.As(err, &cfgErr),
		errors.As(err, &parseErr),
		errors.As(err, &missing),
		errors.As(err, &emptyNS),
		errors.As(err, &notRec),
		errors.As(err, &pod),
		errors.As(err, &conflict):
		return true
	}
	return false
}
