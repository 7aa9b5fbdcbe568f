package workflow

import (
	"fmt"
	"strings"
)

// Kind classifies resolution failures. Kind implements error so callers can
// match with errors.Is(err, workflow.CyclicDependency).
type Kind string

const (
	UnknownModule        Kind = "UnknownModule"
	ModuleCannotProvide  Kind = "ModuleCannotProvide"
	DuplicateAssignment  Kind = "DuplicateAssignment"
	AmbiguousProvider    Kind = "AmbiguousProvider"
	DuplicateAlias       Kind = "DuplicateAlias"
	DefaultConflict      Kind = "DefaultConflict"
	UnusedDefault        Kind = "UnusedDefault"
	AliasNotProvided     Kind = "AliasNotProvided"
	AliasTypeMismatch    Kind = "AliasTypeMismatch"
	AliasInternal        Kind = "AliasInternal"
	NoProvider           Kind = "NoProvider"
	MissingLocalProvider Kind = "MissingLocalProvider"
	CyclicDependency     Kind = "CyclicDependency"
)

func (k Kind) Error() string {
	return "workflow: " + string(k)
}

// Internal reports whether the kind indicates a resolver defect rather than a
// misconfiguration.
func (k Kind) Internal() bool {
	return k == AliasInternal || k == MissingLocalProvider
}

// Error is a structured resolution failure. Which context fields are set
// depends on the kind; Others carries the additional threads involved and
// Path the cyclic chain of module.representation pairs.
type Error struct {
	Kind           Kind
	Thread         string
	Representation string
	Module         string
	Others         []string
	Path           []string
}

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return t != nil && e.Kind == t.Kind
	}
	return false
}

// Internal reports whether the error indicates a resolver defect.
func (e *Error) Internal() bool {
	return e.Kind.Internal()
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case UnknownModule:
		msg = fmt.Sprintf("module %s is unknown", e.Module)
	case ModuleCannotProvide:
		msg = fmt.Sprintf("%s does not provide %s", e.Module, e.Representation)
	case DuplicateAssignment:
		msg = fmt.Sprintf("%s is provided by more than one module", e.Representation)
	case AmbiguousProvider:
		msg = fmt.Sprintf("representation %s is provided by multiple threads (%s)", e.Representation, strings.Join(e.Others, ", "))
	case DuplicateAlias:
		msg = fmt.Sprintf("representation %s is also provided as alias by thread %s", e.Representation, strings.Join(e.Others, ", "))
	case DefaultConflict:
		msg = fmt.Sprintf("%s is also provided by default", e.Representation)
	case UnusedDefault:
		msg = fmt.Sprintf("default representation %s is not required anywhere", e.Representation)
	case AliasNotProvided:
		msg = fmt.Sprintf("representation %s expected from thread %s is not provided there (required by %s)", e.Representation, strings.Join(e.Others, ", "), e.Module)
	case AliasTypeMismatch:
		msg = fmt.Sprintf("alias %s does not match the type of its representation in thread %s", e.Representation, strings.Join(e.Others, ", "))
	case AliasInternal:
		msg = fmt.Sprintf("alias %s sent to %s has no local provider", e.Representation, strings.Join(e.Others, ", "))
	case NoProvider:
		msg = fmt.Sprintf("no provider for required representation %s required by %s", e.Representation, e.Module)
	case MissingLocalProvider:
		msg = fmt.Sprintf("requirement %s missing for provider %s", e.Representation, e.Module)
	case CyclicDependency:
		msg = "cyclic dependency " + strings.Join(e.Path, " -> ")
	default:
		msg = string(e.Kind)
	}
	if e.Thread != "" {
		return "workflow: " + e.Thread + ": " + msg
	}
	return "workflow: " + msg
}
