package gridcube

import (
	"errors"
	"fmt"
)

// UnknownMemberError is raised when the resolver cannot find a name in any
// dimension of the cube.
type UnknownMemberError struct{ Name string }

func (e UnknownMemberError) Error() string { return fmt.Sprintf("unknown member: %q", e.Name) }

// AmbiguousMemberError is raised when an unqualified name matches in two or
// more dimensions of a cube.
type AmbiguousMemberError struct {
	Name       string
	Dimensions []string
}

func (e AmbiguousMemberError) Error() string {
	return fmt.Sprintf("ambiguous member %q: present in dimensions %v", e.Name, e.Dimensions)
}

// DuplicateNameError is raised when a name or alias collides with an
// existing member or alias in the same dimension.
type DuplicateNameError struct {
	Dimension string
	Name      string
}

func (e DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate name %q in dimension %q", e.Name, e.Dimension)
}

// CycleDetectedError is raised when adding an edge would create a cycle in
// the dimension hierarchy.
type CycleDetectedError struct {
	Dimension    string
	Parent, Child string
}

func (e CycleDetectedError) Error() string {
	return fmt.Sprintf("cycle detected in dimension %q: %v -> %v", e.Dimension, e.Parent, e.Child)
}

// InUseError is raised (and logged, not surfaced as a hard failure) when
// removing a member cascades into deleting stored facts that referenced it.
type InUseError struct {
	Dimension     string
	Member        string
	FactsDeleted  int
}

func (e InUseError) Error() string {
	return fmt.Sprintf("member %q in dimension %q removed, cascade-deleted %d fact(s)", e.Member, e.Dimension, e.FactsDeleted)
}

// UnderdefinedAddressError is raised when a dimension is omitted from an
// address and has no unique root to default to.
type UnderdefinedAddressError struct{ Dimension string }

func (e UnderdefinedAddressError) Error() string {
	return fmt.Sprintf("address missing coordinate for dimension %q with no unique root", e.Dimension)
}

// TypeError is raised where a numeric value is required but not available.
type TypeError struct{ Detail string }

func (e TypeError) Error() string { return fmt.Sprintf("type error: %s", e.Detail) }

// RuleError wraps a panic or error raised inside a rule callable. On the
// read path it is caught and converted to an ErrMarker result; a RuleError
// from an ON_ENTRY rule is returned to the caller of the write.
type RuleError struct {
	Rule  string
	Cause error
}

func (e RuleError) Error() string { return fmt.Sprintf("rule %q: %v", e.Rule, e.Cause) }
func (e RuleError) Unwrap() error { return e.Cause }

// RuleRecursionError describes evaluation re-entering an address already on
// the current evaluation stack. The evaluation engine does not return it:
// re-entry is reported as a RecursionMarker Result instead.
type RuleRecursionError struct{ Address string }

func (e RuleRecursionError) Error() string {
	return fmt.Sprintf("recursive evaluation of address %v", e.Address)
}

// AreaTooLargeError is raised when a full Cartesian expansion of an area
// exceeds a configured guardrail.
type AreaTooLargeError struct {
	Size, Limit int
}

func (e AreaTooLargeError) Error() string {
	return fmt.Sprintf("area expansion size %d exceeds limit %d", e.Size, e.Limit)
}

// InvalidModelError is a catch-all for structural requests the core rejects
// outright: zero-dimension cubes, writes to aggregated addresses, etc.
type InvalidModelError struct{ Detail string }

func (e InvalidModelError) Error() string { return e.Detail }

// DimensionInUseError is raised by RemoveDimension when a cube still
// references the dimension (referential integrity, invariant I5).
type DimensionInUseError struct {
	Dimension string
	Cubes     []string
}

func (e DimensionInUseError) Error() string {
	return fmt.Sprintf("dimension %q is referenced by cube(s) %v", e.Dimension, e.Cubes)
}

// IsErrorType reports whether err (or anything it wraps) is of type T.
func IsErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func IsUnknownMemberError(err error) bool      { return IsErrorType[UnknownMemberError](err) }
func IsAmbiguousMemberError(err error) bool    { return IsErrorType[AmbiguousMemberError](err) }
func IsDuplicateNameError(err error) bool      { return IsErrorType[DuplicateNameError](err) }
func IsCycleDetectedError(err error) bool      { return IsErrorType[CycleDetectedError](err) }
func IsUnderdefinedAddressError(err error) bool { return IsErrorType[UnderdefinedAddressError](err) }
func IsAreaTooLargeError(err error) bool       { return IsErrorType[AreaTooLargeError](err) }
func IsDimensionInUseError(err error) bool     { return IsErrorType[DimensionInUseError](err) }
