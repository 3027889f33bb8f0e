package registry

import (
	"fmt"
	"strings"
)

// Error is a load failure: the cause plus the context frames it bubbled up
// through, deepest first.
type Error struct {
	Cause error
	Stack []Frame
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Cause.Error())
	for _, f := range e.Stack {
		b.WriteByte('\n')
		b.WriteString(f.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func fail(cause error) error { return &Error{Cause: cause} }

// Fail wraps cause into an *Error with an empty stack.
func Fail(cause error) error { return fail(cause) }

// Context appends f to err's stack. A nil err stays nil and a plain error
// becomes the cause of a new *Error.
func Context(err error, f Frame) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		e.Stack = append(e.Stack, f)
		return e
	}
	return &Error{Cause: err, Stack: []Frame{f}}
}

// FrameKind tells what a Frame points at.
type FrameKind int

const (
	FrameItemByPath FrameKind = iota
	FrameItemByID
	FrameField
	FrameIndex
	FrameMapKey
	FrameMapEntry
	FrameExprVariable
)

// Frame is one step of an error's location.
type Frame struct {
	Kind FrameKind
	// Name is the path, item id, field name, map key or variable name.
	Name string
	// Item is the item kind tag of ItemByPath and ItemByID frames.
	Item  string
	Index int
}

func ItemByPath(path, kind string) Frame {
	return Frame{Kind: FrameItemByPath, Name: path, Item: kind}
}

func ItemByID(id, kind string) Frame {
	return Frame{Kind: FrameItemByID, Name: id, Item: kind}
}

func Field(name string) Frame { return Frame{Kind: FrameField, Name: name} }

func Index(i int) Frame { return Frame{Kind: FrameIndex, Index: i} }

func MapKey(key string) Frame { return Frame{Kind: FrameMapKey, Name: key} }

func MapEntry(key string) Frame { return Frame{Kind: FrameMapEntry, Name: key} }

func ExprVariable(name string) Frame { return Frame{Kind: FrameExprVariable, Name: name} }

func (f Frame) String() string {
	switch f.Kind {
	case FrameItemByPath:
		return fmt.Sprintf("In item <%s> at `%s`", f.Item, f.Name)
	case FrameItemByID:
		return fmt.Sprintf("In item <%s>`%s`", f.Item, f.Name)
	case FrameField:
		return fmt.Sprintf("In field `%s`", f.Name)
	case FrameIndex:
		return fmt.Sprintf("In item at position %d", f.Index)
	case FrameMapKey:
		return fmt.Sprintf("In map key `%s`", f.Name)
	case FrameMapEntry:
		return fmt.Sprintf("In map entry with key `%s`", f.Name)
	case FrameExprVariable:
		return fmt.Sprintf("In expression variable `%s`", f.Name)
	}
	return fmt.Sprintf("In unknown frame %d", f.Kind)
}

type MissingItem struct {
	ID, Kind string
}

func (e *MissingItem) Error() string {
	return fmt.Sprintf("Item %s(%s) is missing", e.Kind, e.ID)
}

type DuplicateItem struct {
	ID, Kind     string
	PathA, PathB string
}

func (e *DuplicateItem) Error() string {
	return fmt.Sprintf("Item %s(%s) is declared twice, in `%s` and `%s`", e.Kind, e.ID, e.PathA, e.PathB)
}

// DuplicateItemLowInfo is a duplicate detected after the source paths were
// discarded.
type DuplicateItemLowInfo struct {
	ID, Kind string
}

func (e *DuplicateItemLowInfo) Error() string {
	return fmt.Sprintf("Item %s(%s) is already declared", e.Kind, e.ID)
}

type DuplicateSingleton struct {
	Kind         string
	PathA, PathB string
}

func (e *DuplicateSingleton) Error() string {
	return fmt.Sprintf("Singleton item %s is declared twice, in `%s` and `%s`", e.Kind, e.PathA, e.PathB)
}

type MissingAsset struct {
	Name, Kind string
}

func (e *MissingAsset) Error() string {
	return fmt.Sprintf("%s `%s` is missing", e.Kind, e.Name)
}

type DuplicateAsset struct {
	Name, Kind   string
	PathA, PathB string
}

func (e *DuplicateAsset) Error() string {
	return fmt.Sprintf("Asset name `%s` is contested by `%s` and `%s`", e.Name, e.PathA, e.PathB)
}

type MissingName struct {
	Path string
}

func (e *MissingName) Error() string {
	return fmt.Sprintf("File at `%s` doesn't have a name", e.Path)
}

type NonUtf8Path struct {
	Path string
}

func (e *NonUtf8Path) Error() string {
	return fmt.Sprintf("File path %q is not UTF8", e.Path)
}

type ValueTooLarge struct {
	Limit, Got float64
}

func (e *ValueTooLarge) Error() string {
	return fmt.Sprintf("Value is too large, got %v where at most %v is expected.", e.Got, e.Limit)
}

type ValueTooSmall struct {
	Limit, Got float64
}

func (e *ValueTooSmall) Error() string {
	return fmt.Sprintf("Value is too small, got %v where at least %v is expected.", e.Got, e.Limit)
}

// BadExpression wraps a formula that failed to parse.
type BadExpression struct {
	Err error
}

func (e *BadExpression) Error() string { return e.Err.Error() }

func (e *BadExpression) Unwrap() error { return e.Err }

// Malformed wraps a payload that could not be decoded into its raw shape.
type Malformed struct {
	Err error
}

func (e *Malformed) Error() string { return fmt.Sprintf("Malformed item: %v", e.Err) }

func (e *Malformed) Unwrap() error { return e.Err }

type UnknownKind struct {
	Tag string
}

func (e *UnknownKind) Error() string { return fmt.Sprintf("Unknown item type `%s`", e.Tag) }

type UnsupportedVersion struct {
	Version string
}

func (e *UnsupportedVersion) Error() string {
	return fmt.Sprintf("Unsupported item version `%s`", e.Version)
}
