package codec

import "fmt"

// MissingFieldError reports a non-nullable schema field absent from a row
// document. Explicit JSON null on a nullable field is not a missing field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %s", e.Field)
}

// TypeMismatchError reports a row value whose JSON kind does not match the
// declared column type.
type TypeMismatchError struct {
	Field string
	Want  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("expected %s for field %s but got different type", e.Want, e.Field)
}

// RangeError reports an integer that does not fit the declared column width.
type RangeError struct {
	Field string
	Type  string
	Value string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("number %s out of range for %s in field %s", e.Value, e.Type, e.Field)
}

// ArityError reports a vector value whose element count does not match the
// fixed dimension declared by the schema.
type ArityError struct {
	Field string
	Want  int
	Got   int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("vector field %s expects %d elements but got %d", e.Field, e.Want, e.Got)
}
