package a

import (
	"errors"
	"fmt"
)

var ErrNoInputs = errors.New("no input files")

type RecordError struct {
	Line int
}

func (e *RecordError) Error() string { return fmt.Sprintf("line %d", e.Line) }

func badVerb(err error) error {
	return fmt.Errorf("reading model: %v", err) // want "error formatted without %w"
}

func badString(path string) error {
	return fmt.Errorf("%s: %s", path, ErrNoInputs) // want "error formatted without %w"
}

func badConcreteError(rec *RecordError) error {
	return fmt.Errorf("parsing record: %v", rec) // want "error formatted without %w"
}

const wrapFormat = "validating entities: %w"

func good(err error) error {
	return fmt.Errorf("validating entities: %w", err)
}

func goodConstant(err error) error {
	return fmt.Errorf(wrapFormat, err)
}

func goodNoError(path string, line int) error {
	return fmt.Errorf("%s:%d: record has no id", path, line)
}

func goodMessage(err error) error {
	return fmt.Errorf("writing output: %s", err.Error())
}
