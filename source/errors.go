package source

import (
	"fmt"
	"io/fs"
)

// Returned when an input file does not exist. Matches fs.ErrNotExist
// with errors.Is.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: file does not exist", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}
