package enrichment

import (
	"errors"
	"fmt"
)

var errEmptyResult = errors.New("identifier returned no result")

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("identifier panicked: %v", e.value)
}
