package model

import (
	"errors"
	"fmt"
)

// LookupError reports an entity key that is not part of the snapshot.
type LookupError struct {
	Key string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("entity %q not found", e.Key)
}

// IsNotFound reports whether err (or any error in its chain) is a LookupError.
func IsNotFound(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}
