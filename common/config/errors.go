package config

import (
	"fmt"
	"time"

	errs "github.com/favbox/hostbind/common/errors"
)

func errInvalidTimeouts(headers, request time.Duration) error {
	return errs.New(fmt.Errorf("%w: %s > %s", errs.ErrInvalidTimeouts, headers, request), errs.ErrorTypePrivate, nil)
}
