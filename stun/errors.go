package stun

import "github.com/pkg/errors"

func errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}
