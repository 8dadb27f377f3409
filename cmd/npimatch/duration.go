package main

import (
	"time"

	dErrors "npimatch/pkg/domain-errors"
)

func parseDuration(flag, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "--"+flag+" must be a duration such as 10m")
	}
	return d, nil
}
