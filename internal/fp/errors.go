package fp

import "errors"

var (
	ErrOverflow           = errors.New("fixed point overflow")
	ErrPrecisionLoss      = errors.New("fixed point precision loss")
	ErrNegativeToUnsigned = errors.New("negative value converted to unsigned")
	ErrNaN                = errors.New("NaN converted to fixed point")
)
