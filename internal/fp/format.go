package fp

// Format describes a fixed-point layout. Both widths are multiples of 64 bits.
type Format interface {
	TotalBits() uint
	FracBits() uint
}

// X128x128 has 128 integer and 128 fractional bits.
type X128x128 struct{}

func (X128x128) TotalBits() uint { return 256 }
func (X128x128) FracBits() uint  { return 128 }

// X192x64 has 192 integer and 64 fractional bits.
type X192x64 struct{}

func (X192x64) TotalBits() uint { return 256 }
func (X192x64) FracBits() uint  { return 64 }

// X192x192 has 192 integer and 192 fractional bits.
type X192x192 struct{}

func (X192x192) TotalBits() uint { return 384 }
func (X192x192) FracBits() uint  { return 192 }

// X256x256 has 256 integer and 256 fractional bits.
type X256x256 struct{}

func (X256x256) TotalBits() uint { return 512 }
func (X256x256) FracBits() uint  { return 256 }

// X320x192 has 320 integer and 192 fractional bits.
type X320x192 struct{}

func (X320x192) TotalBits() uint { return 512 }
func (X320x192) FracBits() uint  { return 192 }

// X320x320 has 320 integer and 320 fractional bits.
type X320x320 struct{}

func (X320x320) TotalBits() uint { return 640 }
func (X320x320) FracBits() uint  { return 320 }

// X320x64 has 320 integer and 64 fractional bits.
type X320x64 struct{}

func (X320x64) TotalBits() uint { return 384 }
func (X320x64) FracBits() uint  { return 64 }

type (
	U128X128 = Unsigned[X128x128]
	U192X64  = Unsigned[X192x64]
	U192X192 = Unsigned[X192x192]
	U256X256 = Unsigned[X256x256]
	U320X192 = Unsigned[X320x192]
	U320X320 = Unsigned[X320x320]
	U320X64  = Unsigned[X320x64]

	I128X128 = Signed[X128x128]
	I192X64  = Signed[X192x64]
	I192X192 = Signed[X192x192]
	I256X256 = Signed[X256x256]
	I320X320 = Signed[X320x320]
)

func layout[F Format]() (total, frac uint) {
	var f F
	return f.TotalBits(), f.FracBits()
}
