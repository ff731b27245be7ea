package aht10

import "fmt"

// InvalidAddressError is returned by NewI2C when the given address does not
// fit in 7 bits.
type InvalidAddressError struct {
	Addr uint16
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("aht10: invalid I²C address %#x, want 0..0x7f", e.Addr)
}
