// Package transport selects the bus used to reach the external flash chip.
//
// Boards with a QSPI peripheral talk to the chip over quad SPI. Everything
// else uses plain SPI: the only interface when the board has one, otherwise
// the second interface, which is the one routed to the flash on those boards.
package transport

import (
	"fmt"
	"sort"
)

// Kind identifies the physical bus.
type Kind int

const (
	KindSPI Kind = iota
	KindQSPI
)

func (k Kind) String() string {
	switch k {
	case KindQSPI:
		return "qspi"
	case KindSPI:
		return "spi"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// QSPIPins names the pins of a quad SPI connection.
type QSPIPins struct {
	SCK string
	CS  string
	IO0 string
	IO1 string
	IO2 string
	IO3 string
}

// Binding is the resolved transport configuration for one board.
type Binding struct {
	Kind       Kind
	Bus        string
	ChipSelect string
	Pins       QSPIPins
}

func (b Binding) String() string {
	if b.Kind == KindQSPI {
		return fmt.Sprintf("qspi(sck=%s cs=%s io=%s,%s,%s,%s)",
			b.Pins.SCK, b.Pins.CS, b.Pins.IO0, b.Pins.IO1, b.Pins.IO2, b.Pins.IO3)
	}
	return fmt.Sprintf("spi(bus=%s cs=%s)", b.Bus, b.ChipSelect)
}

// Variant describes the transport capabilities of a board family.
type Variant struct {
	Name          string
	QSPI          bool
	SPIInterfaces int
}

var variants = map[string]Variant{
	"samd51":   {Name: "samd51", QSPI: true, SPIInterfaces: 1},
	"nrf52840": {Name: "nrf52840", QSPI: true, SPIInterfaces: 1},
	"samd21":   {Name: "samd21", SPIInterfaces: 2},
	"generic":  {Name: "generic", SPIInterfaces: 1},
}

// DefaultVariant is used when no board is configured.
const DefaultVariant = "generic"

// Lookup returns the named variant.
func Lookup(name string) (Variant, error) {
	v, ok := variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown board variant %q (known: %v)", name, Names())
	}
	return v, nil
}

// Names lists the known variants in sorted order.
func Names() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves the binding for a variant.
func Select(v Variant) Binding {
	if v.QSPI {
		return Binding{
			Kind: KindQSPI,
			Bus:  "QSPI",
			Pins: QSPIPins{
				SCK: "PIN_QSPI_SCK",
				CS:  "PIN_QSPI_CS",
				IO0: "PIN_QSPI_IO0",
				IO1: "PIN_QSPI_IO1",
				IO2: "PIN_QSPI_IO2",
				IO3: "PIN_QSPI_IO3",
			},
		}
	}
	if v.SPIInterfaces == 1 {
		return Binding{Kind: KindSPI, Bus: "SPI", ChipSelect: "SS"}
	}
	return Binding{Kind: KindSPI, Bus: "SPI1", ChipSelect: "SS1"}
}
