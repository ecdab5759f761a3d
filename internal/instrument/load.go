package instrument

import (
	"context"
	"fmt"
)

// Mode enumerates the electronic load's operating modes.
type Mode string

const (
	ModeCC Mode = "CC"
	ModeCV Mode = "CV"
	ModeCR Mode = "CR"
	ModeCP Mode = "CP"
)

// ElectronicLoad is the Load device-type driver.
type ElectronicLoad struct{ *Base }

func NewElectronicLoad(b *Base) *ElectronicLoad { return &ElectronicLoad{Base: b} }

func (l *ElectronicLoad) SetMode(ctx context.Context, mode Mode) error {
	return l.Write(ctx, fmt.Sprintf(l.Template("load.mode"), string(mode)))
}

func (l *ElectronicLoad) SetCurrent(ctx context.Context, channel int, amps float64) error {
	if err := l.CheckSafety(channel, "current", amps); err != nil {
		return err
	}
	return l.Write(ctx, fmt.Sprintf(l.Template("load.current"), amps))
}

func (l *ElectronicLoad) EnableInput(ctx context.Context) error {
	return l.Write(ctx, l.Template("load.input.on"))
}

func (l *ElectronicLoad) DisableInput(ctx context.Context) error {
	return l.Write(ctx, l.Template("load.input.off"))
}
