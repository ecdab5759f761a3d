package instrument

import (
	"context"
	"encoding/binary"
	"fmt"
)

// WaveformGenerator is the AWG device-type driver.
type WaveformGenerator struct{ *Base }

func NewWaveformGenerator(b *Base) *WaveformGenerator { return &WaveformGenerator{Base: b} }

func (w *WaveformGenerator) Channel(i int) *AWGChannelFacade { return &AWGChannelFacade{awg: w, index: i} }

type AWGChannelFacade struct {
	awg   *WaveformGenerator
	index int
}

func (c *AWGChannelFacade) SetupSine(ctx context.Context, freq, amp, offset float64) (*AWGChannelFacade, error) {
	if _, err := c.awg.RequireChannel(c.index); err != nil {
		return c, err
	}
	cmd := fmt.Sprintf(c.awg.Template("awg.channel.sine"), c.index, freq, amp, offset)
	return c, c.awg.Write(ctx, cmd)
}

// Endianness for arbitrary-waveform upload as a binary block with a
// declared endianness.
type Endianness int

const (
	BigEndian    Endianness = iota
	LittleEndian
)

// UploadArbitrary uploads samples as a binary block with the given
// endianness, named name.
func (c *AWGChannelFacade) UploadArbitrary(ctx context.Context, name string, samples []int16, endian Endianness) (*AWGChannelFacade, error) {
	if _, err := c.awg.RequireChannel(c.index); err != nil {
		return c, err
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		if endian == BigEndian {
			binary.BigEndian.PutUint16(buf[i*2:], uint16(s))
		} else {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
		}
	}
	block := fmt.Sprintf("#%d%d%s", len(fmt.Sprintf("%d", len(buf))), len(buf), string(buf))
	cmd := fmt.Sprintf(c.awg.Template("awg.arb.upload"), c.index, name, block)
	return c, c.awg.Write(ctx, cmd)
}
