// Package stm loads Scream Tracker 2 modules, per spec §4.5 item 4.
package stm

import (
	"github.com/trackerplay/oxdz/format"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/oxdzerr"
)

func init() {
	format.Register(&Loader{})
}

// Loader parses the "!Scream!" signature Scream Tracker 2 writes at
// offset 20.
type Loader struct{}

func (l *Loader) Name() string { return "Scream Tracker 2 STM" }

func (l *Loader) Probe(b []byte, hint string) (format.ProbeInfo, error) {
	if len(b) < 1084 {
		return format.ProbeInfo{}, oxdzerr.Formatf("file too short (%d)", len(b))
	}
	if string(b[20:30]) != "!Scream!\x1a\x02" {
		return format.ProbeInfo{}, oxdzerr.Formatf("bad magic")
	}
	return format.ProbeInfo{Format: module.FormatSTM, Title: readPaddedString(b, 0, 20)}, nil
}

func (l *Loader) Load(b []byte, info format.ProbeInfo) (*module.Module, error) {
	if info.Format != module.FormatSTM {
		return nil, oxdzerr.Formatf("unsupported format")
	}

	title := readPaddedString(b, 0, 20)

	versionMajor := int(b[30])
	versionMinor := int(b[31])
	if versionMajor != 2 || versionMinor < 21 {
		return nil, oxdzerr.Formatf("unsupported version %d.%d", versionMajor, versionMinor)
	}

	numPatterns := int(b[33])

	gd := module.NewGridData(title, 4)
	instruments := make([]module.Instrument, 31)
	samples := make([]module.Sample, 31)
	for i := 0; i < 31; i++ {
		ofs := 48 + i*32
		if ofs+30 > len(b) {
			return nil, oxdzerr.Formatf("truncated instrument table")
		}
		name := readPaddedString(b, ofs, 12)
		size := int(le16(b, ofs+16))
		loopStart := int(le16(b, ofs+18))
		loopEnd := int(le16(b, ofs+20))
		volume := int(b[ofs+22])
		rate := int(le16(b, ofs+24))
		if loopEnd == 0xffff {
			loopEnd = 0
		}

		instruments[i] = &module.AmigaInstrument{
			Name:         name,
			SizeWords:    size / 2,
			Volume:       volume,
			RepeatOffset: loopStart,
			RepeatLength: loopEnd - loopStart,
			SampleIndex:  i + 1,
		}

		s := module.Sample{
			Number:     i + 1,
			Name:       name,
			Frames:     size,
			Rate:       rate,
			LoopStart:  loopStart,
			LoopEnd:    loopEnd,
		}
		if size > 0 {
			s.Type = module.Sample8
		}
		if loopEnd > loopStart {
			s.HasLoop = true
		}
		samples[i] = s
	}
	gd.SetInstruments(instruments)

	if 1040+128 > len(b) {
		return nil, oxdzerr.Formatf("truncated order table")
	}
	orders := append([]byte(nil), b[1040:1040+128]...)

	patStart := 1084
	patBytes := 1024 * numPatterns
	if patStart+patBytes > len(b) {
		return nil, oxdzerr.Formatf("truncated pattern data")
	}
	patData := b[patStart : patStart+patBytes]

	for p := 0; p < numPatterns; p++ {
		pi := gd.AddPattern(64)
		for r := 0; r < 64; r++ {
			for c := 0; c < 4; c++ {
				ofs := p*1024 + r*16 + c*4
				cell := patData[ofs : ofs+4]

				noteByte := int(cell[0])
				vol := (int(cell[1]) & 0x07) | ((int(cell[2]) & 0xf0) >> 1)
				smp := (int(cell[1]) & 0xf8) >> 3
				cmd := int(cell[2] & 0x0f)
				infobyte := int(cell[3])

				note := 0
				if noteByte <= 250 {
					note = (noteByte & 0xf) + 12*(3+(noteByte>>4))
				}
				if vol == 65 {
					vol = module.NoNoteVolume
				}

				gd.SetEventAt(pi, r, c, module.Event{
					Note:       note,
					Instrument: smp,
					Volume:     vol,
					Effect:     byte(cmd),
					Param:      byte(infobyte),
				})
			}
		}
	}
	gd.SetOrders(orders)
	gd.NormalizeOrders()

	ofs := patStart + patBytes
	for i := 0; i < 31; i++ {
		size := samples[i].Frames
		if size == 0 {
			continue
		}
		end := ofs + size
		if end > len(b) {
			end = len(b)
		}
		if end > ofs {
			samples[i].Store(b[ofs:end])
		} else {
			samples[i].Store(nil)
		}
		ofs += size
	}

	m := &module.Module{
		Format:       module.FormatSTM,
		Description:  "Scream Tracker 2 STM",
		Creator:      "Scream Tracker 2",
		Channels:     4,
		PlayerID:     "st2",
		InitialSpeed: 6,
		InitialTempo: 125,
		GlobalVolume: 64,
		Samples:      samples,
		Data:         gd,
	}
	return m, nil
}

func readPaddedString(b []byte, ofs, n int) string {
	if ofs+n > len(b) {
		n = len(b) - ofs
	}
	if n <= 0 {
		return ""
	}
	raw := b[ofs : ofs+n]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	out := make([]byte, 0, end)
	for _, c := range raw[:end] {
		if c == 0 {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func le16(b []byte, ofs int) uint16 {
	return uint16(b[ofs]) | uint16(b[ofs+1])<<8
}
