// Package st loads D.O.C. Soundtracker 15-instrument modules and detects
// the Ultimate Soundtracker sub-variant, per spec §4.5 item 3.
package st

import (
	"github.com/trackerplay/oxdz/format"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/oxdzerr"
	"github.com/trackerplay/oxdz/period"
)

func init() {
	format.Register(&Loader{})
}

var noteTable = [37]int{
	856, 808, 762, 720, 678, 640, 604, 570,
	538, 508, 480, 453, 428, 404, 381, 360,
	339, 320, 302, 285, 269, 254, 240, 226,
	214, 202, 190, 180, 170, 160, 151, 143,
	135, 127, 120, 113, 0,
}

// Loader has no magic of its own; Probe validates structural plausibility
// (printable names, in-range sizes/volumes/orders/notes) since an ST file
// carries no signature.
type Loader struct{}

func (l *Loader) Name() string { return "Soundtracker" }

func (l *Loader) Probe(b []byte, hint string) (format.ProbeInfo, error) {
	if len(b) < 600 {
		return format.ProbeInfo{}, oxdzerr.Formatf("file too short (%d)", len(b))
	}
	if !testName(b, 0, 20) {
		return format.ProbeInfo{}, oxdzerr.Formatf("invalid title")
	}

	totalSize := 0
	for i := 0; i < 15; i++ {
		ofs := 20 + i*30
		if !testName(b, ofs+1, 21) {
			return format.ProbeInfo{}, oxdzerr.Formatf("sample %d invalid instrument name", i)
		}
		size := int(be16(b, ofs+22))
		if size > 0x8000 {
			return format.ProbeInfo{}, oxdzerr.Formatf("sample %d invalid instrument size %d", i, size)
		}
		if b[ofs+24] != 0 {
			return format.ProbeInfo{}, oxdzerr.Formatf("sample %d has finetune", i)
		}
		if b[ofs+25] > 0x40 {
			return format.ProbeInfo{}, oxdzerr.Formatf("sample %d invalid volume", i)
		}
		repeat := int(be16(b, ofs+26))
		if repeat>>1 > size {
			return format.ProbeInfo{}, oxdzerr.Formatf("sample %d repeat > size", i)
		}
		replen := int(be16(b, ofs+28))
		if replen > 0x8000 {
			return format.ProbeInfo{}, oxdzerr.Formatf("sample %d invalid replen", i)
		}
		if size > 0 && repeat>>1 == size {
			return format.ProbeInfo{}, oxdzerr.Formatf("sample %d repeat > size", i)
		}
		if size == 0 && repeat > 0 {
			return format.ProbeInfo{}, oxdzerr.Formatf("sample %d invalid repeat", i)
		}
		totalSize += size * 2
	}
	if totalSize < 8 {
		return format.ProbeInfo{}, oxdzerr.Formatf("invalid total sample size %d", totalSize)
	}

	length := int(b[470])
	if length == 0 || length > 0x7f {
		return format.ProbeInfo{}, oxdzerr.Formatf("invalid length %d", length)
	}
	tempo := int(b[471])
	if tempo < 0x20 {
		return format.ProbeInfo{}, oxdzerr.Formatf("invalid initial tempo %d", tempo)
	}

	pat := 0
	for i := 0; i < 128; i++ {
		p := int(b[472+i])
		if p > 0x7f {
			return format.ProbeInfo{}, oxdzerr.Formatf("invalid pattern number %d in orders", p)
		}
		if p > pat {
			pat = p
		}
	}
	pat++

	if 600+1024*pat > len(b) {
		return format.ProbeInfo{}, oxdzerr.Formatf("truncated pattern data")
	}

	for i := 0; i < pat; i++ {
		for r := 0; r < 64; r++ {
			for c := 0; c < 4; c++ {
				ofs := 600 + 1024*i + 16*r + c*4
				note := int(be16(b, ofs))
				if note&0xf000 != 0 {
					return format.ProbeInfo{}, oxdzerr.Formatf("invalid event sample")
				}
				if note != 0 && !inNoteTable(note) {
					return format.ProbeInfo{}, oxdzerr.Formatf("invalid note %d", note)
				}
			}
		}
	}

	// The Ultimate Soundtracker sub-variant decision is made in Load, from
	// checks of its own; Probe only needs to establish that this is
	// structurally an ST file.
	return format.ProbeInfo{Format: module.FormatST, Title: readPaddedString(b, 0, 20)}, nil
}

func (l *Loader) Load(b []byte, info format.ProbeInfo) (*module.Module, error) {
	if info.Format != module.FormatST {
		return nil, oxdzerr.Formatf("unsupported format")
	}

	songName := readPaddedString(b, 0, 20)

	type rawIns struct {
		name                   string
		size, finetune, volume int
		repeat, replen         int
	}
	ins := make([]rawIns, 15)
	for i := 0; i < 15; i++ {
		ofs := 20 + i*30
		ins[i] = rawIns{
			name:     readPaddedString(b, ofs, 22),
			size:     int(be16(b, ofs+22)),
			finetune: int(int8(b[ofs+24])),
			volume:   int(b[ofs+25]),
			repeat:   int(be16(b, ofs+26)),
			replen:   int(be16(b, ofs+28)),
		}
	}

	songLength := int(b[470])
	tempo := int(b[471])
	orders := append([]byte(nil), b[472:472+128]...)

	pat := 0
	n := songLength
	if n > 128 {
		n = 128
	}
	for _, o := range orders[:n] {
		if int(o) > pat {
			pat = int(o)
		}
	}
	pat++

	patStart := 600
	patBytes := 1024 * pat
	if patStart+patBytes > len(b) {
		return nil, oxdzerr.Formatf("truncated pattern data")
	}
	patData := b[patStart : patStart+patBytes]

	gd := module.NewGridData(songName, 4)
	instruments := make([]module.Instrument, 15)
	for i := range instruments {
		instruments[i] = &module.AmigaInstrument{
			Name:         ins[i].name,
			SizeWords:    ins[i].size,
			FineTune:     ins[i].finetune,
			Volume:       ins[i].volume,
			RepeatOffset: ins[i].repeat,
			RepeatLength: ins[i].replen,
			SampleIndex:  i + 1,
		}
	}
	gd.SetInstruments(instruments)

	ust := true
	for _, v := range ins {
		if v.size > 0x1387 || v.repeat > 9999 || v.replen > 0x1387 {
			ust = false
		}
	}
	var cmdUsed uint32

	for p := 0; p < pat; p++ {
		pi := gd.AddPattern(64)
		for r := 0; r < 64; r++ {
			for c := 0; c < 4; c++ {
				ofs := p*1024 + r*16 + c*4
				cell := patData[ofs : ofs+4]
				prd := (int(cell[0]&0x0f) << 8) | int(cell[1])
				insNum := int(cell[0]&0xf0) | int(cell[2]&0xf0>>4)
				cmd := int(cell[2] & 0x0f)
				cmdlo := int(cell[3])

				if cmd != 0 {
					cmdUsed |= 1 << uint(cmd)
				} else if cmdlo != 0 {
					cmdUsed |= 1
				}
				if cmd == 1 && cmdlo == 0 {
					ust = false
				}
				if cmd == 2 && (cmdlo&0xf0) != 0 && (cmdlo&0x0f) != 0 {
					ust = false
				}

				note := 0
				if prd != 0 {
					note = period.PeriodToNoteAll(prd)
				}
				gd.SetEventAt(pi, r, c, module.Event{
					Note:       note,
					Instrument: insNum,
					Volume:     module.NoNoteVolume,
					Effect:     byte(cmd),
					Param:      byte(cmdlo),
				})
			}
		}
	}
	if cmdUsed&0xfff9 != 0 {
		ust = false
	}
	gd.SetOrders(orders)
	gd.NormalizeOrders()

	ofs := patStart + patBytes
	samples := make([]module.Sample, 15)
	for i := 0; i < 15; i++ {
		size := ins[i].size * 2
		s := module.Sample{
			Number:     i + 1,
			FileOffset: ofs,
			Frames:     size,
			Rate:       8363,
			Name:       ins[i].name,
		}
		if size > 0 {
			s.Type = module.Sample8
		}
		if size > 0 && ins[i].replen > 1 {
			s.HasLoop = true
			s.LoopStart = ins[i].repeat * 2
			s.LoopEnd = (ins[i].repeat + ins[i].replen) * 2
		}
		end := ofs + size
		if end > len(b) {
			end = len(b)
		}
		if end > ofs {
			s.Store(b[ofs:end])
		} else {
			s.Store(nil)
		}
		samples[i] = s
		ofs += size
	}

	creator := "Soundtracker"
	playerID := "dst2"
	if ust {
		creator = "Ultimate Soundtracker"
		playerID = "ust"
	}

	m := &module.Module{
		Format:       module.FormatST,
		Description:  "15 instrument module",
		Creator:      creator,
		Channels:     4,
		PlayerID:     playerID,
		InitialSpeed: 6,
		InitialTempo: tempo,
		GlobalVolume: 64,
		Samples:      samples,
		Data:         gd,
	}
	return m, nil
}

func testName(b []byte, ofs, size int) bool {
	if ofs+size > len(b) {
		return false
	}
	for _, x := range b[ofs : ofs+size] {
		if x > 0x7f {
			return false
		}
		if x > 0 && x < 32 {
			return false
		}
	}
	return true
}

func inNoteTable(note int) bool {
	for _, n := range noteTable {
		if n == note {
			return true
		}
	}
	return false
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

func be16(b []byte, ofs int) uint16 {
	return uint16(b[ofs])<<8 | uint16(b[ofs+1])
}
