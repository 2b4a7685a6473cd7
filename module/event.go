package module

// NoNoteVolume marks a pattern event whose volume column was not set,
// matching the teacher's 0xFF sentinel (player.go's noNoteVolume /
// mod.go's "no volume set on this note").
const NoNoteVolume = 0xFF

// NoteKeyOff is the XM/S3M convention for an explicit note-off event
// (XM stores it as note value 97; S3M/STM as "^^.").
const NoteKeyOff = 97

// Event is one cell of a pattern: a note/instrument trigger plus an
// optional volume-column value and one effect command. It is the common
// representation every loader decodes into, regardless of the on-disk
// encoding (Amiga 4-byte packed note, XM packed note, S3M tagged byte
// stream).
type Event struct {
	Note       int  // 0 = no note, NoteKeyOff = key-off; else period.NoteMin..NoteMax (Amiga family), 1..96 (XM), octave*12+semitone (S3M/STM)
	Instrument int  // 0 = none, else 1-based instrument/sample number
	Volume     int  // 0..64, or NoNoteVolume if unset
	Effect     byte
	Param      byte
}

// Empty reports whether the event carries no information at all.
func (e Event) Empty() bool {
	return e.Note == 0 && e.Instrument == 0 && (e.Volume == 0 || e.Volume == NoNoteVolume) && e.Effect == 0 && e.Param == 0
}
