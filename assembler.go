package sphero

import "fmt"

// Assembler accumulates inbound bytes and cuts them into frames. It is not
// safe for concurrent use.
type Assembler struct {
	backlog []byte

	// resyncing is set after a bad frame until the next good one, so the
	// rest of the bad frame is not reported again.
	resyncing bool

	// OnMalformed is called for every frame that is dropped.
	OnMalformed func(err error)
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Feed appends b to the backlog and returns all frames that are complete.
// An incomplete tail is kept until the next call.
func (a *Assembler) Feed(b []byte) []Frame {
	a.backlog = append(a.backlog, b...)

	var frames []Frame

	for len(a.backlog) >= MinFrameSize {
		if skip := a.resync(); skip > 0 {
			if a.resyncing {
				a.backlog = a.backlog[skip:]
			} else {
				a.drop(skip, fmt.Errorf("%w: skipped %d byte(s) before start of packet", ErrMalformedFrame, skip))
			}

			continue
		}

		total, ok := a.frameSize()

		if !ok {
			a.reject(fmt.Errorf("%w: zero length field", ErrMalformedFrame))
			continue
		}

		if len(a.backlog) < total {
			break
		}

		frame, err := parseFrame(a.backlog[:total])

		if err != nil {
			// The start of packet may have been a false one, so a real frame
			// can begin inside the rejected bytes.
			a.reject(err)
			continue
		}

		a.backlog = a.backlog[total:]
		a.resyncing = false

		frames = append(frames, frame)
	}

	if len(a.backlog) == 0 {
		a.backlog = nil
	}

	return frames
}

// Buffered returns the number of bytes waiting for the rest of their frame.
func (a *Assembler) Buffered() int {
	return len(a.backlog)
}

// resync returns how many leading bytes cannot start a frame.
func (a *Assembler) resync() int {
	for i := 0; i+1 < len(a.backlog); i++ {
		if a.backlog[i] != SOP1 {
			continue
		}

		switch a.backlog[i+1] {
		case SOP2Async:
			return i
		case SOP2Reply:
			// In FF FF FF or FF FF FE the start of packet is one byte later,
			// no status is 0xFF or 0xFE.
			if i+2 < len(a.backlog) && (a.backlog[i+2] == SOP2Reply || a.backlog[i+2] == SOP2Async) {
				continue
			}

			return i
		}
	}

	// Keep a trailing SOP1, its partner may still arrive.
	if a.backlog[len(a.backlog)-1] == SOP1 {
		return len(a.backlog) - 1
	}

	return len(a.backlog)
}

// frameSize returns the total size of the frame at the front of the backlog.
func (a *Assembler) frameSize() (int, bool) {
	var length int

	if a.backlog[1] == SOP2Async {
		length = int(a.backlog[3])<<8 | int(a.backlog[4])
	} else {
		length = int(a.backlog[4])
	}

	if length == 0 {
		return 0, false
	}

	return 5 + length, true
}

// reject drops the first byte of a bad frame and scans the rest again.
func (a *Assembler) reject(err error) {
	a.drop(1, err)
	a.resyncing = true
}

func (a *Assembler) drop(n int, err error) {
	a.backlog = a.backlog[n:]
	a.report(err)
}

func (a *Assembler) report(err error) {
	if a.OnMalformed != nil {
		a.OnMalformed(err)
	}
}

// parseFrame verifies and decodes one complete inbound frame.
func parseFrame(raw []byte) (Frame, error) {
	frame := Frame{
		Code:     raw[2],
		Data:     append([]byte(nil), raw[5:len(raw)-1]...),
		Checksum: raw[len(raw)-1],
	}

	if raw[1] == SOP2Async {
		frame.Kind = KindNotification
		frame.Length = uint16(raw[3])<<8 | uint16(raw[4])
	} else {
		frame.Kind = KindReply
		frame.Seq = raw[3]
		frame.Length = uint16(raw[4])
	}

	if chk := Checksum(raw[2 : len(raw)-1]); chk != frame.Checksum {
		return Frame{}, fmt.Errorf("%w: %s checksum 0x%02x, expected 0x%02x", ErrMalformedFrame, frame.Kind, frame.Checksum, chk)
	}

	return frame, nil
}
