package output

func NewLimitedChanWriter(limit int) LimitedChanWriter {
	return make(LimitedChanWriter, limit)
}

// LimitedChanWriter keeps the last cap(lcw) writes, dropping the oldest one when full.
// It must have a single writer.
type LimitedChanWriter chan string

func (lcw LimitedChanWriter) Write(p []byte) (int, error) { // nolint:unparam // err is needed to implement io.Writer
	if len(lcw) == cap(lcw) {
		select {
		case <-lcw:
		default:
		}
	}

	select {
	case lcw <- string(p):
	default:
	}

	return len(p), nil
}

// Drain returns everything buffered so far, oldest first, and empties the buffer.
func (lcw LimitedChanWriter) Drain() []string {
	var out []string
	for {
		select {
		case s := <-lcw:
			out = append(out, s)
		default:
			return out
		}
	}
}
