package session

import "strconv"

// padding fills a buffer with "<offset>," tags so a fragmented
// message's chunk boundaries are visible by inspection instead of
// needing hand-computed offsets. Ported from the echo server's helper
// of the same name in the original Rust implementation, where it
// serves exactly this self-describing-payload purpose for
// fragmentation testing.
func padding(length int) []byte {
	buf := make([]byte, 0, length)
	for len(buf) < length {
		remaining := length - len(buf)
		tag := strconv.Itoa(len(buf)) + ","
		if len(tag) > remaining {
			for i := 0; i < remaining; i++ {
				buf = append(buf, 'x')
			}
			break
		}
		buf = append(buf, tag...)
	}
	return buf
}
