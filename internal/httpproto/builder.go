package httpproto

import "strconv"

var reasonPhrases = map[StatusCode]string{
	StatusOK:         "OK",
	StatusBadRequest: "Bad Request",
	StatusForbidden:  "Forbidden",
	StatusNotFound:   "Not Found",
}

func reasonPhrase(code StatusCode) string {
	if r, ok := reasonPhrases[code]; ok {
		return r
	}
	return "Internal Server Error"
}

// BodyDescriptor is either inline bytes destined for the write buffer, or a
// reference to an externally-owned region (a memory-mapped file) that the
// reactor writev's alongside the header block without copying it.
type BodyDescriptor struct {
	Inline   []byte
	External []byte
}

// Len reports the body length regardless of which form it takes.
func (b BodyDescriptor) Len() int {
	if b.External != nil {
		return len(b.External)
	}
	return len(b.Inline)
}

// Response is the result of handling one Request: a status, headers, and
// a body descriptor, per the data model.
type Response struct {
	Status  StatusCode
	Headers Headers
	Body    BodyDescriptor
}

// BuildHeader serializes the status line and the fixed header set into
// dst, returning the number of bytes written. dst must be large enough;
// callers size it with HeaderLen.
func BuildHeader(dst []byte, status StatusCode, contentType string, bodyLen int, keepAlive bool) int {
	n := 0
	n += copy(dst[n:], "HTTP/1.1 ")
	n += copy(dst[n:], strconv.Itoa(int(status)))
	n += copy(dst[n:], " ")
	n += copy(dst[n:], reasonPhrase(status))
	n += copy(dst[n:], "\r\n")

	n += copy(dst[n:], "Connection: ")
	if keepAlive {
		n += copy(dst[n:], "keep-alive\r\n")
		n += copy(dst[n:], "keep-alive: max=6, timeout=120\r\n")
	} else {
		n += copy(dst[n:], "close\r\n")
	}

	n += copy(dst[n:], "Content-type: ")
	n += copy(dst[n:], contentType)
	n += copy(dst[n:], "\r\n")

	n += copy(dst[n:], "Content-length: ")
	n += copy(dst[n:], strconv.Itoa(bodyLen))
	n += copy(dst[n:], "\r\n\r\n")

	return n
}

// HeaderLen returns exactly how many bytes BuildHeader would write, so
// callers can size their destination slice without a throwaway pass.
func HeaderLen(status StatusCode, contentType string, bodyLen int, keepAlive bool) int {
	n := len("HTTP/1.1 ") + len(strconv.Itoa(int(status))) + 1 + len(reasonPhrase(status)) + 2
	if keepAlive {
		n += len("Connection: keep-alive\r\n")
		n += len("keep-alive: max=6, timeout=120\r\n")
	} else {
		n += len("Connection: close\r\n")
	}
	n += len("Content-type: ") + len(contentType) + 2
	n += len("Content-length: ") + len(strconv.Itoa(bodyLen)) + 4
	return n
}
