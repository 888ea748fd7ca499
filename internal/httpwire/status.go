package httpwire

// recognizedStatus is the fixed set of codes this proxy passes through
// without folding.
var recognizedStatus = map[int]struct{}{
	100: {}, 101: {},
	200: {}, 201: {}, 202: {}, 203: {}, 204: {}, 205: {}, 206: {},
	300: {}, 301: {}, 302: {}, 303: {}, 304: {}, 305: {}, 306: {}, 307: {},
	400: {}, 401: {}, 402: {}, 403: {}, 404: {}, 405: {}, 406: {}, 407: {}, 408: {}, 409: {},
	410: {}, 411: {}, 412: {}, 413: {}, 414: {}, 415: {}, 416: {}, 417: {},
	500: {}, 501: {}, 502: {}, 503: {}, 504: {}, 505: {},
}

// classFloor is the recognized code each class folds to when the exact
// code isn't in recognizedStatus.
var classFloor = map[int]int{1: 100, 2: 200, 3: 300, 4: 400, 5: 500}

// FoldStatus passes a recognized code through unchanged and maps any
// other code onto its own class's base code (e.g. an unrecognized 5xx
// folds to 500 and an unrecognized 2xx to 200, never to an unrelated
// class). ok is false if code's leading digit isn't 1-5, meaning the
// line isn't a valid status line at all.
func FoldStatus(code int) (folded int, ok bool) {
	if _, exact := recognizedStatus[code]; exact {
		return code, true
	}
	class := code / 100
	floor, known := classFloor[class]
	if !known {
		return 0, false
	}
	return floor, true
}
