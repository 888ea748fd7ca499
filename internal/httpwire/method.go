package httpwire

// Method is one of the eight request methods this proxy recognizes.
type Method string

const (
	OPTIONS Method = "OPTIONS"
	GET     Method = "GET"
	HEAD    Method = "HEAD"
	POST    Method = "POST"
	PUT     Method = "PUT"
	DELETE  Method = "DELETE"
	TRACE   Method = "TRACE"
	CONNECT Method = "CONNECT"
)

var validMethods = map[Method]struct{}{
	OPTIONS: {}, GET: {}, HEAD: {}, POST: {}, PUT: {}, DELETE: {}, TRACE: {}, CONNECT: {},
}

// ValidMethod reports whether s is one of the enumerated methods.
func ValidMethod(s string) bool {
	_, ok := validMethods[Method(s)]
	return ok
}
