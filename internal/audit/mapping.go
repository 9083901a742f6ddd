package audit

import "strings"

// MethodRef holds the verb and resource derived from a gRPC full method name.
type MethodRef struct {
	Verb     string
	Resource string
}

// ParseFullMethod returns verb and resource for a gRPC full method
// (e.g. /authguard.v1.RateLimitService/GetStatus -> get, rateLimit).
// The verb is get, list, create, update, delete, revoke, block, unblock, or the
// lowercased method name.
func ParseFullMethod(fullMethod string) MethodRef {
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return MethodRef{Verb: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	service := fullMethod[:slash]
	dot := strings.LastIndex(service, ".")
	if dot < 0 {
		return MethodRef{Verb: strings.ToLower(method), Resource: "unknown"}
	}
	return MethodRef{Verb: methodVerb(method), Resource: serviceResource(service[dot+1:])}
}

// Skip reports whether the method is infrastructure traffic that is never audited.
func Skip(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.health.v1.") ||
		strings.HasPrefix(fullMethod, "/grpc.reflection.")
}

func serviceResource(service string) string {
	s := strings.TrimSuffix(service, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var verbPrefixes = []struct{ prefix, verb string }{
	{"Get", "get"},
	{"List", "list"},
	{"Create", "create"},
	{"Update", "update"},
	{"Delete", "delete"},
	{"Revoke", "revoke"},
	{"Unblock", "unblock"},
	{"Block", "block"},
}

func methodVerb(method string) string {
	for _, p := range verbPrefixes {
		if strings.HasPrefix(method, p.prefix) && method != p.prefix {
			return p.verb
		}
	}
	return strings.ToLower(method)
}
