package security

import (
	"net"
	"net/http"
	"strings"
)

// ParseCIDRAllowlist parses a comma-separated list of CIDRs. Bare addresses are accepted as
// single-host networks.
func ParseCIDRAllowlist(list string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, cidr := range strings.Split(list, ",") {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if !strings.Contains(cidr, "/") {
			if ip := net.ParseIP(cidr); ip != nil {
				bits := 128
				if ip.To4() != nil {
					ip, bits = ip.To4(), 32
				}
				out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// ClientIP is the peer address of the connection. Forwarding headers are not trusted.
func ClientIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

// IPAllowlist rejects peers outside allow with 403. An empty list allows everyone.
func IPAllowlist(allow []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allow) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if ip == nil {
				WriteJSONError(w, r, http.StatusForbidden, "forbidden")
				return
			}

			for _, n := range allow {
				if n.Contains(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			WriteJSONError(w, r, http.StatusForbidden, "forbidden")
		})
	}
}
