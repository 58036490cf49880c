package stats

import (
	"expvar"
	"strconv"
)

// exposed expvar variables
var (
	Server  = expvar.NewMap("ldap_server")
	Store   = expvar.NewMap("ldap_store")
	General = expvar.NewMap("ldap")
)

// Stringer publishes a constant string through expvar.
type Stringer string

func (s Stringer) String() string {
	return strconv.Quote(string(s))
}
