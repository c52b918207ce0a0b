package controller

import (
	"net/http"
	"net/http/pprof"
)

// PprofPrefix is the path the status server mounts PprofMux under.
const PprofPrefix = "/debug/pprof/"

// PprofMux returns a ServeMux exposing the net/http/pprof handlers relative
// to its root. Mount it with http.StripPrefix.
func PprofMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"goroutine", "heap", "allocs"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}

	return mux
}
