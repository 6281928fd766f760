package main

import (
	_ "net/http/pprof" // register the /debug/pprof handlers
)

// TODO:
// - rate limit payment endpoints
// - APM/Tracing
func main() {
	startWithDig()
}
