// Package handlers implements the proxy's own admin endpoints. These are
// answered locally and never forwarded:
//
//	GET  /proxy/status  {"status":"running","services":[...],"recordsInMemory":n}
//	POST /proxy/export  {"status":"success","exported":n} or 500 {"status":"error","error":"..."}
package handlers
