package proxy

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"securemeet/relaygate/pkg/capture"
)

// Endpoint is one side of a transport connection.
type Endpoint struct {
	IP   string
	Port int
}

// ParseEndpoint splits a "host:port" address. Unparseable input yields
// the whole string as IP and port 0.
func ParseEndpoint(addr string) Endpoint {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{IP: addr}
	}
	p, _ := strconv.Atoi(port)
	return Endpoint{IP: host, Port: p}
}

// endpoints returns the client and local addresses of r's connection.
func endpoints(r *http.Request) (src, dst Endpoint) {
	src = ParseEndpoint(r.RemoteAddr)
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		dst = ParseEndpoint(addr.String())
	}
	return src, dst
}

// Exchange describes one completed HTTP request/response cycle.
type Exchange struct {
	Service       string
	Method        string
	Status        int
	Src, Dst      Endpoint
	RequestBytes  int64
	ResponseBytes int64
	Start, End    time.Time
}

// HTTPRecord builds the traffic record of an HTTP exchange. Fields not set
// here receive the capture defaults.
func HTTPRecord(ex Exchange) capture.Record {
	dur := ex.End.Sub(ex.Start).Seconds()
	if dur < 0 {
		dur = 0
	}
	rttMillis := dur * 1000

	state := capture.StateErr
	if ex.Status == http.StatusOK {
		state = capture.StateOK
	}
	getFlag := 0
	if ex.Method == http.MethodGet {
		getFlag = 1
	}

	return capture.Record{
		SrcIP:         ex.Src.IP,
		Sport:         ex.Src.Port,
		DstIP:         ex.Dst.IP,
		Dsport:        ex.Dst.Port,
		Proto:         capture.ProtoHTTP,
		State:         state,
		Dur:           dur,
		Sbytes:        ex.RequestBytes,
		Dbytes:        ex.ResponseBytes,
		Service:       ex.Service,
		Sload:         throughput(ex.RequestBytes, dur),
		Dload:         throughput(ex.ResponseBytes, dur),
		Stcpb:         ex.RequestBytes,
		Dtcpb:         ex.ResponseBytes,
		Smeansz:       ex.RequestBytes,
		Dmeansz:       ex.ResponseBytes,
		TransDepth:    1,
		ResBdyLen:     ex.ResponseBytes,
		Stime:         ex.Start.Unix(),
		Ltime:         ex.End.Unix(),
		Tcprtt:        rttMillis,
		Synack:        rttMillis / 2,
		Ackdat:        rttMillis / 2,
		CtFlwHTTPMthd: getFlag,
	}
}

// WSEvent describes one WebSocket lifecycle event.
type WSEvent struct {
	Service  string
	State    string // capture.StateOpen, StateMessage or StateClose
	Src, Dst Endpoint

	// Sbytes and Dbytes are the client-to-upstream and upstream-to-client
	// payload sizes: of one frame for MESSAGE, totals for CLOSE.
	Sbytes int64
	Dbytes int64

	// Start is when the bridge opened. End is the event time.
	Start, End time.Time
}

// WSRecord builds the traffic record of a WebSocket event. Only CLOSE
// carries a duration.
func WSRecord(ev WSEvent) capture.Record {
	rec := capture.Record{
		SrcIP:   ev.Src.IP,
		Sport:   ev.Src.Port,
		DstIP:   ev.Dst.IP,
		Dsport:  ev.Dst.Port,
		Proto:   capture.ProtoWS,
		State:   ev.State,
		Sbytes:  ev.Sbytes,
		Dbytes:  ev.Dbytes,
		Service: ev.Service,
		Stime:   ev.Start.Unix(),
		Ltime:   ev.End.Unix(),
	}
	if ev.State == capture.StateClose {
		rec.Dur = math.Max(ev.End.Sub(ev.Start).Seconds(), 0)
		rec.Sload = throughput(ev.Sbytes, rec.Dur)
		rec.Dload = throughput(ev.Dbytes, rec.Dur)
	}
	return rec
}

// throughput returns bytes per second rounded to two decimals, or zero for
// a zero duration.
func throughput(bytes int64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Round(float64(bytes)/seconds*100) / 100
}
