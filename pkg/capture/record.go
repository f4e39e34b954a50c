package capture

import (
	"strconv"
	"time"
)

// TimestampLayout is the UTC timestamp format used in exported records. It
// sorts lexicographically in time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Protocol tags.
const (
	ProtoHTTP = "HTTP"
	ProtoWS   = "WS"
)

// States.
const (
	StateOK      = "OK"
	StateErr     = "ERR"
	StateOpen    = "OPEN"
	StateMessage = "MESSAGE"
	StateClose   = "CLOSE"
)

// ServiceOther is the service of requests no classification rule matched.
const ServiceOther = "other"

// Columns is the exported column order. Downstream classifiers read the
// file by position, so the order must not change.
var Columns = []string{
	"id", "timestamp", "srcip", "sport", "dstip", "dsport", "proto", "state", "dur",
	"sbytes", "dbytes", "sttl", "dttl", "sloss", "dloss", "service", "sload", "dload",
	"spkts", "dpkts", "swin", "dwin", "stcpb", "dtcpb", "smeansz", "dmeansz",
	"trans_depth", "res_bdy_len", "sjit", "djit", "stime", "ltime", "sintpkt", "dintpkt",
	"tcprtt", "synack", "ackdat", "is_sm_ips_ports", "ct_state_ttl", "ct_flw_http_mthd",
	"is_ftp_login", "ct_ftp_cmd", "ct_srv_src", "ct_srv_dst", "ct_dst_ltm", "ct_src_ltm",
	"ct_src_dport_ltm", "ct_dst_sport_ltm", "ct_dst_src_ltm", "attack_cat", "label",
}

// Record is one traffic-shape record in the UNSW-NB15 layout. Most fields
// other than addresses, sizes and timings are synthetic defaults.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	SrcIP  string  `json:"srcip"`
	Sport  int     `json:"sport"`
	DstIP  string  `json:"dstip"`
	Dsport int     `json:"dsport"`
	Proto  string  `json:"proto"`
	State  string  `json:"state"`
	Dur    float64 `json:"dur"`

	Sbytes  int64   `json:"sbytes"`
	Dbytes  int64   `json:"dbytes"`
	Sttl    int     `json:"sttl"`
	Dttl    int     `json:"dttl"`
	Sloss   int     `json:"sloss"`
	Dloss   int     `json:"dloss"`
	Service string  `json:"service"`
	Sload   float64 `json:"sload"`
	Dload   float64 `json:"dload"`

	Spkts   int   `json:"spkts"`
	Dpkts   int   `json:"dpkts"`
	Swin    int   `json:"swin"`
	Dwin    int   `json:"dwin"`
	Stcpb   int64 `json:"stcpb"`
	Dtcpb   int64 `json:"dtcpb"`
	Smeansz int64 `json:"smeansz"`
	Dmeansz int64 `json:"dmeansz"`

	TransDepth int     `json:"trans_depth"`
	ResBdyLen  int64   `json:"res_bdy_len"`
	Sjit       float64 `json:"sjit"`
	Djit       float64 `json:"djit"`
	Stime      int64   `json:"stime"`
	Ltime      int64   `json:"ltime"`
	Sintpkt    float64 `json:"sintpkt"`
	Dintpkt    float64 `json:"dintpkt"`
	Tcprtt     float64 `json:"tcprtt"`
	Synack     float64 `json:"synack"`
	Ackdat     float64 `json:"ackdat"`

	IsSmIPsPorts  int `json:"is_sm_ips_ports"`
	CtStateTTL    int `json:"ct_state_ttl"`
	CtFlwHTTPMthd int `json:"ct_flw_http_mthd"`
	IsFtpLogin    int `json:"is_ftp_login"`
	CtFtpCmd      int `json:"ct_ftp_cmd"`
	CtSrvSrc      int `json:"ct_srv_src"`
	CtSrvDst      int `json:"ct_srv_dst"`
	CtDstLtm      int `json:"ct_dst_ltm"`
	CtSrcLtm      int `json:"ct_src_ltm"`
	CtSrcDportLtm int `json:"ct_src_dport_ltm"`
	CtDstSportLtm int `json:"ct_dst_sport_ltm"`
	CtDstSrcLtm   int `json:"ct_dst_src_ltm"`

	AttackCat string `json:"attack_cat"`
	Label     int    `json:"label"`
}

// Defaults returns a record holding only the default field values.
func Defaults() Record {
	return Record{
		AttackCat:     "Normal",
		Sttl:          64,
		Dttl:          64,
		Spkts:         1,
		Dpkts:         1,
		Swin:          65535,
		Dwin:          65535,
		CtSrvSrc:      1,
		CtSrvDst:      1,
		CtDstLtm:      1,
		CtSrcLtm:      1,
		CtSrcDportLtm: 1,
		CtDstSportLtm: 1,
		CtDstSrcLtm:   1,
	}
}

// withDefaults fills every zero-valued defaulted field of r. Defaults whose
// value is zero need no merge.
func withDefaults(r Record) Record {
	d := Defaults()
	if r.AttackCat == "" {
		r.AttackCat = d.AttackCat
	}
	setInt(&r.Sttl, d.Sttl)
	setInt(&r.Dttl, d.Dttl)
	setInt(&r.Spkts, d.Spkts)
	setInt(&r.Dpkts, d.Dpkts)
	setInt(&r.Swin, d.Swin)
	setInt(&r.Dwin, d.Dwin)
	setInt(&r.CtSrvSrc, d.CtSrvSrc)
	setInt(&r.CtSrvDst, d.CtSrvDst)
	setInt(&r.CtDstLtm, d.CtDstLtm)
	setInt(&r.CtSrcLtm, d.CtSrcLtm)
	setInt(&r.CtSrcDportLtm, d.CtSrcDportLtm)
	setInt(&r.CtDstSportLtm, d.CtDstSportLtm)
	setInt(&r.CtDstSrcLtm, d.CtDstSrcLtm)
	return r
}

func setInt(field *int, def int) {
	if *field == 0 {
		*field = def
	}
}

// Values returns the record's fields formatted in Columns order.
func (r *Record) Values() []string {
	return []string{
		r.ID,
		FormatTimestamp(r.Timestamp),
		r.SrcIP,
		itoa(r.Sport),
		r.DstIP,
		itoa(r.Dsport),
		r.Proto,
		r.State,
		ftoa(r.Dur),
		i64toa(r.Sbytes),
		i64toa(r.Dbytes),
		itoa(r.Sttl),
		itoa(r.Dttl),
		itoa(r.Sloss),
		itoa(r.Dloss),
		r.Service,
		strconv.FormatFloat(r.Sload, 'f', 2, 64),
		strconv.FormatFloat(r.Dload, 'f', 2, 64),
		itoa(r.Spkts),
		itoa(r.Dpkts),
		itoa(r.Swin),
		itoa(r.Dwin),
		i64toa(r.Stcpb),
		i64toa(r.Dtcpb),
		i64toa(r.Smeansz),
		i64toa(r.Dmeansz),
		itoa(r.TransDepth),
		i64toa(r.ResBdyLen),
		ftoa(r.Sjit),
		ftoa(r.Djit),
		i64toa(r.Stime),
		i64toa(r.Ltime),
		ftoa(r.Sintpkt),
		ftoa(r.Dintpkt),
		ftoa(r.Tcprtt),
		ftoa(r.Synack),
		ftoa(r.Ackdat),
		itoa(r.IsSmIPsPorts),
		itoa(r.CtStateTTL),
		itoa(r.CtFlwHTTPMthd),
		itoa(r.IsFtpLogin),
		itoa(r.CtFtpCmd),
		itoa(r.CtSrvSrc),
		itoa(r.CtSrvDst),
		itoa(r.CtDstLtm),
		itoa(r.CtSrcLtm),
		itoa(r.CtSrcDportLtm),
		itoa(r.CtDstSportLtm),
		itoa(r.CtDstSrcLtm),
		r.AttackCat,
		itoa(r.Label),
	}
}

// FormatTimestamp formats t in UTC with TimestampLayout. The zero time
// formats as "".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func itoa(v int) string     { return strconv.Itoa(v) }
func i64toa(v int64) string { return strconv.FormatInt(v, 10) }
func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
