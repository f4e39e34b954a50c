// Package capture buffers traffic-shape records produced by the proxy and
// exports them in batches.
//
// Each record follows the 51-column UNSW-NB15 layout consumed by the
// intrusion-detection classifier (see Columns). Only addresses, sizes and
// timings are measured; packet counts, TTLs, window sizes and connection
// counters are fixed defaults, so the data is a synthetic traffic model,
// not a packet capture.
//
// A Pipeline holds records in memory until Flush hands the whole buffer to
// an Exporter. A failed export puts the batch back in front of newer
// records so nothing is lost or reordered; MaxBuffered bounds memory during
// a long outage by dropping the oldest records. A Scheduler flushes on a
// cron schedule, and callers flush once more on shutdown.
package capture
