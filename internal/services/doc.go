// Package services orchestrates rgpipe commands on top of a rgpipe.Target.
//
// IngestService.Load runs, for each manifest source in order: read the file,
// read the target state, flatten, append each table, record the run. The
// first failing source stops the load; sources already loaded stay.
package services
